package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"todosync/model"
	"todosync/store"
)

// Server is the HTTP/websocket surface over the todo store.
type Server struct {
	db       *DB
	hub      *hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server over the given database.
func New(db *DB, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		db:     db,
		hub:    newHub(logger),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router returns the HTTP routes. The feed route must be registered
// before the id route so "feed" is not captured as an id.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.logger.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/todos/feed").HandlerFunc(s.feed)
	r.Methods(http.MethodGet).Path("/todos").HandlerFunc(s.listTodos)
	r.Methods(http.MethodPut).Path("/todos/{id}").HandlerFunc(s.putTodo)
	r.Methods(http.MethodDelete).Path("/todos/{id}").HandlerFunc(s.deleteTodo)
	return r
}

func (s *Server) listTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.db.List()
	if err != nil {
		s.logger.Error("list todos", "err", err)
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(todos); err != nil {
		s.logger.Error("encode todos", "err", err)
	}
}

func (s *Server) putTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var todo model.Todo
	if err := json.NewDecoder(r.Body).Decode(&todo); err != nil {
		http.Error(w, "invalid todo body", http.StatusBadRequest)
		return
	}
	if todo.ID == "" {
		todo.ID = id
	}
	if todo.ID != id {
		http.Error(w, "todo id does not match path", http.StatusBadRequest)
		return
	}

	if err := s.db.Upsert(todo); err != nil {
		s.logger.Error("upsert todo", "todo", todo.ID, "err", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	s.hub.broadcast(store.Change{Op: store.OpPut, Todo: todo})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(todo); err != nil {
		s.logger.Error("encode saved todo", "err", err)
	}
}

func (s *Server) deleteTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.db.Delete(id); err != nil {
		s.logger.Error("delete todo", "todo", id, "err", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	s.hub.broadcast(store.Change{Op: store.OpDelete, Todo: model.Todo{ID: id}})
	w.WriteHeader(http.StatusNoContent)
}

// feed upgrades to a websocket and streams changes. The current table
// is replayed first so a late subscriber converges; subscription starts
// before the replay, so a change racing the replay is delivered twice,
// which upsert semantics absorb.
func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade feed", "err", err)
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	todos, err := s.db.List()
	if err != nil {
		s.logger.Error("replay todos", "err", err)
		return
	}
	for _, t := range todos {
		if err := conn.WriteJSON(store.Change{Op: store.OpPut, Todo: t}); err != nil {
			s.logger.Warn("feed replay write", "err", err)
			return
		}
	}

	// Reads only detect the peer closing; the feed is write-only.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case change := <-ch:
			if err := conn.WriteJSON(change); err != nil {
				s.logger.Warn("feed write", "err", err)
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
