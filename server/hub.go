package server

import (
	"log/slog"
	"sync"

	"todosync/store"
)

// feedBuffer is the per-subscriber change buffer. A subscriber that
// falls this far behind starts losing changes; it will reconverge on
// its next reconnect replay.
const feedBuffer = 64

// hub fans accepted changes out to all connected feed subscribers.
type hub struct {
	mu     sync.Mutex
	subs   map[chan store.Change]struct{}
	logger *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		subs:   make(map[chan store.Change]struct{}),
		logger: logger,
	}
}

func (h *hub) subscribe() chan store.Change {
	ch := make(chan store.Change, feedBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan store.Change) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// broadcast delivers the change to every subscriber without blocking
// the writer; slow subscribers drop changes.
func (h *hub) broadcast(c store.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- c:
		default:
			h.logger.Warn("feed subscriber too slow, dropping change", "op", c.Op, "todo", c.Todo.ID)
		}
	}
}
