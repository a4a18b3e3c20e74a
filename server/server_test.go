package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"todosync/model"
	"todosync/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(newTestDB(t), slog.Default())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func recvChange(t *testing.T, ch <-chan store.Change, what string) store.Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		if !ok {
			t.Fatalf("feed closed while waiting for %s", what)
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	return store.Change{}
}

func TestSaveRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	client := store.NewClient(ts.URL, slog.Default())

	todo := model.Todo{ID: "t1", Description: "write tests"}
	saved, err := client.Save(context.Background(), todo)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved != todo {
		t.Fatalf("expected server to echo stored todo, got %+v", saved)
	}
}

func TestSaveRejectsEmptyID(t *testing.T) {
	_, ts := newTestServer(t)
	client := store.NewClient(ts.URL, slog.Default())
	if _, err := client.Save(context.Background(), model.Todo{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestFeedReplaysExistingTodos(t *testing.T) {
	srv, ts := newTestServer(t)
	if err := srv.db.Upsert(model.Todo{ID: "old", Description: "already there"}); err != nil {
		t.Fatal(err)
	}

	client := store.NewClient(ts.URL, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := client.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	c := recvChange(t, ch, "replay")
	if c.Op != store.OpPut || c.Todo.ID != "old" {
		t.Fatalf("expected replay of existing todo, got %+v", c)
	}
}

func TestFeedFansOutSavesAndDeletes(t *testing.T) {
	_, ts := newTestServer(t)
	client := store.NewClient(ts.URL, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := client.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	todo := model.Todo{ID: "t1", Description: "fan out"}
	if _, err := client.Save(ctx, todo); err != nil {
		t.Fatalf("Save: %v", err)
	}
	c := recvChange(t, ch, "put change")
	if c.Op != store.OpPut || c.Todo != todo {
		t.Fatalf("expected put change for t1, got %+v", c)
	}

	// Second subscriber sees the same state via replay.
	ch2, err := client.Subscribe(ctx)
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	c = recvChange(t, ch2, "replay on second subscriber")
	if c.Op != store.OpPut || c.Todo != todo {
		t.Fatalf("expected replay for second subscriber, got %+v", c)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/todos/t1", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for delete, got %d", resp.StatusCode)
	}
	c = recvChange(t, ch, "delete change")
	if c.Op != store.OpDelete || c.Todo.ID != "t1" {
		t.Fatalf("expected delete change for t1, got %+v", c)
	}
}

func TestSubscribeChannelClosesWithContext(t *testing.T) {
	_, ts := newTestServer(t)
	client := store.NewClient(ts.URL, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := client.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A change may have been buffered; the channel must still
			// close shortly after.
			select {
			case _, ok := <-ch:
				if ok {
					t.Fatal("expected feed channel to close after cancel")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for feed channel to close")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed channel to close")
	}
}
