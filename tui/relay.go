package tui

import (
	"sync"

	"todosync/app"
	"todosync/model"
)

// Relay bridges store snapshots into a message sink that may be slow or
// not receiving yet, such as a bubbletea program before Run starts or
// while its loop is busy inside Update. The watcher itself never
// blocks: it records the snapshot and pokes a forwarding goroutine,
// and bursts are coalesced down to the newest snapshot since every
// snapshot carries the full state. The returned stop function shuts
// the forwarder down and waits for it to finish.
func Relay(st *app.Store, send func(StateMsg)) (stop func()) {
	var (
		mu     sync.Mutex
		latest model.AppState
		fresh  bool
	)
	kick := make(chan struct{}, 1)
	quit := make(chan struct{})
	done := make(chan struct{})

	st.Watch(func(s model.AppState) {
		mu.Lock()
		latest = s
		fresh = true
		mu.Unlock()
		select {
		case kick <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			case <-kick:
			}
			mu.Lock()
			s := latest
			ok := fresh
			fresh = false
			mu.Unlock()
			if ok {
				send(StateMsg(s))
			}
		}
	}()

	return func() {
		close(quit)
		<-done
	}
}
