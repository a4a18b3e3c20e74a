package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"todosync/model"
	"todosync/store"
)

// delayKeyMove is the timer key for the fixed re-sort that follows a
// drag reorder. It shares the timer map with the debounce keys so a
// newer move always supersedes a pending one.
const delayKeyMove = "move"

// Config tunes the Store's effect timing. Zero values pick the
// defaults; tests shrink the durations.
type Config struct {
	// SortDelay is the fixed delay before the re-sort that follows a
	// move event. Default 100ms.
	SortDelay time.Duration
	// SortQuiet is the quiet period for the debounced re-sort after
	// completion toggles. Default 1s.
	SortQuiet time.Duration
	// SaveTimeout bounds each persist call. Expiry is treated as a
	// save failure. Default 5s.
	SaveTimeout time.Duration
	// Reconnect is the backoff policy for re-opening the change feed.
	Reconnect store.Backoff
	// Logger receives runner diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.SortDelay <= 0 {
		c.SortDelay = 100 * time.Millisecond
	}
	if c.SortQuiet <= 0 {
		c.SortQuiet = time.Second
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Store owns the application state. All transitions are serialized:
// Dispatch applies one event at a time under a single lock, and every
// effect completion re-enters the system as another dispatched event.
type Store struct {
	reducer Reducer
	remote  store.Remote
	cfg     Config
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      model.AppState
	watchers   []func(model.AppState)
	subscribed bool

	// notifyMu serializes watcher notification so snapshots arrive in
	// the same order the events were applied.
	notifyMu sync.Mutex

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// NewStore creates a store over the initial state. remote may only be
// nil when no event ever schedules a persist or subscription effect.
func NewStore(initial model.AppState, remote store.Remote, cfg Config) *Store {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		reducer: NewReducer(),
		remote:  remote,
		cfg:     cfg,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		state:   initial.Clone(),
		timers:  make(map[string]*time.Timer),
	}
}

// SetIDGenerator replaces the identifier generator used for new todos.
// Intended for tests and previews; call before dispatching.
func (s *Store) SetIDGenerator(newID func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reducer.NewID = newID
}

// State returns a copy of the current state.
func (s *Store) State() model.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Watch registers an observer called with a state copy after every
// applied event, in apply order. Observers run outside the state lock
// but inside the notification lock, so they must not call Dispatch
// synchronously and should hand work off quickly.
func (s *Store) Watch(fn func(model.AppState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Dispatch applies the event atomically and schedules its effects.
// An error means the state was left untouched.
func (s *Store) Dispatch(ev Event) error {
	s.mu.Lock()
	next, effects, err := s.reducer.Reduce(s.state, ev)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	watchers := make([]func(model.AppState), len(s.watchers))
	copy(watchers, s.watchers)
	snapshot := next.Clone()
	// Taking notifyMu before releasing the state lock pins notification
	// order to apply order even when dispatches race.
	s.notifyMu.Lock()
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(snapshot)
	}
	s.notifyMu.Unlock()

	for _, eff := range effects {
		s.run(eff)
	}
	return nil
}

// Close stops pending timers and the subscription goroutine. Persist
// calls already in flight run to completion.
func (s *Store) Close() {
	s.cancel()
	s.timersMu.Lock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	s.timersMu.Unlock()
	s.wg.Wait()
}

func (s *Store) run(eff Effect) {
	switch eff := eff.(type) {
	case PersistTodo:
		s.wg.Add(1)
		go s.persist(eff.Todo)
	case DelayedSort:
		s.schedule(delayKeyMove, s.cfg.SortDelay)
	case DebouncedSort:
		s.schedule(eff.Key, s.cfg.SortQuiet)
	case StartSubscription:
		s.startSubscription()
	default:
		s.logger.Error("unknown effect", "effect", eff)
	}
}

func (s *Store) persist(todo model.Todo) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	defer cancel()

	saved, err := s.remote.Save(ctx, todo)
	if err != nil {
		s.logger.Warn("persist failed", "todo", todo.ID, "err", err)
		s.redispatch(SaveFailed{ID: todo.ID, Err: err.Error()})
		return
	}
	s.redispatch(TodoSynced{Todo: saved})
}

// schedule installs (or replaces) the pending sort timer for key.
// Stopping the old timer before installing the new one guarantees at
// most one pending timer per key.
func (s *Store) schedule(key string, d time.Duration) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.timersMu.Lock()
		delete(s.timers, key)
		s.timersMu.Unlock()
		if s.ctx.Err() != nil {
			return
		}
		s.redispatch(SortCompletedToBottom{})
	})
}

func (s *Store) startSubscription() {
	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		return
	}
	s.subscribed = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runSubscription()
}

// runSubscription keeps the change feed alive until the store closes.
// Each disconnect surfaces as a SubscriptionLost event; reconnects use
// exponential backoff reset on every successful connect.
func (s *Store) runSubscription() {
	defer s.wg.Done()
	attempt := 0
	for {
		if s.ctx.Err() != nil {
			return
		}
		ch, err := s.remote.Subscribe(s.ctx)
		if err != nil {
			s.redispatch(SubscriptionLost{Err: err.Error()})
			if !s.sleep(s.cfg.Reconnect.Delay(attempt)) {
				return
			}
			attempt++
			continue
		}
		attempt = 0
		s.redispatch(SubscriptionEstablished{})

		for change := range ch {
			switch change.Op {
			case store.OpDelete:
				s.redispatch(TodoRemoved{ID: change.Todo.ID})
			default:
				s.redispatch(TodoSynced{Todo: change.Todo})
			}
		}
		if s.ctx.Err() != nil {
			return
		}
		s.redispatch(SubscriptionLost{Err: "change feed closed"})
		if !s.sleep(s.cfg.Reconnect.Delay(attempt)) {
			return
		}
		attempt++
	}
}

// redispatch feeds an effect-produced event back into the store.
// Reducer errors here indicate a bug in the runner itself.
func (s *Store) redispatch(ev Event) {
	if err := s.Dispatch(ev); err != nil {
		s.logger.Error("effect redispatch rejected", "event", ev, "err", err)
	}
}

// sleep waits for d or until the store closes. It reports whether the
// full delay elapsed.
func (s *Store) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}
