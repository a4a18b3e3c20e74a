package app

import "todosync/model"

// Effect describes pending asynchronous work. The reducer only returns
// effect descriptions; the Store's runner performs the I/O and timers
// and feeds the resulting events back through Dispatch. This split is
// what keeps the reducer testable without real timers or a network.
type Effect interface {
	isEffect()
}

// PersistTodo saves the todo to the remote store. Completion dispatches
// TodoSynced on success or SaveFailed on error. Not cancellable once
// started.
type PersistTodo struct {
	Todo model.Todo
}

// DelayedSort fires SortCompletedToBottom after a fixed short delay.
// A newer DelayedSort supersedes a pending one.
type DelayedSort struct{}

// DebouncedSort fires SortCompletedToBottom after a quiet period.
// Scheduling under an existing key replaces the pending timer, so at
// most one sort fires per quiet period since the last trigger.
type DebouncedSort struct {
	Key string
}

// StartSubscription opens the remote change feed. The runner keeps the
// feed alive with backoff reconnects until the Store is closed.
type StartSubscription struct{}

func (PersistTodo) isEffect()       {}
func (DelayedSort) isEffect()       {}
func (DebouncedSort) isEffect()     {}
func (StartSubscription) isEffect() {}

// debounceKeyCompletion coalesces re-sorts caused by rapid completion
// toggles.
const debounceKeyCompletion = "completion"
