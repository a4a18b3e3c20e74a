package app

import "todosync/model"

// Event is a discrete request to change state. The set of events is
// closed: every implementation lives in this file, and all state
// mutation flows through Store.Dispatch.
type Event interface {
	isEvent()
}

// AddTodo inserts a new empty todo at the front of the list and
// schedules a persist call for it.
type AddTodo struct{}

// UpdateDescription replaces the description of the todo with the given
// id and schedules a persist call for the updated todo.
type UpdateDescription struct {
	ID          string
	Description string
}

// DeleteTodos removes the todos at the given positions. Positions are
// offsets into the filtered view, not the full list.
type DeleteTodos struct {
	Indices []int
}

// MoveTodos reorders the list. FromOffsets and ToOffset are offsets
// into the filtered view; ToOffset is an insertion offset interpreted
// against the view before the moved items are removed, so ToOffset may
// equal the view length ("move to end").
type MoveTodos struct {
	FromOffsets []int
	ToOffset    int
}

// SetFilter selects which todos are visible.
type SetFilter struct {
	Filter model.Filter
}

// SetEditMode toggles the reorder/delete mode of the list UI.
type SetEditMode struct {
	Editing bool
}

// ClearCompleted removes every completed todo.
type ClearCompleted struct{}

// SortCompletedToBottom stably partitions the list so completed todos
// sort after incomplete ones. Usually delivered by a timer effect
// rather than dispatched directly.
type SortCompletedToBottom struct{}

// ToggleCompleted flips the completion flag of the todo with the given
// id and schedules a debounced re-sort.
type ToggleCompleted struct {
	ID string
}

// TodoSynced carries a backend-confirmed todo: the response to a
// persist call or a create/update notification from the change feed.
// Authoritative fields are merged into the local todo; an unknown id is
// inserted at the end of the list.
type TodoSynced struct {
	Todo model.Todo
}

// TodoRemoved is a delete notification from the change feed. Unknown
// ids are ignored since a remote delete may race a local one.
type TodoRemoved struct {
	ID string
}

// SaveFailed records that a persist call for the given todo failed, so
// the UI can mark the item as unsynced.
type SaveFailed struct {
	ID  string
	Err string
}

// Subscribe starts the long-lived change feed from the remote store.
type Subscribe struct{}

// SubscriptionEstablished marks the change feed as connected.
type SubscriptionEstablished struct{}

// SubscriptionLost marks the change feed as disconnected. The effect
// runner handles reconnecting; this event only surfaces the state.
type SubscriptionLost struct {
	Err string
}

func (AddTodo) isEvent()                 {}
func (UpdateDescription) isEvent()       {}
func (DeleteTodos) isEvent()             {}
func (MoveTodos) isEvent()               {}
func (SetFilter) isEvent()               {}
func (SetEditMode) isEvent()             {}
func (ClearCompleted) isEvent()          {}
func (SortCompletedToBottom) isEvent()   {}
func (ToggleCompleted) isEvent()         {}
func (TodoSynced) isEvent()              {}
func (TodoRemoved) isEvent()             {}
func (SaveFailed) isEvent()              {}
func (Subscribe) isEvent()               {}
func (SubscriptionEstablished) isEvent() {}
func (SubscriptionLost) isEvent()        {}
