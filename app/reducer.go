package app

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"todosync/model"
)

var (
	ErrTodoNotFound    = errors.New("todo not found")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrDuplicateOffset = errors.New("duplicate move offset")
	ErrUnknownEvent    = errors.New("unknown event")
)

// Reducer computes the state transition for a single event. It is pure:
// given the same state and event it returns the same new state, and any
// interaction with the outside world is expressed as returned effects.
type Reducer struct {
	// NewID generates identifiers for todos created by AddTodo.
	// Tests pin this to a fixed value.
	NewID func() string
}

// NewReducer returns a reducer using UUIDv4 identifiers.
func NewReducer() Reducer {
	return Reducer{NewID: uuid.NewString}
}

// Reduce applies the event to the state and returns the new state plus
// zero or more scheduled effects. Malformed indices or unknown ids are
// programmer errors (the UI and the state have desynchronized) and are
// reported rather than silently ignored.
func (r Reducer) Reduce(state model.AppState, ev Event) (model.AppState, []Effect, error) {
	state = state.Clone()

	switch ev := ev.(type) {
	case AddTodo:
		todo := model.Todo{ID: r.NewID()}
		state.Todos = append([]model.Todo{todo}, state.Todos...)
		return state, []Effect{PersistTodo{Todo: todo}}, nil

	case UpdateDescription:
		i := state.IndexOf(ev.ID)
		if i < 0 {
			return state, nil, fmt.Errorf("%w: %s", ErrTodoNotFound, ev.ID)
		}
		state.Todos[i].Description = ev.Description
		return state, []Effect{PersistTodo{Todo: state.Todos[i]}}, nil

	case DeleteTodos:
		view := state.FilteredTodos()
		remove := make(map[string]bool, len(ev.Indices))
		for _, idx := range ev.Indices {
			if idx < 0 || idx >= len(view) {
				return state, nil, fmt.Errorf("%w: delete index %d of %d visible", ErrIndexOutOfRange, idx, len(view))
			}
			remove[view[idx].ID] = true
		}
		kept := state.Todos[:0]
		for _, t := range state.Todos {
			if !remove[t.ID] {
				kept = append(kept, t)
			}
		}
		state.Todos = kept
		return state, nil, nil

	case MoveTodos:
		from := ev.FromOffsets
		to := ev.ToOffset
		if state.Filter != model.FilterAll {
			view := state.FilteredTodos()
			mapped := make([]int, 0, len(from))
			for _, o := range from {
				if o < 0 || o >= len(view) {
					return state, nil, fmt.Errorf("%w: move offset %d of %d visible", ErrIndexOutOfRange, o, len(view))
				}
				mapped = append(mapped, state.IndexOf(view[o].ID))
			}
			from = mapped
			if to == len(view) {
				to = len(state.Todos)
			} else if to >= 0 && to < len(view) {
				// Resolve the destination through the identity of the
				// visible item at that offset; fall back to the raw
				// offset if the lookup fails.
				if idx := state.IndexOf(view[to].ID); idx >= 0 {
					to = idx
				}
			}
		}
		todos, err := moveByOffsets(state.Todos, from, to)
		if err != nil {
			return state, nil, err
		}
		state.Todos = todos
		return state, []Effect{DelayedSort{}}, nil

	case SetFilter:
		state.Filter = ev.Filter
		return state, nil, nil

	case SetEditMode:
		state.EditMode = ev.Editing
		return state, nil, nil

	case ClearCompleted:
		kept := state.Todos[:0]
		for _, t := range state.Todos {
			if !t.Complete {
				kept = append(kept, t)
			}
		}
		state.Todos = kept
		return state, nil, nil

	case SortCompletedToBottom:
		sort.SliceStable(state.Todos, func(i, j int) bool {
			return !state.Todos[i].Complete && state.Todos[j].Complete
		})
		return state, nil, nil

	case ToggleCompleted:
		i := state.IndexOf(ev.ID)
		if i < 0 {
			return state, nil, fmt.Errorf("%w: %s", ErrTodoNotFound, ev.ID)
		}
		state.Todos[i].Complete = !state.Todos[i].Complete
		return state, []Effect{DebouncedSort{Key: debounceKeyCompletion}}, nil

	case TodoSynced:
		if i := state.IndexOf(ev.Todo.ID); i >= 0 {
			state.Todos[i] = ev.Todo
		} else {
			state.Todos = append(state.Todos, ev.Todo)
		}
		if state.SaveErrors != nil {
			delete(state.SaveErrors, ev.Todo.ID)
			if len(state.SaveErrors) == 0 {
				state.SaveErrors = nil
			}
		}
		return state, nil, nil

	case TodoRemoved:
		if i := state.IndexOf(ev.ID); i >= 0 {
			state.Todos = append(state.Todos[:i], state.Todos[i+1:]...)
		}
		return state, nil, nil

	case SaveFailed:
		if state.SaveErrors == nil {
			state.SaveErrors = make(map[string]string, 1)
		}
		state.SaveErrors[ev.ID] = ev.Err
		return state, nil, nil

	case Subscribe:
		return state, []Effect{StartSubscription{}}, nil

	case SubscriptionEstablished:
		state.Connected = true
		return state, nil, nil

	case SubscriptionLost:
		state.Connected = false
		return state, nil, nil

	default:
		return state, nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

// moveByOffsets moves the todos at fromOffsets so they sit together at
// toOffset, where toOffset is an insertion offset interpreted against
// the slice before the moved items are removed. toOffset may equal
// len(todos) to move items to the end. Relative order of moved items
// and of the remaining items is preserved.
func moveByOffsets(todos []model.Todo, fromOffsets []int, toOffset int) ([]model.Todo, error) {
	if toOffset < 0 || toOffset > len(todos) {
		return nil, fmt.Errorf("%w: move destination %d of %d", ErrIndexOutOfRange, toOffset, len(todos))
	}
	picked := make(map[int]bool, len(fromOffsets))
	for _, o := range fromOffsets {
		if o < 0 || o >= len(todos) {
			return nil, fmt.Errorf("%w: move offset %d of %d", ErrIndexOutOfRange, o, len(todos))
		}
		if picked[o] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateOffset, o)
		}
		picked[o] = true
	}

	insert := toOffset
	moved := make([]model.Todo, 0, len(fromOffsets))
	rest := make([]model.Todo, 0, len(todos)-len(fromOffsets))
	for i, t := range todos {
		if picked[i] {
			moved = append(moved, t)
			if i < toOffset {
				insert--
			}
			continue
		}
		rest = append(rest, t)
	}

	out := make([]model.Todo, 0, len(todos))
	out = append(out, rest[:insert]...)
	out = append(out, moved...)
	out = append(out, rest[insert:]...)
	return out, nil
}
