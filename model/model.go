package model

// Filter represents how todos should be shown.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Matches reports whether a todo with the given completion flag is
// visible under the filter.
func (f Filter) Matches(complete bool) bool {
	switch f {
	case FilterActive:
		return !complete
	case FilterCompleted:
		return complete
	default:
		return true
	}
}

// Todo is an individual todo item. ID is assigned at creation and never
// changes; it is the identity used for ordering translation and sync.
type Todo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Complete    bool   `json:"complete"`
}

// AppState is the full in-memory application state. It is owned by the
// app.Store and only mutated through dispatched events; durability is
// delegated to the remote store.
type AppState struct {
	EditMode   bool              `json:"editMode"`
	Filter     Filter            `json:"filter"`
	Todos      []Todo            `json:"todos"`
	SaveErrors map[string]string `json:"saveErrors,omitempty"`
	Connected  bool              `json:"connected"`
}

// NewState returns an initialized empty state.
func NewState() AppState {
	return AppState{
		Filter: FilterAll,
		Todos:  []Todo{},
	}
}

// FilteredTodos returns the todos visible under the current filter,
// preserving the order of Todos.
func (s AppState) FilteredTodos() []Todo {
	out := make([]Todo, 0, len(s.Todos))
	for _, t := range s.Todos {
		if s.Filter.Matches(t.Complete) {
			out = append(out, t)
		}
	}
	return out
}

// IndexOf returns the position of the todo with the given id in Todos,
// or -1 if it is not present.
func (s AppState) IndexOf(id string) int {
	for i, t := range s.Todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ClearCompletedEnabled reports whether at least one todo is complete,
// i.e. whether a clear-completed action would do anything.
func (s AppState) ClearCompletedEnabled() bool {
	for _, t := range s.Todos {
		if t.Complete {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the state. Todos and SaveErrors are the
// only reference-typed fields.
func (s AppState) Clone() AppState {
	out := s
	out.Todos = make([]Todo, len(s.Todos))
	copy(out.Todos, s.Todos)
	if s.SaveErrors != nil {
		out.SaveErrors = make(map[string]string, len(s.SaveErrors))
		for k, v := range s.SaveErrors {
			out.SaveErrors[k] = v
		}
	}
	return out
}
