package app

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"todosync/model"
)

// seqReducer returns a reducer with a deterministic id generator
// ("id-1", "id-2", ...).
func seqReducer() Reducer {
	n := 0
	return Reducer{NewID: func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}}
}

func stateWith(filter model.Filter, todos ...model.Todo) model.AppState {
	s := model.NewState()
	s.Filter = filter
	s.Todos = todos
	return s
}

func ids(todos []model.Todo) []string {
	out := make([]string, len(todos))
	for i, t := range todos {
		out[i] = t.ID
	}
	return out
}

func mustReduce(t *testing.T, r Reducer, s model.AppState, ev Event) (model.AppState, []Effect) {
	t.Helper()
	next, effects, err := r.Reduce(s, ev)
	if err != nil {
		t.Fatalf("reduce %T failed: %v", ev, err)
	}
	return next, effects
}

func TestAddTodoPrependsAndPersists(t *testing.T) {
	r := Reducer{NewID: func() string { return "X" }}
	next, effects := mustReduce(t, r, model.NewState(), AddTodo{})

	want := []model.Todo{{ID: "X", Description: "", Complete: false}}
	if !reflect.DeepEqual(next.Todos, want) {
		t.Fatalf("expected todos %+v, got %+v", want, next.Todos)
	}
	if len(effects) != 1 {
		t.Fatalf("expected one effect, got %d", len(effects))
	}
	persist, ok := effects[0].(PersistTodo)
	if !ok {
		t.Fatalf("expected PersistTodo effect, got %T", effects[0])
	}
	if persist.Todo != want[0] {
		t.Fatalf("expected persist effect to carry %+v, got %+v", want[0], persist.Todo)
	}
}

func TestAddTodoInsertsAtFront(t *testing.T) {
	r := seqReducer()
	s := stateWith(model.FilterAll, model.Todo{ID: "old"})
	next, _ := mustReduce(t, r, s, AddTodo{})
	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"id-1", "old"}) {
		t.Fatalf("expected new todo at front, got %v", got)
	}
}

func TestClearCompletedKeepsOrder(t *testing.T) {
	s := stateWith(model.FilterAll,
		model.Todo{ID: "t1", Complete: true},
		model.Todo{ID: "t2"},
	)
	next, effects := mustReduce(t, seqReducer(), s, ClearCompleted{})
	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"t2"}) {
		t.Fatalf("expected [t2], got %v", got)
	}
	if len(effects) != 0 {
		t.Fatalf("expected no effects, got %v", effects)
	}
}

func TestSortCompletedToBottomIsStable(t *testing.T) {
	s := stateWith(model.FilterAll,
		model.Todo{ID: "a", Complete: true},
		model.Todo{ID: "b"},
		model.Todo{ID: "c", Complete: true},
		model.Todo{ID: "d"},
		model.Todo{ID: "e", Complete: true},
	)
	next, _ := mustReduce(t, seqReducer(), s, SortCompletedToBottom{})

	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"b", "d", "a", "c", "e"}) {
		t.Fatalf("expected stable partition [b d a c e], got %v", got)
	}
	for i, t1 := range next.Todos {
		for _, t2 := range next.Todos[i+1:] {
			if t1.Complete && !t2.Complete {
				t.Fatalf("completed todo %s sorted before incomplete %s", t1.ID, t2.ID)
			}
		}
	}
}

func TestToggleCompletedSchedulesDebouncedSort(t *testing.T) {
	s := stateWith(model.FilterAll, model.Todo{ID: "a"})
	next, effects := mustReduce(t, seqReducer(), s, ToggleCompleted{ID: "a"})
	if !next.Todos[0].Complete {
		t.Fatalf("expected todo toggled complete")
	}
	if len(effects) != 1 {
		t.Fatalf("expected one effect, got %d", len(effects))
	}
	debounce, ok := effects[0].(DebouncedSort)
	if !ok || debounce.Key != debounceKeyCompletion {
		t.Fatalf("expected DebouncedSort under completion key, got %+v", effects[0])
	}

	again, _ := mustReduce(t, seqReducer(), next, ToggleCompleted{ID: "a"})
	if again.Todos[0].Complete {
		t.Fatalf("expected second toggle to flip back")
	}
}

func TestToggleCompletedUnknownIDFails(t *testing.T) {
	s := stateWith(model.FilterAll, model.Todo{ID: "a"})
	if _, _, err := seqReducer().Reduce(s, ToggleCompleted{ID: "missing"}); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound, got %v", err)
	}
}

func TestDeleteTranslatesFilteredIndices(t *testing.T) {
	s := stateWith(model.FilterActive,
		model.Todo{ID: "a"},
		model.Todo{ID: "b", Complete: true},
		model.Todo{ID: "c"},
	)
	// Active view is [a c]; index 1 is c, not b.
	next, _ := mustReduce(t, seqReducer(), s, DeleteTodos{Indices: []int{1}})
	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestDeleteOutOfRangeFailsWithoutMutating(t *testing.T) {
	s := stateWith(model.FilterActive,
		model.Todo{ID: "a"},
		model.Todo{ID: "b", Complete: true},
	)
	_, _, err := seqReducer().Reduce(s, DeleteTodos{Indices: []int{1}})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if got := ids(s.Todos); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("input state mutated on error: %v", got)
	}
}

func TestMoveWithoutFilter(t *testing.T) {
	s := stateWith(model.FilterAll,
		model.Todo{ID: "a"},
		model.Todo{ID: "b"},
		model.Todo{ID: "c"},
	)
	next, effects := mustReduce(t, seqReducer(), s, MoveTodos{FromOffsets: []int{0}, ToOffset: 2})
	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("expected [b a c], got %v", got)
	}
	if len(effects) != 1 {
		t.Fatalf("expected one effect, got %d", len(effects))
	}
	if _, ok := effects[0].(DelayedSort); !ok {
		t.Fatalf("expected DelayedSort effect, got %T", effects[0])
	}
}

// Moving inside a filtered view resolves source and destination through
// todo identity, not raw positions. With [a b(done) c] under the Active
// filter the view is [a c]; moving view offset 0 to the end of the view
// must place a after c in the full list while b stays put relative to c.
func TestMoveUnderFilterToEndOfView(t *testing.T) {
	s := stateWith(model.FilterActive,
		model.Todo{ID: "a"},
		model.Todo{ID: "b", Complete: true},
		model.Todo{ID: "c"},
	)
	next, _ := mustReduce(t, seqReducer(), s, MoveTodos{FromOffsets: []int{0}, ToOffset: 2})
	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Fatalf("expected [b c a], got %v", got)
	}

	// The delayed sort that follows the move pushes b to the bottom.
	sorted, _ := mustReduce(t, seqReducer(), next, SortCompletedToBottom{})
	if got := ids(sorted.Todos); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("expected [c a b] after sort, got %v", got)
	}
}

func TestMoveUnderFilterToHeadOfView(t *testing.T) {
	s := stateWith(model.FilterActive,
		model.Todo{ID: "a"},
		model.Todo{ID: "b", Complete: true},
		model.Todo{ID: "c"},
	)
	// View [a c]: move c before a. Destination resolves to a's full
	// position, 0.
	next, _ := mustReduce(t, seqReducer(), s, MoveTodos{FromOffsets: []int{1}, ToOffset: 0})
	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("expected [c a b], got %v", got)
	}
}

func TestMovePreservesGroupOrderForMultipleOffsets(t *testing.T) {
	s := stateWith(model.FilterAll,
		model.Todo{ID: "a"},
		model.Todo{ID: "b"},
		model.Todo{ID: "c"},
		model.Todo{ID: "d"},
	)
	next, _ := mustReduce(t, seqReducer(), s, MoveTodos{FromOffsets: []int{0, 2}, ToOffset: 4})
	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"b", "d", "a", "c"}) {
		t.Fatalf("expected [b d a c], got %v", got)
	}
}

func TestMoveRejectsBadOffsets(t *testing.T) {
	s := stateWith(model.FilterAll, model.Todo{ID: "a"}, model.Todo{ID: "b"})
	if _, _, err := seqReducer().Reduce(s, MoveTodos{FromOffsets: []int{5}, ToOffset: 0}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange for source, got %v", err)
	}
	if _, _, err := seqReducer().Reduce(s, MoveTodos{FromOffsets: []int{0}, ToOffset: 7}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange for destination, got %v", err)
	}
	if _, _, err := seqReducer().Reduce(s, MoveTodos{FromOffsets: []int{0, 0}, ToOffset: 1}); !errors.Is(err, ErrDuplicateOffset) {
		t.Fatalf("expected ErrDuplicateOffset, got %v", err)
	}
}

func TestFilterAndEditModeAssignments(t *testing.T) {
	r := seqReducer()
	s := model.NewState()
	s, effects := mustReduce(t, r, s, SetFilter{Filter: model.FilterCompleted})
	if s.Filter != model.FilterCompleted || len(effects) != 0 {
		t.Fatalf("expected pure filter assignment, got filter=%q effects=%v", s.Filter, effects)
	}
	s, effects = mustReduce(t, r, s, SetEditMode{Editing: true})
	if !s.EditMode || len(effects) != 0 {
		t.Fatalf("expected pure edit-mode assignment, got edit=%v effects=%v", s.EditMode, effects)
	}
}

func TestTodoSyncedMergesAndClearsSaveError(t *testing.T) {
	s := stateWith(model.FilterAll, model.Todo{ID: "a", Description: "draft"})
	s.SaveErrors = map[string]string{"a": "timeout"}

	next, _ := mustReduce(t, seqReducer(), s, TodoSynced{Todo: model.Todo{ID: "a", Description: "confirmed"}})
	if next.Todos[0].Description != "confirmed" {
		t.Fatalf("expected authoritative description merged, got %q", next.Todos[0].Description)
	}
	if len(next.SaveErrors) != 0 {
		t.Fatalf("expected save error cleared, got %v", next.SaveErrors)
	}
}

func TestTodoSyncedInsertsUnknownAtEnd(t *testing.T) {
	s := stateWith(model.FilterAll, model.Todo{ID: "a"})
	next, _ := mustReduce(t, seqReducer(), s, TodoSynced{Todo: model.Todo{ID: "remote"}})
	if got := ids(next.Todos); !reflect.DeepEqual(got, []string{"a", "remote"}) {
		t.Fatalf("expected remote todo appended, got %v", got)
	}
}

func TestTodoRemovedIgnoresUnknownID(t *testing.T) {
	s := stateWith(model.FilterAll, model.Todo{ID: "a"})
	next, _ := mustReduce(t, seqReducer(), s, TodoRemoved{ID: "a"})
	if len(next.Todos) != 0 {
		t.Fatalf("expected todo removed, got %v", next.Todos)
	}
	next, _ = mustReduce(t, seqReducer(), next, TodoRemoved{ID: "gone"})
	if len(next.Todos) != 0 {
		t.Fatalf("expected unknown removal to be a no-op")
	}
}

func TestSaveFailedRecordsError(t *testing.T) {
	s := stateWith(model.FilterAll, model.Todo{ID: "a"})
	next, _ := mustReduce(t, seqReducer(), s, SaveFailed{ID: "a", Err: "boom"})
	if next.SaveErrors["a"] != "boom" {
		t.Fatalf("expected save error recorded, got %v", next.SaveErrors)
	}
}

func TestSubscriptionEvents(t *testing.T) {
	r := seqReducer()
	s := model.NewState()

	s, effects := mustReduce(t, r, s, Subscribe{})
	if len(effects) != 1 {
		t.Fatalf("expected StartSubscription effect, got %v", effects)
	}
	if _, ok := effects[0].(StartSubscription); !ok {
		t.Fatalf("expected StartSubscription, got %T", effects[0])
	}

	s, _ = mustReduce(t, r, s, SubscriptionEstablished{})
	if !s.Connected {
		t.Fatalf("expected connected state")
	}
	s, _ = mustReduce(t, r, s, SubscriptionLost{Err: "eof"})
	if s.Connected {
		t.Fatalf("expected disconnected state")
	}
}

func TestUpdateDescriptionPersists(t *testing.T) {
	s := stateWith(model.FilterAll, model.Todo{ID: "a", Description: "old"})
	next, effects := mustReduce(t, seqReducer(), s, UpdateDescription{ID: "a", Description: "new"})
	if next.Todos[0].Description != "new" {
		t.Fatalf("expected description updated, got %q", next.Todos[0].Description)
	}
	persist, ok := effects[0].(PersistTodo)
	if !ok || persist.Todo.Description != "new" {
		t.Fatalf("expected persist of updated todo, got %+v", effects)
	}

	if _, _, err := seqReducer().Reduce(s, UpdateDescription{ID: "missing", Description: "x"}); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound, got %v", err)
	}
}

// A sequence of delete/move/toggle events never invents or duplicates
// ids: the surviving set is exactly the starting set minus deletions.
func TestIDIntegrityAcrossEventSequence(t *testing.T) {
	r := seqReducer()
	s := stateWith(model.FilterAll,
		model.Todo{ID: "a"},
		model.Todo{ID: "b"},
		model.Todo{ID: "c"},
		model.Todo{ID: "d"},
		model.Todo{ID: "e"},
	)

	s, _ = mustReduce(t, r, s, ToggleCompleted{ID: "b"})
	s, _ = mustReduce(t, r, s, MoveTodos{FromOffsets: []int{4}, ToOffset: 0})
	s, _ = mustReduce(t, r, s, SortCompletedToBottom{})
	s, _ = mustReduce(t, r, s, DeleteTodos{Indices: []int{1}}) // deletes by visible position
	s, _ = mustReduce(t, r, s, ToggleCompleted{ID: "d"})
	s, _ = mustReduce(t, r, s, MoveTodos{FromOffsets: []int{0, 1}, ToOffset: 4})

	seen := make(map[string]bool)
	for _, todo := range s.Todos {
		if seen[todo.ID] {
			t.Fatalf("duplicate id %s after sequence: %v", todo.ID, ids(s.Todos))
		}
		seen[todo.ID] = true
	}
	if len(s.Todos) != 4 {
		t.Fatalf("expected 4 todos after one deletion, got %v", ids(s.Todos))
	}
	missing := 0
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if !seen[id] {
			missing++
		}
	}
	if missing != 1 {
		t.Fatalf("expected exactly one starting id deleted, %d missing from %v", missing, ids(s.Todos))
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := stateWith(model.FilterAll,
		model.Todo{ID: "a"},
		model.Todo{ID: "b", Complete: true},
	)
	before := s.Clone()
	for _, ev := range []Event{
		AddTodo{},
		ToggleCompleted{ID: "a"},
		ClearCompleted{},
		SortCompletedToBottom{},
		MoveTodos{FromOffsets: []int{0}, ToOffset: 2},
		DeleteTodos{Indices: []int{0}},
		SaveFailed{ID: "a", Err: "x"},
	} {
		if _, _, err := seqReducer().Reduce(s, ev); err != nil {
			t.Fatalf("reduce %T failed: %v", ev, err)
		}
		if !reflect.DeepEqual(s, before) {
			t.Fatalf("event %T mutated its input state", ev)
		}
	}
}
