package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"todosync/app"
	"todosync/model"
)

type uiMode int

const (
	modeNormal uiMode = iota
	modeEditDescription
)

// StateMsg delivers a fresh state snapshot from the store's watcher
// into the bubbletea update loop.
type StateMsg model.AppState

// Model renders the read-only projection of the store's state and
// dispatches events for every mutation request.
type Model struct {
	st *app.Store

	state  model.AppState
	cursor int
	mode   uiMode

	input     textinput.Model
	editingID string

	status    string
	statusErr bool

	width  int
	height int
}

func NewModel(st *app.Store) *Model {
	input := textinput.New()
	input.Placeholder = "what needs doing?"
	input.CharLimit = 256

	return &Model{
		st:     st,
		state:  st.State(),
		input:  input,
		status: "Ready",
	}
}

// Init opens the remote change feed once the program is running, so
// the resulting state updates land in a loop that can receive them.
func (m *Model) Init() tea.Cmd {
	return func() tea.Msg {
		// The reducer never rejects Subscribe; feed problems surface
		// later as SubscriptionLost.
		_ = m.st.Dispatch(app.Subscribe{})
		return StateMsg(m.st.State())
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StateMsg:
		m.state = model.AppState(msg)
		m.ensureSelection()
	case tea.KeyMsg:
		switch m.mode {
		case modeEditDescription:
			return m, m.updateEditMode(msg)
		default:
			if quit := m.updateNormalMode(msg); quit {
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "ctrl+c", "q":
		return true
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "a":
		m.addTodo()
	case "enter", "e":
		m.startEdit()
	case "x":
		m.toggleSelected()
	case "d":
		m.deleteSelected()
	case "J":
		m.moveSelected(1)
	case "K":
		m.moveSelected(-1)
	case "f":
		m.cycleFilter()
	case "c":
		m.clearCompleted()
	case "E":
		m.dispatch(app.SetEditMode{Editing: !m.state.EditMode},
			statusFor(!m.state.EditMode, "Reorder mode on", "Reorder mode off"))
	}

	m.ensureSelection()
	return false
}

func (m *Model) updateEditMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.mode = modeNormal
		m.editingID = ""
		m.input.Blur()
		m.setStatus("Edit cancelled", false)
		return nil
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		id := m.editingID
		m.mode = modeNormal
		m.editingID = ""
		m.input.Blur()
		m.dispatch(app.UpdateDescription{ID: id, Description: text}, "Saved")
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) addTodo() {
	if !m.state.Filter.Matches(false) {
		// A fresh todo is invisible under the completed filter; switch
		// back so the user can see what they just created.
		m.dispatch(app.SetFilter{Filter: model.FilterAll}, "")
	}
	m.dispatch(app.AddTodo{}, "Todo added")
	m.cursor = 0
	if todos := m.visibleTodos(); len(todos) > 0 {
		m.beginEditing(todos[0])
	}
}

func (m *Model) startEdit() {
	todo, ok := m.selectedTodo()
	if !ok {
		return
	}
	m.beginEditing(todo)
}

func (m *Model) beginEditing(todo model.Todo) {
	m.mode = modeEditDescription
	m.editingID = todo.ID
	m.input.SetValue(todo.Description)
	m.input.CursorEnd()
	m.input.Focus()
	m.setStatus("Editing: enter saves, esc cancels", false)
}

func (m *Model) toggleSelected() {
	todo, ok := m.selectedTodo()
	if !ok {
		return
	}
	m.dispatch(app.ToggleCompleted{ID: todo.ID},
		statusFor(!todo.Complete, "Marked done", "Marked not done"))
}

func (m *Model) deleteSelected() {
	if _, ok := m.selectedTodo(); !ok {
		return
	}
	m.dispatch(app.DeleteTodos{Indices: []int{m.cursor}}, "Todo deleted")
}

func (m *Model) moveSelected(direction int) {
	todos := m.visibleTodos()
	if len(todos) == 0 {
		return
	}
	target := m.cursor + direction
	if target < 0 || target >= len(todos) {
		return
	}
	// ToOffset is an insertion offset before removal: moving down one
	// step inserts after the next item.
	to := target
	if direction > 0 {
		to = target + 1
	}
	m.dispatch(app.MoveTodos{FromOffsets: []int{m.cursor}, ToOffset: to}, "Todo moved")
	m.cursor = target
}

func (m *Model) cycleFilter() {
	next := nextFilter(m.state.Filter)
	m.dispatch(app.SetFilter{Filter: next}, fmt.Sprintf("Filter: %s", next))
	m.cursor = 0
}

func (m *Model) clearCompleted() {
	if !m.state.ClearCompletedEnabled() {
		m.setStatus("Nothing completed to clear", true)
		return
	}
	m.dispatch(app.ClearCompleted{}, "Completed todos cleared")
}

// dispatch forwards the event to the store and reports the outcome in
// the status line. The store pushes the resulting state back through
// StateMsg, but the local copy is refreshed here too so key handlers
// that read state right after dispatching see the new value.
func (m *Model) dispatch(ev app.Event, success string) {
	if err := m.st.Dispatch(ev); err != nil {
		m.setStatus("Error: "+err.Error(), true)
		return
	}
	m.state = m.st.State()
	m.ensureSelection()
	if success != "" {
		m.setStatus(success, false)
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) visibleTodos() []model.Todo {
	return m.state.FilteredTodos()
}

func (m *Model) selectedTodo() (model.Todo, bool) {
	todos := m.visibleTodos()
	if len(todos) == 0 {
		return model.Todo{}, false
	}
	if m.cursor < 0 || m.cursor >= len(todos) {
		m.cursor = 0
	}
	return todos[m.cursor], true
}

func (m *Model) moveCursor(delta int) {
	todos := m.visibleTodos()
	if len(todos) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(todos)-1)
}

func (m *Model) ensureSelection() {
	todos := m.visibleTodos()
	if len(todos) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = clamp(m.cursor, 0, len(todos)-1)
}

func (m *Model) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Render("todosync")
	b.WriteString(title)
	b.WriteString("  ")
	b.WriteString(m.renderFilterTabs())
	b.WriteString("  ")
	b.WriteString(m.renderConnection())
	b.WriteString("\n\n")

	todos := m.visibleTodos()
	if len(todos) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("No todos. Press 'a' to add one."))
		b.WriteString("\n")
	}
	for i, todo := range todos {
		b.WriteString(m.renderRow(i, todo))
		b.WriteString("\n")
	}

	if m.mode == modeEditDescription {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderRow(i int, todo model.Todo) string {
	cursor := "  "
	if i == m.cursor && m.mode == modeNormal {
		cursor = "> "
	}

	check := "[ ]"
	if todo.Complete {
		check = "[x]"
	}

	desc := todo.Description
	if strings.TrimSpace(desc) == "" {
		desc = "(empty)"
	}

	style := lipgloss.NewStyle()
	if todo.Complete {
		style = style.Foreground(lipgloss.Color("240")).Strikethrough(true)
	}
	line := cursor + check + " " + style.Render(desc)

	if m.state.SaveErrors[todo.ID] != "" {
		line += lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(" ! unsynced")
	}
	if m.state.EditMode {
		line += lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  (J/K move, d delete)")
	}
	return line
}

func (m *Model) renderFilterTabs() string {
	parts := make([]string, 0, 3)
	for _, f := range []model.Filter{model.FilterAll, model.FilterActive, model.FilterCompleted} {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		if f == m.state.Filter {
			style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
		}
		parts = append(parts, style.Render(string(f)))
	}
	return strings.Join(parts, " · ")
}

func (m *Model) renderConnection() string {
	if m.state.Connected {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("70")).Render("● synced")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("○ offline")
}

func (m *Model) renderFooter() string {
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	if m.statusErr {
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
	hints := "a add · x done · e edit · d delete · J/K move · f filter"
	if m.state.ClearCompletedEnabled() {
		hints += " · c clear done"
	}
	hints += " · q quit"
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	return statusStyle.Render(m.status) + "\n" + hintStyle.Render(hints)
}

func nextFilter(f model.Filter) model.Filter {
	switch f {
	case model.FilterAll:
		return model.FilterActive
	case model.FilterActive:
		return model.FilterCompleted
	default:
		return model.FilterAll
	}
}

func statusFor(cond bool, whenTrue, whenFalse string) string {
	if cond {
		return whenTrue
	}
	return whenFalse
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
