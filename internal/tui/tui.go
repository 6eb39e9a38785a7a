// Package tui provides a terminal user interface over the task facade.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskbridge/backend"
	"taskbridge/internal/tasksync"
	"taskbridge/internal/utils"
	"taskbridge/internal/views"
)

// Store is the subset of tasksync.Facade the interface drives.
type Store interface {
	Backends() []backend.Kind
	Load(ctx context.Context, kind backend.Kind) error
	Reload(ctx context.Context) error
	ToggleDateFilter(ctx context.Context, date string) error
	CreateTask(ctx context.Context, fields backend.TaskFields) (backend.Task, error)
	UpdateTask(ctx context.Context, id string, fields backend.TaskFields) (backend.Task, error)
	DeleteTask(ctx context.Context, id string) error
	BeginEdit(id string) error
	CancelEdit()
	DefaultStatus() string
	Snapshot() tasksync.State
}

// Focus indicates which pane has focus
type Focus int

const (
	FocusBackends Focus = iota
	FocusTasks
)

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeEdit
	ModeFilter
	ModeHelp
	ModeConfirmDelete
)

// Model represents the TUI state
type Model struct {
	store   Store
	ctx     context.Context
	initial backend.Kind

	// Last snapshot of the facade
	state    tasksync.State
	backends []backend.Kind

	// Selection
	backendCursor int
	taskCursor    int
	focus         Focus

	// Mode and input
	mode        Mode
	addForm     *form
	editForm    *form
	editTask    backend.Task
	filterInput textinput.Model
	inflight    int
	notice      string
	localErr    error

	// UI dimensions
	width  int
	height int

	// Styles
	backendPaneStyle lipgloss.Style
	taskPaneStyle    lipgloss.Style
	selectedStyle    lipgloss.Style
	pendingStyle     lipgloss.Style
	helpStyle        lipgloss.Style
	dialogStyle      lipgloss.Style
	statusBarStyle   lipgloss.Style
	errorStyle       lipgloss.Style
}

// Message types
type loadedMsg struct {
	kind backend.Kind
	err  error
}

type opDoneMsg struct {
	action string
	err    error
}

// Option configures a Model
type Option func(*Model)

// WithContext sets the context passed to every facade call
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		m.ctx = ctx
	}
}

// New creates a new TUI model that loads initial on start
func New(store Store, initial backend.Kind, opts ...Option) *Model {
	fi := textinput.New()
	fi.Placeholder = "YYYY-MM-DD, today, +3d..."
	fi.CharLimit = 32

	m := &Model{
		store:       store,
		ctx:         context.Background(),
		initial:     initial,
		backends:    store.Backends(),
		focus:       FocusTasks,
		mode:        ModeNormal,
		addForm:     newForm(),
		editForm:    newForm(),
		filterInput: fi,
		backendPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		taskPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		pendingStyle: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("243")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}
	for _, opt := range opts {
		opt(m)
	}
	for i, k := range m.backends {
		if k == initial {
			m.backendCursor = i
		}
	}
	return m
}

// Init loads the initial backend
func (m *Model) Init() tea.Cmd {
	if m.initial == "" && len(m.backends) > 0 {
		m.initial = m.backends[0]
	}
	return m.load(m.initial)
}

// =============================================================================
// Commands
// =============================================================================

func (m *Model) load(kind backend.Kind) tea.Cmd {
	m.inflight++
	return func() tea.Msg {
		return loadedMsg{kind: kind, err: m.store.Load(m.ctx, kind)}
	}
}

func (m *Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	m.inflight++
	return func() tea.Msg {
		return opDoneMsg{action: action, err: fn(m.ctx)}
	}
}

func (m *Model) reload() tea.Cmd {
	return m.run("reload", m.store.Reload)
}

func (m *Model) toggleFilter(date string) tea.Cmd {
	return m.run("filter", func(ctx context.Context) error {
		return m.store.ToggleDateFilter(ctx, date)
	})
}

func (m *Model) createTask(fields backend.TaskFields) tea.Cmd {
	return m.run("add", func(ctx context.Context) error {
		_, err := m.store.CreateTask(ctx, fields)
		return err
	})
}

func (m *Model) updateTask(id string, fields backend.TaskFields) tea.Cmd {
	return m.run("update", func(ctx context.Context) error {
		_, err := m.store.UpdateTask(ctx, id, fields)
		return err
	})
}

func (m *Model) deleteTask(id string) tea.Cmd {
	return m.run("delete", func(ctx context.Context) error {
		return m.store.DeleteTask(ctx, id)
	})
}

// refresh copies the facade state and keeps the cursor in range
func (m *Model) refresh() {
	m.state = m.store.Snapshot()
	if m.taskCursor >= len(m.state.Tasks) {
		m.taskCursor = len(m.state.Tasks) - 1
	}
	if m.taskCursor < 0 {
		m.taskCursor = 0
	}
}

func (m *Model) selectedTask() (backend.Task, bool) {
	if m.taskCursor < 0 || m.taskCursor >= len(m.state.Tasks) {
		return backend.Task{}, false
	}
	return m.state.Tasks[m.taskCursor], true
}

// setResult records an operation error the facade may not hold itself,
// such as a rejected edit. Superseded list requests are not errors.
func (m *Model) setResult(err error) {
	if err == nil || errors.Is(err, tasksync.ErrSuperseded) {
		m.localErr = nil
		return
	}
	m.localErr = err
	m.notice = ""
}

// nextStatus returns the label after current, wrapping around
func (m *Model) nextStatus(current string) (string, bool) {
	labels := m.state.Labels
	if len(labels) == 0 {
		return "", false
	}
	for i, l := range labels {
		if l.Label == current {
			return labels[(i+1)%len(labels)].Label, true
		}
	}
	return labels[0].Label, true
}

// =============================================================================
// Update
// =============================================================================

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.inflight--
		m.refresh()
		m.setResult(msg.err)
		if msg.err == nil {
			m.taskCursor = 0
			m.notice = "Loaded " + string(msg.kind)
		}
		return m, nil

	case opDoneMsg:
		m.inflight--
		m.refresh()
		m.setResult(msg.err)
		if msg.err == nil {
			switch msg.action {
			case "add":
				m.addForm.reset()
				m.notice = "Task added"
			case "update":
				m.notice = "Task updated"
			case "delete":
				m.notice = "Task deleted"
			default:
				m.notice = ""
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd:
			return m.handleAddMode(msg)
		case ModeEdit:
			return m.handleEditMode(msg)
		case ModeFilter:
			return m.handleFilterMode(msg)
		case ModeHelp:
			return m.handleHelpMode(msg)
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	return m, nil
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.localErr = nil

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.focus == FocusBackends {
			m.focus = FocusTasks
		} else {
			m.focus = FocusBackends
		}
		return m, nil

	case "up", "k":
		if m.focus == FocusBackends {
			if m.backendCursor > 0 {
				m.backendCursor--
			}
		} else if m.taskCursor > 0 {
			m.taskCursor--
		}
		return m, nil

	case "down", "j":
		if m.focus == FocusBackends {
			if m.backendCursor < len(m.backends)-1 {
				m.backendCursor++
			}
		} else if m.taskCursor < len(m.state.Tasks)-1 {
			m.taskCursor++
		}
		return m, nil

	case "enter":
		if m.focus == FocusBackends && m.backendCursor < len(m.backends) {
			return m, m.load(m.backends[m.backendCursor])
		}
		return m, nil

	case "r":
		return m, m.reload()

	case "f":
		if m.state.Filter == tasksync.Filtered {
			return m, m.toggleFilter("")
		}
		m.mode = ModeFilter
		m.filterInput.Reset()
		m.filterInput.Focus()
		return m, textinput.Blink

	case "a":
		m.mode = ModeAdd
		return m, m.addForm.focus(0)

	case "e":
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		if err := m.store.BeginEdit(task.ID); err != nil {
			m.localErr = err
			return m, nil
		}
		m.editTask = task
		m.editForm.setValues(task.Name, task.Text, task.Date)
		m.mode = ModeEdit
		return m, m.editForm.focus(0)

	case "s":
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		status, ok := m.nextStatus(task.Status)
		if !ok {
			return m, nil
		}
		return m, m.updateTask(task.ID, backend.TaskFields{Status: backend.String(status)})

	case "d":
		if _, ok := m.selectedTask(); ok {
			m.mode = ModeConfirmDelete
		}
		return m, nil

	case "?":
		m.mode = ModeHelp
		return m, nil
	}
	return m, nil
}

func (m *Model) handleAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.localErr = nil
		m.mode = ModeNormal
		m.addForm.blur()
		return m, nil

	case tea.KeyEnter:
		name, text, date := m.addForm.values()
		if err := utils.ValidateName(name); err != nil {
			m.localErr = err
			return m, nil
		}
		normalized, err := utils.NormalizeDate(date)
		if err != nil {
			m.localErr = err
			return m, nil
		}

		fields := backend.TaskFields{Name: backend.String(strings.TrimSpace(name))}
		if text != "" {
			fields.Text = backend.String(text)
		}
		if normalized != "" {
			fields.Date = backend.String(normalized)
		}
		if status := m.store.DefaultStatus(); status != "" {
			fields.Status = backend.String(status)
		}

		m.localErr = nil
		m.mode = ModeNormal
		m.addForm.blur()
		return m, m.createTask(fields)
	}

	return m, m.addForm.update(msg)
}

func (m *Model) handleEditMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.localErr = nil
		m.store.CancelEdit()
		m.mode = ModeNormal
		m.editForm.blur()
		return m, nil

	case tea.KeyEnter:
		name, text, date := m.editForm.values()
		if err := utils.ValidateName(name); err != nil {
			m.localErr = err
			return m, nil
		}
		normalized, err := utils.NormalizeDate(date)
		if err != nil {
			m.localErr = err
			return m, nil
		}

		// only changed fields are sent
		var fields backend.TaskFields
		if name = strings.TrimSpace(name); name != m.editTask.Name {
			fields.Name = backend.String(name)
		}
		if text != m.editTask.Text {
			fields.Text = backend.String(text)
		}
		if normalized != m.editTask.Date {
			fields.Date = backend.String(normalized)
		}

		m.localErr = nil
		m.mode = ModeNormal
		m.editForm.blur()
		if fields.IsEmpty() {
			m.store.CancelEdit()
			return m, nil
		}
		return m, m.updateTask(m.editTask.ID, fields)
	}

	return m, m.editForm.update(msg)
}

func (m *Model) handleFilterMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		m.mode = ModeNormal
		date, err := utils.NormalizeDate(m.filterInput.Value())
		if err != nil {
			m.localErr = err
			return m, nil
		}
		if date == "" {
			return m, nil
		}
		return m, m.toggleFilter(date)

	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil
	}

	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

func (m *Model) handleHelpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = ModeNormal
	return m, nil
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = ModeNormal
		if task, ok := m.selectedTask(); ok {
			return m, m.deleteTask(task.ID)
		}
		return m, nil

	case "n", "N", "esc":
		m.mode = ModeNormal
		return m, nil
	}
	return m, nil
}

// =============================================================================
// View
// =============================================================================

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	switch m.mode {
	case ModeAdd:
		return m.renderFormDialog("Add Task", m.addForm)
	case ModeEdit:
		return m.renderFormDialog("Edit: "+m.editTask.Name, m.editForm)
	case ModeFilter:
		return m.renderFilterDialog()
	case ModeHelp:
		return m.renderHelpDialog()
	case ModeConfirmDelete:
		return m.renderConfirmDeleteDialog()
	}

	var b strings.Builder

	backendWidth := m.width / 4
	taskWidth := m.width - backendWidth - 4

	backendPane := m.backendPaneStyle.Width(backendWidth).Height(m.height - 4).Render(m.renderBackendPane(backendWidth - 4))
	taskPane := m.taskPaneStyle.Width(taskWidth).Height(m.height - 4).Render(m.renderTaskPane(taskWidth - 4))

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, backendPane, taskPane))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderBackendPane(width int) string {
	var b strings.Builder
	b.WriteString("Backends\n")
	b.WriteString(strings.Repeat("─", max(width, 0)))
	b.WriteString("\n")

	for i, kind := range m.backends {
		cursor := " "
		if i == m.backendCursor && m.focus == FocusBackends {
			cursor = ">"
		}
		name := string(kind)
		if kind == m.state.Backend {
			name = "* " + name
		} else {
			name = "  " + name
		}
		if i == m.backendCursor && m.focus == FocusBackends {
			name = m.selectedStyle.Render(name)
		}
		b.WriteString(cursor + name + "\n")
	}
	return b.String()
}

func (m *Model) renderTaskPane(width int) string {
	var b strings.Builder
	title := "Tasks"
	if m.state.BoardName != "" {
		title = m.state.BoardName
	}
	if m.state.Filter == tasksync.Filtered {
		title += " (due " + m.state.FilterDate + ")"
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("─", max(width, 0)))
	b.WriteString("\n")

	if len(m.state.Tasks) == 0 && len(m.state.Pending) == 0 {
		b.WriteString("No tasks\n")
		return b.String()
	}

	for i, task := range m.state.Tasks {
		cursor := " "
		selected := i == m.taskCursor && m.focus == FocusTasks
		if selected {
			cursor = ">"
		}

		status := task.Status
		if status == "" {
			status = "-"
		}
		status = views.StatusStyle(backend.FindLabel(m.state.Labels, task.Status)).Render("[" + status + "]")

		name := task.Name
		if selected {
			name = m.selectedStyle.Render(name)
		}
		line := cursor + " " + status + " " + name
		if task.Date != "" {
			line += m.helpStyle.Render("  " + task.Date)
		}
		if task.ID == m.state.Editing {
			line += m.helpStyle.Render("  (editing)")
		}
		b.WriteString(line + "\n")
	}

	for _, p := range m.state.Pending {
		if p.Backend != m.state.Backend {
			continue
		}
		b.WriteString("  " + m.pendingStyle.Render("[saving] "+p.Task.Name) + "\n")
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	left := string(m.state.Backend)
	if m.inflight > 0 {
		left += "  loading..."
	}

	right := "q:quit  ?:help"
	if m.state.Filter == tasksync.Filtered {
		right = "f:clear filter  " + right
	}

	var middle string
	if err := m.currentErr(); err != nil {
		middle = m.errorStyle.Render("Error: " + firstLine(err.Error()))
	} else if m.notice != "" {
		middle = m.notice
	}

	content := left
	if middle != "" {
		content += "  " + middle
	}
	padding := m.width - lipgloss.Width(content) - len(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.statusBarStyle.Width(m.width).Render(content + strings.Repeat(" ", padding) + right)
}

// currentErr returns the error to show. Superseded list requests are not errors.
func (m *Model) currentErr() error {
	if m.localErr != nil {
		return m.localErr
	}
	if m.state.Err != nil && !errors.Is(m.state.Err, tasksync.ErrSuperseded) {
		return m.state.Err
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (m *Model) renderFormDialog(title string, f *form) string {
	body := title + "\n\n" + f.view() + "\n"
	if m.localErr != nil {
		body += "\n" + m.errorStyle.Render(firstLine(m.localErr.Error())) + "\n"
	}
	body += "\n" + m.helpStyle.Render("Tab: next field  Enter: save  Esc: cancel")
	return m.centerDialog(m.dialogStyle.Render(body))
}

func (m *Model) renderFilterDialog() string {
	dialog := m.dialogStyle.Render(
		"Filter by Date\n\n" +
			m.filterInput.View() + "\n\n" +
			m.helpStyle.Render("Enter: filter  Esc: cancel"),
	)
	return m.centerDialog(dialog)
}

func (m *Model) renderHelpDialog() string {
	help := `Help - Key Bindings

Navigation:
  j/↓    Move down
  k/↑    Move up
  Tab    Switch focus between backends/tasks
  Enter  Load the highlighted backend

Actions:
  a      Add new task
  e      Edit selected task
  s      Cycle task status
  d      Delete task (with confirm)
  f      Filter by date / clear filter
  r      Reload

General:
  ?      Show this help
  q      Quit

Press any key to close`

	return m.centerDialog(m.dialogStyle.Render(help))
}

func (m *Model) renderConfirmDeleteDialog() string {
	name := ""
	if task, ok := m.selectedTask(); ok {
		name = task.Name
	}
	dialog := m.dialogStyle.Render(
		"Delete \"" + name + "\"?\n\n" +
			m.helpStyle.Render("y: yes  n: no"),
	)
	return m.centerDialog(dialog)
}

func (m *Model) centerDialog(dialog string) string {
	lines := strings.Split(dialog, "\n")
	dialogHeight := len(lines)
	dialogWidth := 0
	for _, line := range lines {
		if w := lipgloss.Width(line); w > dialogWidth {
			dialogWidth = w
		}
	}

	topPad := max((m.height-dialogHeight)/2, 0)
	leftPad := max((m.width-dialogWidth)/2, 0)

	var b strings.Builder
	for i := 0; i < topPad; i++ {
		b.WriteString("\n")
	}
	for _, line := range lines {
		b.WriteString(strings.Repeat(" ", leftPad))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
