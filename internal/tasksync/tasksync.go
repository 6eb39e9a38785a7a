// Package tasksync keeps the in-memory task and label lists for the selected
// backend and applies adapter results to them.
package tasksync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"taskbridge/backend"
	"taskbridge/internal/utils"
)

// FilterState is the state of the date filter.
type FilterState int

const (
	Unfiltered FilterState = iota
	Filtered
)

func (s FilterState) String() string {
	if s == Filtered {
		return "filtered"
	}
	return "unfiltered"
}

var (
	// ErrNoBackend is returned by task operations before a successful Load.
	ErrNoBackend = errors.New("no backend selected")

	// ErrEditInProgress is returned when another task holds the edit slot.
	ErrEditInProgress = errors.New("another task is being edited")

	// ErrSuperseded is returned by a list request whose result was discarded
	// because a newer list request started after it.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// PendingTask is a create that has been sent but not yet confirmed.
type PendingTask struct {
	CorrelationID string
	Backend       backend.Kind
	Task          backend.Task
}

// State is a copy of everything the facade holds.
type State struct {
	Backend    backend.Kind
	BoardName  string
	Tasks      []backend.Task
	Labels     []backend.Label
	Filter     FilterState
	FilterDate string
	Editing    string
	Pending    []PendingTask
	Err        error
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *utils.Logger) Option {
	return func(f *Facade) {
		f.log = l
	}
}

// Facade dispatches task operations to the selected backend and owns the
// resulting task list, label list, filter state and edit slot. It is safe
// for concurrent use; network calls run outside the lock.
type Facade struct {
	backends map[backend.Kind]backend.Backend
	log      *utils.Logger

	mu         sync.Mutex
	selected   backend.Kind
	boardName  string
	tasks      []backend.Task
	labels     []backend.Label
	filter     FilterState
	filterDate string
	editing    string
	pending    []PendingTask
	err        error

	// generation identifies the latest list request (load, filter, refetch).
	generation uint64
	cancel     context.CancelFunc
}

// New creates a facade over the configured backends. No backend is
// selected until Load succeeds.
func New(backends map[backend.Kind]backend.Backend, opts ...Option) *Facade {
	f := &Facade{
		backends: make(map[backend.Kind]backend.Backend, len(backends)),
		log:      utils.GetLogger(),
	}
	for k, b := range backends {
		f.backends[k] = b
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Backends returns the configured kinds in display order.
func (f *Facade) Backends() []backend.Kind {
	var kinds []backend.Kind
	for _, k := range backend.Kinds() {
		if _, ok := f.backends[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Close closes every backend.
func (f *Facade) Close() error {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.mu.Unlock()

	var errs []error
	for _, k := range f.Backends() {
		if err := f.backends[k].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// List requests
// =============================================================================

// beginList starts a list request, cancelling the previous one.
func (f *Facade) beginList(ctx context.Context) (context.Context, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	f.generation++
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	return ctx, f.generation
}

// finishList reports whether gen is still the latest list request and
// releases its context if so. Must be called with f.mu held.
func (f *Facade) finishList(gen uint64) bool {
	if gen != f.generation {
		return false
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	return true
}

// Load selects kind, fetches its tasks and labels, and replaces all state.
// On failure the previous state is kept and the error is recorded.
// Selecting a different kind starts a new session for that backend, so
// its column cache is dropped; other backends' caches are untouched.
func (f *Facade) Load(ctx context.Context, kind backend.Kind) error {
	be, ok := f.backends[kind]
	if !ok {
		err := utils.ErrBackendNotConfigured(string(kind))
		f.setErr(err)
		return err
	}

	f.mu.Lock()
	switching := f.selected != kind
	f.mu.Unlock()
	if inv, ok := be.(backend.ColumnInvalidator); ok && switching {
		inv.InvalidateColumns()
	}

	ctx, gen := f.beginList(ctx)

	board, err := be.FetchAll(ctx)
	var labels []backend.Label
	if err == nil {
		labels, err = be.FetchLabels(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.finishList(gen) {
		f.log.Debug("load %s: discarded superseded result", kind)
		return ErrSuperseded
	}
	if err != nil {
		f.err = err
		return err
	}

	if switching {
		f.editing = ""
		f.pending = nil
	}
	f.selected = kind
	f.boardName = board.Name
	f.tasks = copyTasks(board.Tasks)
	f.labels = copyLabels(labels)
	f.filter = Unfiltered
	f.filterDate = ""
	f.err = nil

	f.log.Debug("load %s: %d tasks, %d labels", kind, len(f.tasks), len(f.labels))
	return nil
}

// Reload refetches the selected backend.
func (f *Facade) Reload(ctx context.Context) error {
	kind, err := f.selectedKind()
	if err != nil {
		return err
	}
	return f.Load(ctx, kind)
}

// ToggleDateFilter moves the date filter between its two states.
// Filtered always goes back to Unfiltered through a full refetch. From
// Unfiltered an empty date is a no-op; otherwise the backend filters and
// the state becomes Filtered. A filter that matches nothing leaves the
// state Unfiltered and records the error.
func (f *Facade) ToggleDateFilter(ctx context.Context, date string) error {
	f.mu.Lock()
	state := f.filter
	f.mu.Unlock()

	if state == Filtered {
		return f.refetch(ctx)
	}
	if date == "" {
		return nil
	}
	return f.applyFilter(ctx, date)
}

// ResetFilter returns to the full list. It is a no-op when Unfiltered.
func (f *Facade) ResetFilter(ctx context.Context) error {
	f.mu.Lock()
	state := f.filter
	f.mu.Unlock()

	if state == Unfiltered {
		return nil
	}
	return f.refetch(ctx)
}

func (f *Facade) applyFilter(ctx context.Context, date string) error {
	kind, err := f.selectedKind()
	if err != nil {
		return err
	}
	be := f.backends[kind]

	ctx, gen := f.beginList(ctx)
	tasks, err := be.FilterByDate(ctx, date)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.finishList(gen) {
		return ErrSuperseded
	}
	if err != nil {
		f.err = err
		return err
	}

	f.tasks = copyTasks(tasks)
	f.filter = Filtered
	f.filterDate = date
	f.err = nil
	f.log.Debug("filter %s on %s: %d tasks", kind, date, len(tasks))
	return nil
}

// refetch replaces the task list with a full fetch and clears the filter.
func (f *Facade) refetch(ctx context.Context) error {
	kind, err := f.selectedKind()
	if err != nil {
		return err
	}
	be := f.backends[kind]

	ctx, gen := f.beginList(ctx)
	board, err := be.FetchAll(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.finishList(gen) {
		return ErrSuperseded
	}
	if err != nil {
		f.err = err
		return err
	}

	f.boardName = board.Name
	f.tasks = copyTasks(board.Tasks)
	f.filter = Unfiltered
	f.filterDate = ""
	f.err = nil
	return nil
}

// =============================================================================
// Mutations
// =============================================================================

// CreateTask submits fields to the selected backend. While the request is in
// flight the task is listed by Pending under a generated correlation id; on
// success it is appended with the backend-assigned id, on failure the
// pending entry is discarded and the list is untouched.
func (f *Facade) CreateTask(ctx context.Context, fields backend.TaskFields) (backend.Task, error) {
	kind, err := f.selectedKind()
	if err != nil {
		return backend.Task{}, err
	}
	be := f.backends[kind]

	pending := PendingTask{
		CorrelationID: backend.GenerateID(),
		Backend:       kind,
		Task:          fields.Apply(backend.Task{}),
	}
	f.mu.Lock()
	f.pending = append(f.pending, pending)
	f.mu.Unlock()

	id, err := be.Create(ctx, fields)

	f.mu.Lock()
	defer f.mu.Unlock()

	tracked := f.removePending(pending.CorrelationID)
	if err != nil {
		f.err = err
		return backend.Task{}, err
	}

	task := fields.Apply(backend.Task{ID: id})
	// Skip the append when the selection changed meanwhile, or when a
	// refetch already brought the new task in.
	if tracked && f.selected == kind && f.indexOf(id) < 0 && f.visible(task) {
		f.tasks = append(f.tasks, task)
	}
	f.err = nil
	f.log.Debug("create %s: %s (%s)", kind, id, pending.CorrelationID)
	return task, nil
}

// UpdateTask sends exactly the supplied fields. On success the local record
// is replaced by the supplied fields merged onto it, whatever the backend
// returned, and the edit slot is released.
func (f *Facade) UpdateTask(ctx context.Context, id string, fields backend.TaskFields) (backend.Task, error) {
	kind, err := f.selectedKind()
	if err != nil {
		return backend.Task{}, err
	}

	f.mu.Lock()
	if f.editing != "" && f.editing != id {
		f.mu.Unlock()
		return backend.Task{}, ErrEditInProgress
	}
	f.mu.Unlock()

	updated, err := f.backends[kind].Update(ctx, id, fields)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.err = err
		return backend.Task{}, err
	}

	var task backend.Task
	if i := f.indexOf(id); i >= 0 && f.selected == kind {
		f.tasks[i] = fields.Apply(f.tasks[i])
		task = f.tasks[i]
	} else if updated != nil {
		task = *updated
	} else {
		task = fields.Apply(backend.Task{ID: id})
	}
	if f.editing == id {
		f.editing = ""
	}
	f.err = nil
	return task, nil
}

// DeleteTask always issues the backend call, even for ids not in the list,
// and removes the local record only after the backend confirms.
func (f *Facade) DeleteTask(ctx context.Context, id string) error {
	kind, err := f.selectedKind()
	if err != nil {
		return err
	}

	err = f.backends[kind].Delete(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.err = err
		return err
	}

	if i := f.indexOf(id); i >= 0 && f.selected == kind {
		f.tasks = append(f.tasks[:i:i], f.tasks[i+1:]...)
	}
	if f.editing == id {
		f.editing = ""
	}
	f.err = nil
	return nil
}

// =============================================================================
// Edit slot
// =============================================================================

// BeginEdit claims the single edit slot for id.
func (f *Facade) BeginEdit(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.editing != "" && f.editing != id {
		return ErrEditInProgress
	}
	if f.indexOf(id) < 0 {
		return utils.ErrTaskNotFound(id)
	}
	f.editing = id
	return nil
}

// CancelEdit releases the edit slot.
func (f *Facade) CancelEdit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editing = ""
}

// Editing returns the id in the edit slot, or "".
func (f *Facade) Editing() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editing
}

// =============================================================================
// Accessors
// =============================================================================

// Snapshot returns a copy of the whole state.
func (f *Facade) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Backend:    f.selected,
		BoardName:  f.boardName,
		Tasks:      copyTasks(f.tasks),
		Labels:     copyLabels(f.labels),
		Filter:     f.filter,
		FilterDate: f.filterDate,
		Editing:    f.editing,
		Pending:    append([]PendingTask(nil), f.pending...),
		Err:        f.err,
	}
}

// Tasks returns a copy of the current task list.
func (f *Facade) Tasks() []backend.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyTasks(f.tasks)
}

// Labels returns a copy of the selected backend's labels in index order.
func (f *Facade) Labels() []backend.Label {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyLabels(f.labels)
}

// BoardName returns the name of the loaded board.
func (f *Facade) BoardName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boardName
}

// Selected returns the backend kind in use.
func (f *Facade) Selected() backend.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected
}

// FilterState reports whether the list is filtered by date.
func (f *Facade) FilterState() FilterState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter
}

// FilterDate returns the active filter date, or "" when unfiltered.
func (f *Facade) FilterDate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterDate
}

// Err returns the error of the last failed operation, cleared by the next
// successful one.
func (f *Facade) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Pending returns the creates sent but not yet confirmed.
func (f *Facade) Pending() []PendingTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PendingTask(nil), f.pending...)
}

// DefaultStatus is the status preselected for new tasks: the first label.
func (f *Facade) DefaultStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.labels) == 0 {
		return ""
	}
	return f.labels[0].Label
}

// Task returns the listed task with id.
func (f *Facade) Task(id string) (backend.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.indexOf(id); i >= 0 {
		return f.tasks[i], true
	}
	return backend.Task{}, false
}

// =============================================================================
// Helpers (f.mu held unless noted)
// =============================================================================

// selectedKind takes the lock itself.
func (f *Facade) selectedKind() (backend.Kind, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected == "" {
		f.err = ErrNoBackend
		return "", ErrNoBackend
	}
	return f.selected, nil
}

func (f *Facade) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *Facade) indexOf(id string) int {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *Facade) removePending(correlationID string) bool {
	for i, p := range f.pending {
		if p.CorrelationID == correlationID {
			f.pending = append(f.pending[:i:i], f.pending[i+1:]...)
			return true
		}
	}
	return false
}

// visible reports whether a new task belongs in the current list.
func (f *Facade) visible(t backend.Task) bool {
	return f.filter == Unfiltered || t.Date == f.filterDate
}

func copyTasks(tasks []backend.Task) []backend.Task {
	if tasks == nil {
		return []backend.Task{}
	}
	return append([]backend.Task(nil), tasks...)
}

func copyLabels(labels []backend.Label) []backend.Label {
	if labels == nil {
		return []backend.Label{}
	}
	return append([]backend.Label(nil), labels...)
}
