package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Task is the backend-agnostic task record. Every field is a plain string;
// a value the backend did not send is "".
type Task struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Text   string `json:"text"`
	Date   string `json:"date"` // YYYY-MM-DD or ""
	Status string `json:"status"`
}

// TaskFields is a partial task used for create and update requests.
// A nil field was not supplied by the caller and is never sent.
type TaskFields struct {
	Name   *string
	Text   *string
	Date   *string
	Status *string
}

// String returns a pointer to s, for building TaskFields literals.
func String(s string) *string {
	return &s
}

// FieldsFromTask returns TaskFields with every field of t supplied.
func FieldsFromTask(t Task) TaskFields {
	return TaskFields{
		Name:   String(t.Name),
		Text:   String(t.Text),
		Date:   String(t.Date),
		Status: String(t.Status),
	}
}

// Apply merges the supplied fields onto t and returns the result.
func (f TaskFields) Apply(t Task) Task {
	if f.Name != nil {
		t.Name = *f.Name
	}
	if f.Text != nil {
		t.Text = *f.Text
	}
	if f.Date != nil {
		t.Date = *f.Date
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
	return t
}

// IsEmpty reports whether no field was supplied.
func (f TaskFields) IsEmpty() bool {
	return f.Name == nil && f.Text == nil && f.Date == nil && f.Status == nil
}

// Value returns the dereferenced field or "" when it was not supplied.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Color is the display token of a status label. Hex and Border are raw
// colours when the backend provides them; Token is the backend style key.
type Color struct {
	Hex    string `json:"color,omitempty"`
	Border string `json:"border,omitempty"`
	Token  string `json:"var_name"`
}

// DefaultColorToken is used for labels the backend gives no colour for.
const DefaultColorToken = "default"

// Label is one selectable status value.
type Label struct {
	Label string `json:"label"`
	Color Color  `json:"color"`
}

// LabelNames returns the label texts in order.
func LabelNames(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Label
	}
	return names
}

// FindLabel returns the label named name, or nil.
func FindLabel(labels []Label, name string) *Label {
	for i := range labels {
		if labels[i].Label == name {
			return &labels[i]
		}
	}
	return nil
}

// Logical column keys of the column-oriented backend.
const (
	ColumnDescription = "description"
	ColumnDate        = "date"
	ColumnStatus      = "status"
)

// RequiredColumns must be resolvable before create, update or filter calls.
var RequiredColumns = []string{ColumnDescription, ColumnDate, ColumnStatus}

// ColumnMap maps a lowercased column title to the backend column id.
type ColumnMap map[string]string

// Missing returns the keys not present in the map, in argument order.
func (c ColumnMap) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if _, ok := c[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// Has reports whether every key is present.
func (c ColumnMap) Has(keys ...string) bool {
	return len(c.Missing(keys...)) == 0
}

// Clone returns a copy of the map; nil stays nil.
func (c ColumnMap) Clone() ColumnMap {
	if c == nil {
		return nil
	}
	out := make(ColumnMap, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Board is the result of a full fetch.
type Board struct {
	Name    string
	Tasks   []Task
	Columns ColumnMap // nil for backends with fixed field names
}

// Kind identifies a backend implementation.
type Kind string

const (
	KindMonday  Kind = "monday"
	KindTaskAPI Kind = "taskapi"
)

// Kinds returns every known backend kind in display order.
func Kinds() []Kind {
	return []Kind{KindMonday, KindTaskAPI}
}

// ParseKind converts a configuration value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	names := make([]string, 0, len(Kinds()))
	for _, known := range Kinds() {
		names = append(names, string(known))
	}
	sort.Strings(names)
	return "", fmt.Errorf("unknown backend %q (valid: %s)", s, strings.Join(names, ", "))
}

// Backend is the capability set every task adapter provides.
type Backend interface {
	Kind() Kind

	// FetchAll returns every item on the first page, mapped to canonical tasks.
	FetchAll(ctx context.Context) (*Board, error)
	// FilterByDate runs a backend-side filter. Zero matches is a *NoResultsError.
	FilterByDate(ctx context.Context, date string) ([]Task, error)
	// Create submits a new task and returns the backend-assigned id.
	Create(ctx context.Context, fields TaskFields) (string, error)
	// Update sends exactly the supplied fields.
	Update(ctx context.Context, id string, fields TaskFields) (*Task, error)
	Delete(ctx context.Context, id string) error
	FetchLabels(ctx context.Context) ([]Label, error)

	// Connection management
	Close() error
}

// ColumnInvalidator is implemented by backends that cache column identity.
type ColumnInvalidator interface {
	InvalidateColumns()
}

// GenerateID generates a unique identifier using UUID v4.
// Used for correlation ids of creates that have not been confirmed yet.
func GenerateID() string {
	return uuid.New().String()
}
