// Package views renders canonical tasks and status labels as text tables,
// JSON, or colour-tagged output. Column layout comes from a View, either
// built in or loaded from YAML in the views directory.
package views

// View represents a task display configuration
type View struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Fields      []Field    `yaml:"fields"`
	Sort        []SortRule `yaml:"sort,omitempty"`
}

// Field represents a column of the rendered table
type Field struct {
	Name     string `yaml:"name"`
	Width    int    `yaml:"width,omitempty"`
	Align    string `yaml:"align,omitempty"` // left, center, right
	Truncate bool   `yaml:"truncate,omitempty"`
}

// SortRule represents a sorting rule
type SortRule struct {
	Field     string `yaml:"field"`
	Direction string `yaml:"direction"` // asc, desc
}

// AvailableFields returns the list of valid field names
var AvailableFields = []string{
	"id",
	"name",
	"text",
	"date",
	"status",
}

// DefaultView returns the built-in default view
func DefaultView() *View {
	return &View{
		Name:        "default",
		Description: "Status, name and date of every task",
		Fields: []Field{
			{Name: "status", Width: 16},
			{Name: "name", Width: 32, Truncate: true},
			{Name: "date", Width: 10},
		},
	}
}

// AllView returns the built-in 'all' view showing all fields
func AllView() *View {
	return &View{
		Name:        "all",
		Description: "Every task field including ids",
		Fields: []Field{
			{Name: "id", Width: 12},
			{Name: "status", Width: 16},
			{Name: "name", Width: 32},
			{Name: "date", Width: 10},
			{Name: "text"},
		},
	}
}
