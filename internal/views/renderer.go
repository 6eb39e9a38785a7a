package views

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskbridge/backend"
)

// tokenColors maps backend colour tokens to hex for labels sent without one.
var tokenColors = map[string]string{
	"orange":       "#fdab3d",
	"yellow":       "#ffcc00",
	"green-shadow": "#00c875",
	"done-green":   "#00c875",
	"red-shadow":   "#e2445c",
	"stuck-red":    "#e2445c",
	"grey":         "#c4c4c4",
}

// StatusColor returns the display colour of a label, or "" when unknown.
func StatusColor(label *backend.Label) lipgloss.Color {
	if label == nil {
		return ""
	}
	if label.Color.Hex != "" {
		return lipgloss.Color(label.Color.Hex)
	}
	return lipgloss.Color(tokenColors[label.Color.Token])
}

// StatusStyle returns a lipgloss style coloured after the label.
func StatusStyle(label *backend.Label) lipgloss.Style {
	style := lipgloss.NewStyle()
	if c := StatusColor(label); c != "" {
		style = style.Foreground(c).Bold(true)
	}
	return style
}

// Options control how a Renderer formats output
type Options struct {
	// Labels are used to colour the status column
	Labels []backend.Label
	// Color enables lipgloss styling of statuses
	Color bool
	// Header prints the field names above the rows
	Header bool
}

// Renderer handles rendering tasks using a view configuration
type Renderer struct {
	view   *View
	writer io.Writer
	opts   Options
}

// NewRenderer creates a new view renderer
func NewRenderer(view *View, writer io.Writer, opts Options) *Renderer {
	if view == nil {
		view = DefaultView()
	}
	return &Renderer{view: view, writer: writer, opts: opts}
}

// Render writes one line per task, sorted by the view's sort rules
func (r *Renderer) Render(tasks []backend.Task) {
	if r.opts.Header {
		var parts []string
		for _, field := range r.view.Fields {
			parts = append(parts, pad(strings.ToUpper(field.Name), field))
		}
		_, _ = fmt.Fprintln(r.writer, strings.TrimRight(strings.Join(parts, " "), " "))
	}

	for _, t := range SortTasks(tasks, r.view.Sort) {
		var parts []string
		for _, field := range r.view.Fields {
			parts = append(parts, r.formatField(&t, field))
		}
		_, _ = fmt.Fprintln(r.writer, strings.TrimRight(strings.Join(parts, " "), " "))
	}
}

func fieldValue(t *backend.Task, name string) string {
	switch name {
	case "id":
		return t.ID
	case "name":
		return t.Name
	case "text":
		return t.Text
	case "date":
		return t.Date
	case "status":
		return t.Status
	}
	return ""
}

// formatField formats a task field according to field configuration.
// Padding is applied before colouring so escape codes do not skew widths.
func (r *Renderer) formatField(t *backend.Task, field Field) string {
	value := fieldValue(t, field.Name)
	if field.Name == "status" && value == "" {
		value = "-"
	}
	value = pad(value, field)

	if field.Name == "status" && r.opts.Color {
		return StatusStyle(backend.FindLabel(r.opts.Labels, t.Status)).Render(value)
	}
	return value
}

func pad(value string, field Field) string {
	if field.Width <= 0 {
		return value
	}
	if lipgloss.Width(value) > field.Width && field.Truncate {
		runes := []rune(value)
		if field.Width > 3 && len(runes) > field.Width-3 {
			value = string(runes[:field.Width-3]) + "..."
		}
	}
	gap := field.Width - lipgloss.Width(value)
	if gap <= 0 {
		return value
	}
	switch field.Align {
	case "right":
		return strings.Repeat(" ", gap) + value
	case "center":
		left := gap / 2
		return strings.Repeat(" ", left) + value + strings.Repeat(" ", gap-left)
	default:
		return value + strings.Repeat(" ", gap)
	}
}

// SortTasks returns a sorted copy of tasks. Without rules the input order is kept.
func SortTasks(tasks []backend.Task, rules []SortRule) []backend.Task {
	sorted := make([]backend.Task, len(tasks))
	copy(sorted, tasks)
	if len(rules) == 0 {
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		for _, rule := range rules {
			a, b := fieldValue(&sorted[i], rule.Field), fieldValue(&sorted[j], rule.Field)
			if a == b {
				continue
			}
			// empty values sort last in either direction
			if a == "" || b == "" {
				return b == ""
			}
			if strings.EqualFold(rule.Direction, "desc") {
				return a > b
			}
			return a < b
		}
		return false
	})
	return sorted
}

// taskListJSON is the JSON document written for a task list
type taskListJSON struct {
	Backend string         `json:"backend"`
	Board   string         `json:"board"`
	Filter  string         `json:"filter_date,omitempty"`
	Tasks   []backend.Task `json:"tasks"`
}

// RenderJSON writes tasks as an indented JSON document
func RenderJSON(w io.Writer, kind backend.Kind, board, filterDate string, tasks []backend.Task) error {
	if tasks == nil {
		tasks = []backend.Task{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(taskListJSON{
		Backend: string(kind),
		Board:   board,
		Filter:  filterDate,
		Tasks:   tasks,
	})
}

// RenderTaskJSON writes a single task as JSON
func RenderTaskJSON(w io.Writer, task backend.Task) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(task)
}

// RenderLabels writes one label per line, coloured when color is true
func RenderLabels(w io.Writer, labels []backend.Label, color bool) {
	for i := range labels {
		name := labels[i].Label
		if name == "" {
			name = "(empty)"
		}
		if color {
			name = StatusStyle(&labels[i]).Render(name)
		}
		_, _ = fmt.Fprintf(w, "%d  %s  [%s]\n", i, name, labels[i].Color.Token)
	}
}

// RenderLabelsJSON writes labels as a JSON array
func RenderLabelsJSON(w io.Writer, labels []backend.Label) error {
	if labels == nil {
		labels = []backend.Label{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(labels)
}
