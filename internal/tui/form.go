package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// form is the name/text/date input group used by the add and edit dialogs
type form struct {
	inputs  []textinput.Model
	focused int
}

var formLabels = []string{"Name", "Text", "Date"}

func newForm() *form {
	placeholders := []string{"Task name", "Description (optional)", "YYYY-MM-DD, today, +3d (optional)"}
	limits := []int{256, 1024, 32}

	f := &form{inputs: make([]textinput.Model, len(formLabels))}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Width = 40
		f.inputs[i] = ti
	}
	return f
}

func (f *form) focus(i int) tea.Cmd {
	f.focused = i
	for j := range f.inputs {
		if j == i {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return textinput.Blink
}

func (f *form) blur() {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f *form) reset() {
	for i := range f.inputs {
		f.inputs[i].Reset()
	}
	f.focused = 0
}

func (f *form) setValues(name, text, date string) {
	f.reset()
	f.inputs[0].SetValue(name)
	f.inputs[1].SetValue(text)
	f.inputs[2].SetValue(date)
}

// values returns name, text and date as typed
func (f *form) values() (string, string, string) {
	return f.inputs[0].Value(), f.inputs[1].Value(), strings.TrimSpace(f.inputs[2].Value())
}

// update moves focus on tab/shift+tab/up/down and forwards other keys to the focused input
func (f *form) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		return f.focus((f.focused + 1) % len(f.inputs))
	case tea.KeyShiftTab, tea.KeyUp:
		return f.focus((f.focused + len(f.inputs) - 1) % len(f.inputs))
	}

	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return cmd
}

func (f *form) view() string {
	var b strings.Builder
	for i, in := range f.inputs {
		b.WriteString(formLabels[i] + "\n")
		b.WriteString(in.View())
		if i < len(f.inputs)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
