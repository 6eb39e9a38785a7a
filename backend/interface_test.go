package backend

import (
	"reflect"
	"testing"
)

func TestTaskFieldsApply(t *testing.T) {
	task := Task{ID: "1", Name: "Draft proposal", Date: "2024-05-01", Status: "Pending"}

	got := TaskFields{Status: String("Completed"), Text: String("")}.Apply(task)

	want := Task{ID: "1", Name: "Draft proposal", Date: "2024-05-01", Status: "Completed"}
	if got != want {
		t.Errorf("Apply() = %+v, want %+v", got, want)
	}
}

func TestTaskFieldsApplyKeepsID(t *testing.T) {
	task := Task{ID: "abc"}
	got := FieldsFromTask(Task{ID: "other", Name: "n"}).Apply(task)
	if got.ID != "abc" {
		t.Errorf("Apply() changed ID to %q", got.ID)
	}
}

func TestTaskFieldsIsEmpty(t *testing.T) {
	if !(TaskFields{}).IsEmpty() {
		t.Error("zero TaskFields should be empty")
	}
	if (TaskFields{Date: String("")}).IsEmpty() {
		t.Error("a supplied empty string is still a supplied field")
	}
}

func TestValue(t *testing.T) {
	if Value(nil) != "" {
		t.Error("Value(nil) should be empty")
	}
	if Value(String("x")) != "x" {
		t.Error("Value should dereference")
	}
}

func TestLabelHelpers(t *testing.T) {
	labels := []Label{
		{Label: "Pending", Color: Color{Token: "orange"}},
		{Label: "Done", Color: Color{Token: "green"}},
	}

	if got := LabelNames(labels); !reflect.DeepEqual(got, []string{"Pending", "Done"}) {
		t.Errorf("LabelNames() = %v", got)
	}
	if l := FindLabel(labels, "Done"); l == nil || l.Color.Token != "green" {
		t.Errorf("FindLabel(Done) = %+v", l)
	}
	if FindLabel(labels, "Missing") != nil {
		t.Error("FindLabel(Missing) should be nil")
	}
}

func TestColumnMap(t *testing.T) {
	cols := ColumnMap{"date": "date4", "status": "status"}

	if got := cols.Missing(RequiredColumns...); !reflect.DeepEqual(got, []string{"description"}) {
		t.Errorf("Missing() = %v, want [description]", got)
	}
	if cols.Has(RequiredColumns...) {
		t.Error("Has() should be false with a missing key")
	}
	if !cols.Has(ColumnDate) {
		t.Error("Has(date) should be true")
	}

	clone := cols.Clone()
	clone["date"] = "changed"
	if cols["date"] != "date4" {
		t.Error("Clone() should not share storage")
	}

	var nilMap ColumnMap
	if nilMap.Clone() != nil {
		t.Error("Clone() of nil should stay nil")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"monday", KindMonday, false},
		{" TaskAPI ", KindTaskAPI, false},
		{"todoist", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
