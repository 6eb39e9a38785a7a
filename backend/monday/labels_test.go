package monday

import (
	"errors"
	"testing"

	"taskbridge/backend"
	"taskbridge/internal/testutil"
)

func TestNormalizeLabelsDefaultBoard(t *testing.T) {
	labels, err := NormalizeLabels(testutil.DefaultStatusSettings)
	if err != nil {
		t.Fatalf("NormalizeLabels() error = %v", err)
	}

	want := []backend.Label{
		{Label: "Working on it", Color: backend.Color{Hex: "#fdab3d", Border: "#e99729", Token: "orange"}},
		{Label: "Done", Color: backend.Color{Hex: "#00c875", Border: "#00b461", Token: "green-shadow"}},
		{Label: "Stuck", Color: backend.Color{Hex: "#df2f4a", Border: "#ce3048", Token: "red-shadow"}},
		{Label: "", Color: backend.Color{Hex: "#c4c4c4", Border: "#b0b0b0", Token: "grey"}},
	}
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d: %+v", len(labels), len(want), labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %+v, want %+v", i, labels[i], want[i])
		}
	}
}

func TestNormalizeLabelsKeepsEmittedOrder(t *testing.T) {
	settings := `{"labels":{"7":"Later","1":"Now","3":"Soon"},"labels_colors":{}}`

	labels, err := NormalizeLabels(settings)
	if err != nil {
		t.Fatalf("NormalizeLabels() error = %v", err)
	}

	names := backend.LabelNames(labels)
	want := []string{"Later", "Now", "Soon"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestNormalizeLabelsMissingColorUsesDefault(t *testing.T) {
	settings := `{"labels":{"0":"Open","1":"Closed"},"labels_colors":{"0":{"color":"#fdab3d","border":"#e99729","var_name":"orange"}}}`

	labels, err := NormalizeLabels(settings)
	if err != nil {
		t.Fatalf("NormalizeLabels() error = %v", err)
	}
	if labels[0].Color.Token != "orange" {
		t.Errorf("labels[0] token = %q, want orange", labels[0].Color.Token)
	}
	if labels[1].Color != (backend.Color{Token: backend.DefaultColorToken}) {
		t.Errorf("labels[1] color = %+v, want default token only", labels[1].Color)
	}
}

func TestNormalizeLabelsArrayForm(t *testing.T) {
	settings := `{"labels":[{"id":4,"name":"Blocked"},{"id":0,"name":"Open"}],"labels_colors":{"0":{"var_name":"grey"}}}`

	labels, err := NormalizeLabels(settings)
	if err != nil {
		t.Fatalf("NormalizeLabels() error = %v", err)
	}
	if len(labels) != 2 || labels[0].Label != "Blocked" || labels[1].Label != "Open" {
		t.Fatalf("labels = %+v", labels)
	}
	if labels[0].Color.Token != backend.DefaultColorToken || labels[1].Color.Token != "grey" {
		t.Errorf("tokens = %q, %q", labels[0].Color.Token, labels[1].Color.Token)
	}
}

func TestNormalizeLabelsNoLabels(t *testing.T) {
	labels, err := NormalizeLabels(`{"hide_footer":false}`)
	if err != nil {
		t.Fatalf("NormalizeLabels() error = %v", err)
	}
	if len(labels) != 0 {
		t.Errorf("labels = %+v, want none", labels)
	}
}

func TestNormalizeLabelsInvalidJSON(t *testing.T) {
	_, err := NormalizeLabels(`{"labels":`)
	if !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("err = %v, want ErrInvalidSettings", err)
	}
}

func TestNormalizeLabelsDeterministic(t *testing.T) {
	a, _ := NormalizeLabels(testutil.DefaultStatusSettings)
	b, _ := NormalizeLabels(testutil.DefaultStatusSettings)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("run 1 and 2 differ at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
