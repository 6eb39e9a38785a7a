package monday

import (
	"errors"
	"strconv"

	"github.com/tidwall/gjson"

	"taskbridge/backend"
)

// ErrInvalidSettings is returned for a status column settings blob that is not JSON.
var ErrInvalidSettings = errors.New("status column settings are not valid JSON")

// NormalizeLabels parses a status column settings blob. The `labels`
// collection is walked in emitted order and each entry is paired with the
// `labels_colors` entry of the same index; an index without a colour gets
// the default token.
func NormalizeLabels(settingsStr string) ([]backend.Label, error) {
	if !gjson.Valid(settingsStr) {
		return nil, ErrInvalidSettings
	}

	settings := gjson.Parse(settingsStr)
	colors := settings.Get("labels_colors").Map()
	labels := []backend.Label{}

	position := 0
	settings.Get("labels").ForEach(func(key, value gjson.Result) bool {
		index, text := key.String(), value.String()
		if key.Type == gjson.Null {
			// array form: entries are plain strings or {id, name}
			index = strconv.Itoa(position)
			if value.IsObject() {
				index, text = value.Get("id").String(), value.Get("name").String()
			}
		}
		position++

		labels = append(labels, backend.Label{
			Label: text,
			Color: labelColor(colors[index]),
		})
		return true
	})

	return labels, nil
}

func labelColor(c gjson.Result) backend.Color {
	if !c.Exists() || !c.IsObject() {
		return backend.Color{Token: backend.DefaultColorToken}
	}
	color := backend.Color{
		Hex:    c.Get("color").String(),
		Border: c.Get("border").String(),
		Token:  c.Get("var_name").String(),
	}
	if color.Token == "" {
		color.Token = backend.DefaultColorToken
	}
	return color
}
