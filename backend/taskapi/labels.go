package taskapi

import "taskbridge/backend"

// statusColors is the fixed palette for the API's status strings.
var statusColors = map[string]backend.Color{
	"Pending":     {Hex: "#fdab3d", Border: "#e99729", Token: "orange"},
	"In Progress": {Hex: "#ffcc00", Border: "#d4a50f", Token: "yellow"},
	"Completed":   {Hex: "#00c875", Border: "#00b461", Token: "green-shadow"},
}

// fallbackColor applies to every other status, including "".
var fallbackColor = backend.Color{Hex: "#c4c4c4", Border: "#b0b0b0", Token: "grey"}

// NormalizeLabels pairs each raw status with its colour, keeping input order.
func NormalizeLabels(raw []string) []backend.Label {
	labels := make([]backend.Label, len(raw))
	for i, s := range raw {
		color, ok := statusColors[s]
		if !ok {
			color = fallbackColor
		}
		labels[i] = backend.Label{Label: s, Color: color}
	}
	return labels
}
