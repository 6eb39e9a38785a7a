package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of task due dates.
const DateLayout = "2006-01-02"

// relativePattern matches relative date formats like +7d, -3d, +2w, +1m
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dwm])$`)

// parseRelativeDate parses relative date strings like "today", "tomorrow", "yesterday", "+7d", "-3d", "+2w", "+1m".
// Returns nil if the string is not a relative date format.
func parseRelativeDate(dateStr string, now time.Time) (*time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	lower := strings.ToLower(dateStr)

	switch lower {
	case "today":
		return &today, nil
	case "tomorrow":
		t := today.AddDate(0, 0, 1)
		return &t, nil
	case "yesterday":
		t := today.AddDate(0, 0, -1)
		return &t, nil
	}

	matches := relativePattern.FindStringSubmatch(lower)
	if matches == nil {
		return nil, nil // Not a relative format
	}

	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, ErrInvalidDate(dateStr)
	}
	if matches[1] == "-" {
		num = -num
	}

	var result time.Time
	switch matches[3] {
	case "d":
		result = today.AddDate(0, 0, num)
	case "w":
		result = today.AddDate(0, 0, num*7)
	case "m":
		result = today.AddDate(0, num, 0)
	}

	return &result, nil
}

// NormalizeDate converts user input to the YYYY-MM-DD wire format.
// Supported relative formats: today, tomorrow, yesterday, +Nd, -Nd, +Nw, +Nm.
// An empty string stays empty (no due date).
func NormalizeDate(dateStr string) (string, error) {
	return normalizeDateAt(strings.TrimSpace(dateStr), time.Now())
}

func normalizeDateAt(dateStr string, now time.Time) (string, error) {
	if dateStr == "" {
		return "", nil
	}

	t, err := parseRelativeDate(dateStr, now)
	if err != nil {
		return "", err
	}
	if t != nil {
		return t.Format(DateLayout), nil
	}

	parsed, err := time.ParseInLocation(DateLayout, dateStr, time.Local)
	if err != nil {
		return "", ErrInvalidDate(dateStr)
	}
	return parsed.Format(DateLayout), nil
}

// ValidateName rejects names that are empty after trimming.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName()
	}
	return nil
}

// ValidateStatus checks status against the current label set.
// An empty status is always accepted; so is any status when no labels are loaded.
func ValidateStatus(status string, labels []string) error {
	if status == "" || len(labels) == 0 {
		return nil
	}
	for _, l := range labels {
		if l == status {
			return nil
		}
	}
	return ErrInvalidStatus(status, labels)
}
