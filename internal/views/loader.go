package views

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles loading views from disk and built-in sources
type Loader struct {
	viewsDir string
}

// NewLoader creates a new view loader. An empty dir disables custom views.
func NewLoader(viewsDir string) *Loader {
	return &Loader{viewsDir: viewsDir}
}

// ValidateViewName checks if a view name is safe to use in file paths.
func ValidateViewName(name string) error {
	if name == "" {
		return fmt.Errorf("view name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid view name '%s': contains path separator", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid view name '%s': contains path traversal sequence", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid view name '%s': cannot start with '.'", name)
	}
	return nil
}

func isBuiltIn(name string) bool {
	return name == "default" || name == "all"
}

// LoadView loads a view by name. A file in the views directory overrides
// a built-in view of the same name.
func (l *Loader) LoadView(name string) (*View, error) {
	normalizedName := strings.ToLower(name)
	if normalizedName == "" {
		normalizedName = "default"
	}

	if !isBuiltIn(normalizedName) {
		if err := ValidateViewName(name); err != nil {
			return nil, err
		}
	}

	if l.viewsDir != "" {
		viewPath := filepath.Join(l.viewsDir, normalizedName+".yaml")
		if _, err := os.Stat(viewPath); err == nil {
			return l.loadFromDisk(normalizedName, viewPath)
		}
	}

	switch normalizedName {
	case "default":
		return DefaultView(), nil
	case "all":
		return AllView(), nil
	}
	return nil, fmt.Errorf("view '%s' not found", name)
}

func (l *Loader) loadFromDisk(name, viewPath string) (*View, error) {
	absViewsDir, err := filepath.Abs(l.viewsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve views directory: %w", err)
	}
	absViewPath, err := filepath.Abs(viewPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve view path: %w", err)
	}
	if !strings.HasPrefix(absViewPath, absViewsDir+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid view name '%s': path traversal detected", name)
	}

	data, err := os.ReadFile(viewPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read view '%s': %w", name, err)
	}

	var view View
	if err := yaml.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("failed to parse view '%s': %w", name, err)
	}
	if view.Name == "" {
		view.Name = name
	}
	if err := validateView(&view); err != nil {
		return nil, fmt.Errorf("invalid view '%s': %w", name, err)
	}
	return &view, nil
}

// ViewInfo contains metadata about a view
type ViewInfo struct {
	Name        string
	Description string
	BuiltIn     bool
}

// ListViews returns the built-in views followed by custom views sorted by name
func (l *Loader) ListViews() ([]ViewInfo, error) {
	var infos []ViewInfo
	for _, name := range []string{"default", "all"} {
		v, err := l.LoadView(name)
		if err != nil {
			return nil, err
		}
		overridden := false
		if l.viewsDir != "" {
			_, statErr := os.Stat(filepath.Join(l.viewsDir, name+".yaml"))
			overridden = statErr == nil
		}
		infos = append(infos, ViewInfo{Name: name, Description: v.Description, BuiltIn: !overridden})
	}

	if l.viewsDir == "" {
		return infos, nil
	}
	entries, err := os.ReadDir(l.viewsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return infos, nil
		}
		return nil, fmt.Errorf("failed to read views directory: %w", err)
	}

	var custom []ViewInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		if isBuiltIn(name) {
			continue
		}
		desc := ""
		if v, err := l.LoadView(name); err == nil {
			desc = v.Description
		}
		custom = append(custom, ViewInfo{Name: name, Description: desc})
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })
	return append(infos, custom...), nil
}

func validateView(v *View) error {
	if len(v.Fields) == 0 {
		return fmt.Errorf("view must have at least one field")
	}

	validFields := make(map[string]bool)
	for _, f := range AvailableFields {
		validFields[f] = true
	}

	for _, f := range v.Fields {
		if !validFields[f.Name] {
			return fmt.Errorf("unknown field: %s", f.Name)
		}
		switch f.Align {
		case "", "left", "right", "center":
		default:
			return fmt.Errorf("invalid align for %s: %s", f.Name, f.Align)
		}
	}

	for _, s := range v.Sort {
		if !validFields[s.Field] {
			return fmt.Errorf("unknown sort field: %s", s.Field)
		}
		dir := strings.ToLower(s.Direction)
		if dir != "" && dir != "asc" && dir != "desc" {
			return fmt.Errorf("invalid sort direction: %s (must be 'asc' or 'desc')", s.Direction)
		}
	}
	return nil
}
