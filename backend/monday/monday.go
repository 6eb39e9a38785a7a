package monday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskbridge/backend"
)

const (
	columnsQuery = `query ($boardId: [ID!]) {
  boards(ids: $boardId) { name columns { id title } }
}`

	itemsQuery = `query ($boardId: [ID!], $limit: Int) {
  boards(ids: $boardId) {
    name
    items_page(limit: $limit) { items { id name column_values { id text } } }
  }
}`

	filterQuery = `query ($boardId: ID!, $columnId: String!, $date: String!, $limit: Int) {
  items_page_by_column_values(limit: $limit, board_id: $boardId, columns: [{column_id: $columnId, column_values: [$date]}]) {
    items { id name column_values { id text } }
  }
}`

	labelsQuery = `query ($boardId: [ID!], $columnId: [String]) {
  boards(ids: $boardId) { columns(ids: $columnId) { id settings_str } }
}`

	createMutation = `mutation ($boardId: ID!, $name: String!, $values: JSON) {
  create_item(board_id: $boardId, item_name: $name, column_values: $values) { id }
}`

	updateMutation = `mutation ($boardId: ID!, $itemId: ID!, $values: JSON!) {
  change_multiple_column_values(item_id: $itemId, board_id: $boardId, column_values: $values) {
    id name column_values { id text }
  }
}`

	deleteMutation = `mutation ($itemId: ID!) {
  delete_item(item_id: $itemId) { id }
}`
)

// Native response shapes

type column struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	SettingsStr string `json:"settings_str"`
}

type columnValue struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type item struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ColumnValues []columnValue `json:"column_values"`
}

type board struct {
	Name      string   `json:"name"`
	Columns   []column `json:"columns"`
	ItemsPage struct {
		Items []item `json:"items"`
	} `json:"items_page"`
}

// Backend implements backend.Backend over the board GraphQL API
type Backend struct {
	config   Config
	client   *client
	columns  *ColumnResolver
	pageSize int
}

// New creates a new board backend with a cold column cache
func New(cfg Config) (*Backend, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("monday API token is required")
	}
	if cfg.BoardID == "" {
		return nil, errors.New("monday board id is required")
	}

	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	b := &Backend{
		config:   cfg,
		client:   c,
		pageSize: pageSize,
	}
	b.columns = NewColumnResolver(cfg.BoardID, b.fetchColumns)
	return b, nil
}

// Kind identifies this backend
func (b *Backend) Kind() backend.Kind {
	return backend.KindMonday
}

// Columns exposes the column cache of this instance
func (b *Backend) Columns() *ColumnResolver {
	return b.columns
}

// InvalidateColumns drops the cached column mapping
func (b *Backend) InvalidateColumns() {
	b.columns.Invalidate()
}

// Close closes the backend
func (b *Backend) Close() error {
	b.client.http.CloseIdleConnections()
	return nil
}

func (b *Backend) schemaError(reason string) error {
	return fail(&backend.SchemaUnavailableError{
		Backend: backend.KindMonday,
		BoardID: b.config.BoardID,
		Reason:  reason,
	})
}

// fetchColumns issues the schema query backing the column cache
func (b *Backend) fetchColumns(ctx context.Context) (backend.ColumnMap, error) {
	var result struct {
		Boards []board `json:"boards"`
	}
	vars := map[string]interface{}{"boardId": []string{b.config.BoardID}}
	if err := b.client.do(ctx, "columns", columnsQuery, vars, &result); err != nil {
		return nil, err
	}
	if len(result.Boards) == 0 {
		return nil, b.schemaError("board not found")
	}
	if len(result.Boards[0].Columns) == 0 {
		return nil, b.schemaError("board has no columns")
	}
	return buildColumnMap(result.Boards[0].Columns), nil
}

// toTask maps a native item through the column map. Unknown columns and
// null texts read as "".
func toTask(it item, cols backend.ColumnMap) backend.Task {
	texts := make(map[string]string, len(it.ColumnValues))
	for _, cv := range it.ColumnValues {
		texts[cv.ID] = cv.Text
	}
	field := func(key string) string {
		id, ok := cols[key]
		if !ok {
			return ""
		}
		return texts[id]
	}
	return backend.Task{
		ID:     it.ID,
		Name:   it.Name,
		Text:   field(backend.ColumnDescription),
		Date:   field(backend.ColumnDate),
		Status: field(backend.ColumnStatus),
	}
}

func toTasks(items []item, cols backend.ColumnMap) []backend.Task {
	tasks := make([]backend.Task, len(items))
	for i, it := range items {
		tasks[i] = toTask(it, cols)
	}
	return tasks
}

// columnValues encodes the supplied fields as the JSON column_values
// argument. With create set, empty values are left out instead of cleared.
func columnValues(fields backend.TaskFields, cols backend.ColumnMap, create bool) (string, error) {
	values := make(map[string]interface{}, 4)

	if fields.Name != nil && !create {
		values["name"] = *fields.Name
	}
	if fields.Text != nil && (!create || *fields.Text != "") {
		values[cols[backend.ColumnDescription]] = *fields.Text
	}
	if fields.Status != nil {
		switch {
		case *fields.Status != "":
			values[cols[backend.ColumnStatus]] = map[string]string{"label": *fields.Status}
		case !create:
			values[cols[backend.ColumnStatus]] = nil
		}
	}
	if fields.Date != nil {
		switch {
		case *fields.Date != "":
			values[cols[backend.ColumnDate]] = map[string]string{"date": *fields.Date}
		case !create:
			values[cols[backend.ColumnDate]] = nil
		}
	}

	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode column values: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// Task Operations
// =============================================================================

// FetchAll returns the first page of board items
func (b *Backend) FetchAll(ctx context.Context) (*backend.Board, error) {
	cols, err := b.columns.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var result struct {
		Boards []board `json:"boards"`
	}
	vars := map[string]interface{}{
		"boardId": []string{b.config.BoardID},
		"limit":   b.pageSize,
	}
	if err := b.client.do(ctx, "items", itemsQuery, vars, &result); err != nil {
		return nil, err
	}
	if len(result.Boards) == 0 {
		return nil, b.schemaError("board not found")
	}

	brd := result.Boards[0]
	return &backend.Board{
		Name:    brd.Name,
		Tasks:   toTasks(brd.ItemsPage.Items, cols),
		Columns: cols,
	}, nil
}

// FilterByDate asks the board for items whose date column equals date
func (b *Backend) FilterByDate(ctx context.Context, date string) ([]backend.Task, error) {
	cols, err := b.columns.Require(ctx, backend.RequiredColumns...)
	if err != nil {
		return nil, err
	}

	var result struct {
		Page struct {
			Items []item `json:"items"`
		} `json:"items_page_by_column_values"`
	}
	vars := map[string]interface{}{
		"boardId":  b.config.BoardID,
		"columnId": cols[backend.ColumnDate],
		"date":     date,
		"limit":    b.pageSize,
	}
	if err := b.client.do(ctx, "filter", filterQuery, vars, &result); err != nil {
		return nil, err
	}
	if len(result.Page.Items) == 0 {
		return nil, &backend.NoResultsError{Backend: backend.KindMonday, Date: date}
	}

	return toTasks(result.Page.Items, cols), nil
}

// Create adds an item and returns its id
func (b *Backend) Create(ctx context.Context, fields backend.TaskFields) (string, error) {
	cols, err := b.columns.Require(ctx, backend.RequiredColumns...)
	if err != nil {
		return "", err
	}

	values, err := columnValues(fields, cols, true)
	if err != nil {
		return "", err
	}

	var result struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	vars := map[string]interface{}{
		"boardId": b.config.BoardID,
		"name":    backend.Value(fields.Name),
		"values":  values,
	}
	if err := b.client.do(ctx, "create", createMutation, vars, &result); err != nil {
		return "", err
	}
	if result.CreateItem.ID == "" {
		return "", fail(&backend.BackendError{
			Backend:  backend.KindMonday,
			Op:       "create",
			Messages: []string{"response carried no item id"},
		})
	}
	return result.CreateItem.ID, nil
}

// Update changes exactly the supplied fields, name included when given
func (b *Backend) Update(ctx context.Context, id string, fields backend.TaskFields) (*backend.Task, error) {
	cols, err := b.columns.Require(ctx, backend.RequiredColumns...)
	if err != nil {
		return nil, err
	}

	values, err := columnValues(fields, cols, false)
	if err != nil {
		return nil, err
	}

	var result struct {
		Item item `json:"change_multiple_column_values"`
	}
	vars := map[string]interface{}{
		"boardId": b.config.BoardID,
		"itemId":  id,
		"values":  values,
	}
	if err := b.client.do(ctx, "update", updateMutation, vars, &result); err != nil {
		return nil, err
	}

	if result.Item.ID == "" {
		result.Item.ID = id
	}
	task := toTask(result.Item, cols)
	return &task, nil
}

// Delete removes an item; an unknown id surfaces as a BackendError
func (b *Backend) Delete(ctx context.Context, id string) error {
	vars := map[string]interface{}{"itemId": id}
	return b.client.do(ctx, "delete", deleteMutation, vars, nil)
}

// FetchLabels returns the status column's labels in board order
func (b *Backend) FetchLabels(ctx context.Context) ([]backend.Label, error) {
	cols, err := b.columns.Require(ctx, backend.ColumnStatus)
	if err != nil {
		return nil, err
	}
	statusID := cols[backend.ColumnStatus]

	var result struct {
		Boards []board `json:"boards"`
	}
	vars := map[string]interface{}{
		"boardId":  []string{b.config.BoardID},
		"columnId": []string{statusID},
	}
	if err := b.client.do(ctx, "labels", labelsQuery, vars, &result); err != nil {
		return nil, err
	}
	if len(result.Boards) == 0 {
		return nil, b.schemaError("board not found")
	}

	for _, c := range result.Boards[0].Columns {
		if c.ID == statusID {
			labels, err := NormalizeLabels(c.SettingsStr)
			if err != nil {
				return nil, fail(fmt.Errorf("monday labels: %w", err))
			}
			return labels, nil
		}
	}
	return nil, b.schemaError("status column " + strings.TrimSpace(statusID) + " not returned")
}

// Verify interface compliance at compile time
var (
	_ backend.Backend           = (*Backend)(nil)
	_ backend.ColumnInvalidator = (*Backend)(nil)
)
