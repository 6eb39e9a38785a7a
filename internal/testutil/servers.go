// Package testutil provides fake backend servers shared by tests across packages.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Tasks REST API Fake
// =============================================================================

// TaskDoc is a task as stored by the fake tasks API.
type TaskDoc struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Status      *string `json:"status"`
}

// TaskAPIServer simulates the document-oriented tasks REST API.
type TaskAPIServer struct {
	server     *httptest.Server
	mu         sync.Mutex
	tasks      []*TaskDoc
	labels     []string
	nextID     int
	failStatus int
	envelope   string
	requestLog []string
	bodies     []map[string]interface{}
}

// NewTaskAPIServer starts a fake tasks API that is closed when the test ends.
func NewTaskAPIServer(t *testing.T) *TaskAPIServer {
	t.Helper()
	s := &TaskAPIServer{
		labels: []string{"Pending", "In Progress", "Completed", ""},
		nextID: 1,
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	t.Cleanup(s.server.Close)
	return s
}

func (s *TaskAPIServer) URL() string {
	return s.server.URL
}

// AddTask stores a task; empty optional fields are stored as null.
func (s *TaskAPIServer) AddTask(id, name, description, dueDate, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &TaskDoc{
		ID:          id,
		Name:        name,
		Description: nullable(description),
		DueDate:     nullable(dueDate),
		Status:      nullable(status),
	})
}

// SetLabels replaces the status list the API reports.
func (s *TaskAPIServer) SetLabels(labels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = labels
}

// FailWith makes every request answer with status; 0 restores normal service.
func (s *TaskAPIServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// SetEnvelopeError makes every request answer 200 with a detail message; "" clears it.
func (s *TaskAPIServer) SetEnvelopeError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelope = msg
}

// RequestLog returns "METHOD path" for every request received.
func (s *TaskAPIServer) RequestLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.requestLog...)
}

// LastBody returns the decoded JSON body of the most recent write request.
func (s *TaskAPIServer) LastBody() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bodies) == 0 {
		return nil
	}
	return s.bodies[len(s.bodies)-1]
}

// Task returns a copy of the stored task, or nil.
func (s *TaskAPIServer) Task(id string) *TaskDoc {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			cp := *t
			return &cp
		}
	}
	return nil
}

// TaskCount returns the number of stored tasks.
func (s *TaskAPIServer) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *TaskAPIServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestLog = append(s.requestLog, r.Method+" "+r.URL.Path)

	if s.failStatus != 0 {
		w.WriteHeader(s.failStatus)
		return
	}
	if s.envelope != "" {
		writeJSON(w, http.StatusOK, map[string]string{"detail": s.envelope})
		return
	}

	path := r.URL.Path
	switch {
	case path == "/tasks" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": s.tasks})
	case path == "/tasks/labels" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"labels": s.labels})
	case path == "/tasks/by-date/" && r.Method == http.MethodGet:
		s.handleByDate(w, r.URL.Query().Get("date"))
	case path == "/tasks/" && r.Method == http.MethodPost:
		s.handleCreate(w, r)
	case strings.HasPrefix(path, "/tasks/") && r.Method == http.MethodPut:
		s.handleUpdate(w, r, strings.TrimPrefix(path, "/tasks/"))
	case strings.HasPrefix(path, "/tasks/") && r.Method == http.MethodDelete:
		s.handleDelete(w, strings.TrimPrefix(path, "/tasks/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *TaskAPIServer) handleByDate(w http.ResponseWriter, date string) {
	matches := []*TaskDoc{}
	for _, t := range s.tasks {
		if t.DueDate != nil && *t.DueDate == date {
			matches = append(matches, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": matches})
}

func (s *TaskAPIServer) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return nil, false
	}
	s.bodies = append(s.bodies, body)
	return body, true
}

func (s *TaskAPIServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	name, _ := body["name"].(string)
	if name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "name is required"})
		return
	}

	doc := &TaskDoc{ID: "t" + strconv.Itoa(s.nextID), Name: name}
	s.nextID++
	applyDocFields(doc, body)
	s.tasks = append(s.tasks, doc)

	writeJSON(w, http.StatusOK, map[string]string{"task_id": doc.ID})
}

func (s *TaskAPIServer) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	body, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	for _, t := range s.tasks {
		if t.ID == id {
			applyDocFields(t, body)
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Task not found"})
}

func (s *TaskAPIServer) handleDelete(w http.ResponseWriter, id string) {
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Task not found"})
}

func applyDocFields(doc *TaskDoc, body map[string]interface{}) {
	if v, ok := body["name"].(string); ok {
		doc.Name = v
	}
	if v, ok := body["description"].(string); ok {
		doc.Description = &v
	}
	if v, ok := body["dueDate"].(string); ok {
		doc.DueDate = &v
	}
	if v, ok := body["status"].(string); ok {
		doc.Status = &v
	}
}

// =============================================================================
// Column Board GraphQL Fake
// =============================================================================

// MondayColumn is a board column of the fake GraphQL API.
type MondayColumn struct {
	ID          string
	Title       string
	SettingsStr string
}

// MondayItem is a board item; Values maps column id to its text.
type MondayItem struct {
	ID     string
	Name   string
	Values map[string]string
}

// MondayServer simulates the column-oriented GraphQL board API.
type MondayServer struct {
	server    *httptest.Server
	mu        sync.Mutex
	token     string
	boardID   string
	boardName string
	columns   []MondayColumn
	items     []*MondayItem
	nextID    int

	failStatus  int
	gqlErrors   map[string]string
	requestLog  []string
	variables   []map[string]interface{}
	apiVersions []string
}

// DefaultStatusSettings is the settings_str of the default status column.
const DefaultStatusSettings = `{"labels":{"0":"Working on it","1":"Done","2":"Stuck","5":""},` +
	`"labels_colors":{"0":{"color":"#fdab3d","border":"#e99729","var_name":"orange"},` +
	`"1":{"color":"#00c875","border":"#00b461","var_name":"green-shadow"},` +
	`"2":{"color":"#df2f4a","border":"#ce3048","var_name":"red-shadow"},` +
	`"5":{"color":"#c4c4c4","border":"#b0b0b0","var_name":"grey"}}}`

// NewMondayServer starts a fake board API with a default board holding
// Text, Date and Status columns. It is closed when the test ends.
func NewMondayServer(t *testing.T, token, boardID string) *MondayServer {
	t.Helper()
	s := &MondayServer{
		token:     token,
		boardID:   boardID,
		boardName: "Sprint Board",
		columns: []MondayColumn{
			{ID: "text0", Title: "Description"},
			{ID: "date4", Title: "Date"},
			{ID: "status", Title: "Status", SettingsStr: DefaultStatusSettings},
		},
		nextID:    100,
		gqlErrors: make(map[string]string),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	t.Cleanup(s.server.Close)
	return s
}

func (s *MondayServer) URL() string {
	return s.server.URL
}

// SetColumns replaces the board's columns.
func (s *MondayServer) SetColumns(columns []MondayColumn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = columns
}

// SetBoardName renames the board.
func (s *MondayServer) SetBoardName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boardName = name
}

// AddItem stores an item with the given column texts keyed by column id.
func (s *MondayServer) AddItem(id, name string, values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if values == nil {
		values = make(map[string]string)
	}
	s.items = append(s.items, &MondayItem{ID: id, Name: name, Values: values})
}

// Item returns a copy of the stored item, or nil.
func (s *MondayServer) Item(id string) *MondayItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			cp := *it
			cp.Values = make(map[string]string, len(it.Values))
			for k, v := range it.Values {
				cp.Values[k] = v
			}
			return &cp
		}
	}
	return nil
}

// ItemCount returns the number of stored items.
func (s *MondayServer) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// FailWith makes every request answer with status; 0 restores normal service.
func (s *MondayServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// SetGraphQLError makes the named operation answer 200 with an errors array.
// An empty message clears it.
func (s *MondayServer) SetGraphQLError(op, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == "" {
		delete(s.gqlErrors, op)
		return
	}
	s.gqlErrors[op] = msg
}

// RequestLog returns the operation name of every request received:
// columns, items, filter, create, update, delete or labels.
func (s *MondayServer) RequestLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.requestLog...)
}

// CountOps returns how many requests of op were received.
func (s *MondayServer) CountOps(op string) int {
	n := 0
	for _, got := range s.RequestLog() {
		if got == op {
			n++
		}
	}
	return n
}

// LastVariables returns the variables of the most recent request.
func (s *MondayServer) LastVariables() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.variables) == 0 {
		return nil
	}
	return s.variables[len(s.variables)-1]
}

// APIVersions returns the API-Version header of every request.
func (s *MondayServer) APIVersions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.apiVersions...)
}

func classifyQuery(query string) string {
	switch {
	case strings.Contains(query, "delete_item"):
		return "delete"
	case strings.Contains(query, "change_multiple_column_values"):
		return "update"
	case strings.Contains(query, "create_item"):
		return "create"
	case strings.Contains(query, "items_page_by_column_values"):
		return "filter"
	case strings.Contains(query, "items_page"):
		return "items"
	case strings.Contains(query, "settings_str"):
		return "labels"
	case strings.Contains(query, "columns"):
		return "columns"
	}
	return "unknown"
}

func (s *MondayServer) handler(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+s.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	op := classifyQuery(req.Query)
	s.requestLog = append(s.requestLog, op)
	s.variables = append(s.variables, req.Variables)
	s.apiVersions = append(s.apiVersions, r.Header.Get("API-Version"))

	if s.failStatus != 0 {
		w.WriteHeader(s.failStatus)
		return
	}
	if msg, ok := s.gqlErrors[op]; ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"errors": []map[string]string{{"message": msg}},
		})
		return
	}

	var data interface{}
	switch op {
	case "columns":
		data = s.boards(func(b map[string]interface{}) {
			b["name"] = s.boardName
			b["columns"] = s.columnList(nil)
		}, req.Variables)
	case "labels":
		ids := stringList(req.Variables["columnId"])
		data = s.boards(func(b map[string]interface{}) {
			b["columns"] = s.columnList(ids)
		}, req.Variables)
	case "items":
		data = s.boards(func(b map[string]interface{}) {
			b["name"] = s.boardName
			b["items_page"] = map[string]interface{}{"items": s.itemList(s.items)}
		}, req.Variables)
	case "filter":
		data = s.filter(req.Variables)
	case "create":
		data = s.create(req.Variables)
	case "update":
		upd, ok := s.update(req.Variables)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"errors": []map[string]string{{"message": "Item not found"}},
			})
			return
		}
		data = upd
	case "delete":
		del, ok := s.delete(req.Variables)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"errors": []map[string]string{{"message": "Item not found"}},
			})
			return
		}
		data = del
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

func (s *MondayServer) boards(fill func(map[string]interface{}), vars map[string]interface{}) map[string]interface{} {
	ids := stringList(vars["boardId"])
	boards := []map[string]interface{}{}
	for _, id := range ids {
		if id == s.boardID {
			b := map[string]interface{}{}
			fill(b)
			boards = append(boards, b)
		}
	}
	return map[string]interface{}{"boards": boards}
}

func (s *MondayServer) columnList(ids []string) []map[string]interface{} {
	cols := []map[string]interface{}{}
	for _, c := range s.columns {
		if ids != nil && !contains(ids, c.ID) {
			continue
		}
		col := map[string]interface{}{"id": c.ID, "title": c.Title}
		if ids != nil {
			col["settings_str"] = c.SettingsStr
		}
		cols = append(cols, col)
	}
	return cols
}

func (s *MondayServer) itemJSON(it *MondayItem) map[string]interface{} {
	values := []map[string]interface{}{}
	for _, c := range s.columns {
		var text interface{}
		if v, ok := it.Values[c.ID]; ok && v != "" {
			text = v
		}
		values = append(values, map[string]interface{}{"id": c.ID, "text": text})
	}
	return map[string]interface{}{"id": it.ID, "name": it.Name, "column_values": values}
}

func (s *MondayServer) itemList(items []*MondayItem) []map[string]interface{} {
	out := []map[string]interface{}{}
	for _, it := range items {
		out = append(out, s.itemJSON(it))
	}
	return out
}

func (s *MondayServer) filter(vars map[string]interface{}) map[string]interface{} {
	colID, _ := vars["columnId"].(string)
	date, _ := vars["date"].(string)
	var matches []*MondayItem
	for _, it := range s.items {
		if it.Values[colID] == date {
			matches = append(matches, it)
		}
	}
	return map[string]interface{}{
		"items_page_by_column_values": map[string]interface{}{"items": s.itemList(matches)},
	}
}

func (s *MondayServer) create(vars map[string]interface{}) map[string]interface{} {
	name, _ := vars["name"].(string)
	it := &MondayItem{ID: strconv.Itoa(s.nextID), Name: name, Values: make(map[string]string)}
	s.nextID++
	applyColumnValues(it, vars["values"])
	s.items = append(s.items, it)
	return map[string]interface{}{"create_item": map[string]string{"id": it.ID}}
}

func (s *MondayServer) update(vars map[string]interface{}) (map[string]interface{}, bool) {
	id := fmt.Sprint(vars["itemId"])
	for _, it := range s.items {
		if it.ID == id {
			applyColumnValues(it, vars["values"])
			return map[string]interface{}{"change_multiple_column_values": s.itemJSON(it)}, true
		}
	}
	return nil, false
}

func (s *MondayServer) delete(vars map[string]interface{}) (map[string]interface{}, bool) {
	id := fmt.Sprint(vars["itemId"])
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return map[string]interface{}{"delete_item": map[string]string{"id": id}}, true
		}
	}
	return nil, false
}

// applyColumnValues applies a JSON-encoded column_values string to an item.
func applyColumnValues(it *MondayItem, raw interface{}) {
	str, ok := raw.(string)
	if !ok || str == "" {
		return
	}
	var values map[string]interface{}
	if err := json.Unmarshal([]byte(str), &values); err != nil {
		return
	}
	for key, v := range values {
		switch val := v.(type) {
		case string:
			if key == "name" {
				it.Name = val
			} else {
				it.Values[key] = val
			}
		case map[string]interface{}:
			if label, ok := val["label"].(string); ok {
				it.Values[key] = label
			}
			if date, ok := val["date"].(string); ok {
				it.Values[key] = date
			}
		case nil:
			delete(it.Values, key)
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringList(v interface{}) []string {
	switch val := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, x := range val {
			out = append(out, fmt.Sprint(x))
		}
		return out
	case string:
		return []string{val}
	case float64:
		return []string{strconv.FormatFloat(val, 'f', -1, 64)}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
