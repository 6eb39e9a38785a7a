// Package taskapi provides a backend implementation for the companion
// document-oriented tasks REST API.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"taskbridge/backend"
	"taskbridge/internal/utils"
)

const (
	// DefaultBaseURL is where the tasks API listens in development
	DefaultBaseURL = "http://localhost:8000"

	// BoardName is reported as the board name; the API has no board concept
	BoardName = "Tasks"
)

// Config holds tasks API connection settings
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // Override for testing
}

// ConfigFromEnv creates a Config from environment variables
func ConfigFromEnv() Config {
	return Config{
		BaseURL: os.Getenv("TASKBRIDGE_TASKAPI_URL"),
	}
}

// Backend implements backend.Backend over the tasks REST API
type Backend struct {
	config  Config
	client  *http.Client
	baseURL string
}

// New creates a new tasks API backend
func New(cfg Config) (*Backend, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid tasks API base URL %q: %w", cfg.BaseURL, err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = createHTTPClient(cfg.Timeout)
	}

	return &Backend{
		config:  cfg,
		client:  client,
		baseURL: baseURL,
	}, nil
}

// createHTTPClient creates an HTTP client; a zero timeout keeps the transport default
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// Kind identifies this backend
func (b *Backend) Kind() backend.Kind {
	return backend.KindTaskAPI
}

// Close closes the backend
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	b.client.CloseIdleConnections()
	return nil
}

// taskDoc is the native document shape. JSON null and absent fields
// decode to "".
type taskDoc struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status"`
}

func (d taskDoc) toTask() backend.Task {
	return backend.Task{
		ID:     d.ID,
		Name:   d.Name,
		Text:   d.Description,
		Date:   d.DueDate,
		Status: d.Status,
	}
}

// nativeFields translates canonical field names to the API's names,
// keeping only the fields the caller supplied.
func nativeFields(f backend.TaskFields) map[string]string {
	body := make(map[string]string, 4)
	if f.Name != nil {
		body["name"] = *f.Name
	}
	if f.Text != nil {
		body["description"] = *f.Text
	}
	if f.Date != nil {
		body["dueDate"] = *f.Date
	}
	if f.Status != nil {
		body["status"] = *f.Status
	}
	return body
}

// doRequest performs a JSON request and returns the raw response body.
// Any status outside 2xx and any error envelope become typed errors.
func (b *Backend) doRequest(ctx context.Context, op, method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("taskapi %s: encode request: %w", op, err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("taskapi %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	utils.Debugf("taskapi %s: %s %s", op, method, path)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, b.fail(&backend.TransportError{Backend: backend.KindTaskAPI, Op: op, Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	if err := backend.CheckStatus(backend.KindTaskAPI, op, resp); err != nil {
		return nil, b.fail(err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, b.fail(&backend.TransportError{Backend: backend.KindTaskAPI, Op: op, StatusCode: resp.StatusCode, Err: err})
	}

	if msgs := errorEnvelope(data); len(msgs) > 0 {
		return nil, b.fail(&backend.BackendError{Backend: backend.KindTaskAPI, Op: op, Messages: msgs})
	}

	return data, nil
}

// errorEnvelope extracts `detail` or `error` messages from a JSON object body.
func errorEnvelope(data []byte) []string {
	if !gjson.ValidBytes(data) {
		return nil
	}
	var msgs []string
	for _, key := range []string{"detail", "error"} {
		res := gjson.GetBytes(data, key)
		switch {
		case !res.Exists() || res.Type == gjson.Null:
		case res.IsArray():
			res.ForEach(func(_, v gjson.Result) bool {
				if m := v.Get("msg"); m.Exists() {
					msgs = append(msgs, m.String())
				} else {
					msgs = append(msgs, v.String())
				}
				return true
			})
		default:
			msgs = append(msgs, res.String())
		}
	}
	return msgs
}

func (b *Backend) fail(err error) error {
	utils.Errorf("%v", err)
	return err
}

func (b *Backend) decode(op string, data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return b.fail(fmt.Errorf("taskapi %s: decode response: %w", op, err))
	}
	return nil
}

// =============================================================================
// Task Operations
// =============================================================================

// FetchAll returns every task the API lists
func (b *Backend) FetchAll(ctx context.Context) (*backend.Board, error) {
	data, err := b.doRequest(ctx, "fetch", http.MethodGet, "/tasks", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Tasks []taskDoc `json:"tasks"`
	}
	if err := b.decode("fetch", data, &result); err != nil {
		return nil, err
	}

	return &backend.Board{Name: BoardName, Tasks: toTasks(result.Tasks)}, nil
}

// FilterByDate returns the tasks due on date, as filtered by the API
func (b *Backend) FilterByDate(ctx context.Context, date string) ([]backend.Task, error) {
	path := "/tasks/by-date/?date=" + url.QueryEscape(date)
	data, err := b.doRequest(ctx, "filter", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Tasks []taskDoc `json:"tasks"`
	}
	if err := b.decode("filter", data, &result); err != nil {
		return nil, err
	}
	if len(result.Tasks) == 0 {
		return nil, &backend.NoResultsError{Backend: backend.KindTaskAPI, Date: date}
	}

	return toTasks(result.Tasks), nil
}

// Create submits a new task and returns the id the API assigned
func (b *Backend) Create(ctx context.Context, fields backend.TaskFields) (string, error) {
	data, err := b.doRequest(ctx, "create", http.MethodPost, "/tasks/", nativeFields(fields))
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(data, "task_id")
	if !id.Exists() || id.String() == "" {
		return "", b.fail(&backend.BackendError{
			Backend:  backend.KindTaskAPI,
			Op:       "create",
			Messages: []string{"response carried no task_id"},
		})
	}
	return id.String(), nil
}

// Update sends exactly the supplied fields and returns the stored document
func (b *Backend) Update(ctx context.Context, id string, fields backend.TaskFields) (*backend.Task, error) {
	data, err := b.doRequest(ctx, "update", http.MethodPut, "/tasks/"+url.PathEscape(id), nativeFields(fields))
	if err != nil {
		return nil, err
	}

	var doc taskDoc
	if err := b.decode("update", data, &doc); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = id
	}

	task := doc.toTask()
	return &task, nil
}

// Delete removes a task; deleting an unknown id surfaces the API's error
func (b *Backend) Delete(ctx context.Context, id string) error {
	_, err := b.doRequest(ctx, "delete", http.MethodDelete, "/tasks/"+url.PathEscape(id), nil)
	return err
}

// FetchLabels returns the API's status values with their fixed colours
func (b *Backend) FetchLabels(ctx context.Context) ([]backend.Label, error) {
	data, err := b.doRequest(ctx, "labels", http.MethodGet, "/tasks/labels", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Labels []string `json:"labels"`
	}
	if err := b.decode("labels", data, &result); err != nil {
		return nil, err
	}

	return NormalizeLabels(result.Labels), nil
}

func toTasks(docs []taskDoc) []backend.Task {
	tasks := make([]backend.Task, len(docs))
	for i, d := range docs {
		tasks[i] = d.toTask()
	}
	return tasks
}

// Verify interface compliance at compile time
var _ backend.Backend = (*Backend)(nil)
