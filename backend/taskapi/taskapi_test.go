package taskapi

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"taskbridge/backend"
	"taskbridge/internal/testutil"
)

func newTestBackend(t *testing.T, srv *testutil.TaskAPIServer) *Backend {
	t.Helper()
	be, err := New(Config{BaseURL: srv.URL()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = be.Close() })
	return be
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewDefaultsBaseURL(t *testing.T) {
	be, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if be.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", be.baseURL, DefaultBaseURL)
	}
	if be.Kind() != backend.KindTaskAPI {
		t.Errorf("Kind() = %q, want %q", be.Kind(), backend.KindTaskAPI)
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	be, err := New(Config{BaseURL: "http://tasks.local:9000/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if be.baseURL != "http://tasks.local:9000" {
		t.Errorf("baseURL = %q", be.baseURL)
	}
}

func TestNewRejectsInvalidURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "not a url"}); err == nil {
		t.Error("New() with invalid URL should fail")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TASKBRIDGE_TASKAPI_URL", "http://example.test")
	cfg := ConfigFromEnv()
	if cfg.BaseURL != "http://example.test" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}

type idleCountingTransport struct {
	http.RoundTripper
	closed int
}

func (t *idleCountingTransport) CloseIdleConnections() { t.closed++ }

func TestCloseReleasesIdleConnections(t *testing.T) {
	transport := &idleCountingTransport{RoundTripper: http.DefaultTransport}
	be, err := New(Config{HTTPClient: &http.Client{Transport: transport}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := be.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if transport.closed != 1 {
		t.Errorf("CloseIdleConnections calls = %d, want 1", transport.closed)
	}
}

// =============================================================================
// Fetch Tests
// =============================================================================

func TestFetchAllMapsNativeFields(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	srv.AddTask("a1", "Write report", "Quarterly numbers", "2024-05-01", "Pending")
	srv.AddTask("a2", "Call Bob", "", "", "")
	be := newTestBackend(t, srv)

	board, err := be.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if board.Name != BoardName {
		t.Errorf("board name = %q, want %q", board.Name, BoardName)
	}
	if board.Columns != nil {
		t.Errorf("Columns should be nil for fixed-field backend, got %v", board.Columns)
	}

	want := []backend.Task{
		{ID: "a1", Name: "Write report", Text: "Quarterly numbers", Date: "2024-05-01", Status: "Pending"},
		{ID: "a2", Name: "Call Bob"},
	}
	if !reflect.DeepEqual(board.Tasks, want) {
		t.Errorf("tasks = %+v, want %+v", board.Tasks, want)
	}
}

func TestFetchAllTransportError(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	srv.FailWith(http.StatusInternalServerError)
	be := newTestBackend(t, srv)

	_, err := be.FetchAll(context.Background())
	var te *backend.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", te.StatusCode)
	}
}

func TestFetchAllEnvelopeError(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	srv.SetEnvelopeError("database offline")
	be := newTestBackend(t, srv)

	_, err := be.FetchAll(context.Background())
	var be2 *backend.BackendError
	if !errors.As(err, &be2) {
		t.Fatalf("expected *BackendError, got %T: %v", err, err)
	}
	if len(be2.Messages) != 1 || be2.Messages[0] != "database offline" {
		t.Errorf("Messages = %v", be2.Messages)
	}
}

func TestFetchAllUnreachable(t *testing.T) {
	be, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = be.FetchAll(context.Background())
	var te *backend.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for network failure", te.StatusCode)
	}
}

// =============================================================================
// Filter Tests
// =============================================================================

func TestFilterByDate(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	srv.AddTask("a1", "One", "", "2024-05-01", "")
	srv.AddTask("a2", "Two", "", "2024-05-02", "")
	srv.AddTask("a3", "Three", "", "2024-05-01", "Completed")
	be := newTestBackend(t, srv)

	tasks, err := be.FilterByDate(context.Background(), "2024-05-01")
	if err != nil {
		t.Fatalf("FilterByDate() error = %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "a1" || tasks[1].ID != "a3" {
		t.Errorf("tasks = %+v, want a1 and a3", tasks)
	}

	log := srv.RequestLog()
	if log[len(log)-1] != "GET /tasks/by-date/" {
		t.Errorf("last request = %q", log[len(log)-1])
	}
}

func TestFilterByDateNoResults(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	srv.AddTask("a1", "One", "", "2024-05-01", "")
	be := newTestBackend(t, srv)

	_, err := be.FilterByDate(context.Background(), "2030-01-01")
	if !backend.IsNoResults(err) {
		t.Fatalf("expected NoResultsError, got %T: %v", err, err)
	}
}

// =============================================================================
// Mutation Tests
// =============================================================================

func TestCreateSendsSuppliedFields(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	be := newTestBackend(t, srv)

	id, err := be.Create(context.Background(), backend.TaskFields{
		Name:   backend.String("Write report"),
		Date:   backend.String("2024-05-01"),
		Status: backend.String("Pending"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("Create() returned empty id")
	}

	body := srv.LastBody()
	want := map[string]interface{}{"name": "Write report", "dueDate": "2024-05-01", "status": "Pending"}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("request body = %v, want %v", body, want)
	}

	stored := srv.Task(id)
	if stored == nil || stored.Name != "Write report" {
		t.Errorf("stored task = %+v", stored)
	}
}

func TestCreateRejectedByAPI(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	be := newTestBackend(t, srv)

	_, err := be.Create(context.Background(), backend.TaskFields{Text: backend.String("no name")})
	if !backend.IsTransport(err) {
		t.Fatalf("expected TransportError for 422, got %T: %v", err, err)
	}
	if srv.TaskCount() != 0 {
		t.Error("no task should be stored")
	}
}

func TestUpdateSendsOnlySuppliedFields(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	srv.AddTask("a1", "Write report", "draft", "2024-05-01", "Pending")
	be := newTestBackend(t, srv)

	task, err := be.Update(context.Background(), "a1", backend.TaskFields{Status: backend.String("Completed")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	body := srv.LastBody()
	if len(body) != 1 || body["status"] != "Completed" {
		t.Errorf("request body = %v, want only status", body)
	}

	want := backend.Task{ID: "a1", Name: "Write report", Text: "draft", Date: "2024-05-01", Status: "Completed"}
	if *task != want {
		t.Errorf("task = %+v, want %+v", *task, want)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	be := newTestBackend(t, srv)

	_, err := be.Update(context.Background(), "missing", backend.TaskFields{Name: backend.String("x")})
	var te *backend.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 TransportError, got %T: %v", err, err)
	}
}

func TestDelete(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	srv.AddTask("a1", "One", "", "", "")
	be := newTestBackend(t, srv)

	if err := be.Delete(context.Background(), "a1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if srv.TaskCount() != 0 {
		t.Error("task should be removed")
	}

	if err := be.Delete(context.Background(), "a1"); !backend.IsTransport(err) {
		t.Errorf("second Delete() should be a TransportError, got %v", err)
	}
}

// =============================================================================
// Label Tests
// =============================================================================

func TestFetchLabels(t *testing.T) {
	srv := testutil.NewTaskAPIServer(t)
	be := newTestBackend(t, srv)

	labels, err := be.FetchLabels(context.Background())
	if err != nil {
		t.Fatalf("FetchLabels() error = %v", err)
	}

	names := backend.LabelNames(labels)
	want := []string{"Pending", "In Progress", "Completed", ""}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("labels = %v, want %v", names, want)
	}
}

func TestNormalizeLabels(t *testing.T) {
	labels := NormalizeLabels([]string{"Pending", "In Progress", "Completed", "", "Blocked"})

	tests := []struct {
		label string
		token string
		hex   string
	}{
		{"Pending", "orange", "#fdab3d"},
		{"In Progress", "yellow", "#ffcc00"},
		{"Completed", "green-shadow", "#00c875"},
		{"", "grey", "#c4c4c4"},
		{"Blocked", "grey", "#c4c4c4"},
	}

	if len(labels) != len(tests) {
		t.Fatalf("got %d labels, want %d", len(labels), len(tests))
	}
	for i, tt := range tests {
		if labels[i].Label != tt.label {
			t.Errorf("labels[%d].Label = %q, want %q", i, labels[i].Label, tt.label)
		}
		if labels[i].Color.Token != tt.token || labels[i].Color.Hex != tt.hex {
			t.Errorf("labels[%d].Color = %+v, want token %q hex %q", i, labels[i].Color, tt.token, tt.hex)
		}
	}
}

func TestNormalizeLabelsEmpty(t *testing.T) {
	if got := NormalizeLabels(nil); len(got) != 0 {
		t.Errorf("NormalizeLabels(nil) = %v, want empty", got)
	}
}
