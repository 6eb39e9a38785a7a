package monday

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskbridge/backend"
)

func TestBuildColumnMapLowercasesTitles(t *testing.T) {
	cols := buildColumnMap([]column{
		{ID: "text0", Title: "Description"},
		{ID: "date4", Title: "DATE"},
		{ID: "status", Title: "Status"},
	})

	want := backend.ColumnMap{"description": "text0", "date": "date4", "status": "status"}
	if len(cols) != len(want) {
		t.Fatalf("cols = %v, want %v", cols, want)
	}
	for k, v := range want {
		if cols[k] != v {
			t.Errorf("cols[%q] = %q, want %q", k, cols[k], v)
		}
	}
}

func TestBuildColumnMapLaterDuplicateWins(t *testing.T) {
	cols := buildColumnMap([]column{
		{ID: "status", Title: "Status"},
		{ID: "status_1", Title: "status"},
	})
	if cols["status"] != "status_1" {
		t.Errorf("cols[status] = %q, want status_1", cols["status"])
	}
}

func staticFetch(cols backend.ColumnMap, calls *atomic.Int32) func(context.Context) (backend.ColumnMap, error) {
	return func(context.Context) (backend.ColumnMap, error) {
		calls.Add(1)
		return cols.Clone(), nil
	}
}

func TestResolverCachesAfterFirstFetch(t *testing.T) {
	var calls atomic.Int32
	r := NewColumnResolver("1", staticFetch(backend.ColumnMap{"date": "d"}, &calls))

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background()); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	if calls.Load() != 1 || r.Fetches() != 1 {
		t.Errorf("fetch calls = %d (Fetches %d), want 1", calls.Load(), r.Fetches())
	}
	if !r.Cached() {
		t.Error("Cached() should be true after a successful resolve")
	}
}

func TestResolverReturnsCopies(t *testing.T) {
	var calls atomic.Int32
	r := NewColumnResolver("1", staticFetch(backend.ColumnMap{"date": "d"}, &calls))

	cols, _ := r.Resolve(context.Background())
	cols["date"] = "mutated"

	again, _ := r.Resolve(context.Background())
	if again["date"] != "d" {
		t.Errorf("cached map was mutated through a returned copy: %v", again)
	}
}

func TestResolverCoalescesConcurrentCallers(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewColumnResolver("1", func(context.Context) (backend.ColumnMap, error) {
		calls.Add(1)
		<-release
		return backend.ColumnMap{"date": "d"}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background()); err != nil {
				t.Errorf("Resolve() error = %v", err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", calls.Load())
	}
}

func TestResolverErrorIsNotCached(t *testing.T) {
	fails := true
	r := NewColumnResolver("1", func(context.Context) (backend.ColumnMap, error) {
		if fails {
			return nil, &backend.SchemaUnavailableError{Backend: backend.KindMonday, BoardID: "1", Reason: "board not found"}
		}
		return backend.ColumnMap{"date": "d"}, nil
	})

	_, err := r.Resolve(context.Background())
	if !backend.IsSchemaUnavailable(err) {
		t.Fatalf("err = %v, want SchemaUnavailableError", err)
	}
	if r.Cached() {
		t.Fatal("failed resolve should cache nothing")
	}

	fails = false
	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
}

func TestResolverInvalidateForcesRefetch(t *testing.T) {
	var calls atomic.Int32
	r := NewColumnResolver("1", staticFetch(backend.ColumnMap{"date": "d"}, &calls))

	_, _ = r.Resolve(context.Background())
	r.Invalidate()
	if r.Cached() {
		t.Fatal("Cached() should be false after Invalidate")
	}
	_, _ = r.Resolve(context.Background())

	if calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", calls.Load())
	}
}

func TestResolverDiscardsResultAfterInvalidate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	r := NewColumnResolver("1", func(context.Context) (backend.ColumnMap, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return backend.ColumnMap{"date": "stale"}, nil
		}
		return backend.ColumnMap{"date": "fresh"}, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Resolve(context.Background())
	}()

	<-started
	r.Invalidate()
	close(release)
	<-done

	if r.Cached() {
		t.Fatal("a result from before Invalidate must not be cached")
	}
	cols, _ := r.Resolve(context.Background())
	if cols["date"] != "fresh" {
		t.Errorf("cols[date] = %q, want fresh", cols["date"])
	}
}

func TestRequireRefetchesOnceWhenKeyMissing(t *testing.T) {
	var calls atomic.Int32
	r := NewColumnResolver("1", func(context.Context) (backend.ColumnMap, error) {
		if calls.Add(1) == 1 {
			return backend.ColumnMap{"date": "d"}, nil
		}
		return backend.ColumnMap{"date": "d", "status": "s", "description": "t"}, nil
	})

	_, _ = r.Resolve(context.Background())
	cols, err := r.Require(context.Background(), backend.RequiredColumns...)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if cols["status"] != "s" {
		t.Errorf("cols = %v", cols)
	}
	if calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", calls.Load())
	}
}

func TestRequireStillMissing(t *testing.T) {
	var calls atomic.Int32
	r := NewColumnResolver("42", staticFetch(backend.ColumnMap{"date": "d"}, &calls))

	_, err := r.Require(context.Background(), backend.ColumnStatus, backend.ColumnDescription)

	var schemaErr *backend.SchemaUnavailableError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaUnavailableError", err)
	}
	if schemaErr.BoardID != "42" || schemaErr.Reason != "missing columns: status, description" {
		t.Errorf("err = %+v", schemaErr)
	}
	if calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2 (initial + one retry)", calls.Load())
	}
}

func TestResolverSharedFetchSurvivesFirstCallerCancel(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	r := NewColumnResolver("1", func(ctx context.Context) (backend.ColumnMap, error) {
		calls.Add(1)
		close(started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return backend.ColumnMap{"date": "d"}, nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = r.Resolve(ctx)
	}()
	<-started

	secondErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background())
		secondErr <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-firstDone

	if err := <-secondErr; err != nil {
		t.Fatalf("joined Resolve() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", calls.Load())
	}
	if !r.Cached() {
		t.Error("mapping should be cached after the shared fetch")
	}
}
