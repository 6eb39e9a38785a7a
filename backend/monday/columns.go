package monday

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"taskbridge/backend"
	"taskbridge/internal/utils"
)

// ColumnResolver caches the board's title -> column id mapping for one
// adapter instance. Concurrent callers on a cold cache share one schema query.
type ColumnResolver struct {
	boardID string
	fetch   func(ctx context.Context) (backend.ColumnMap, error)

	mu      sync.RWMutex
	columns backend.ColumnMap
	epoch   uint64
	group   singleflight.Group
	fetches atomic.Int64
}

// NewColumnResolver creates a resolver that loads the mapping with fetch.
func NewColumnResolver(boardID string, fetch func(ctx context.Context) (backend.ColumnMap, error)) *ColumnResolver {
	return &ColumnResolver{boardID: boardID, fetch: fetch}
}

// Resolve returns a copy of the cached mapping, loading it on first use.
func (r *ColumnResolver) Resolve(ctx context.Context) (backend.ColumnMap, error) {
	r.mu.RLock()
	if r.columns != nil {
		cols := r.columns.Clone()
		r.mu.RUnlock()
		return cols, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.group.Do("columns", func() (any, error) {
		r.mu.RLock()
		if r.columns != nil {
			cols := r.columns
			r.mu.RUnlock()
			return cols, nil
		}
		epoch := r.epoch
		r.mu.RUnlock()

		// Callers joining this flight must not fail with the first
		// caller's cancellation; the HTTP client timeout still applies.
		r.fetches.Add(1)
		cols, err := r.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		// An Invalidate during the query means the result belongs to a
		// session that no longer exists.
		if r.epoch == epoch {
			r.columns = cols
		}
		r.mu.Unlock()

		utils.Debugf("monday: resolved %d columns for board %s", len(cols), r.boardID)
		return cols, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(backend.ColumnMap).Clone(), nil
}

// Require resolves the mapping and checks that every key is present. A
// cached mapping missing a key is dropped and fetched again once.
func (r *ColumnResolver) Require(ctx context.Context, keys ...string) (backend.ColumnMap, error) {
	cols, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if cols.Has(keys...) {
		return cols, nil
	}

	r.Invalidate()
	cols, err = r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if missing := cols.Missing(keys...); len(missing) > 0 {
		return nil, fail(&backend.SchemaUnavailableError{
			Backend: backend.KindMonday,
			BoardID: r.boardID,
			Reason:  "missing columns: " + strings.Join(missing, ", "),
		})
	}
	return cols, nil
}

// Invalidate drops the cached mapping; the next call queries the schema.
func (r *ColumnResolver) Invalidate() {
	r.mu.Lock()
	r.columns = nil
	r.epoch++
	r.mu.Unlock()
	r.group.Forget("columns")
}

// Cached reports whether a mapping is held.
func (r *ColumnResolver) Cached() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.columns != nil
}

// Fetches returns how many schema queries were issued.
func (r *ColumnResolver) Fetches() int {
	return int(r.fetches.Load())
}

// buildColumnMap keys each column id by its lowercased title. A later
// column whose title collides with an earlier one wins.
func buildColumnMap(columns []column) backend.ColumnMap {
	cols := make(backend.ColumnMap, len(columns))
	for _, c := range columns {
		cols[strings.ToLower(c.Title)] = c.ID
	}
	return cols
}
