package meeting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
)

// Loader produces the full set of historical meeting records from the
// backing store. Load failure is a hard error surfaced to the caller.
type Loader interface {
	Load(ctx context.Context) ([]Meeting, error)
}

// Index is a read-only, in-memory view over historical meeting records.
// It is built once per process lifetime (or on explicit Refresh) and is safe
// for concurrent reads; loading is guarded and not re-entrant.
type Index struct {
	loader Loader

	mu       sync.RWMutex
	loading  bool
	loaded   bool
	byID     map[string]Meeting
	byRecent []Meeting // sorted by start descending
	loadedAt time.Time
}

// NewIndex creates an Index backed by the given loader. The index is empty
// until Load is called.
func NewIndex(loader Loader) *Index {
	return &Index{
		loader: loader,
		byID:   make(map[string]Meeting),
	}
}

// Load populates the index from the loader. Repeated calls after a
// successful load are no-ops; call Refresh to force a reload. A concurrent
// call during an in-flight load returns an error rather than re-entering
// the loader.
func (ix *Index) Load(ctx context.Context) error {
	ix.mu.Lock()
	if ix.loaded {
		ix.mu.Unlock()
		return nil
	}
	if ix.loading {
		ix.mu.Unlock()
		return fmt.Errorf("meeting index load already in progress")
	}
	ix.loading = true
	ix.mu.Unlock()

	return ix.reload(ctx)
}

// Refresh forces a reload from the loader, replacing the current view.
func (ix *Index) Refresh(ctx context.Context) error {
	ix.mu.Lock()
	if ix.loading {
		ix.mu.Unlock()
		return fmt.Errorf("meeting index load already in progress")
	}
	ix.loading = true
	ix.mu.Unlock()

	return ix.reload(ctx)
}

func (ix *Index) reload(ctx context.Context) error {
	meetings, err := ix.loader.Load(ctx)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.loading = false
	if err != nil {
		return fmt.Errorf("%w: %v", gmerrors.ErrSourceUnavailable, err)
	}

	byID := make(map[string]Meeting, len(meetings))
	byRecent := make([]Meeting, 0, len(meetings))
	for _, m := range meetings {
		if m.ID == "" {
			continue
		}
		m.Source = SourceHistorical
		byID[m.ID] = m
		byRecent = append(byRecent, m)
	}
	sort.Slice(byRecent, func(i, j int) bool {
		return byRecent[i].Start.After(byRecent[j].Start)
	})

	ix.byID = byID
	ix.byRecent = byRecent
	ix.loaded = true
	ix.loadedAt = time.Now()
	return nil
}

// Loaded reports whether the index has been populated.
func (ix *Index) Loaded() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loaded
}

// LoadedAt returns when the index was last populated.
func (ix *Index) LoadedAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loadedAt
}

// Len returns the number of indexed meetings.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byRecent)
}

// Get returns the meeting with the given id.
func (ix *Index) Get(id string) (Meeting, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m, ok := ix.byID[id]
	if !ok {
		return Meeting{}, fmt.Errorf("meeting %q: %w", id, gmerrors.ErrNotFound)
	}
	return m, nil
}

// All returns every indexed meeting, most recent first. The returned slice
// is shared and must be treated as read-only.
func (ix *Index) All() []Meeting {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.byRecent
}

// MostRecent returns up to n meetings, most recent first.
func (ix *Index) MostRecent(n int) []Meeting {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if n > len(ix.byRecent) {
		n = len(ix.byRecent)
	}
	out := make([]Meeting, n)
	copy(out, ix.byRecent[:n])
	return out
}
