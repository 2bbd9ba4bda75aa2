// Package classify assigns category tags to meetings through a tiered
// cache: persisted records first, then local heuristic rules, then a
// remote model. Results persist across runs so the expensive tier runs
// at most once per meeting.
package classify

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

const (
	// defaultRemoteTimeout bounds a single synchronous remote
	// classification inside an interactive call.
	defaultRemoteTimeout = 15 * time.Second

	// defaultSyncBudget caps how many meetings one interactive call
	// classifies synchronously; the rest of a cold backlog fills in
	// the background.
	defaultSyncBudget = 20
)

// Cache is the tiered classification cache. All methods are safe for
// concurrent use.
type Cache struct {
	store     Store
	heuristic *Heuristic
	remote    RemoteClassifier // nil when no remote classifier configured
	logger    logging.Logger

	remoteTimeout time.Duration
	syncBudget    int

	mu      sync.RWMutex
	records map[string]Record

	inflight singleflight.Group
	queue    *fillQueue

	onResolved func(tier Tier, ok bool)
	onDepth    func(n int)
}

// Option configures the cache.
type Option func(*Cache)

// WithRemote sets the remote classification tier. Without it the cache
// resolves from persisted records and heuristics only.
func WithRemote(remote RemoteClassifier) Option {
	return func(c *Cache) { c.remote = remote }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithRemoteTimeout bounds each synchronous remote call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.remoteTimeout = d
		}
	}
}

// WithSyncBudget caps synchronous classifications per batch call.
func WithSyncBudget(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.syncBudget = n
		}
	}
}

// WithResolutionHook registers a callback invoked after each
// classification attempt, keyed by tier and success. Used for metrics.
func WithResolutionHook(hook func(tier Tier, ok bool)) Option {
	return func(c *Cache) { c.onResolved = hook }
}

// WithDepthHook registers a callback invoked when the background queue
// depth changes. Used for metrics.
func WithDepthHook(hook func(n int)) Option {
	return func(c *Cache) { c.onDepth = hook }
}

// New creates a classification cache backed by store, loading any
// previously persisted records.
func New(ctx context.Context, store Store, heuristic *Heuristic, opts ...Option) (*Cache, error) {
	c := &Cache{
		store:         store,
		heuristic:     heuristic,
		logger:        logging.NewNopLogger(),
		remoteTimeout: defaultRemoteTimeout,
		syncBudget:    defaultSyncBudget,
		onResolved:    func(Tier, bool) {},
	}
	for _, opt := range opts {
		opt(c)
	}

	records, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.records = records
	c.logger.Debug("classification cache loaded", logging.F("records", len(records)))

	// Background fills go through Classify so they share the
	// single-flight slot with interactive callers; a meeting being
	// classified in the foreground is never classified twice.
	c.queue = newFillQueue(defaultQueueWorkers, defaultQueueCapacity, func(ctx context.Context, m meeting.Meeting) {
		if _, err := c.Classify(ctx, m); err != nil {
			c.logger.Debug("background classification unresolved",
				logging.F("meeting_id", m.ID), logging.Err(err))
		}
	}, c.logger, func(n int) {
		if c.onDepth != nil {
			c.onDepth(n)
		}
	})

	return c, nil
}

// Close stops background work and releases the store.
func (c *Cache) Close() error {
	c.queue.Stop()
	return c.store.Close()
}

// Lookup returns the cached record for a meeting ID without triggering
// any classification.
func (c *Cache) Lookup(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Classify resolves categories for one meeting. Cached records return
// immediately; otherwise the heuristic tier runs, then the remote tier.
// Concurrent calls for the same meeting share one computation.
//
// When every tier fails the returned record is unresolved, nothing is
// persisted, and the error wraps ErrClassificationUnavailable; callers
// treat that as a degraded result, not a failure.
func (c *Cache) Classify(ctx context.Context, m meeting.Meeting) (Record, error) {
	if rec, ok := c.Lookup(m.ID); ok && rec.Resolved() {
		return rec, nil
	}

	v, err, _ := c.inflight.Do(m.ID, func() (interface{}, error) {
		return c.classifyMiss(ctx, m)
	})
	rec, ok := v.(Record)
	if !ok {
		rec = Record{MeetingID: m.ID, Tier: TierUnresolved}
	}
	return rec, err
}

// classifyMiss runs the heuristic then remote tiers. Callers hold the
// single-flight slot for m.ID.
func (c *Cache) classifyMiss(ctx context.Context, m meeting.Meeting) (Record, error) {
	// Another caller may have resolved it while we waited on the
	// single-flight slot.
	if rec, ok := c.Lookup(m.ID); ok && rec.Resolved() {
		return rec, nil
	}

	if tags, ok := c.heuristic.Classify(m); ok {
		rec := Record{MeetingID: m.ID, Tags: tags, Tier: TierHeuristic, UpdatedAt: time.Now().UTC()}
		c.persist(ctx, rec)
		c.onResolved(TierHeuristic, true)
		return rec, nil
	}

	if c.remote == nil {
		c.onResolved(TierRemote, false)
		return Record{MeetingID: m.ID, Tier: TierUnresolved},
			gmerrors.ClassificationUnavailablef("no remote classifier configured")
	}

	remoteCtx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	tags, err := c.remote.Classify(remoteCtx, m)
	if err != nil {
		c.onResolved(TierRemote, false)
		return Record{MeetingID: m.ID, Tier: TierUnresolved}, err
	}

	rec := Record{MeetingID: m.ID, Tags: tags, Tier: TierRemote, UpdatedAt: time.Now().UTC()}
	c.persist(ctx, rec)
	c.onResolved(TierRemote, true)
	return rec, nil
}

// persist stores a record in memory and in the durable store. An
// existing record only gives way to a higher-confidence tier.
func (c *Cache) persist(ctx context.Context, rec Record) {
	c.mu.Lock()
	if existing, ok := c.records[rec.MeetingID]; ok && existing.Tier.rank() >= rec.Tier.rank() {
		c.mu.Unlock()
		return
	}
	c.records[rec.MeetingID] = rec
	c.mu.Unlock()

	if err := c.store.Put(ctx, rec); err != nil {
		// The in-memory record still serves this run; persistence is
		// retried the next time the meeting reclassifies.
		c.logger.Warn("persisting classification failed",
			logging.F("meeting_id", rec.MeetingID), logging.Err(err))
	}
}

// ClassifyAll resolves a batch. Up to the sync budget of unresolved
// meetings classify before returning, so the immediate query has
// something to work with; the rest of the backlog fills in the
// background. The context deadline also bounds the synchronous phase.
func (c *Cache) ClassifyAll(ctx context.Context, meetings []meeting.Meeting) {
	synced := 0
	for _, m := range meetings {
		if rec, ok := c.Lookup(m.ID); ok && rec.Resolved() {
			continue
		}
		if synced < c.syncBudget && ctx.Err() == nil {
			synced++
			if _, err := c.Classify(ctx, m); err != nil {
				c.logger.Debug("batch classification unresolved",
					logging.F("meeting_id", m.ID), logging.Err(err))
			}
			continue
		}
		c.queue.Enqueue(m)
	}
}

// SearchByCategory filters candidates to those tagged with category.
// Only cached and heuristic results are consulted synchronously; any
// unresolved candidates go to the background queue, so results can grow
// on a repeated query. An empty category is rejected.
func (c *Cache) SearchByCategory(category string, candidates []meeting.Meeting) ([]meeting.Meeting, error) {
	if strings.TrimSpace(category) == "" {
		return nil, gmerrors.InvalidArgumentf("category must not be empty")
	}

	matched := make([]meeting.Meeting, 0, len(candidates))
	for _, m := range candidates {
		rec, ok := c.Lookup(m.ID)
		if !ok || !rec.Resolved() {
			if tags, hit := c.heuristic.Classify(m); hit {
				rec = Record{MeetingID: m.ID, Tags: tags, Tier: TierHeuristic, UpdatedAt: time.Now().UTC()}
				c.persist(context.Background(), rec)
				c.onResolved(TierHeuristic, true)
			} else {
				c.queue.Enqueue(m)
				continue
			}
		}
		if rec.HasTag(category) {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// Categories returns the distinct tags across all resolved records.
// Tags fold case-insensitively and report in their folded form, ordered
// by meeting count then name.
func (c *Cache) Categories() []CategoryCount {
	c.mu.RLock()
	counts := make(map[string]int)
	for _, rec := range c.records {
		for _, tag := range rec.Tags {
			counts[tagFold.String(tag)]++
		}
	}
	c.mu.RUnlock()

	out := make([]CategoryCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, CategoryCount{Category: key, Meetings: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Meetings != out[j].Meetings {
			return out[i].Meetings > out[j].Meetings
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CategoryCount is one entry in the category listing.
type CategoryCount struct {
	Category string `json:"category"`
	Meetings int    `json:"meetings"`
}

// QueueDepth returns the background queue depth.
func (c *Cache) QueueDepth() int {
	return c.queue.Depth()
}
