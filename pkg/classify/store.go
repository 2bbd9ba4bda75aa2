package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

// Tier records which resolution tier produced a classification.
type Tier string

const (
	// TierUnresolved marks a record whose classification has not succeeded yet.
	TierUnresolved Tier = "unresolved"
	// TierCached marks a record restored from a previous run whose origin
	// tier was not recorded.
	TierCached Tier = "cached"
	// TierHeuristic marks a record produced by local rule matching.
	TierHeuristic Tier = "heuristic_match"
	// TierRemote marks a record produced by the remote classifier.
	TierRemote Tier = "remote_classified"
)

// rank orders tiers by confidence. A record is only overwritten by a
// higher-ranked tier.
func (t Tier) rank() int {
	switch t {
	case TierRemote:
		return 3
	case TierHeuristic:
		return 2
	case TierCached:
		return 1
	default:
		return 0
	}
}

// Record is one meeting's classification result.
type Record struct {
	MeetingID string    `json:"meeting_id"`
	Tags      []string  `json:"tags,omitempty"`
	Tier      Tier      `json:"tier"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolved reports whether the record carries a usable classification.
func (r Record) Resolved() bool {
	return r.Tier != TierUnresolved && r.Tier != ""
}

var tagFold = cases.Fold()

// HasTag reports whether the record carries the given category,
// compared case-insensitively.
func (r Record) HasTag(category string) bool {
	folded := tagFold.String(category)
	for _, tag := range r.Tags {
		if tagFold.String(tag) == folded {
			return true
		}
	}
	return false
}

// Store persists classification records across runs.
type Store interface {
	// Load returns all persisted records keyed by meeting ID.
	Load(ctx context.Context) (map[string]Record, error)
	// Put persists one record, replacing any existing record for the
	// same meeting.
	Put(ctx context.Context, rec Record) error
	// Close releases any resources held by the store.
	Close() error
}

// FileStore persists records as a single JSON document on disk. Writes
// go through a temp file and rename so a crash never leaves a torn file.
type FileStore struct {
	path string

	mu      sync.Mutex
	records map[string]Record
	loaded  bool
}

// NewFileStore creates a file-backed store at path. The file is created
// on first Put; a missing file loads as empty.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out, nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.records = make(map[string]Record)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading classification store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.records); err != nil {
			return fmt.Errorf("parsing classification store %s: %w", s.path, err)
		}
	}
	s.loaded = true
	return nil
}

func (s *FileStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.records[rec.MeetingID] = rec
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating classification store directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding classification store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing classification store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing classification store: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// sortedTags returns a deduplicated, folded-order copy of tags with
// empty entries dropped.
func sortedTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		key := tagFold.String(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
