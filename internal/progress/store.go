// Package progress owns persisted per-item review state.
//
// The Store is the single writer of the progress record: the scheduler
// and stats packages read records only through its accessors and never
// touch the storage boundary directly.
//
// Durability model: the in-memory map is authoritative and updated
// synchronously on every Upsert; persistence happens through a
// debounced flush so that rapid successive answers coalesce into one
// durable write. A failed write gets one cleanup-then-retry, then is
// dropped with a log entry - the map stays authoritative until the
// next successful flush.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quizdrill/drill/internal/clock"
	"github.com/quizdrill/drill/internal/storage"
)

// Key is the storage key the progress record persists under.
const Key = "progress"

// maxLoadBox bounds the box values accepted at load time. Boxes 4 and
// 5 are artifacts of the retired five-box scheme; they load fine and
// are clamped down by Migrate. Anything outside 1..5 is structural
// corruption and is dropped.
const maxLoadBox = 5

const (
	defaultMaxBox     = 3
	defaultDebounce   = 100 * time.Millisecond
	defaultStaleAfter = 30 * 24 * time.Hour
)

// NextDateFunc computes the next review date for a box given the date
// the review happened on. Provided by the scheduler so this package
// never owns interval policy.
type NextDateFunc func(box int, from time.Time) time.Time

// Store is the durable, validated, write-coalescing progress record.
type Store struct {
	backend storage.Store
	clk     clock.Clock
	log     *slog.Logger

	maxBox     int
	debounce   time.Duration
	staleAfter time.Duration

	mu      sync.Mutex
	records map[string]ReviewRecord
	dirty   bool
	gen     uint64 // bumped on every mutation; guards the dirty reset
	timer   *time.Timer

	// flushMu serializes flushes so a debounced flush never overlaps
	// a manual one.
	flushMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock. Used by tests.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clk = c }
}

// WithDebounce overrides the flush debounce window.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithMaxBox overrides the highest proficiency box.
func WithMaxBox(n int) Option {
	return func(s *Store) { s.maxBox = n }
}

// WithStaleAfter overrides how long an untouched top-box record
// survives before CleanupStale may prune it.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Store) { s.staleAfter = d }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates a progress store over the given backend. Call Load
// before any other method.
func NewStore(backend storage.Store, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		clk:        clock.System{},
		log:        slog.Default(),
		maxBox:     defaultMaxBox,
		debounce:   defaultDebounce,
		staleAfter: defaultStaleAfter,
		records:    make(map[string]ReviewRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads and validates the persisted progress record.
//
// Structurally invalid entries (empty id, box out of range, bad dates,
// negative counts) are dropped silently. A blob that does not parse at
// all degrades to an empty map with a warning - corruption is never
// surfaced as an error to the caller.
func (s *Store) Load(ctx context.Context) error {
	blob, err := s.backend.Load(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		s.mu.Lock()
		s.records = make(map[string]ReviewRecord)
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	var wire map[string]wireRecord
	if err := json.Unmarshal(blob, &wire); err != nil {
		s.log.Warn("progress record unparseable, resetting to empty", "error", err)
		s.mu.Lock()
		s.records = make(map[string]ReviewRecord)
		s.mu.Unlock()
		return nil
	}

	records := make(map[string]ReviewRecord, len(wire))
	dropped := 0
	for id, w := range wire {
		rec, err := fromWire(id, w, maxLoadBox)
		if err != nil {
			dropped++
			continue
		}
		records[id] = rec
	}
	if dropped > 0 {
		s.log.Warn("dropped invalid progress entries", "count", dropped)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// Get returns the record for an item, if one exists.
func (s *Store) Get(id string) (ReviewRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Records returns a snapshot copy of all records.
func (s *Store) Records() map[string]ReviewRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ReviewRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}

// Len reports the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Upsert writes the record into the authoritative map synchronously
// and schedules a debounced flush. Multiple upserts inside the window
// coalesce into a single durable write, last-write-wins.
//
// A record outside the valid box range is a programming error.
func (s *Store) Upsert(rec ReviewRecord) error {
	if rec.ItemID == "" {
		return fmt.Errorf("upsert: empty item id")
	}
	if rec.Box < 1 || rec.Box > s.maxBox {
		return fmt.Errorf("upsert %q: box %d out of range 1..%d", rec.ItemID, rec.Box, s.maxBox)
	}
	if rec.TimesCorrect < 0 || rec.TimesIncorrect < 0 {
		return fmt.Errorf("upsert %q: negative answer count", rec.ItemID)
	}

	s.mu.Lock()
	s.records[rec.ItemID] = rec
	s.dirty = true
	s.gen++
	s.scheduleFlushLocked()
	s.mu.Unlock()
	return nil
}

// scheduleFlushLocked arms the debounce timer, replacing (never
// stacking) any pending one. Caller holds s.mu.
func (s *Store) scheduleFlushLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Flush(context.Background()); err != nil {
			s.log.Warn("debounced flush failed", "error", err)
		}
	})
}

// Flush writes the current map to the backend immediately. Exposed so
// tests and shutdown paths get deterministic persistence instead of
// waiting out the debounce window.
//
// On a write failure it prunes stale records once and retries; if the
// retry also fails the write is dropped and logged, and the map stays
// dirty so the next flush tries again.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	gen := s.gen
	blob, err := s.marshalLocked()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("flush progress: %w", err)
	}

	if err := s.backend.Save(ctx, Key, blob); err != nil {
		s.log.Warn("progress save failed, pruning stale records and retrying", "error", err)
		if pruned := s.CleanupStale(); pruned > 0 {
			s.mu.Lock()
			gen = s.gen
			blob, _ = s.marshalLocked()
			s.mu.Unlock()
		}
		if err := s.backend.Save(ctx, Key, blob); err != nil {
			s.log.Warn("progress save dropped after retry", "error", err)
			return nil
		}
	}

	s.mu.Lock()
	if s.gen == gen {
		// No mutation landed while the write was in flight.
		s.dirty = false
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) marshalLocked() ([]byte, error) {
	wire := make(map[string]wireRecord, len(s.records))
	for id, rec := range s.records {
		wire[id] = toWire(rec)
	}
	return json.Marshal(wire)
}

// Migrate clamps records left over from the retired wider-box scheme
// down to the current maximum box and recomputes their next review
// date from that box's interval. Triggers exactly one save if any
// record changed.
func (s *Store) Migrate(ctx context.Context, next NextDateFunc) error {
	s.mu.Lock()
	changed := 0
	for id, rec := range s.records {
		if rec.Box <= s.maxBox {
			continue
		}
		rec.Box = s.maxBox
		from := rec.LastReviewed
		if from.IsZero() {
			from = s.clk.Now()
		}
		rec.NextReview = next(rec.Box, from)
		s.records[id] = rec
		changed++
	}
	if changed > 0 {
		s.dirty = true
		s.gen++
	}
	s.mu.Unlock()

	if changed == 0 {
		return nil
	}
	s.log.Info("migrated legacy box records", "count", changed)
	return s.Flush(ctx)
}

// CleanupStale prunes top-box records untouched for the stale window
// and returns the number pruned. A pruned item re-enters at box 1 on
// its next encounter, indistinguishable from a never-seen item.
func (s *Store) CleanupStale() int {
	cutoff := s.clk.Now().Add(-s.staleAfter)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, rec := range s.records {
		if rec.Box == s.maxBox && !rec.LastReviewed.IsZero() && rec.LastReviewed.Before(cutoff) {
			delete(s.records, id)
			pruned++
		}
	}
	if pruned > 0 {
		s.dirty = true
		s.gen++
	}
	return pruned
}

// ClearAll drops every record and deletes the persisted blob
// immediately (not debounced).
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	s.records = make(map[string]ReviewRecord)
	s.dirty = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if err := s.backend.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}

// Close stops any pending debounce timer and flushes outstanding
// changes.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.Flush(ctx)
}
