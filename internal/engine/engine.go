package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/quizdrill/drill/internal/catalog"
	"github.com/quizdrill/drill/internal/clock"
	"github.com/quizdrill/drill/internal/progress"
	"github.com/quizdrill/drill/internal/scheduler"
	"github.com/quizdrill/drill/internal/session"
	"github.com/quizdrill/drill/internal/stats"
	"github.com/quizdrill/drill/internal/storage"
)

// SchemaVersion is the current persisted-schema version.
//
// 1 - retired five-box scheme
// 2 - three boxes; progress records above box 3 are clamped
const SchemaVersion = 2

// schemaKey is the storage key the stored schema version lives under.
const schemaKey = "schema.version"

// Config aggregates tuning for all collaborators. Zero values produce
// the documented defaults throughout.
type Config struct {
	Scheduler   scheduler.Config
	Session     session.Config
	DailyTarget int // stats countdown target; zero → stats default
}

// Engine owns the scheduling and session core behind the public
// operations the presentation layer consumes.
type Engine struct {
	backend  storage.Store
	prog     *progress.Store
	sched    *scheduler.Scheduler
	sessions *session.Manager
	stats    *stats.Engine
	clk      clock.Clock
	log      *slog.Logger

	readyOnce sync.Once
	readyErr  error

	mu       sync.Mutex
	items    []catalog.Item
	itemsIdx map[string]catalog.Item
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock for the engine and every
// collaborator it constructs. Used by tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clk = c }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine over the given storage backend.
func New(backend storage.Store, cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		backend: backend,
		clk:     clock.System{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	sched, err := scheduler.New(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	e.sched = sched

	e.prog = progress.NewStore(backend,
		progress.WithClock(e.clk),
		progress.WithMaxBox(sched.MaxBox()),
		progress.WithLogger(e.log),
	)
	e.sessions = session.NewManager(backend, cfg.Session,
		session.WithClock(e.clk),
		session.WithLogger(e.log),
	)
	e.stats = stats.New(cfg.DailyTarget)

	return e, nil
}

// EnsureReady loads persisted state exactly once. Every caller blocks
// on the same initialization and observes the same outcome; repeated
// calls are no-ops.
func (e *Engine) EnsureReady(ctx context.Context) error {
	e.readyOnce.Do(func() {
		if err := e.prog.Load(ctx); err != nil {
			e.readyErr = &Error{Code: ErrCodeNotReady, Message: err.Error()}
		}
	})
	return e.readyErr
}

// Migrate reconciles the stored schema version with the current one.
//
// The host invokes this explicitly once at startup, after EnsureReady
// and before first use - migration is never an import-time or
// first-read side effect. Idempotent: a store already at the current
// version is untouched.
func (e *Engine) Migrate(ctx context.Context) error {
	if err := e.EnsureReady(ctx); err != nil {
		return err
	}

	stored, err := e.storedSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if stored >= SchemaVersion {
		return nil
	}

	if stored < 2 {
		// v1 → v2: clamp records from the retired wider-box scheme.
		if err := e.prog.Migrate(ctx, e.sched.NextReviewDate); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}

	blob := []byte(strconv.Itoa(SchemaVersion))
	if err := e.backend.Save(ctx, schemaKey, blob); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}
	e.log.Info("schema migrated", "from", stored, "to", SchemaVersion)
	return nil
}

func (e *Engine) storedSchemaVersion(ctx context.Context) (int, error) {
	blob, err := e.backend.Load(ctx, schemaKey)
	if errors.Is(err, storage.ErrNotFound) {
		// Pre-versioning stores and fresh ones look alike; migrating
		// an empty store is harmless either way.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(string(blob))
	if err != nil {
		e.log.Warn("schema version unparseable, treating as 0", "raw", string(blob))
		return 0, nil
	}
	return v, nil
}

// GetDueQuestions returns the items of the current session, composing
// a new session when none restores.
//
// A saved session is restored only when it passes every validity
// check (age, catalog drift, id resolvability); otherwise a fresh
// session is generated from the due set - never a partial restore.
func (e *Engine) GetDueQuestions(ctx context.Context, items []catalog.Item) ([]catalog.Item, error) {
	if err := e.EnsureReady(ctx); err != nil {
		return nil, err
	}
	e.setCatalog(items)

	if e.sessions.State() != session.StateActive {
		restored, err := e.sessions.Restore(ctx, items)
		if err != nil {
			return nil, err
		}
		if !restored {
			if _, err := e.sessions.Create(ctx, e.composeDue(items), len(items)); err != nil {
				return nil, err
			}
		}
	}

	return e.resolveSessionItems(items), nil
}

// composeDue runs the full scheduling pipeline: due-set selection,
// priority ordering, then topic interleaving.
func (e *Engine) composeDue(items []catalog.Item) []catalog.Item {
	now := e.clk.Now()
	records := e.prog.Records()
	due := e.sched.ComputeDueSet(items, records, now)
	due = e.sched.Order(due, records, now)
	return e.sched.Interleave(due)
}

// resolveSessionItems maps the session's ids onto the current catalog,
// skipping ids that no longer resolve.
func (e *Engine) resolveSessionItems(items []catalog.Item) []catalog.Item {
	sess, ok := e.sessions.Current()
	if !ok {
		return nil
	}
	byID := catalog.Index(items)
	out := make([]catalog.Item, 0, len(sess.ItemIDs))
	for _, id := range sess.ItemIDs {
		if it, found := byID[id]; found {
			out = append(out, it)
		}
	}
	return out
}

// ProcessAnswer records an answer: the item moves between boxes, its
// counters update, and its session submission state is captured.
//
// An id not present in the supplied catalog is a programming error
// and fails fast with ErrCodeUnknownItem.
func (e *Engine) ProcessAnswer(ctx context.Context, id string, correct bool, answers ...string) error {
	if err := e.EnsureReady(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	if e.itemsIdx == nil {
		e.mu.Unlock()
		return &Error{Code: ErrCodeNoCatalog, Message: "no catalog supplied yet"}
	}
	_, known := e.itemsIdx[id]
	e.mu.Unlock()
	if !known {
		return NewUnknownItemError(id)
	}

	now := e.clk.Now()
	rec, seen := e.prog.Get(id)
	box := 1
	if seen {
		box = rec.Box
	}

	next := e.sched.MoveItem(box, correct)
	rec.ItemID = id
	rec.Box = next
	rec.NextReview = e.sched.NextReviewDate(next, now)
	rec.LastReviewed = clock.DateOf(now)
	rec.LastCorrect = correct
	if correct {
		rec.TimesCorrect++
	} else {
		rec.TimesIncorrect++
	}

	if err := e.prog.Upsert(rec); err != nil {
		return err
	}

	if e.sessions.State() == session.StateActive {
		if err := e.sessions.RecordSubmission(ctx, id, correct, answers); err != nil {
			// Answers outside the session still count toward progress.
			e.log.Debug("submission not recorded", "item", id, "error", err)
		}
	}
	return nil
}

// GetStats recomputes the dashboard snapshot from current records.
func (e *Engine) GetStats(ctx context.Context, items []catalog.Item) (stats.Snapshot, error) {
	if err := e.EnsureReady(ctx); err != nil {
		return stats.Snapshot{}, err
	}
	return e.stats.Compute(items, e.prog.Records(), e.clk.Now()), nil
}

// GetQuestionProgress returns an item's review record, if the item
// has ever been answered.
func (e *Engine) GetQuestionProgress(ctx context.Context, id string) (progress.ReviewRecord, bool, error) {
	if err := e.EnsureReady(ctx); err != nil {
		return progress.ReviewRecord{}, false, err
	}
	rec, ok := e.prog.Get(id)
	return rec, ok, nil
}

// StartNewSession discards current results and submissions and
// regenerates a session from the current due set. Guarded against
// concurrent regeneration by the session manager.
func (e *Engine) StartNewSession(ctx context.Context) (session.Session, error) {
	if err := e.EnsureReady(ctx); err != nil {
		return session.Session{}, err
	}

	e.mu.Lock()
	items := e.items
	e.mu.Unlock()
	if items == nil {
		return session.Session{}, &Error{Code: ErrCodeNoCatalog, Message: "no catalog supplied yet"}
	}

	return e.sessions.StartNew(ctx, func(context.Context) ([]catalog.Item, int, error) {
		return e.composeDue(items), len(items), nil
	})
}

// EndSession closes the active session and flushes progress so the
// pass's answers are durable before results are shown.
func (e *Engine) EndSession(ctx context.Context) (session.Results, error) {
	if err := e.EnsureReady(ctx); err != nil {
		return session.Results{}, err
	}
	res, err := e.sessions.End(ctx)
	if err != nil {
		return session.Results{}, err
	}
	if err := e.prog.Flush(ctx); err != nil {
		e.log.Warn("flush after session end failed", "error", err)
	}
	return res, nil
}

// SessionResults returns the results of the last ended session.
func (e *Engine) SessionResults() (session.Results, bool) {
	return e.sessions.Results()
}

// ClearAllProgress wipes every review record and all session state.
func (e *Engine) ClearAllProgress(ctx context.Context) error {
	if err := e.EnsureReady(ctx); err != nil {
		return err
	}
	if err := e.prog.ClearAll(ctx); err != nil {
		return err
	}
	e.sessions.Reset(ctx)
	e.log.Info("all progress cleared")
	return nil
}

// Close flushes outstanding writes. The engine is unusable after.
func (e *Engine) Close(ctx context.Context) error {
	return e.prog.Close(ctx)
}

func (e *Engine) setCatalog(items []catalog.Item) {
	e.mu.Lock()
	e.items = items
	e.itemsIdx = catalog.Index(items)
	e.mu.Unlock()
}
