package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizdrill/drill/internal/catalog"
	"github.com/quizdrill/drill/internal/clock"
	"github.com/quizdrill/drill/internal/storage"
)

const (
	// DefaultCap bounds how many items one session holds.
	DefaultCap = 20

	// DefaultPriorityShare is the target fraction of the cap filled
	// from origin-priority items.
	DefaultPriorityShare = 0.80

	// DefaultMaxAge is how long a persisted session stays restorable.
	DefaultMaxAge = 4 * time.Hour

	// DefaultDriftTolerance is the catalog size drift beyond which a
	// saved session is considered stale.
	DefaultDriftTolerance = 0.10

	// DefaultMinResolvable is the fraction of saved ids that must
	// still resolve in the current catalog.
	DefaultMinResolvable = 0.50
)

// Config tunes session composition and restore validation. Zero
// values produce defaults.
type Config struct {
	Cap            int           // zero → DefaultCap
	PriorityShare  float64       // zero → DefaultPriorityShare
	MaxAge         time.Duration // zero → DefaultMaxAge
	DriftTolerance float64       // zero → DefaultDriftTolerance
	MinResolvable  float64       // zero → DefaultMinResolvable
	Seed           int64         // zero → wall clock
}

// TokenGenerator produces session tokens for log correlation.
// Implemented by UUIDv7Generator (production) and fixed generators in
// tests. Tokens are never persisted; the storage key is the only
// persistence identity a session has.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session tokens.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Manager owns the session lifecycle: none → active → complete →
// active (new). All mutations happen through its methods; the
// persisted session and submission records belong to it exclusively.
type Manager struct {
	backend storage.Store
	clk     clock.Clock
	log     *slog.Logger
	tokens  TokenGenerator
	cfg     Config
	rng     *rand.Rand

	mu           sync.Mutex
	state        State
	current      *Session
	token        string
	submissions  map[string]Submission
	results      *Results
	regenerating bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock. Used by tests.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clk = c }
}

// WithTokenGenerator overrides the session token generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(m *Manager) { m.tokens = g }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a session manager over the given backend.
func NewManager(backend storage.Store, cfg Config, opts ...Option) *Manager {
	if cfg.Cap == 0 {
		cfg.Cap = DefaultCap
	}
	if cfg.PriorityShare == 0 {
		cfg.PriorityShare = DefaultPriorityShare
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.DriftTolerance == 0 {
		cfg.DriftTolerance = DefaultDriftTolerance
	}
	if cfg.MinResolvable == 0 {
		cfg.MinResolvable = DefaultMinResolvable
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	m := &Manager{
		backend:     backend,
		clk:         clock.System{},
		log:         slog.Default(),
		tokens:      UUIDv7Generator{},
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(seed)),
		submissions: make(map[string]Submission),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the active session, if any.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	out := *m.current
	out.ItemIDs = append([]string(nil), m.current.ItemIDs...)
	return out, true
}

// Token returns the log-correlation token of the active session.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Results returns the results of the last ended session, if any.
func (m *Manager) Results() (Results, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		return Results{}, false
	}
	return *m.results, true
}

// Submission returns the answer state recorded for an item.
func (m *Manager) Submission(id string) (Submission, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	return sub, ok
}

// Create composes a session from already-ordered due items and
// persists it.
//
// The due items are shuffled, then split by the origin-priority flag
// targeting the configured share of the cap (default 80/20). A
// shortfall in either group is backfilled from the other, so the cap
// fills whenever enough items exist overall.
func (m *Manager) Create(ctx context.Context, dueItems []catalog.Item, catalogSize int) (Session, error) {
	shuffled := make([]catalog.Item, len(dueItems))
	copy(shuffled, dueItems)

	m.mu.Lock()
	m.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	ids := composeMix(shuffled, m.cfg.Cap, m.cfg.PriorityShare)
	sess := Session{
		ItemIDs:              ids,
		CreatedAt:            m.clk.Now().Unix(),
		TotalItemsAtCreation: catalogSize,
	}

	m.state = StateActive
	m.current = &sess
	m.token = m.tokens.Generate()
	m.submissions = make(map[string]Submission)
	m.results = nil
	token := m.token
	m.mu.Unlock()

	if err := m.persistSession(ctx, sess); err != nil {
		return Session{}, err
	}
	if err := m.backend.Delete(ctx, SubmissionsKey); err != nil {
		m.log.Warn("clearing stale submissions failed", "error", err)
	}

	m.log.Info("session created", "session", token, "items", len(ids), "catalog", catalogSize)
	return sess, nil
}

// composeMix fills the cap with a target share of priority items,
// backfilling either group from the other when one runs short.
func composeMix(items []catalog.Item, limit int, priorityShare float64) []string {
	var priority, ordinary []catalog.Item
	for _, it := range items {
		if it.OriginPriority {
			priority = append(priority, it)
		} else {
			ordinary = append(ordinary, it)
		}
	}

	targetPriority := int(math.Round(float64(limit) * priorityShare))
	nPriority := min(targetPriority, len(priority))
	nOrdinary := min(limit-nPriority, len(ordinary))
	// Backfill from priority if ordinary ran short.
	nPriority = min(limit-nOrdinary, len(priority))

	ids := make([]string, 0, nPriority+nOrdinary)
	for _, it := range priority[:nPriority] {
		ids = append(ids, it.ID)
	}
	for _, it := range ordinary[:nOrdinary] {
		ids = append(ids, it.ID)
	}
	return ids
}

// Restore loads the persisted session and accepts it only if it is
// young enough, the catalog has not drifted too far, and enough of
// its ids still resolve. Any failed check discards the saved session
// so the caller regenerates a fresh one - never a partial restore.
//
// Returns true when a session was restored into the active state.
func (m *Manager) Restore(ctx context.Context, items []catalog.Item) (bool, error) {
	blob, err := m.backend.Load(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore session: %w", err)
	}

	var saved Session
	if err := json.Unmarshal(blob, &saved); err != nil {
		m.log.Warn("saved session unparseable, discarding", "error", err)
		m.discard(ctx)
		return false, nil
	}

	if reason := m.validate(saved, items); reason != "" {
		m.log.Info("saved session rejected", "reason", reason)
		m.discard(ctx)
		return false, nil
	}

	subs := m.loadSubmissions(ctx)

	// A session whose every resolvable item is already submitted
	// would restore as trivially complete; regenerate instead.
	byID := catalog.Index(items)
	unfinished := false
	for _, id := range saved.ItemIDs {
		if _, ok := byID[id]; !ok {
			continue
		}
		if sub, ok := subs[id]; !ok || !sub.Submitted {
			unfinished = true
			break
		}
	}
	if !unfinished {
		m.log.Info("saved session already finished, discarding")
		m.discard(ctx)
		return false, nil
	}

	m.mu.Lock()
	m.state = StateActive
	m.current = &saved
	m.token = m.tokens.Generate()
	m.submissions = subs
	m.results = nil
	m.mu.Unlock()

	m.log.Info("session restored", "items", len(saved.ItemIDs))
	return true, nil
}

// validate returns a rejection reason, or "" when the saved session
// is acceptable against the current catalog.
func (m *Manager) validate(saved Session, items []catalog.Item) string {
	if len(saved.ItemIDs) == 0 || saved.CreatedAt <= 0 {
		return "malformed"
	}

	age := m.clk.Now().Sub(time.Unix(saved.CreatedAt, 0))
	if age < 0 || age >= m.cfg.MaxAge {
		return "expired"
	}

	if saved.TotalItemsAtCreation > 0 {
		drift := math.Abs(float64(len(items))-float64(saved.TotalItemsAtCreation)) /
			float64(saved.TotalItemsAtCreation)
		if drift > m.cfg.DriftTolerance {
			return "catalog drift"
		}
	}

	byID := catalog.Index(items)
	resolved := 0
	for _, id := range saved.ItemIDs {
		if _, ok := byID[id]; ok {
			resolved++
		}
	}
	if float64(resolved) < m.cfg.MinResolvable*float64(len(saved.ItemIDs)) {
		return "too few items resolve"
	}

	return ""
}

// RecordSubmission stores an item's answer state and persists the
// submission map so an interrupted session restores mid-pass.
//
// The item must belong to the active session.
func (m *Manager) RecordSubmission(ctx context.Context, id string, correct bool, answers []string) error {
	m.mu.Lock()
	if m.state != StateActive || m.current == nil {
		m.mu.Unlock()
		return fmt.Errorf("record submission: no active session")
	}
	member := false
	for _, sid := range m.current.ItemIDs {
		if sid == id {
			member = true
			break
		}
	}
	if !member {
		m.mu.Unlock()
		return fmt.Errorf("record submission: item %q not in session", id)
	}

	m.submissions[id] = Submission{
		Submitted:   true,
		Correct:     correct,
		Answers:     answers,
		SubmittedAt: m.clk.Now(),
	}
	blob, err := json.Marshal(m.submissions)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}

	if err := m.backend.Save(ctx, SubmissionsKey, blob); err != nil {
		// The in-memory map stays authoritative; log and move on.
		m.log.Warn("submission save failed", "item", id, "error", err)
	}
	return nil
}

// End closes the active session: computes results over its items from
// their submission states, clears the persisted session pointer, and
// keeps the results visible until the next session starts.
func (m *Manager) End(ctx context.Context) (Results, error) {
	m.mu.Lock()
	if m.state != StateActive || m.current == nil {
		m.mu.Unlock()
		return Results{}, fmt.Errorf("end session: no active session")
	}

	res := Results{Total: len(m.current.ItemIDs)}
	for _, id := range m.current.ItemIDs {
		sub, ok := m.submissions[id]
		if !ok || !sub.Submitted {
			continue
		}
		if sub.Correct {
			res.Correct++
		} else {
			res.Incorrect++
		}
	}

	m.state = StateComplete
	m.current = nil
	m.results = &res
	token := m.token
	m.token = ""
	m.mu.Unlock()

	m.discard(ctx)
	m.log.Info("session ended", "session", token,
		"correct", res.Correct, "incorrect", res.Incorrect, "total", res.Total)
	return res, nil
}

// StartNew clears results and submission state, drops the persisted
// session, and regenerates from the due items the generate callback
// supplies.
//
// Regeneration is guarded: if one is already in progress the call is
// a no-op, so a dependency change and an explicit user action in the
// same tick cannot race into two concurrent generations.
func (m *Manager) StartNew(ctx context.Context, generate func(ctx context.Context) ([]catalog.Item, int, error)) (Session, error) {
	m.mu.Lock()
	if m.regenerating {
		m.mu.Unlock()
		cur, _ := m.Current()
		return cur, nil
	}
	m.regenerating = true
	m.state = StateNone
	m.current = nil
	m.token = ""
	m.submissions = make(map[string]Submission)
	m.results = nil
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.regenerating = false
		m.mu.Unlock()
	}()

	m.discard(ctx)

	due, catalogSize, err := generate(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("start new session: %w", err)
	}
	return m.Create(ctx, due, catalogSize)
}

// Reset drops all session state, in memory and persisted. Used when
// the host clears progress entirely.
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	m.state = StateNone
	m.current = nil
	m.token = ""
	m.submissions = make(map[string]Submission)
	m.results = nil
	m.mu.Unlock()

	m.discard(ctx)
}

// persistSession saves the session record.
func (m *Manager) persistSession(ctx context.Context, sess Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := m.backend.Save(ctx, Key, blob); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// discard drops the persisted session and submission records.
func (m *Manager) discard(ctx context.Context) {
	if err := m.backend.Delete(ctx, Key); err != nil {
		m.log.Warn("discarding session record failed", "error", err)
	}
	if err := m.backend.Delete(ctx, SubmissionsKey); err != nil {
		m.log.Warn("discarding submission record failed", "error", err)
	}
}

// loadSubmissions reads the persisted submission map; corruption
// degrades to empty.
func (m *Manager) loadSubmissions(ctx context.Context) map[string]Submission {
	blob, err := m.backend.Load(ctx, SubmissionsKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.log.Warn("loading submissions failed", "error", err)
		}
		return make(map[string]Submission)
	}
	var subs map[string]Submission
	if err := json.Unmarshal(blob, &subs); err != nil {
		m.log.Warn("submission record unparseable, resetting", "error", err)
		return make(map[string]Submission)
	}
	if subs == nil {
		subs = make(map[string]Submission)
	}
	return subs
}
