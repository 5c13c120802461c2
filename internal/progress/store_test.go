package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizdrill/drill/internal/storage"
	"github.com/quizdrill/drill/internal/testutil"
)

var day0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, backend storage.Store) (*Store, *testutil.ManualClock) {
	t.Helper()
	clk := testutil.NewManualClock(day0)
	s := NewStore(backend,
		WithClock(clk),
		// A long window so flushes only happen when tests call Flush.
		WithDebounce(time.Hour),
	)
	require.NoError(t, s.Load(context.Background()))
	return s, clk
}

func TestLoad_EmptyBackend(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemory())
	assert.Equal(t, 0, s.Len())
}

func TestLoad_DropsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	blob := `{
		"good":      {"currentBox": 2, "nextReviewDate": "2026-03-12", "timesCorrect": 1, "timesIncorrect": 0, "lastReviewed": "2026-03-10", "lastAnswerCorrect": true},
		"zero-box":  {"currentBox": 0, "nextReviewDate": "2026-03-12"},
		"huge-box":  {"currentBox": 9, "nextReviewDate": "2026-03-12"},
		"bad-date":  {"currentBox": 1, "nextReviewDate": "soon"},
		"negative":  {"currentBox": 1, "nextReviewDate": "2026-03-12", "timesCorrect": -1}
	}`
	require.NoError(t, backend.Save(ctx, Key, []byte(blob)))

	s, _ := newTestStore(t, backend)

	assert.Equal(t, 1, s.Len())
	rec, ok := s.Get("good")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Box)
	assert.Equal(t, 1, rec.TimesCorrect)
	assert.True(t, rec.LastCorrect)
}

func TestLoad_LegacyBoxesSurviveLoad(t *testing.T) {
	// Boxes 4 and 5 come from the retired five-box scheme; Load keeps
	// them for Migrate to clamp.
	ctx := context.Background()
	backend := storage.NewMemory()
	blob := `{"legacy": {"currentBox": 5, "nextReviewDate": "2026-03-12", "lastReviewed": "2026-03-01"}}`
	require.NoError(t, backend.Save(ctx, Key, []byte(blob)))

	s, _ := newTestStore(t, backend)
	rec, ok := s.Get("legacy")
	require.True(t, ok)
	assert.Equal(t, 5, rec.Box)
}

func TestLoad_CorruptBlobResetsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	require.NoError(t, backend.Save(ctx, Key, []byte("{{{not json")))

	s, _ := newTestStore(t, backend)
	assert.Equal(t, 0, s.Len())
}

func TestUpsert_RejectsBadRecords(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemory())

	assert.Error(t, s.Upsert(ReviewRecord{ItemID: "", Box: 1}))
	assert.Error(t, s.Upsert(ReviewRecord{ItemID: "a", Box: 0}))
	assert.Error(t, s.Upsert(ReviewRecord{ItemID: "a", Box: 4}))
	assert.Error(t, s.Upsert(ReviewRecord{ItemID: "a", Box: 1, TimesCorrect: -1}))
}

func TestFlush_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s, _ := newTestStore(t, backend)

	rec := ReviewRecord{
		ItemID:       "a",
		Box:          2,
		NextReview:   time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		TimesCorrect: 1,
		LastReviewed: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		LastCorrect:  true,
	}
	require.NoError(t, s.Upsert(rec))
	require.NoError(t, s.Flush(ctx))

	s2, _ := newTestStore(t, backend)
	got, ok := s2.Get("a")
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestFlush_IdempotentWhenClean(t *testing.T) {
	ctx := context.Background()
	flaky := testutil.NewFlakyStore(storage.NewMemory())
	s, _ := newTestStore(t, flaky)

	require.NoError(t, s.Upsert(ReviewRecord{ItemID: "a", Box: 1, NextReview: day0}))
	require.NoError(t, s.Flush(ctx))
	saves := flaky.SaveCalls()

	// No mutation between flushes: the second is a no-op.
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, saves, flaky.SaveCalls())
}

func TestFlush_CoalescesUpserts(t *testing.T) {
	ctx := context.Background()
	flaky := testutil.NewFlakyStore(storage.NewMemory())
	s, _ := newTestStore(t, flaky)

	for i := 0; i < 10; i++ {
		rec := ReviewRecord{ItemID: "a", Box: 1 + i%3, NextReview: day0}
		require.NoError(t, s.Upsert(rec))
	}
	require.NoError(t, s.Flush(ctx))

	// Ten rapid upserts produce one durable write, last-write-wins.
	assert.Equal(t, 1, flaky.SaveCalls())
	rec, _ := s.Get("a")
	assert.Equal(t, 1, rec.Box) // i=9 → box 1
}

func TestFlush_DebouncedTimerFires(t *testing.T) {
	ctx := context.Background()
	flaky := testutil.NewFlakyStore(storage.NewMemory())
	clk := testutil.NewManualClock(day0)
	s := NewStore(flaky, WithClock(clk), WithDebounce(10*time.Millisecond))
	require.NoError(t, s.Load(ctx))

	require.NoError(t, s.Upsert(ReviewRecord{ItemID: "a", Box: 1, NextReview: day0}))

	assert.Eventually(t, func() bool {
		return flaky.SaveCalls() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestFlush_RetriesAfterCleanup(t *testing.T) {
	ctx := context.Background()
	inner := storage.NewMemory()
	flaky := testutil.NewFlakyStore(inner)
	s, _ := newTestStore(t, flaky)

	// A stale top-box record the cleanup pass can reclaim.
	require.NoError(t, s.Upsert(ReviewRecord{
		ItemID:       "stale",
		Box:          3,
		NextReview:   day0,
		LastReviewed: day0.AddDate(0, 0, -45),
	}))
	require.NoError(t, s.Upsert(ReviewRecord{ItemID: "fresh", Box: 1, NextReview: day0}))

	flaky.FailNextSaves(1)
	require.NoError(t, s.Flush(ctx))

	// First save failed, cleanup pruned, retry succeeded.
	assert.Equal(t, 2, flaky.SaveCalls())
	_, ok := s.Get("stale")
	assert.False(t, ok, "stale record should be pruned by the retry path")
	_, ok = s.Get("fresh")
	assert.True(t, ok)

	// The retried blob is what landed durably.
	s2, _ := newTestStore(t, inner)
	assert.Equal(t, 1, s2.Len())
}

func TestFlush_DropsWriteAfterSecondFailure(t *testing.T) {
	ctx := context.Background()
	inner := storage.NewMemory()
	flaky := testutil.NewFlakyStore(inner)
	s, _ := newTestStore(t, flaky)

	require.NoError(t, s.Upsert(ReviewRecord{ItemID: "a", Box: 1, NextReview: day0}))

	flaky.FailNextSaves(2)
	// Both attempts fail; the write is dropped, not surfaced.
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 0, inner.Len())

	// The map stayed authoritative and dirty: the next flush lands.
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, inner.Len())
}

func TestMigrate_ClampsLegacyBoxes(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	blob := `{
		"legacy": {"currentBox": 5, "nextReviewDate": "2026-02-20", "lastReviewed": "2026-02-15"},
		"modern": {"currentBox": 2, "nextReviewDate": "2026-03-12", "lastReviewed": "2026-03-10"}
	}`
	require.NoError(t, backend.Save(ctx, Key, []byte(blob)))

	flaky := testutil.NewFlakyStore(backend)
	clk := testutil.NewManualClock(day0)
	s := NewStore(flaky, WithClock(clk), WithDebounce(time.Hour))
	require.NoError(t, s.Load(ctx))

	next := func(box int, from time.Time) time.Time {
		return from.AddDate(0, 0, box)
	}
	require.NoError(t, s.Migrate(ctx, next))

	rec, ok := s.Get("legacy")
	require.True(t, ok)
	assert.Equal(t, 3, rec.Box)
	assert.Equal(t, time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC), rec.NextReview)

	modern, _ := s.Get("modern")
	assert.Equal(t, 2, modern.Box)

	// Exactly one save for the whole migration.
	assert.Equal(t, 1, flaky.SaveCalls())

	// Re-running is a no-op.
	require.NoError(t, s.Migrate(ctx, next))
	assert.Equal(t, 1, flaky.SaveCalls())
}

func TestCleanupStale_PrunesOnlyOldTopBox(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemory())

	old := day0.AddDate(0, 0, -31)
	recent := day0.AddDate(0, 0, -5)
	require.NoError(t, s.Upsert(ReviewRecord{ItemID: "old-top", Box: 3, NextReview: day0, LastReviewed: old}))
	require.NoError(t, s.Upsert(ReviewRecord{ItemID: "new-top", Box: 3, NextReview: day0, LastReviewed: recent}))
	require.NoError(t, s.Upsert(ReviewRecord{ItemID: "old-low", Box: 1, NextReview: day0, LastReviewed: old}))

	pruned := s.CleanupStale()
	assert.Equal(t, 1, pruned)

	_, ok := s.Get("old-top")
	assert.False(t, ok)
	_, ok = s.Get("new-top")
	assert.True(t, ok)
	_, ok = s.Get("old-low")
	assert.True(t, ok)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s, _ := newTestStore(t, backend)

	require.NoError(t, s.Upsert(ReviewRecord{ItemID: "a", Box: 1, NextReview: day0}))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.ClearAll(ctx))

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, backend.Len())
}
