// Package stats computes read-only aggregates over review records.
//
// Every function here is a pure recomputation over a records snapshot
// and the current catalog; nothing is cached or persisted, and the
// progress store is never mutated.
package stats

import (
	"time"

	"github.com/quizdrill/drill/internal/catalog"
	"github.com/quizdrill/drill/internal/clock"
	"github.com/quizdrill/drill/internal/progress"
)

// DefaultDailyTarget is the review count DueToday counts down from.
const DefaultDailyTarget = 20

// Snapshot is a derived view for dashboards. Never persisted.
type Snapshot struct {
	BoxDistribution map[int]int `json:"boxDistribution"`
	AccuracyRate    float64     `json:"accuracyRate"`
	StreakDays      int         `json:"streakDays"`
	DueToday        int         `json:"dueToday"`
	TotalItems      int         `json:"totalItems"`
	ItemsSeen       int         `json:"itemsSeen"`
}

// Engine aggregates review records on demand.
type Engine struct {
	dailyTarget int
}

// New creates a stats engine. A zero dailyTarget uses the default.
func New(dailyTarget int) *Engine {
	if dailyTarget == 0 {
		dailyTarget = DefaultDailyTarget
	}
	return &Engine{dailyTarget: dailyTarget}
}

// Compute builds a full snapshot for the given catalog and records.
func (e *Engine) Compute(items []catalog.Item, records map[string]progress.ReviewRecord, now time.Time) Snapshot {
	seen := 0
	for _, it := range items {
		if _, ok := records[it.ID]; ok {
			seen++
		}
	}
	return Snapshot{
		BoxDistribution: BoxDistribution(items, records),
		AccuracyRate:    AccuracyRate(items, records),
		StreakDays:      StreakDays(records, now),
		DueToday:        e.DueToday(records, now),
		TotalItems:      len(items),
		ItemsSeen:       seen,
	}
}

// BoxDistribution counts catalog items per box. Items never answered
// count as box 1.
func BoxDistribution(items []catalog.Item, records map[string]progress.ReviewRecord) map[int]int {
	dist := make(map[int]int)
	for _, it := range items {
		box := 1
		if rec, ok := records[it.ID]; ok {
			box = rec.Box
		}
		dist[box]++
	}
	return dist
}

// AccuracyRate returns total correct over total answers across the
// catalog's items, or 0 when nothing has been answered.
func AccuracyRate(items []catalog.Item, records map[string]progress.ReviewRecord) float64 {
	correct, total := 0, 0
	for _, it := range items {
		rec, ok := records[it.ID]
		if !ok {
			continue
		}
		correct += rec.TimesCorrect
		total += rec.TimesCorrect + rec.TimesIncorrect
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// StreakDays walks backward day-by-day from today and counts
// consecutive days with at least one review. The walk starts at
// today, so a day with no reviews yet does not break an ongoing
// streak by itself.
func StreakDays(records map[string]progress.ReviewRecord, now time.Time) int {
	// Keyed by formatted date so records and now compare by calendar
	// date regardless of time zone.
	active := make(map[string]bool, len(records))
	for _, rec := range records {
		if !rec.LastReviewed.IsZero() {
			active[rec.LastReviewed.Format(progress.DateFormat)] = true
		}
	}

	streak := 0
	day := clock.DateOf(now)
	if !active[day.Format(progress.DateFormat)] {
		// An empty today starts the walk one day back.
		day = day.AddDate(0, 0, -1)
	}
	for active[day.Format(progress.DateFormat)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// DueToday returns the daily target minus reviews already done today,
// floored at 0.
func (e *Engine) DueToday(records map[string]progress.ReviewRecord, now time.Time) int {
	done := 0
	for _, rec := range records {
		if !rec.LastReviewed.IsZero() && clock.SameDate(rec.LastReviewed, now) {
			done++
		}
	}
	remaining := e.dailyTarget - done
	if remaining < 0 {
		return 0
	}
	return remaining
}
