// Package scheduler implements the Leitner-box scheduling policy.
//
// Everything here is pure computation over review records supplied by
// the caller: no I/O, no storage access. The only process state is the
// tiebreak seed, fixed once at construction so that ordering ties are
// stable within a run but vary across runs.
package scheduler

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"time"

	"github.com/quizdrill/drill/internal/catalog"
	"github.com/quizdrill/drill/internal/clock"
	"github.com/quizdrill/drill/internal/progress"
)

const (
	// DefaultMaxBox is the highest proficiency box. Box 1 holds new
	// and demoted items; DefaultMaxBox holds mastered ones.
	DefaultMaxBox = 3

	// DefaultMinDueSet is the floor ComputeDueSet backfills toward
	// when too few items are naturally due.
	DefaultMinDueSet = 20

	// DefaultResurfaceRate is the fraction of non-due top-box items
	// sampled back into the due set for long-term reinforcement.
	DefaultResurfaceRate = 0.10
)

// Config tunes the scheduling policy. Zero values produce defaults.
type Config struct {
	// Intervals maps box number to review offset in days. Nil means
	// {1: 1, 2: 2, 3: 3}. Must be monotonically increasing and cover
	// every box from 1 to MaxBox.
	Intervals map[int]int

	MaxBox        int     // zero → DefaultMaxBox
	MinDueSet     int     // zero → DefaultMinDueSet
	ResurfaceRate float64 // zero → DefaultResurfaceRate

	// Seed fixes the tiebreak and sampling seed. Zero seeds from the
	// wall clock, giving each process run its own stable ordering.
	Seed int64
}

// Scheduler decides which items are due and how they are ordered.
type Scheduler struct {
	intervals     map[int]int
	maxBox        int
	minDueSet     int
	resurfaceRate float64
	seed          uint64
	rng           *rand.Rand
}

// New creates a Scheduler from the given config. Zero-value fields are
// filled with defaults; invalid values return an error.
func New(cfg Config) (*Scheduler, error) {
	maxBox := cfg.MaxBox
	if maxBox == 0 {
		maxBox = DefaultMaxBox
	}
	if maxBox < 1 {
		return nil, fmt.Errorf("scheduler: max box %d must be positive", maxBox)
	}

	intervals := cfg.Intervals
	if intervals == nil {
		intervals = make(map[int]int, maxBox)
		for box := 1; box <= maxBox; box++ {
			intervals[box] = box
		}
	}
	prev := 0
	for box := 1; box <= maxBox; box++ {
		days, ok := intervals[box]
		if !ok {
			return nil, fmt.Errorf("scheduler: no interval for box %d", box)
		}
		if days <= prev {
			return nil, fmt.Errorf("scheduler: interval for box %d must exceed box %d", box, box-1)
		}
		prev = days
	}

	minDue := cfg.MinDueSet
	if minDue == 0 {
		minDue = DefaultMinDueSet
	}
	if minDue < 0 {
		return nil, fmt.Errorf("scheduler: minimum due set %d must not be negative", minDue)
	}

	rate := cfg.ResurfaceRate
	if rate == 0 {
		rate = DefaultResurfaceRate
	}
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("scheduler: resurface rate %f out of range [0, 1]", rate)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Scheduler{
		intervals:     intervals,
		maxBox:        maxBox,
		minDueSet:     minDue,
		resurfaceRate: rate,
		seed:          uint64(seed),
		rng:           rand.New(rand.NewSource(seed)),
	}, nil
}

// MaxBox returns the highest proficiency box.
func (s *Scheduler) MaxBox() int {
	return s.maxBox
}

// Interval returns the review offset in days for a box.
func (s *Scheduler) Interval(box int) int {
	return s.intervals[box]
}

// MoveItem returns the box an item lands in after an answer.
//
// Correct promotes one box, capped at the maximum. Incorrect always
// demotes to box 1 - full demotion is the policy, not a partial step
// back.
func (s *Scheduler) MoveItem(box int, correct bool) int {
	if correct {
		if box >= s.maxBox {
			return s.maxBox
		}
		return box + 1
	}
	return 1
}

// NextReviewDate returns from's calendar date plus the box's interval.
func (s *Scheduler) NextReviewDate(box int, from time.Time) time.Time {
	return clock.DateOf(from).AddDate(0, 0, s.intervals[box])
}

// IsDue reports whether the record's next review date has arrived.
// Comparison is by calendar date only: any two instants on the same
// date agree.
func (s *Scheduler) IsDue(rec progress.ReviewRecord, now time.Time) bool {
	return clock.CompareDates(rec.NextReview, now) <= 0
}

// ComputeDueSet selects the items to study now.
//
// Unsuitable items (no options, rich content) are excluded outright.
// Remaining items are due if they have no record yet (new, box 1) or
// their review date has arrived. A sample of non-due top-box items is
// mixed back in for reinforcement, and if the set still falls short of
// the configured minimum it is backfilled with the lowest-box non-due
// items until the minimum is met or the catalog is exhausted.
func (s *Scheduler) ComputeDueSet(items []catalog.Item, records map[string]progress.ReviewRecord, now time.Time) []catalog.Item {
	var due []catalog.Item
	var notDue []catalog.Item

	for _, it := range items {
		if !it.Reviewable() {
			continue
		}
		rec, ok := records[it.ID]
		if !ok || s.IsDue(rec, now) {
			due = append(due, it)
			continue
		}
		if rec.Box == s.maxBox && s.rng.Float64() < s.resurfaceRate {
			due = append(due, it)
			continue
		}
		notDue = append(notDue, it)
	}

	if len(due) < s.minDueSet && len(notDue) > 0 {
		// Lowest box first; catalog order breaks ties.
		sort.SliceStable(notDue, func(i, j int) bool {
			return records[notDue[i].ID].Box < records[notDue[j].ID].Box
		})
		need := s.minDueSet - len(due)
		if need > len(notDue) {
			need = len(notDue)
		}
		due = append(due, notDue[:need]...)
	}

	return due
}

// Order sorts items for presentation: due before not-due, then lower
// box first, then higher failure count first, then a run-stable
// pseudo-random tiebreak. The input slice is not mutated.
func (s *Scheduler) Order(items []catalog.Item, records map[string]progress.ReviewRecord, now time.Time) []catalog.Item {
	out := make([]catalog.Item, len(items))
	copy(out, items)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ra, aOK := records[a.ID]
		rb, bOK := records[b.ID]

		aDue := !aOK || s.IsDue(ra, now)
		bDue := !bOK || s.IsDue(rb, now)
		if aDue != bDue {
			return aDue
		}

		aBox, bBox := 1, 1
		if aOK {
			aBox = ra.Box
		}
		if bOK {
			bBox = rb.Box
		}
		if aBox != bBox {
			return aBox < bBox
		}

		if ra.TimesIncorrect != rb.TimesIncorrect {
			return ra.TimesIncorrect > rb.TimesIncorrect
		}

		return s.tieRank(a.ID) < s.tieRank(b.ID)
	})
	return out
}

// tieRank hashes an item id against the run seed. Stable for the life
// of the process, different across runs.
func (s *Scheduler) tieRank(id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64() ^ s.seed
}

// Interleave round-robins items across topic groups so long runs of
// one topic are broken up. Groups form in first-seen order and each
// keeps its internal order; drained groups drop out of the rotation.
func (s *Scheduler) Interleave(items []catalog.Item) []catalog.Item {
	var topics []string
	groups := make(map[string][]catalog.Item)
	for _, it := range items {
		if _, ok := groups[it.Topic]; !ok {
			topics = append(topics, it.Topic)
		}
		groups[it.Topic] = append(groups[it.Topic], it)
	}

	out := make([]catalog.Item, 0, len(items))
	for len(topics) > 0 {
		remaining := topics[:0]
		for _, topic := range topics {
			group := groups[topic]
			out = append(out, group[0])
			group = group[1:]
			if len(group) > 0 {
				groups[topic] = group
				remaining = append(remaining, topic)
			}
		}
		topics = remaining
	}
	return out
}

// Shuffle returns a shuffled copy of items using the run-seeded rng.
func (s *Scheduler) Shuffle(items []catalog.Item) []catalog.Item {
	out := make([]catalog.Item, len(items))
	copy(out, items)
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
