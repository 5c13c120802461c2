// Package session composes, persists, and restores bounded study
// sessions over the due set the scheduler selects.
package session

import "time"

// Storage keys owned by this package.
const (
	Key            = "session"
	SubmissionsKey = "session.submissions"
)

// Session is the persisted working set for one study pass.
type Session struct {
	ItemIDs              []string `json:"itemIds"`
	CreatedAt            int64    `json:"createdAt"` // unix seconds
	TotalItemsAtCreation int      `json:"totalItemsAtCreation"`
}

// Submission is the per-item answer state within a session. Ephemeral
// relative to the session: cleared whenever a new session starts.
type Submission struct {
	Submitted   bool      `json:"isSubmitted"`
	Correct     bool      `json:"isCorrect"`
	Answers     []string  `json:"submittedAnswers,omitempty"`
	SubmittedAt time.Time `json:"submittedAt,omitzero"`
}

// Results summarizes a finished session. Immutable once computed;
// visible until the next session starts.
type Results struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Total     int `json:"total"`
}

// State tracks the manager's lifecycle.
type State int

const (
	// StateNone means no session exists yet.
	StateNone State = iota
	// StateActive means a session is in progress.
	StateActive
	// StateComplete means the last session ended and its results are
	// still on display.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}
