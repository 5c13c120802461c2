package progress

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for review dates. Scheduling compares
// calendar dates only, so persisted dates carry no time of day.
const DateFormat = "2006-01-02"

// ReviewRecord is the per-item review state. One exists for every
// catalog item that has ever been answered; items never answered have
// no record at all.
type ReviewRecord struct {
	ItemID         string
	Box            int
	NextReview     time.Time
	TimesCorrect   int
	TimesIncorrect int
	LastReviewed   time.Time
	LastCorrect    bool
}

// wireRecord is the persisted JSON shape of a ReviewRecord. The item
// id is the enclosing map key, not a field.
type wireRecord struct {
	CurrentBox        int    `json:"currentBox"`
	NextReviewDate    string `json:"nextReviewDate"`
	TimesCorrect      int    `json:"timesCorrect"`
	TimesIncorrect    int    `json:"timesIncorrect"`
	LastReviewed      string `json:"lastReviewed"`
	LastAnswerCorrect bool   `json:"lastAnswerCorrect"`
}

func toWire(r ReviewRecord) wireRecord {
	w := wireRecord{
		CurrentBox:        r.Box,
		NextReviewDate:    r.NextReview.Format(DateFormat),
		TimesCorrect:      r.TimesCorrect,
		TimesIncorrect:    r.TimesIncorrect,
		LastAnswerCorrect: r.LastCorrect,
	}
	if !r.LastReviewed.IsZero() {
		w.LastReviewed = r.LastReviewed.Format(DateFormat)
	}
	return w
}

// fromWire validates and converts a persisted entry. Structurally
// invalid entries return an error and are dropped by Load.
func fromWire(id string, w wireRecord, maxLoadBox int) (ReviewRecord, error) {
	if id == "" {
		return ReviewRecord{}, fmt.Errorf("empty item id")
	}
	if w.CurrentBox < 1 || w.CurrentBox > maxLoadBox {
		return ReviewRecord{}, fmt.Errorf("box %d out of range", w.CurrentBox)
	}
	if w.TimesCorrect < 0 || w.TimesIncorrect < 0 {
		return ReviewRecord{}, fmt.Errorf("negative answer count")
	}

	next, err := time.Parse(DateFormat, w.NextReviewDate)
	if err != nil {
		return ReviewRecord{}, fmt.Errorf("bad next review date %q", w.NextReviewDate)
	}

	var last time.Time
	if w.LastReviewed != "" {
		last, err = time.Parse(DateFormat, w.LastReviewed)
		if err != nil {
			return ReviewRecord{}, fmt.Errorf("bad last reviewed date %q", w.LastReviewed)
		}
	}

	return ReviewRecord{
		ItemID:         id,
		Box:            w.CurrentBox,
		NextReview:     next,
		TimesCorrect:   w.TimesCorrect,
		TimesIncorrect: w.TimesIncorrect,
		LastReviewed:   last,
		LastCorrect:    w.LastAnswerCorrect,
	}, nil
}
