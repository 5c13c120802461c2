package engine

import (
	"errors"
	"fmt"
)

// Error represents a caller-facing engine failure.
//
// Degraded states (corrupt persisted data, failed writes) are handled
// internally and never reach this type; an Error always means the
// caller did something wrong or the engine cannot serve at all.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ItemID identifies the affected item, when one is involved.
	ItemID string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeUnknownItem indicates an item id that does not exist in
	// the supplied catalog. A programming error in the caller.
	ErrCodeUnknownItem ErrorCode = "UNKNOWN_ITEM"

	// ErrCodeNoCatalog indicates an operation that needs a catalog
	// before one was ever supplied.
	ErrCodeNoCatalog ErrorCode = "NO_CATALOG"

	// ErrCodeNotReady indicates initialization failed; the memoized
	// failure is returned to every caller.
	ErrCodeNotReady ErrorCode = "NOT_READY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.ItemID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownItem reports whether err is an unknown-item error.
// Uses errors.As to handle wrapped errors.
func IsUnknownItem(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeUnknownItem
}

// NewUnknownItemError creates an Error for an id missing from the
// catalog.
func NewUnknownItemError(id string) *Error {
	return &Error{
		Code:    ErrCodeUnknownItem,
		Message: "item not present in catalog",
		ItemID:  id,
	}
}
