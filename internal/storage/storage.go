package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists under the key.
var ErrNotFound = errors.New("storage: key not found")

// Store is the durability boundary. Implementations must make Save
// atomic per key: a reader never observes a torn blob.
type Store interface {
	// Load returns the blob saved under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save writes the blob under key, replacing any previous value.
	Save(ctx context.Context, key string, blob []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
