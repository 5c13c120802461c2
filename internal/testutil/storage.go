package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/quizdrill/drill/internal/storage"
)

// ErrInjected is the failure FlakyStore returns from scripted saves.
var ErrInjected = errors.New("testutil: injected storage failure")

// FlakyStore wraps a storage.Store and fails a scripted number of
// Save calls, counting every call. Used to exercise the progress
// store's cleanup-then-retry path and debounce coalescing.
type FlakyStore struct {
	Inner storage.Store

	mu        sync.Mutex
	failNext  int
	saveCalls int
}

// NewFlakyStore wraps inner with no failures scripted.
func NewFlakyStore(inner storage.Store) *FlakyStore {
	return &FlakyStore{Inner: inner}
}

// FailNextSaves scripts the next n Save calls to fail.
func (f *FlakyStore) FailNextSaves(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
}

// SaveCalls reports how many Save calls were made, failed included.
func (f *FlakyStore) SaveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

// Load delegates to the inner store.
func (f *FlakyStore) Load(ctx context.Context, key string) ([]byte, error) {
	return f.Inner.Load(ctx, key)
}

// Save counts the call and fails if a failure is scripted.
func (f *FlakyStore) Save(ctx context.Context, key string, blob []byte) error {
	f.mu.Lock()
	f.saveCalls++
	fail := f.failNext > 0
	if fail {
		f.failNext--
	}
	f.mu.Unlock()

	if fail {
		return ErrInjected
	}
	return f.Inner.Save(ctx, key, blob)
}

// Delete delegates to the inner store.
func (f *FlakyStore) Delete(ctx context.Context, key string) error {
	return f.Inner.Delete(ctx, key)
}
