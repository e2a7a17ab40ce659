package memory

import (
	"context"
	"sync"

	"github.com/rhuss/feynmind/pkg/storage"
)

// BlobStore keeps uploaded originals in memory.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// PutBlob stores a copy of data under key, replacing any previous value.
func (b *BlobStore) PutBlob(_ context.Context, key, _ string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = append([]byte(nil), data...)
	return nil
}

// GetBlob returns a copy of the data stored under key.
func (b *BlobStore) GetBlob(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// DeleteBlob removes key. Deleting a missing key is not an error.
func (b *BlobStore) DeleteBlob(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}
