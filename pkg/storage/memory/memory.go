// Package memory provides in-memory implementations of the credential,
// document and blob stores for testing and lightweight deployments. Data is
// lost when the process restarts. Documents are bounded by LRU eviction;
// identities are never evicted.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/rhuss/feynmind/pkg/api"
	"github.com/rhuss/feynmind/pkg/storage"
)

// entry holds a stored document and its position in the LRU list.
type entry struct {
	doc     *api.Document
	lruElem *list.Element
}

// Store is an in-memory credential and document store.
type Store struct {
	mu         sync.RWMutex
	identities map[string]*api.Identity
	entries    map[string]*entry
	lruList    *list.List // front = most recently used, back = least recently used
	maxSize    int        // document limit, 0 = unlimited
	onEvict    func(doc *api.Document)
}

// New creates a new in-memory store. If maxDocuments is 0, documents grow
// without limit. Otherwise the least recently used document is evicted when
// the limit is reached.
func New(maxDocuments int) *Store {
	return &Store{
		identities: make(map[string]*api.Identity),
		entries:    make(map[string]*entry),
		lruList:    list.New(),
		maxSize:    maxDocuments,
	}
}

// OnEvict registers fn to be called with each document dropped by LRU
// eviction. fn runs after the store lock is released. Call it before the
// store is shared.
func (s *Store) OnEvict(fn func(doc *api.Document)) {
	s.onEvict = fn
}

// FindByEmail returns the identity registered under email.
func (s *Store) FindByEmail(_ context.Context, email string) (*api.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identities[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *id
	return &cp, nil
}

// ExistsByEmail reports whether email is registered.
func (s *Store) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.identities[email]
	return ok, nil
}

// SaveIdentity persists a new identity. The check and insert happen under
// one lock, so of two concurrent saves for an email exactly one succeeds.
func (s *Store) SaveIdentity(_ context.Context, id *api.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[id.Email]; exists {
		return storage.ErrConflict
	}
	cp := *id
	s.identities[id.Email] = &cp
	return nil
}

// SaveDocument persists a document for the owner in ctx.
func (s *Store) SaveDocument(ctx context.Context, doc *api.Document) error {
	owner := storage.GetOwner(ctx)
	if owner == "" {
		return storage.ErrNoOwner
	}

	s.mu.Lock()
	if _, exists := s.entries[doc.ID]; exists {
		s.mu.Unlock()
		return storage.ErrConflict
	}

	var evicted *api.Document
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		evicted = s.evictOldest()
	}

	cp := *doc
	cp.Owner = owner
	elem := s.lruList.PushFront(doc.ID)
	s.entries[doc.ID] = &entry{doc: &cp, lruElem: elem}
	s.mu.Unlock()

	if evicted != nil && s.onEvict != nil {
		s.onEvict(evicted)
	}
	return nil
}

// GetDocumentByName returns the owner's most recently uploaded document
// with the given file name, including its content.
func (s *Store) GetDocumentByName(ctx context.Context, fileName string) (*api.Document, error) {
	owner := storage.GetOwner(ctx)
	if owner == "" {
		return nil, storage.ErrNoOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var found *entry
	for _, e := range s.entries {
		if e.doc.Owner != owner || e.doc.FileName != fileName {
			continue
		}
		if found == nil || e.doc.UploadedAt.After(found.doc.UploadedAt) {
			found = e
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}

	s.lruList.MoveToFront(found.lruElem)
	cp := *found.doc
	return &cp, nil
}

// ListDocuments returns the owner's documents, newest first, without content.
func (s *Store) ListDocuments(ctx context.Context) ([]*api.Document, error) {
	owner := storage.GetOwner(ctx)
	if owner == "" {
		return nil, storage.ErrNoOwner
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []*api.Document{}
	for _, e := range s.entries {
		if e.doc.Owner != owner {
			continue
		}
		cp := *e.doc
		cp.Content = ""
		matches = append(matches, &cp)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UploadedAt.Equal(matches[j].UploadedAt) {
			return matches[i].UploadedAt.After(matches[j].UploadedAt)
		}
		return matches[i].ID > matches[j].ID
	})
	return matches, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes and returns the least recently used document.
// Must be called with s.mu held.
func (s *Store) evictOldest() *api.Document {
	back := s.lruList.Back()
	if back == nil {
		return nil
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	e := s.entries[id]
	delete(s.entries, id)
	if e == nil {
		return nil
	}
	return e.doc
}
