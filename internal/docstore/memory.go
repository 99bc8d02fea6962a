package docstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Client implementation. It backs tests and the
// development mode of the daemon.
type Memory struct {
	mu          sync.RWMutex
	now         func() time.Time
	collections map[string]map[string]Document
}

// NewMemory returns an empty in-memory store. When now is nil, time.Now is
// used for document timestamps.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:         now,
		collections: make(map[string]map[string]Document),
	}
}

// Find returns the documents owned by ownerID in the collection.
func (m *Memory) Find(ctx context.Context, collection, ownerID string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collection]
	result := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc.OwnerID != ownerID {
			continue
		}
		result = append(result, cloneDocument(doc))
	}
	return result, nil
}

// Get retrieves a single owned document.
func (m *Memory) Get(ctx context.Context, collection, ownerID, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok || doc.OwnerID != ownerID {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// Create inserts a new document at version 1.
func (m *Memory) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		m.collections[collection] = docs
	}
	if _, exists := docs[doc.ID]; exists {
		return Document{}, ErrDuplicate
	}

	now := m.now()
	stored := cloneDocument(doc)
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	docs[doc.ID] = stored
	return cloneDocument(stored), nil
}

// Update replaces the document body when the stored version matches.
func (m *Memory) Update(ctx context.Context, collection string, doc Document, expectedVersion int64) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.collections[collection][doc.ID]
	if !ok || existing.OwnerID != doc.OwnerID {
		return Document{}, ErrNotFound
	}
	if existing.Version != expectedVersion {
		return Document{}, ErrVersionConflict
	}

	stored := cloneDocument(doc)
	stored.Version = existing.Version + 1
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = m.now()
	m.collections[collection][doc.ID] = stored
	return cloneDocument(stored), nil
}

// Delete removes an owned document.
func (m *Memory) Delete(ctx context.Context, collection, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok || doc.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

// Close is a no-op for the in-memory implementation.
func (m *Memory) Close() error {
	return nil
}

func cloneDocument(doc Document) Document {
	out := doc
	if doc.Body != nil {
		out.Body = append([]byte(nil), doc.Body...)
	}
	return out
}
