// Package docstore exposes a generic owner-scoped document-store client.
//
// Every document belongs to exactly one owning admin account. All reads and
// writes are scoped by that owner identifier, so a caller holding the wrong
// owner id observes ErrNotFound rather than another account's data. Writes
// are version predicated to prevent lost updates between concurrent sessions.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Well-known collection names used by the admin core.
const (
	CollectionPostures      = "securityPostures"
	CollectionEvents        = "simulatedEvents"
	CollectionActivityLogs  = "activityLogs"
	CollectionNotifications = "notifications"
)

var (
	// ErrNotFound is returned when the requested document does not exist or
	// belongs to a different owner.
	ErrNotFound = errors.New("docstore: not found")
	// ErrDuplicate is returned when creating a document whose id is taken.
	ErrDuplicate = errors.New("docstore: duplicate id")
	// ErrVersionConflict is returned when a conditional update observes a
	// version other than the one the caller read.
	ErrVersionConflict = errors.New("docstore: version conflict")
)

// Document is the unit of storage. Body holds the collection-specific record
// encoded as JSON; typed codecs live in the persistence layer.
type Document struct {
	ID        string
	OwnerID   string
	Body      json.RawMessage
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client is the document-store collaborator consumed by the typed
// repositories.
type Client interface {
	// Find returns every document in the collection owned by ownerID,
	// in no particular order.
	Find(ctx context.Context, collection, ownerID string) ([]Document, error)
	// Get returns a single document. Cross-owner lookups fail with
	// ErrNotFound.
	Get(ctx context.Context, collection, ownerID, id string) (Document, error)
	// Create inserts a new document at version 1.
	Create(ctx context.Context, collection string, doc Document) (Document, error)
	// Update replaces the document body iff the stored version equals
	// expectedVersion, bumping the version on success.
	Update(ctx context.Context, collection string, doc Document, expectedVersion int64) (Document, error)
	// Delete removes a document. Missing documents report ErrNotFound so
	// callers can decide whether absence matters.
	Delete(ctx context.Context, collection, ownerID, id string) error
	// Close releases any resources held by the client.
	Close() error
}
