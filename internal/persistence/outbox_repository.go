package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/smarthome-admin/internal/docstore"
)

type activityDocument struct {
	AdminID     string    `json:"adminId"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type notificationDocument struct {
	AdminID  string `json:"adminId"`
	Audience string `json:"audience"`
	Message  string `json:"message"`
}

// DocumentActivityLogRepository implements ActivityLogRepository on a
// document store.
type DocumentActivityLogRepository struct {
	store docstore.Client
}

// NewDocumentActivityLogRepository wires the repository to a document store.
func NewDocumentActivityLogRepository(store docstore.Client) *DocumentActivityLogRepository {
	return &DocumentActivityLogRepository{store: store}
}

// AppendActivity persists an activity-log entry.
func (r *DocumentActivityLogRepository) AppendActivity(ctx context.Context, entry ActivityLogEntry) (ActivityLogEntry, error) {
	body, err := json.Marshal(activityDocument{
		AdminID:     entry.AdminID,
		Type:        entry.Type,
		Description: entry.Description,
		Timestamp:   entry.Timestamp,
	})
	if err != nil {
		return ActivityLogEntry{}, fmt.Errorf("encode activity entry: %w", err)
	}
	if _, err := r.store.Create(ctx, docstore.CollectionActivityLogs, docstore.Document{
		ID:      entry.ID,
		OwnerID: entry.AdminID,
		Body:    body,
	}); err != nil {
		return ActivityLogEntry{}, mapStoreError(err)
	}
	return entry, nil
}

// ListActivity returns the account's activity entries in no particular order.
func (r *DocumentActivityLogRepository) ListActivity(ctx context.Context, adminID string) ([]ActivityLogEntry, error) {
	docs, err := r.store.Find(ctx, docstore.CollectionActivityLogs, adminID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	entries := make([]ActivityLogEntry, 0, len(docs))
	for _, doc := range docs {
		var record activityDocument
		if err := json.Unmarshal(doc.Body, &record); err != nil {
			return nil, fmt.Errorf("decode activity entry %q: %w", doc.ID, err)
		}
		entries = append(entries, ActivityLogEntry{
			ID:          doc.ID,
			AdminID:     record.AdminID,
			Type:        record.Type,
			Description: record.Description,
			Timestamp:   record.Timestamp,
		})
	}
	return entries, nil
}

// DocumentNotificationRepository implements NotificationRepository on a
// document store.
type DocumentNotificationRepository struct {
	store docstore.Client
}

// NewDocumentNotificationRepository wires the repository to a document store.
func NewDocumentNotificationRepository(store docstore.Client) *DocumentNotificationRepository {
	return &DocumentNotificationRepository{store: store}
}

// EnqueueNotification persists an outbound notification request.
func (r *DocumentNotificationRepository) EnqueueNotification(ctx context.Context, req NotificationRequest) (NotificationRequest, error) {
	body, err := json.Marshal(notificationDocument{
		AdminID:  req.AdminID,
		Audience: req.Audience,
		Message:  req.Message,
	})
	if err != nil {
		return NotificationRequest{}, fmt.Errorf("encode notification: %w", err)
	}
	doc, err := r.store.Create(ctx, docstore.CollectionNotifications, docstore.Document{
		ID:      req.ID,
		OwnerID: req.AdminID,
		Body:    body,
	})
	if err != nil {
		return NotificationRequest{}, mapStoreError(err)
	}
	req.CreatedAt = doc.CreatedAt
	return req, nil
}

// ListNotifications returns the account's queued notifications in no
// particular order.
func (r *DocumentNotificationRepository) ListNotifications(ctx context.Context, adminID string) ([]NotificationRequest, error) {
	docs, err := r.store.Find(ctx, docstore.CollectionNotifications, adminID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	requests := make([]NotificationRequest, 0, len(docs))
	for _, doc := range docs {
		var record notificationDocument
		if err := json.Unmarshal(doc.Body, &record); err != nil {
			return nil, fmt.Errorf("decode notification %q: %w", doc.ID, err)
		}
		requests = append(requests, NotificationRequest{
			ID:        doc.ID,
			AdminID:   record.AdminID,
			Audience:  record.Audience,
			Message:   record.Message,
			CreatedAt: doc.CreatedAt,
		})
	}
	return requests, nil
}
