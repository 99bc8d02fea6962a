package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/smarthome-admin/internal/docstore"
	"github.com/example/smarthome-admin/internal/simulation"
)

// eventDocument is the stored JSON form of a simulated event. Field names
// mirror the simulatedEvents collection records.
type eventDocument struct {
	AdminID         string    `json:"adminId"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	Description     string    `json:"description,omitempty"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	AffectedDevices []string  `json:"affectedDevices"`
	NotifyUsers     bool      `json:"notifyUsers"`
	Status          string    `json:"status"`
}

// DocumentEventRepository implements EventRepository on a document store.
type DocumentEventRepository struct {
	store docstore.Client
}

// NewDocumentEventRepository wires the repository to a document store.
func NewDocumentEventRepository(store docstore.Client) *DocumentEventRepository {
	return &DocumentEventRepository{store: store}
}

// CreateEvent persists a new simulated event.
func (r *DocumentEventRepository) CreateEvent(ctx context.Context, event SimulatedEvent) (SimulatedEvent, error) {
	body, err := encodeEvent(event)
	if err != nil {
		return SimulatedEvent{}, err
	}
	doc, err := r.store.Create(ctx, docstore.CollectionEvents, docstore.Document{
		ID:      event.ID,
		OwnerID: event.AdminID,
		Body:    body,
	})
	if err != nil {
		return SimulatedEvent{}, mapStoreError(err)
	}
	return decodeEvent(doc)
}

// GetEvent retrieves one event owned by the admin account.
func (r *DocumentEventRepository) GetEvent(ctx context.Context, adminID, id string) (SimulatedEvent, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionEvents, adminID, id)
	if err != nil {
		return SimulatedEvent{}, mapStoreError(err)
	}
	return decodeEvent(doc)
}

// ListEvents returns the account's events in no particular order.
func (r *DocumentEventRepository) ListEvents(ctx context.Context, adminID string) ([]SimulatedEvent, error) {
	docs, err := r.store.Find(ctx, docstore.CollectionEvents, adminID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	events := make([]SimulatedEvent, 0, len(docs))
	for _, doc := range docs {
		event, err := decodeEvent(doc)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// UpdateEventStatus rewrites the event with the new status, conditioned on
// event.Version. A concurrent transition bumps the version and makes this
// write fail with ErrVersionConflict, so the caller's read-verify-write
// sequence stays atomic.
func (r *DocumentEventRepository) UpdateEventStatus(ctx context.Context, event SimulatedEvent, to simulation.Status) (SimulatedEvent, error) {
	updated := event
	updated.Status = to
	body, err := encodeEvent(updated)
	if err != nil {
		return SimulatedEvent{}, err
	}
	doc, err := r.store.Update(ctx, docstore.CollectionEvents, docstore.Document{
		ID:      event.ID,
		OwnerID: event.AdminID,
		Body:    body,
	}, event.Version)
	if err != nil {
		return SimulatedEvent{}, mapStoreError(err)
	}
	return decodeEvent(doc)
}

func encodeEvent(event SimulatedEvent) (json.RawMessage, error) {
	devices := event.AffectedDevices
	if devices == nil {
		devices = []string{}
	}
	body, err := json.Marshal(eventDocument{
		AdminID:         event.AdminID,
		Name:            event.Name,
		Type:            string(event.Type),
		Description:     event.Description,
		ScheduledAt:     event.ScheduledAt,
		AffectedDevices: devices,
		NotifyUsers:     event.NotifyUsers,
		Status:          string(event.Status),
	})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return body, nil
}

func decodeEvent(doc docstore.Document) (SimulatedEvent, error) {
	var record eventDocument
	if err := json.Unmarshal(doc.Body, &record); err != nil {
		return SimulatedEvent{}, fmt.Errorf("decode event %q: %w", doc.ID, err)
	}
	if !simulation.ValidStatus(simulation.Status(record.Status)) {
		return SimulatedEvent{}, fmt.Errorf("decode event %q: unknown status %q", doc.ID, record.Status)
	}

	event := SimulatedEvent{
		ID:              doc.ID,
		AdminID:         record.AdminID,
		Name:            record.Name,
		Type:            simulation.EventType(record.Type),
		Description:     record.Description,
		ScheduledAt:     record.ScheduledAt,
		AffectedDevices: record.AffectedDevices,
		NotifyUsers:     record.NotifyUsers,
		Status:          simulation.Status(record.Status),
		Version:         doc.Version,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if event.AdminID == "" {
		event.AdminID = doc.OwnerID
	}
	return event, nil
}
