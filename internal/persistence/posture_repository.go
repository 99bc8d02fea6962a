package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/smarthome-admin/internal/docstore"
)

// postureDocument is the stored JSON form of a security posture. Field names
// mirror the securityPostures collection records.
type postureDocument struct {
	AdminID                   string                      `json:"adminId"`
	SystemArmed               bool                        `json:"systemArmed"`
	SensitiveDevicesProtected bool                        `json:"sensitiveDevicesProtected"`
	AccessSchedules           map[string]scheduleDocument `json:"accessSchedules"`
}

type scheduleDocument struct {
	DeviceID   string `json:"deviceId"`
	UserID     string `json:"userId,omitempty"`
	DayPattern string `json:"dayPattern"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// DocumentPostureRepository implements PostureRepository on a document store.
// The posture document id equals the owning admin id, so each account has at
// most one posture.
type DocumentPostureRepository struct {
	store docstore.Client
}

// NewDocumentPostureRepository wires the repository to a document store.
func NewDocumentPostureRepository(store docstore.Client) *DocumentPostureRepository {
	return &DocumentPostureRepository{store: store}
}

// GetPosture returns the stored posture for the admin account.
func (r *DocumentPostureRepository) GetPosture(ctx context.Context, adminID string) (SecurityPosture, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionPostures, adminID, adminID)
	if err != nil {
		return SecurityPosture{}, mapStoreError(err)
	}
	return decodePosture(doc)
}

// CreatePosture persists a new posture document.
func (r *DocumentPostureRepository) CreatePosture(ctx context.Context, posture SecurityPosture) (SecurityPosture, error) {
	body, err := encodePosture(posture)
	if err != nil {
		return SecurityPosture{}, err
	}
	doc, err := r.store.Create(ctx, docstore.CollectionPostures, docstore.Document{
		ID:      posture.AdminID,
		OwnerID: posture.AdminID,
		Body:    body,
	})
	if err != nil {
		return SecurityPosture{}, mapStoreError(err)
	}
	return decodePosture(doc)
}

// ReplacePosture overwrites the posture, conditioned on posture.Version.
func (r *DocumentPostureRepository) ReplacePosture(ctx context.Context, posture SecurityPosture) (SecurityPosture, error) {
	body, err := encodePosture(posture)
	if err != nil {
		return SecurityPosture{}, err
	}
	doc, err := r.store.Update(ctx, docstore.CollectionPostures, docstore.Document{
		ID:      posture.AdminID,
		OwnerID: posture.AdminID,
		Body:    body,
	}, posture.Version)
	if err != nil {
		return SecurityPosture{}, mapStoreError(err)
	}
	return decodePosture(doc)
}

func encodePosture(posture SecurityPosture) (json.RawMessage, error) {
	record := postureDocument{
		AdminID:                   posture.AdminID,
		SystemArmed:               posture.SystemArmed,
		SensitiveDevicesProtected: posture.SensitiveDevicesProtected,
		AccessSchedules:           make(map[string]scheduleDocument, len(posture.AccessSchedules)),
	}
	for id, schedule := range posture.AccessSchedules {
		record.AccessSchedules[id] = scheduleDocument{
			DeviceID:   schedule.DeviceID,
			UserID:     schedule.UserID,
			DayPattern: schedule.DayPattern,
			StartTime:  schedule.StartTime,
			EndTime:    schedule.EndTime,
		}
	}
	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode posture: %w", err)
	}
	return body, nil
}

func decodePosture(doc docstore.Document) (SecurityPosture, error) {
	var record postureDocument
	if err := json.Unmarshal(doc.Body, &record); err != nil {
		return SecurityPosture{}, fmt.Errorf("decode posture %q: %w", doc.ID, err)
	}

	posture := SecurityPosture{
		AdminID:                   record.AdminID,
		SystemArmed:               record.SystemArmed,
		SensitiveDevicesProtected: record.SensitiveDevicesProtected,
		AccessSchedules:           make(map[string]AccessSchedule, len(record.AccessSchedules)),
		Version:                   doc.Version,
		CreatedAt:                 doc.CreatedAt,
		UpdatedAt:                 doc.UpdatedAt,
	}
	if posture.AdminID == "" {
		posture.AdminID = doc.OwnerID
	}
	for id, schedule := range record.AccessSchedules {
		posture.AccessSchedules[id] = AccessSchedule{
			ID:         id,
			DeviceID:   schedule.DeviceID,
			UserID:     schedule.UserID,
			DayPattern: schedule.DayPattern,
			StartTime:  schedule.StartTime,
			EndTime:    schedule.EndTime,
		}
	}
	return posture, nil
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, docstore.ErrDuplicate):
		return ErrDuplicate
	case errors.Is(err, docstore.ErrVersionConflict):
		return ErrVersionConflict
	default:
		return err
	}
}
