package persistence

import (
	"context"

	"github.com/example/smarthome-admin/internal/simulation"
)

// PostureRepository stores one SecurityPosture per admin account.
type PostureRepository interface {
	// GetPosture returns the stored posture. Absence is reported with
	// ErrNotFound; lazy default creation is the service's concern.
	GetPosture(ctx context.Context, adminID string) (SecurityPosture, error)
	CreatePosture(ctx context.Context, posture SecurityPosture) (SecurityPosture, error)
	// ReplacePosture overwrites the posture iff the stored version equals
	// posture.Version.
	ReplacePosture(ctx context.Context, posture SecurityPosture) (SecurityPosture, error)
}

// EventRepository stores simulated events scoped by admin account.
type EventRepository interface {
	CreateEvent(ctx context.Context, event SimulatedEvent) (SimulatedEvent, error)
	GetEvent(ctx context.Context, adminID, id string) (SimulatedEvent, error)
	// ListEvents returns the account's events in no particular order.
	ListEvents(ctx context.Context, adminID string) ([]SimulatedEvent, error)
	// UpdateEventStatus moves the event to the new status iff the stored
	// version equals event.Version, making read-verify-write sequences
	// atomic with respect to other writers.
	UpdateEventStatus(ctx context.Context, event SimulatedEvent, to simulation.Status) (SimulatedEvent, error)
}

// ActivityLogRepository persists activity-log entries.
type ActivityLogRepository interface {
	AppendActivity(ctx context.Context, entry ActivityLogEntry) (ActivityLogEntry, error)
	ListActivity(ctx context.Context, adminID string) ([]ActivityLogEntry, error)
}

// NotificationRepository queues outbound notification requests for the
// delivery collaborator.
type NotificationRepository interface {
	EnqueueNotification(ctx context.Context, req NotificationRequest) (NotificationRequest, error)
	ListNotifications(ctx context.Context, adminID string) ([]NotificationRequest, error)
}
