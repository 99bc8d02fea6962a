package application

import (
	"context"
	"time"

	"github.com/example/smarthome-admin/internal/accesspolicy"
	"github.com/example/smarthome-admin/internal/persistence"
	"github.com/example/smarthome-admin/internal/simulation"
)

// PostureRepository captures the persistence interactions needed by the
// security service.
type PostureRepository interface {
	GetPosture(ctx context.Context, adminID string) (persistence.SecurityPosture, error)
	CreatePosture(ctx context.Context, posture persistence.SecurityPosture) (persistence.SecurityPosture, error)
	ReplacePosture(ctx context.Context, posture persistence.SecurityPosture) (persistence.SecurityPosture, error)
}

// EventRepository captures the persistence interactions needed by the
// simulation service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event persistence.SimulatedEvent) (persistence.SimulatedEvent, error)
	GetEvent(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error)
	ListEvents(ctx context.Context, adminID string) ([]persistence.SimulatedEvent, error)
	UpdateEventStatus(ctx context.Context, event persistence.SimulatedEvent, to simulation.Status) (persistence.SimulatedEvent, error)
}

// ActivityLog receives the activity entries emitted by the services.
type ActivityLog interface {
	AppendActivity(ctx context.Context, entry persistence.ActivityLogEntry) (persistence.ActivityLogEntry, error)
}

// NotificationSink receives the notification requests emitted by the
// services; delivery is the collaborator's concern.
type NotificationSink interface {
	EnqueueNotification(ctx context.Context, req persistence.NotificationRequest) (persistence.NotificationRequest, error)
}

// ScheduleInput captures caller provided access-schedule fields.
type ScheduleInput struct {
	DeviceID   string
	UserID     string
	DayPattern string
	StartTime  string
	EndTime    string
}

// EventInput captures caller provided simulated-event fields.
type EventInput struct {
	Name            string
	Type            string
	Description     string
	ScheduledAt     time.Time
	AffectedDevices []string
	NotifyUsers     bool
}

// toPolicyPosture converts a stored posture into the evaluator's shape.
func toPolicyPosture(posture persistence.SecurityPosture) accesspolicy.Posture {
	schedules := make([]accesspolicy.Schedule, 0, len(posture.AccessSchedules))
	for _, schedule := range posture.AccessSchedules {
		schedules = append(schedules, accesspolicy.Schedule{
			ID:         schedule.ID,
			DeviceID:   schedule.DeviceID,
			UserID:     schedule.UserID,
			DayPattern: accesspolicy.DayPattern(schedule.DayPattern),
			StartTime:  schedule.StartTime,
			EndTime:    schedule.EndTime,
		})
	}
	return accesspolicy.Posture{
		SystemArmed:               posture.SystemArmed,
		SensitiveDevicesProtected: posture.SensitiveDevicesProtected,
		Schedules:                 schedules,
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
