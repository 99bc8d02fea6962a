package persistence

import (
	"time"

	"github.com/example/smarthome-admin/internal/simulation"
)

// AccessSchedule is a time-window access rule for one device. An empty
// UserID means the rule applies to every user of the owning account.
type AccessSchedule struct {
	ID         string
	DeviceID   string
	UserID     string
	DayPattern string
	StartTime  string
	EndTime    string
}

// SecurityPosture is the aggregate security configuration of one admin
// account. Version carries the document version used for conditional writes.
type SecurityPosture struct {
	AdminID                   string
	SystemArmed               bool
	SensitiveDevicesProtected bool
	AccessSchedules           map[string]AccessSchedule
	Version                   int64
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// SimulatedEvent is a scheduled rehearsal of an emergency scenario.
type SimulatedEvent struct {
	ID              string
	AdminID         string
	Name            string
	Type            simulation.EventType
	Description     string
	ScheduledAt     time.Time
	AffectedDevices []string
	NotifyUsers     bool
	Status          simulation.Status
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ActivityLogEntry records an auditable action taken by the core.
type ActivityLogEntry struct {
	ID          string
	AdminID     string
	Type        string
	Description string
	Timestamp   time.Time
}

// NotificationRequest is an outbound notification queued for the delivery
// collaborator.
type NotificationRequest struct {
	ID        string
	AdminID   string
	Audience  string
	Message   string
	CreatedAt time.Time
}
