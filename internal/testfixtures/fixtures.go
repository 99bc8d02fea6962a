package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/smarthome-admin/internal/application"
	"github.com/example/smarthome-admin/internal/persistence"
	"github.com/example/smarthome-admin/internal/simulation"
)

var (
	postureCounter  uint64
	scheduleCounter uint64
	eventCounter    uint64
)

var referenceTime = time.Date(2030, time.June, 4, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// --------------------------- Schedule fixtures ---------------------------

// ScheduleFixture represents a deterministic access-schedule rule.
type ScheduleFixture struct {
	ID         string
	DeviceID   string
	UserID     string
	DayPattern string
	StartTime  string
	EndTime    string
}

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*ScheduleFixture)

// NewScheduleFixture returns a deterministic schedule fixture with optional
// overrides. The default rule admits weekday office hours on a lock device.
func NewScheduleFixture(opts ...ScheduleOption) ScheduleFixture {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	fixture := ScheduleFixture{
		ID:         fmt.Sprintf("schedule-%03d", idx),
		DeviceID:   fmt.Sprintf("lock-%03d", idx),
		UserID:     "",
		DayPattern: "weekdays",
		StartTime:  "09:00",
		EndTime:    "17:00",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithScheduleID overrides the schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.ID = id
	}
}

// WithScheduleDevice sets the target device.
func WithScheduleDevice(deviceID string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.DeviceID = deviceID
	}
}

// WithScheduleUser scopes the rule to a single user.
func WithScheduleUser(userID string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.UserID = userID
	}
}

// WithScheduleDayPattern sets the day pattern.
func WithScheduleDayPattern(pattern string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.DayPattern = pattern
	}
}

// WithScheduleWindow sets the start and end clock times.
func WithScheduleWindow(start, end string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// Persistence returns the fixture as a persistence.AccessSchedule value.
func (f ScheduleFixture) Persistence() persistence.AccessSchedule {
	return persistence.AccessSchedule{
		ID:         f.ID,
		DeviceID:   f.DeviceID,
		UserID:     f.UserID,
		DayPattern: f.DayPattern,
		StartTime:  f.StartTime,
		EndTime:    f.EndTime,
	}
}

// Input returns the fixture as an application.ScheduleInput.
func (f ScheduleFixture) Input() application.ScheduleInput {
	return application.ScheduleInput{
		DeviceID:   f.DeviceID,
		UserID:     f.UserID,
		DayPattern: f.DayPattern,
		StartTime:  f.StartTime,
		EndTime:    f.EndTime,
	}
}

// ---------------------------- Posture fixtures ---------------------------

// PostureFixture represents a deterministic security posture record.
type PostureFixture struct {
	AdminID                   string
	SystemArmed               bool
	SensitiveDevicesProtected bool
	Schedules                 []ScheduleFixture
}

// PostureOption configures the generated posture fixture.
type PostureOption func(*PostureFixture)

// NewPostureFixture returns a deterministic posture fixture with optional
// overrides. The defaults mirror the lazily created posture: disarmed with
// sensitive protection on and no schedules.
func NewPostureFixture(opts ...PostureOption) PostureFixture {
	idx := atomic.AddUint64(&postureCounter, 1)
	fixture := PostureFixture{
		AdminID:                   fmt.Sprintf("admin-%03d", idx),
		SystemArmed:               false,
		SensitiveDevicesProtected: true,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPostureAdminID overrides the owning admin account.
func WithPostureAdminID(adminID string) PostureOption {
	return func(f *PostureFixture) {
		f.AdminID = adminID
	}
}

// WithPostureArmed sets the system armed flag.
func WithPostureArmed(armed bool) PostureOption {
	return func(f *PostureFixture) {
		f.SystemArmed = armed
	}
}

// WithPostureProtection sets the sensitive device protection flag.
func WithPostureProtection(protected bool) PostureOption {
	return func(f *PostureFixture) {
		f.SensitiveDevicesProtected = protected
	}
}

// WithPostureSchedules sets the access schedules on the fixture.
func WithPostureSchedules(schedules ...ScheduleFixture) PostureOption {
	return func(f *PostureFixture) {
		f.Schedules = append([]ScheduleFixture(nil), schedules...)
	}
}

// Persistence returns the fixture as a persistence.SecurityPosture value.
func (f PostureFixture) Persistence() persistence.SecurityPosture {
	posture := persistence.SecurityPosture{
		AdminID:                   f.AdminID,
		SystemArmed:               f.SystemArmed,
		SensitiveDevicesProtected: f.SensitiveDevicesProtected,
		AccessSchedules:           make(map[string]persistence.AccessSchedule, len(f.Schedules)),
	}
	for _, schedule := range f.Schedules {
		posture.AccessSchedules[schedule.ID] = schedule.Persistence()
	}
	return posture
}

// ----------------------------- Event fixtures ----------------------------

// EventFixture represents a deterministic simulated-event record.
type EventFixture struct {
	ID              string
	AdminID         string
	Name            string
	Type            simulation.EventType
	Description     string
	ScheduledAt     time.Time
	AffectedDevices []string
	NotifyUsers     bool
	Status          simulation.Status
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a deterministic event fixture with optional overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	fixture := EventFixture{
		ID:              fmt.Sprintf("event-%03d", idx),
		AdminID:         fmt.Sprintf("admin-%03d", idx),
		Name:            fmt.Sprintf("Drill %03d", idx),
		Type:            simulation.EventFire,
		ScheduledAt:     referenceTime.Add(time.Duration(idx) * time.Hour),
		AffectedDevices: []string{fmt.Sprintf("alarm-%03d", idx)},
		NotifyUsers:     true,
		Status:          simulation.StatusScheduled,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventAdminID sets the owning admin account.
func WithEventAdminID(adminID string) EventOption {
	return func(f *EventFixture) {
		f.AdminID = adminID
	}
}

// WithEventName overrides the display name.
func WithEventName(name string) EventOption {
	return func(f *EventFixture) {
		f.Name = name
	}
}

// WithEventType sets the scenario type.
func WithEventType(eventType simulation.EventType) EventOption {
	return func(f *EventFixture) {
		f.Type = eventType
	}
}

// WithEventScheduledAt sets the scheduled instant.
func WithEventScheduledAt(t time.Time) EventOption {
	return func(f *EventFixture) {
		f.ScheduledAt = t
	}
}

// WithEventDevices sets the affected device list.
func WithEventDevices(devices ...string) EventOption {
	return func(f *EventFixture) {
		f.AffectedDevices = append([]string(nil), devices...)
	}
}

// WithEventNotify sets the notify-users flag.
func WithEventNotify(notify bool) EventOption {
	return func(f *EventFixture) {
		f.NotifyUsers = notify
	}
}

// WithEventStatus sets the lifecycle status.
func WithEventStatus(status simulation.Status) EventOption {
	return func(f *EventFixture) {
		f.Status = status
	}
}

// Persistence returns the fixture as a persistence.SimulatedEvent value.
func (f EventFixture) Persistence() persistence.SimulatedEvent {
	return persistence.SimulatedEvent{
		ID:              f.ID,
		AdminID:         f.AdminID,
		Name:            f.Name,
		Type:            f.Type,
		Description:     f.Description,
		ScheduledAt:     f.ScheduledAt,
		AffectedDevices: append([]string(nil), f.AffectedDevices...),
		NotifyUsers:     f.NotifyUsers,
		Status:          f.Status,
	}
}

// Input returns the fixture as an application.EventInput.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Name:            f.Name,
		Type:            string(f.Type),
		Description:     f.Description,
		ScheduledAt:     f.ScheduledAt,
		AffectedDevices: append([]string(nil), f.AffectedDevices...),
		NotifyUsers:     f.NotifyUsers,
	}
}
