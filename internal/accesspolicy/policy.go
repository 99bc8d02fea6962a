// Package accesspolicy contains the pure decision logic for device access.
//
// The package owns no state and performs no IO: callers convert their stored
// posture into the types declared here and ask for a verdict. Determinism is
// load-bearing — the application layer unit-tests these rules exhaustively.
package accesspolicy

import (
	"fmt"
	"time"
)

// DayPattern selects the weekdays on which an access schedule applies.
type DayPattern string

const (
	DayMonday    DayPattern = "monday"
	DayTuesday   DayPattern = "tuesday"
	DayWednesday DayPattern = "wednesday"
	DayThursday  DayPattern = "thursday"
	DayFriday    DayPattern = "friday"
	DaySaturday  DayPattern = "saturday"
	DaySunday    DayPattern = "sunday"
	// DayWeekdays covers Monday through Friday.
	DayWeekdays DayPattern = "weekdays"
	// DayWeekends covers Saturday and Sunday.
	DayWeekends DayPattern = "weekends"
	// DayAll covers every day of the week.
	DayAll DayPattern = "all"
)

var singleDays = map[DayPattern]time.Weekday{
	DayMonday:    time.Monday,
	DayTuesday:   time.Tuesday,
	DayWednesday: time.Wednesday,
	DayThursday:  time.Thursday,
	DayFriday:    time.Friday,
	DaySaturday:  time.Saturday,
	DaySunday:    time.Sunday,
}

// ValidDayPattern reports whether pattern is a member of the day-pattern set.
func ValidDayPattern(pattern DayPattern) bool {
	if _, ok := singleDays[pattern]; ok {
		return true
	}
	return pattern == DayWeekdays || pattern == DayWeekends || pattern == DayAll
}

// Matches reports whether the pattern covers the given weekday.
func (p DayPattern) Matches(day time.Weekday) bool {
	if single, ok := singleDays[p]; ok {
		return day == single
	}
	switch p {
	case DayWeekdays:
		return day >= time.Monday && day <= time.Friday
	case DayWeekends:
		return day == time.Saturday || day == time.Sunday
	case DayAll:
		return true
	default:
		return false
	}
}

// Clock is a local time of day with minute precision.
type Clock struct {
	minutes int
}

// ParseClock parses a strict HH:MM value (24-hour, zero padded).
func ParseClock(value string) (Clock, error) {
	if len(value) != 5 || value[2] != ':' {
		return Clock{}, fmt.Errorf("invalid clock value %q: want HH:MM", value)
	}
	hour, err := twoDigits(value[0:2])
	if err != nil || hour > 23 {
		return Clock{}, fmt.Errorf("invalid clock value %q: bad hour", value)
	}
	minute, err := twoDigits(value[3:5])
	if err != nil || minute > 59 {
		return Clock{}, fmt.Errorf("invalid clock value %q: bad minute", value)
	}
	return Clock{minutes: hour*60 + minute}, nil
}

// ClockOf truncates a timestamp to its local time of day.
func ClockOf(t time.Time) Clock {
	return Clock{minutes: t.Hour()*60 + t.Minute()}
}

// Before reports whether c is strictly earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	return c.minutes < other.minutes
}

// String renders the clock back to HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.minutes/60, c.minutes%60)
}

func twoDigits(s string) (int, error) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, fmt.Errorf("not a two-digit number: %q", s)
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), nil
}

// Schedule is an access rule for one device. UserID empty means the rule
// applies to every user. StartTime and EndTime are HH:MM strings as stored;
// windows are literal and non-wrapping, so EndTime <= StartTime matches
// nothing.
type Schedule struct {
	ID         string
	DeviceID   string
	UserID     string
	DayPattern DayPattern
	StartTime  string
	EndTime    string
}

// Posture is the security configuration evaluated against.
type Posture struct {
	SystemArmed               bool
	SensitiveDevicesProtected bool
	Schedules                 []Schedule
}

// IsAccessPermitted decides whether the user may access the device at the
// given instant. A device with no schedules at all is unrestricted; otherwise
// at least one schedule must match device, user, weekday and time window.
// The armed flag does not participate in schedule evaluation.
func IsAccessPermitted(posture Posture, deviceID, userID string, at time.Time) bool {
	restricted := false
	for _, schedule := range posture.Schedules {
		if schedule.DeviceID != deviceID {
			continue
		}
		restricted = true
		if scheduleMatches(schedule, userID, at) {
			return true
		}
	}
	return !restricted
}

func scheduleMatches(schedule Schedule, userID string, at time.Time) bool {
	if schedule.UserID != "" && schedule.UserID != userID {
		return false
	}
	if !schedule.DayPattern.Matches(at.Weekday()) {
		return false
	}

	start, err := ParseClock(schedule.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseClock(schedule.EndTime)
	if err != nil {
		return false
	}

	moment := ClockOf(at)
	// Window is [start, end).
	return !moment.Before(start) && moment.Before(end)
}

// DeviceType classifies a device for the sensitive-protection rule.
type DeviceType string

const (
	DeviceCamera     DeviceType = "camera"
	DeviceLock       DeviceType = "lock"
	DeviceSensor     DeviceType = "sensor"
	DeviceThermostat DeviceType = "thermostat"
	DeviceLight      DeviceType = "light"
)

var sensitiveDeviceTypes = map[DeviceType]struct{}{
	DeviceCamera: {},
	DeviceLock:   {},
}

// SensitiveDeviceType reports whether the type is under sensitive protection.
func SensitiveDeviceType(deviceType DeviceType) bool {
	_, ok := sensitiveDeviceTypes[deviceType]
	return ok
}

// IsSensitiveDeviceAccessAllowed applies the sensitive-device gate: access is
// denied only while protection is enabled, the device type is sensitive, and
// the system is armed. Disarming the system overrides the protection.
func IsSensitiveDeviceAccessAllowed(posture Posture, deviceType DeviceType) bool {
	if !posture.SensitiveDevicesProtected {
		return true
	}
	if !SensitiveDeviceType(deviceType) {
		return true
	}
	return !posture.SystemArmed
}
