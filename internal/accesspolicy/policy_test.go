package accesspolicy

import (
	"testing"
	"time"
)

// 2024-03-12 is a Tuesday, 2024-03-16 a Saturday.
func tuesdayAt(hour, minute int) time.Time {
	return time.Date(2024, 3, 12, hour, minute, 0, 0, time.UTC)
}

func saturdayAt(hour, minute int) time.Time {
	return time.Date(2024, 3, 16, hour, minute, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	valid := map[string]string{
		"00:00": "00:00",
		"09:05": "09:05",
		"23:59": "23:59",
	}
	for input, want := range valid {
		clock, err := ParseClock(input)
		if err != nil {
			t.Fatalf("ParseClock(%q) returned error: %v", input, err)
		}
		if clock.String() != want {
			t.Fatalf("ParseClock(%q) = %q, want %q", input, clock, want)
		}
	}

	invalid := []string{"", "9:00", "09:0", "24:00", "12:60", "ab:cd", "09-00", "09:00:00"}
	for _, input := range invalid {
		if _, err := ParseClock(input); err == nil {
			t.Fatalf("ParseClock(%q) accepted malformed value", input)
		}
	}
}

func TestDayPattern_Matches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern DayPattern
		day     time.Weekday
		want    bool
	}{
		{DayMonday, time.Monday, true},
		{DayMonday, time.Tuesday, false},
		{DayWeekdays, time.Monday, true},
		{DayWeekdays, time.Friday, true},
		{DayWeekdays, time.Saturday, false},
		{DayWeekends, time.Saturday, true},
		{DayWeekends, time.Sunday, true},
		{DayWeekends, time.Wednesday, false},
		{DayAll, time.Sunday, true},
		{DayPattern("holidays"), time.Monday, false},
	}
	for _, tc := range cases {
		if got := tc.pattern.Matches(tc.day); got != tc.want {
			t.Errorf("%s.Matches(%s) = %v, want %v", tc.pattern, tc.day, got, tc.want)
		}
	}
}

func TestValidDayPattern(t *testing.T) {
	t.Parallel()

	for _, pattern := range []DayPattern{
		DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday,
		DaySaturday, DaySunday, DayWeekdays, DayWeekends, DayAll,
	} {
		if !ValidDayPattern(pattern) {
			t.Errorf("expected %q to be valid", pattern)
		}
	}
	for _, pattern := range []DayPattern{"", "Monday", "everyday", "mon"} {
		if ValidDayPattern(pattern) {
			t.Errorf("expected %q to be invalid", pattern)
		}
	}
}

func TestIsAccessPermitted_UnrestrictedDevice(t *testing.T) {
	t.Parallel()

	// Schedules exist for other devices only; lock-1 has no rules at all.
	posture := Posture{Schedules: []Schedule{
		{ID: "s1", DeviceID: "camera-1", DayPattern: DayAll, StartTime: "00:00", EndTime: "23:59"},
	}}

	if !IsAccessPermitted(posture, "lock-1", "user-5", tuesdayAt(3, 0)) {
		t.Fatal("device without schedules must be unrestricted")
	}
	if !IsAccessPermitted(Posture{}, "lock-1", "", saturdayAt(23, 30)) {
		t.Fatal("empty posture must permit access")
	}
}

func TestIsAccessPermitted_WeekdayWindow(t *testing.T) {
	t.Parallel()

	posture := Posture{Schedules: []Schedule{{
		ID:         "s1",
		DeviceID:   "lock-1",
		DayPattern: DayWeekdays,
		StartTime:  "09:00",
		EndTime:    "17:00",
	}}}

	if !IsAccessPermitted(posture, "lock-1", "user-5", tuesdayAt(10, 0)) {
		t.Fatal("Tuesday 10:00 must be permitted")
	}
	if IsAccessPermitted(posture, "lock-1", "user-5", saturdayAt(10, 0)) {
		t.Fatal("Saturday 10:00 must be denied")
	}
	if IsAccessPermitted(posture, "lock-1", "user-5", tuesdayAt(20, 0)) {
		t.Fatal("Tuesday 20:00 must be denied")
	}
}

func TestIsAccessPermitted_WindowBoundaries(t *testing.T) {
	t.Parallel()

	posture := Posture{Schedules: []Schedule{{
		ID:         "s1",
		DeviceID:   "lock-1",
		DayPattern: DayAll,
		StartTime:  "09:00",
		EndTime:    "17:00",
	}}}

	if !IsAccessPermitted(posture, "lock-1", "", tuesdayAt(9, 0)) {
		t.Fatal("window start is inclusive")
	}
	if IsAccessPermitted(posture, "lock-1", "", tuesdayAt(17, 0)) {
		t.Fatal("window end is exclusive")
	}
	if IsAccessPermitted(posture, "lock-1", "", tuesdayAt(8, 59)) {
		t.Fatal("moment before window must be denied")
	}
	if !IsAccessPermitted(posture, "lock-1", "", tuesdayAt(16, 59)) {
		t.Fatal("last minute of window must be permitted")
	}
}

func TestIsAccessPermitted_AllPatternEveryWeekday(t *testing.T) {
	t.Parallel()

	posture := Posture{Schedules: []Schedule{{
		ID:         "s1",
		DeviceID:   "lock-1",
		DayPattern: DayAll,
		StartTime:  "08:00",
		EndTime:    "18:00",
	}}}

	// Walk an arbitrary week in a different year and month; every day must
	// pass while inside the window.
	start := time.Date(2031, 11, 3, 12, 0, 0, 0, time.UTC)
	for day := 0; day < 7; day++ {
		at := start.AddDate(0, 0, day)
		if !IsAccessPermitted(posture, "lock-1", "user-1", at) {
			t.Fatalf("day pattern all must match %s", at.Weekday())
		}
	}
}

func TestIsAccessPermitted_UserScoping(t *testing.T) {
	t.Parallel()

	posture := Posture{Schedules: []Schedule{{
		ID:         "s1",
		DeviceID:   "lock-1",
		UserID:     "user-1",
		DayPattern: DayAll,
		StartTime:  "00:00",
		EndTime:    "23:59",
	}}}

	if !IsAccessPermitted(posture, "lock-1", "user-1", tuesdayAt(12, 0)) {
		t.Fatal("named user must be permitted")
	}
	if IsAccessPermitted(posture, "lock-1", "user-2", tuesdayAt(12, 0)) {
		t.Fatal("other users must be denied when the only rule is user scoped")
	}

	// An empty schedule user applies to everyone.
	posture.Schedules[0].UserID = ""
	if !IsAccessPermitted(posture, "lock-1", "user-2", tuesdayAt(12, 0)) {
		t.Fatal("wildcard rule must permit any user")
	}
}

func TestIsAccessPermitted_InvertedWindowMatchesNothing(t *testing.T) {
	t.Parallel()

	posture := Posture{Schedules: []Schedule{{
		ID:         "s1",
		DeviceID:   "lock-1",
		DayPattern: DayAll,
		StartTime:  "22:00",
		EndTime:    "06:00",
	}}}

	for _, at := range []time.Time{tuesdayAt(23, 0), tuesdayAt(3, 0), tuesdayAt(12, 0)} {
		if IsAccessPermitted(posture, "lock-1", "", at) {
			t.Fatalf("non-wrapping inverted window must deny at %v", at)
		}
	}
}

func TestIsAccessPermitted_MalformedStoredTimesDoNotMatch(t *testing.T) {
	t.Parallel()

	posture := Posture{Schedules: []Schedule{{
		ID:         "s1",
		DeviceID:   "lock-1",
		DayPattern: DayAll,
		StartTime:  "9am",
		EndTime:    "17:00",
	}}}

	// The rule restricts the device but can never match, so access is denied.
	if IsAccessPermitted(posture, "lock-1", "", tuesdayAt(10, 0)) {
		t.Fatal("schedule with malformed times must not match")
	}
}

func TestIsSensitiveDeviceAccessAllowed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		posture    Posture
		deviceType DeviceType
		want       bool
	}{
		{"protected armed camera", Posture{SystemArmed: true, SensitiveDevicesProtected: true}, DeviceCamera, false},
		{"protected armed lock", Posture{SystemArmed: true, SensitiveDevicesProtected: true}, DeviceLock, false},
		{"protected disarmed camera", Posture{SystemArmed: false, SensitiveDevicesProtected: true}, DeviceCamera, true},
		{"unprotected armed camera", Posture{SystemArmed: true, SensitiveDevicesProtected: false}, DeviceCamera, true},
		{"protected armed thermostat", Posture{SystemArmed: true, SensitiveDevicesProtected: true}, DeviceThermostat, true},
		{"protected armed light", Posture{SystemArmed: true, SensitiveDevicesProtected: true}, DeviceLight, true},
	}
	for _, tc := range cases {
		if got := IsSensitiveDeviceAccessAllowed(tc.posture, tc.deviceType); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
