package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/smarthome-admin/internal/docstore"
	"github.com/example/smarthome-admin/internal/persistence"
	"github.com/example/smarthome-admin/internal/simulation"
)

type harness struct {
	Postures      *persistence.DocumentPostureRepository
	Events        *persistence.DocumentEventRepository
	Activity      *persistence.DocumentActivityLogRepository
	Notifications *persistence.DocumentNotificationRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := docstore.NewMemory(func() time.Time {
		return time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	})
	return &harness{
		Postures:      persistence.NewDocumentPostureRepository(store),
		Events:        persistence.NewDocumentEventRepository(store),
		Activity:      persistence.NewDocumentActivityLogRepository(store),
		Notifications: persistence.NewDocumentNotificationRepository(store),
	}
}

func samplePosture(adminID string) persistence.SecurityPosture {
	return persistence.SecurityPosture{
		AdminID:                   adminID,
		SystemArmed:               false,
		SensitiveDevicesProtected: true,
		AccessSchedules: map[string]persistence.AccessSchedule{
			"schedule-1": {
				ID:         "schedule-1",
				DeviceID:   "lock-1",
				DayPattern: "weekdays",
				StartTime:  "09:00",
				EndTime:    "17:00",
			},
		},
	}
}

func sampleEvent(adminID, id string) persistence.SimulatedEvent {
	return persistence.SimulatedEvent{
		ID:              id,
		AdminID:         adminID,
		Name:            "quarterly fire drill",
		Type:            simulation.EventFire,
		Description:     "evacuation rehearsal",
		ScheduledAt:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		AffectedDevices: []string{"device-1", "device-2"},
		NotifyUsers:     true,
		Status:          simulation.StatusScheduled,
	}
}

func TestPostureRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.Postures.GetPosture(ctx, "admin-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before creation, got %v", err)
	}

	created, err := h.Postures.CreatePosture(ctx, samplePosture("admin-1"))
	if err != nil {
		t.Fatalf("CreatePosture returned error: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	got, err := h.Postures.GetPosture(ctx, "admin-1")
	if err != nil {
		t.Fatalf("GetPosture returned error: %v", err)
	}
	schedule, ok := got.AccessSchedules["schedule-1"]
	if !ok {
		t.Fatal("stored schedule missing after round trip")
	}
	if schedule.DeviceID != "lock-1" || schedule.DayPattern != "weekdays" ||
		schedule.StartTime != "09:00" || schedule.EndTime != "17:00" || schedule.UserID != "" {
		t.Fatalf("schedule fields changed in round trip: %+v", schedule)
	}
	if !got.SensitiveDevicesProtected || got.SystemArmed {
		t.Fatalf("posture flags changed in round trip: %+v", got)
	}
}

func TestPostureRepository_ReplaceConditionalOnVersion(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	created, err := h.Postures.CreatePosture(ctx, samplePosture("admin-1"))
	if err != nil {
		t.Fatalf("CreatePosture returned error: %v", err)
	}

	armed := created
	armed.SystemArmed = true
	updated, err := h.Postures.ReplacePosture(ctx, armed)
	if err != nil {
		t.Fatalf("ReplacePosture returned error: %v", err)
	}
	if updated.Version != 2 || !updated.SystemArmed {
		t.Fatalf("unexpected posture after replace: %+v", updated)
	}

	stale := created
	stale.SystemArmed = false
	if _, err := h.Postures.ReplacePosture(ctx, stale); !errors.Is(err, persistence.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale replace, got %v", err)
	}
}

func TestEventRepository_CreateAndList(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	created, err := h.Events.CreateEvent(ctx, sampleEvent("admin-1", "event-1"))
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}
	if created.Status != simulation.StatusScheduled || created.Version != 1 {
		t.Fatalf("unexpected created event: %+v", created)
	}

	if _, err := h.Events.CreateEvent(ctx, sampleEvent("admin-2", "event-2")); err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}

	events, err := h.Events.ListEvents(ctx, "admin-1")
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 1 || events[0].ID != "event-1" {
		t.Fatalf("expected only admin-1 events, got %+v", events)
	}
	if events[0].Name != "quarterly fire drill" || events[0].Type != simulation.EventFire ||
		!events[0].NotifyUsers || len(events[0].AffectedDevices) != 2 {
		t.Fatalf("event fields changed in round trip: %+v", events[0])
	}
}

func TestEventRepository_GetRejectsCrossOwner(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.Events.CreateEvent(ctx, sampleEvent("admin-1", "event-1")); err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}
	if _, err := h.Events.GetEvent(ctx, "admin-2", "event-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign admin, got %v", err)
	}
}

func TestEventRepository_UpdateEventStatusConditional(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	created, err := h.Events.CreateEvent(ctx, sampleEvent("admin-1", "event-1"))
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}

	running, err := h.Events.UpdateEventStatus(ctx, created, simulation.StatusInProgress)
	if err != nil {
		t.Fatalf("UpdateEventStatus returned error: %v", err)
	}
	if running.Status != simulation.StatusInProgress || running.Version != 2 {
		t.Fatalf("unexpected event after transition: %+v", running)
	}

	// A second writer still holding the original read must lose.
	if _, err := h.Events.UpdateEventStatus(ctx, created, simulation.StatusCancelled); !errors.Is(err, persistence.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale writer, got %v", err)
	}

	got, err := h.Events.GetEvent(ctx, "admin-1", "event-1")
	if err != nil {
		t.Fatalf("GetEvent returned error: %v", err)
	}
	if got.Status != simulation.StatusInProgress {
		t.Fatalf("losing write mutated status to %q", got.Status)
	}
}

func TestActivityLogRepository_AppendAndList(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	entry := persistence.ActivityLogEntry{
		ID:          "log-1",
		AdminID:     "admin-1",
		Type:        "simulation",
		Description: "simulation started",
		Timestamp:   time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC),
	}
	if _, err := h.Activity.AppendActivity(ctx, entry); err != nil {
		t.Fatalf("AppendActivity returned error: %v", err)
	}

	entries, err := h.Activity.ListActivity(ctx, "admin-1")
	if err != nil {
		t.Fatalf("ListActivity returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Description != "simulation started" || entries[0].Type != "simulation" {
		t.Fatalf("unexpected activity entries: %+v", entries)
	}
}

func TestNotificationRepository_EnqueueAndList(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	req := persistence.NotificationRequest{
		ID:       "notification-1",
		AdminID:  "admin-1",
		Audience: "all-users",
		Message:  "fire drill starting",
	}
	if _, err := h.Notifications.EnqueueNotification(ctx, req); err != nil {
		t.Fatalf("EnqueueNotification returned error: %v", err)
	}

	requests, err := h.Notifications.ListNotifications(ctx, "admin-1")
	if err != nil {
		t.Fatalf("ListNotifications returned error: %v", err)
	}
	if len(requests) != 1 || requests[0].Audience != "all-users" || requests[0].Message != "fire drill starting" {
		t.Fatalf("unexpected notifications: %+v", requests)
	}
}
