package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/smarthome-admin/internal/persistence"
	"github.com/example/smarthome-admin/internal/simulation"
)

// DefaultSettleDuration is how long a running simulation collects device
// responses before it is marked completed, unless configured otherwise.
const DefaultSettleDuration = 5 * time.Second

// SimulationService drives simulated events through their lifecycle. Every
// transition is a read-verify-write against the event's stored version, so
// two sessions racing the same move cannot both succeed; the loser is
// retried once against fresh state before failing.
type SimulationService struct {
	events        EventRepository
	notifications NotificationSink
	activity      ActivityLog
	idGenerator   func() string
	now           func() time.Time
	settle        time.Duration
	maxDevices    int
	logger        *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// SimulationServiceConfig bundles the optional knobs of the service.
type SimulationServiceConfig struct {
	// SettleDuration overrides DefaultSettleDuration when positive.
	SettleDuration time.Duration
	// MaxAffectedDevices caps the device list of one event; zero means no cap.
	MaxAffectedDevices int
	Logger             *slog.Logger
}

// NewSimulationService wires dependencies for simulated-event operations.
func NewSimulationService(events EventRepository, notifications NotificationSink, activity ActivityLog, idGenerator func() string, now func() time.Time, cfg SimulationServiceConfig) *SimulationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	settle := cfg.SettleDuration
	if settle <= 0 {
		settle = DefaultSettleDuration
	}
	return &SimulationService{
		events:        events,
		notifications: notifications,
		activity:      activity,
		idGenerator:   idGenerator,
		now:           now,
		settle:        settle,
		maxDevices:    cfg.MaxAffectedDevices,
		logger:        defaultLogger(cfg.Logger),
		timers:        make(map[string]*time.Timer),
	}
}

// CreateEvent validates the draft and persists it with status scheduled.
func (s *SimulationService) CreateEvent(ctx context.Context, adminID string, input EventInput) (persistence.SimulatedEvent, error) {
	if s == nil {
		return persistence.SimulatedEvent{}, fmt.Errorf("SimulationService is nil")
	}

	vErr := &ValidationError{}
	if adminID == "" {
		vErr.add("admin_id", "admin id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if !simulation.ValidEventType(simulation.EventType(input.Type)) {
		vErr.add("type", "unknown event type")
	}
	if input.ScheduledAt.IsZero() {
		vErr.add("scheduled_at", "scheduled time is required")
	}
	devices := uniqueStrings(input.AffectedDevices)
	if s.maxDevices > 0 && len(devices) > s.maxDevices {
		vErr.add("affected_devices", fmt.Sprintf("at most %d devices per simulation", s.maxDevices))
	}
	if vErr.HasErrors() {
		return persistence.SimulatedEvent{}, vErr
	}

	event := persistence.SimulatedEvent{
		ID:              s.idGenerator(),
		AdminID:         adminID,
		Name:            strings.TrimSpace(input.Name),
		Type:            simulation.EventType(input.Type),
		Description:     input.Description,
		ScheduledAt:     input.ScheduledAt,
		AffectedDevices: devices,
		NotifyUsers:     input.NotifyUsers,
		Status:          simulation.StatusScheduled,
	}

	created, err := s.events.CreateEvent(ctx, event)
	if err != nil {
		return persistence.SimulatedEvent{}, mapEventRepoError(err)
	}

	s.recordActivity(ctx, adminID, fmt.Sprintf("simulation %q scheduled", created.Name))
	return created, nil
}

// GetEvent retrieves one of the account's events.
func (s *SimulationService) GetEvent(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error) {
	if s == nil {
		return persistence.SimulatedEvent{}, fmt.Errorf("SimulationService is nil")
	}
	event, err := s.events.GetEvent(ctx, adminID, id)
	if err != nil {
		return persistence.SimulatedEvent{}, mapEventRepoError(err)
	}
	return event, nil
}

// ListEvents enumerates the account's events, unordered.
func (s *SimulationService) ListEvents(ctx context.Context, adminID string) ([]persistence.SimulatedEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("SimulationService is nil")
	}
	events, err := s.events.ListEvents(ctx, adminID)
	if err != nil {
		return nil, mapEventRepoError(err)
	}
	return events, nil
}

// Run moves a scheduled event to in-progress, emits the begin notification
// and log entry, and arms the settle timer that completes the simulation.
func (s *SimulationService) Run(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error) {
	event, err := s.transition(ctx, adminID, id, simulation.StatusInProgress)
	if err != nil {
		return persistence.SimulatedEvent{}, err
	}

	if event.NotifyUsers {
		s.emitNotification(ctx, adminID, fmt.Sprintf("Simulation %q (%s) is starting", event.Name, event.Type))
	}
	s.recordActivity(ctx, adminID, fmt.Sprintf("simulation %q started", event.Name))
	s.armSettleTimer(adminID, id)
	return event, nil
}

// Complete explicitly finishes a running event ahead of the settle timer.
func (s *SimulationService) Complete(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error) {
	event, err := s.transition(ctx, adminID, id, simulation.StatusCompleted)
	if err != nil {
		return persistence.SimulatedEvent{}, err
	}

	s.stopSettleTimer(id)
	if event.NotifyUsers {
		s.emitNotification(ctx, adminID, fmt.Sprintf("Simulation %q (%s) completed", event.Name, event.Type))
	}
	s.recordActivity(ctx, adminID, fmt.Sprintf("simulation %q completed", event.Name))
	return event, nil
}

// Cancel aborts a scheduled event. Running and finished events reject the
// cancel with ErrInvalidTransition.
func (s *SimulationService) Cancel(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error) {
	event, err := s.transition(ctx, adminID, id, simulation.StatusCancelled)
	if err != nil {
		return persistence.SimulatedEvent{}, err
	}

	s.stopSettleTimer(id)
	s.recordActivity(ctx, adminID, fmt.Sprintf("simulation %q cancelled", event.Name))
	return event, nil
}

// Close stops every armed settle timer. Events left in-progress stay
// in-progress until explicitly completed after a restart.
func (s *SimulationService) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// transition performs the atomic read-verify-write sequence for one
// lifecycle move, retrying once when the conditional write loses a race.
func (s *SimulationService) transition(ctx context.Context, adminID, id string, to simulation.Status) (persistence.SimulatedEvent, error) {
	if s == nil {
		return persistence.SimulatedEvent{}, fmt.Errorf("SimulationService is nil")
	}

	for attempt := 0; ; attempt++ {
		event, err := s.events.GetEvent(ctx, adminID, id)
		if err != nil {
			return persistence.SimulatedEvent{}, mapEventRepoError(err)
		}

		if err := simulation.CheckTransition(event.Status, to); err != nil {
			return persistence.SimulatedEvent{}, errors.Join(ErrInvalidTransition, err)
		}

		updated, err := s.events.UpdateEventStatus(ctx, event, to)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, persistence.ErrVersionConflict) {
			return persistence.SimulatedEvent{}, mapEventRepoError(err)
		}
		if attempt >= 1 {
			serviceLogger(ctx, s.logger, "simulation", "transition", "event_id", id).
				WarnContext(ctx, "transition lost twice to concurrent writers", "to", string(to))
			return persistence.SimulatedEvent{}, ErrConflict
		}
	}
}

// armSettleTimer schedules the in-progress -> completed move. The timer is
// cancellable; if the event was cancelled or completed meanwhile, the
// conditional write inside transition makes the late firing a no-op.
func (s *SimulationService) armSettleTimer(adminID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	s.timers[id] = time.AfterFunc(s.settle, func() {
		s.settleEvent(adminID, id)
	})
}

func (s *SimulationService) stopSettleTimer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *SimulationService) settleEvent(adminID, id string) {
	s.stopSettleTimer(id)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event, err := s.transition(ctx, adminID, id, simulation.StatusCompleted)
	if err != nil {
		// Cancelled or explicitly completed before the timer fired.
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
			return
		}
		serviceLogger(ctx, s.logger, "simulation", "settle", "event_id", id).
			ErrorContext(ctx, "failed to complete simulation after settle duration", "error", err)
		return
	}

	if event.NotifyUsers {
		s.emitNotification(ctx, adminID, fmt.Sprintf("Simulation %q (%s) completed", event.Name, event.Type))
	}
	s.recordActivity(ctx, adminID, fmt.Sprintf("simulation %q completed", event.Name))
}

func (s *SimulationService) emitNotification(ctx context.Context, adminID, message string) {
	if s.notifications == nil {
		return
	}
	req := persistence.NotificationRequest{
		ID:       s.idGenerator(),
		AdminID:  adminID,
		Audience: "all-users",
		Message:  message,
	}
	if _, err := s.notifications.EnqueueNotification(ctx, req); err != nil {
		serviceLogger(ctx, s.logger, "simulation", "notify", "admin_id", adminID).
			ErrorContext(ctx, "failed to enqueue notification", "error", err)
	}
}

func (s *SimulationService) recordActivity(ctx context.Context, adminID, description string) {
	if s.activity == nil {
		return
	}
	entry := persistence.ActivityLogEntry{
		ID:          s.idGenerator(),
		AdminID:     adminID,
		Type:        "simulation",
		Description: description,
		Timestamp:   s.now(),
	}
	if _, err := s.activity.AppendActivity(ctx, entry); err != nil {
		serviceLogger(ctx, s.logger, "simulation", "record_activity", "admin_id", adminID).
			ErrorContext(ctx, "failed to append activity entry", "error", err)
	}
}

func mapEventRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrVersionConflict):
		return ErrConflict
	default:
		return err
	}
}
