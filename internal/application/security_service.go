package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/smarthome-admin/internal/accesspolicy"
	"github.com/example/smarthome-admin/internal/persistence"
)

// SecurityService owns the security posture of each admin account: the
// armed/protection flags and the access-schedule map. All writes are
// version predicated; a lost race is retried once against a fresh read
// before surfacing ErrConflict.
type SecurityService struct {
	postures    PostureRepository
	activity    ActivityLog
	cache       *postureCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSecurityService wires dependencies for posture operations.
func NewSecurityService(postures PostureRepository, activity ActivityLog, idGenerator func() string, now func() time.Time) *SecurityService {
	return NewSecurityServiceWithLogger(postures, activity, idGenerator, now, nil)
}

// NewSecurityServiceWithLogger wires dependencies including a base logger.
func NewSecurityServiceWithLogger(postures PostureRepository, activity ActivityLog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SecurityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SecurityService{
		postures:    postures,
		activity:    activity,
		cache:       newPostureCache(0, 0, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// SetPostureCacheTTL replaces the posture cache with one using the given TTL.
// Intended for wiring at startup, before the service handles requests.
func (s *SecurityService) SetPostureCacheTTL(ttl time.Duration) {
	s.cache = newPostureCache(ttl, 0, s.now)
}

// GetPosture returns the account's posture, creating the default one on
// first read. Absence is not an error state.
func (s *SecurityService) GetPosture(ctx context.Context, adminID string) (persistence.SecurityPosture, error) {
	if s == nil {
		return persistence.SecurityPosture{}, fmt.Errorf("SecurityService is nil")
	}
	if adminID == "" {
		vErr := &ValidationError{}
		vErr.add("admin_id", "admin id is required")
		return persistence.SecurityPosture{}, vErr
	}

	if posture, ok := s.cache.Get(adminID); ok {
		return posture, nil
	}

	posture, err := s.loadOrCreate(ctx, adminID)
	if err != nil {
		return persistence.SecurityPosture{}, err
	}
	s.cache.Store(posture)
	return posture, nil
}

// SetSystemArmed toggles the account-wide armed flag.
func (s *SecurityService) SetSystemArmed(ctx context.Context, adminID string, armed bool) (persistence.SecurityPosture, error) {
	posture, err := s.updatePosture(ctx, adminID, func(p *persistence.SecurityPosture) error {
		p.SystemArmed = armed
		return nil
	})
	if err != nil {
		return persistence.SecurityPosture{}, err
	}

	state := "disarmed"
	if armed {
		state = "armed"
	}
	s.recordActivity(ctx, adminID, "security", fmt.Sprintf("system %s", state))
	return posture, nil
}

// SetSensitiveProtection toggles protection for sensitive device types.
func (s *SecurityService) SetSensitiveProtection(ctx context.Context, adminID string, protected bool) (persistence.SecurityPosture, error) {
	posture, err := s.updatePosture(ctx, adminID, func(p *persistence.SecurityPosture) error {
		p.SensitiveDevicesProtected = protected
		return nil
	})
	if err != nil {
		return persistence.SecurityPosture{}, err
	}

	state := "disabled"
	if protected {
		state = "enabled"
	}
	s.recordActivity(ctx, adminID, "security", fmt.Sprintf("sensitive device protection %s", state))
	return posture, nil
}

// AddSchedule validates the rule, assigns a fresh identifier and inserts it
// into the posture's schedule map.
func (s *SecurityService) AddSchedule(ctx context.Context, adminID string, input ScheduleInput) (persistence.AccessSchedule, error) {
	if s == nil {
		return persistence.AccessSchedule{}, fmt.Errorf("SecurityService is nil")
	}

	vErr := &ValidationError{}
	validateScheduleInput(input, vErr)
	if vErr.HasErrors() {
		return persistence.AccessSchedule{}, vErr
	}

	schedule := persistence.AccessSchedule{
		ID:         s.idGenerator(),
		DeviceID:   strings.TrimSpace(input.DeviceID),
		UserID:     strings.TrimSpace(input.UserID),
		DayPattern: input.DayPattern,
		StartTime:  input.StartTime,
		EndTime:    input.EndTime,
	}

	if _, err := s.updatePosture(ctx, adminID, func(p *persistence.SecurityPosture) error {
		p.AccessSchedules[schedule.ID] = schedule
		return nil
	}); err != nil {
		return persistence.AccessSchedule{}, err
	}

	s.recordActivity(ctx, adminID, "security", fmt.Sprintf("access schedule added for device %s", schedule.DeviceID))
	return schedule, nil
}

// RemoveSchedule deletes the rule from the posture. Removing an absent
// schedule is a no-op.
func (s *SecurityService) RemoveSchedule(ctx context.Context, adminID, scheduleID string) error {
	if s == nil {
		return fmt.Errorf("SecurityService is nil")
	}

	posture, err := s.loadOrCreate(ctx, adminID)
	if err != nil {
		return err
	}
	if _, ok := posture.AccessSchedules[scheduleID]; !ok {
		return nil
	}

	if _, err := s.updatePosture(ctx, adminID, func(p *persistence.SecurityPosture) error {
		delete(p.AccessSchedules, scheduleID)
		return nil
	}); err != nil {
		return err
	}

	s.recordActivity(ctx, adminID, "security", fmt.Sprintf("access schedule %s removed", scheduleID))
	return nil
}

// IsAccessPermitted evaluates the account's schedules for a device access
// request at the given instant.
func (s *SecurityService) IsAccessPermitted(ctx context.Context, adminID, deviceID, userID string, at time.Time) (bool, error) {
	posture, err := s.GetPosture(ctx, adminID)
	if err != nil {
		return false, err
	}
	return accesspolicy.IsAccessPermitted(toPolicyPosture(posture), deviceID, userID, at), nil
}

// IsSensitiveDeviceAccessAllowed applies the sensitive-device gate for the
// account.
func (s *SecurityService) IsSensitiveDeviceAccessAllowed(ctx context.Context, adminID string, deviceType accesspolicy.DeviceType) (bool, error) {
	posture, err := s.GetPosture(ctx, adminID)
	if err != nil {
		return false, err
	}
	return accesspolicy.IsSensitiveDeviceAccessAllowed(toPolicyPosture(posture), deviceType), nil
}

// loadOrCreate fetches the stored posture, creating the default one when the
// account has none yet. A creation race against another session falls back
// to the winner's document.
func (s *SecurityService) loadOrCreate(ctx context.Context, adminID string) (persistence.SecurityPosture, error) {
	posture, err := s.postures.GetPosture(ctx, adminID)
	if err == nil {
		return posture, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.SecurityPosture{}, err
	}

	created, err := s.postures.CreatePosture(ctx, defaultPosture(adminID))
	if err == nil {
		serviceLogger(ctx, s.logger, "security", "get_posture", "admin_id", adminID).
			InfoContext(ctx, "created default security posture")
		return created, nil
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return s.postures.GetPosture(ctx, adminID)
	}
	return persistence.SecurityPosture{}, err
}

// updatePosture applies mutate on a fresh read and writes conditionally,
// retrying once when a concurrent session wins the first write.
func (s *SecurityService) updatePosture(ctx context.Context, adminID string, mutate func(*persistence.SecurityPosture) error) (persistence.SecurityPosture, error) {
	if adminID == "" {
		vErr := &ValidationError{}
		vErr.add("admin_id", "admin id is required")
		return persistence.SecurityPosture{}, vErr
	}

	for attempt := 0; ; attempt++ {
		posture, err := s.loadOrCreate(ctx, adminID)
		if err != nil {
			return persistence.SecurityPosture{}, err
		}
		if posture.AccessSchedules == nil {
			posture.AccessSchedules = make(map[string]persistence.AccessSchedule)
		}
		if err := mutate(&posture); err != nil {
			return persistence.SecurityPosture{}, err
		}

		updated, err := s.postures.ReplacePosture(ctx, posture)
		if err == nil {
			s.cache.Invalidate(adminID)
			s.cache.Store(updated)
			return updated, nil
		}
		if !errors.Is(err, persistence.ErrVersionConflict) {
			return persistence.SecurityPosture{}, err
		}
		if attempt >= 1 {
			serviceLogger(ctx, s.logger, "security", "update_posture", "admin_id", adminID).
				WarnContext(ctx, "posture write lost twice to concurrent sessions")
			return persistence.SecurityPosture{}, ErrConflict
		}
	}
}

func (s *SecurityService) recordActivity(ctx context.Context, adminID, entryType, description string) {
	if s.activity == nil {
		return
	}
	entry := persistence.ActivityLogEntry{
		ID:          s.idGenerator(),
		AdminID:     adminID,
		Type:        entryType,
		Description: description,
		Timestamp:   s.now(),
	}
	if _, err := s.activity.AppendActivity(ctx, entry); err != nil {
		serviceLogger(ctx, s.logger, "security", "record_activity", "admin_id", adminID).
			ErrorContext(ctx, "failed to append activity entry", "error", err)
	}
}

func defaultPosture(adminID string) persistence.SecurityPosture {
	return persistence.SecurityPosture{
		AdminID:                   adminID,
		SystemArmed:               false,
		SensitiveDevicesProtected: true,
		AccessSchedules:           make(map[string]persistence.AccessSchedule),
	}
}

func validateScheduleInput(input ScheduleInput, vErr *ValidationError) {
	if strings.TrimSpace(input.DeviceID) == "" {
		vErr.add("device_id", "device id is required")
	}
	if !accesspolicy.ValidDayPattern(accesspolicy.DayPattern(input.DayPattern)) {
		vErr.add("day_pattern", "unknown day pattern")
	}
	if _, err := accesspolicy.ParseClock(input.StartTime); err != nil {
		vErr.add("start_time", "must be HH:MM")
	}
	if _, err := accesspolicy.ParseClock(input.EndTime); err != nil {
		vErr.add("end_time", "must be HH:MM")
	}
}
