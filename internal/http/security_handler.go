package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/example/smarthome-admin/internal/application"
	"github.com/example/smarthome-admin/internal/persistence"
)

type securityService interface {
	GetPosture(ctx context.Context, adminID string) (persistence.SecurityPosture, error)
	SetSystemArmed(ctx context.Context, adminID string, armed bool) (persistence.SecurityPosture, error)
	SetSensitiveProtection(ctx context.Context, adminID string, protected bool) (persistence.SecurityPosture, error)
	AddSchedule(ctx context.Context, adminID string, input application.ScheduleInput) (persistence.AccessSchedule, error)
	RemoveSchedule(ctx context.Context, adminID, scheduleID string) error
	IsAccessPermitted(ctx context.Context, adminID, deviceID, userID string, at time.Time) (bool, error)
}

type SecurityHandler struct {
	service   securityService
	responder responder
	now       func() time.Time
}

func NewSecurityHandler(service securityService, now func() time.Time, logger *slog.Logger) *SecurityHandler {
	if now == nil {
		now = time.Now
	}
	return &SecurityHandler{service: service, responder: newResponder(logger), now: now}
}

func (h *SecurityHandler) GetPosture(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	adminID, _ := AdminIDFromContext(r.Context())
	posture, err := h.service.GetPosture(r.Context(), adminID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPostureDTO(posture))
}

func (h *SecurityHandler) UpdatePosture(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req postureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.SystemArmed == nil && req.SensitiveDevicesProtected == nil {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			Message: "the request contains invalid fields",
			Errors:  map[string]string{"posture": "at least one flag must be provided"},
		})
		return
	}

	adminID, _ := AdminIDFromContext(r.Context())

	var (
		posture persistence.SecurityPosture
		err     error
	)
	if req.SystemArmed != nil {
		posture, err = h.service.SetSystemArmed(r.Context(), adminID, *req.SystemArmed)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
	}
	if req.SensitiveDevicesProtected != nil {
		posture, err = h.service.SetSensitiveProtection(r.Context(), adminID, *req.SensitiveDevicesProtected)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
	}

	handlerLogger(r.Context(), h.responder.logger, "security", "update_posture", "admin_id", adminID).
		InfoContext(r.Context(), "posture flags updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPostureDTO(posture))
}

func (h *SecurityHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	adminID, _ := AdminIDFromContext(r.Context())
	schedule, err := h.service.AddSchedule(r.Context(), adminID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toScheduleDTO(schedule))
}

func (h *SecurityHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := ScheduleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(scheduleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	adminID, _ := AdminIDFromContext(r.Context())
	if err := h.service.RemoveSchedule(r.Context(), adminID, scheduleID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// CheckAccess evaluates the account's schedules for a device/user pair. The
// instant defaults to now and can be overridden with an RFC 3339 `at` query
// parameter.
func (h *SecurityHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	deviceID := strings.TrimSpace(query.Get("device_id"))
	if deviceID == "" {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			Message: "the request contains invalid fields",
			Errors:  map[string]string{"device_id": "device id is required"},
		})
		return
	}
	userID := strings.TrimSpace(query.Get("user_id"))

	at := h.now()
	if atValue := strings.TrimSpace(query.Get("at")); atValue != "" {
		parsed, err := time.Parse(time.RFC3339, atValue)
		if err != nil {
			h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
				Message: "the request contains invalid fields",
				Errors:  map[string]string{"at": "must be an RFC 3339 timestamp"},
			})
			return
		}
		at = parsed
	}

	adminID, _ := AdminIDFromContext(r.Context())
	permitted, err := h.service.IsAccessPermitted(r.Context(), adminID, deviceID, userID, at)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, accessCheckResponse{
		DeviceID:  deviceID,
		UserID:    userID,
		At:        at.UTC().Format(time.RFC3339Nano),
		Permitted: permitted,
	})
}

type postureRequest struct {
	SystemArmed               *bool `json:"system_armed"`
	SensitiveDevicesProtected *bool `json:"sensitive_devices_protected"`
}

type scheduleRequest struct {
	DeviceID   string `json:"device_id"`
	UserID     string `json:"user_id"`
	DayPattern string `json:"day_pattern"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

func (r scheduleRequest) toInput() application.ScheduleInput {
	return application.ScheduleInput{
		DeviceID:   strings.TrimSpace(r.DeviceID),
		UserID:     strings.TrimSpace(r.UserID),
		DayPattern: strings.TrimSpace(r.DayPattern),
		StartTime:  strings.TrimSpace(r.StartTime),
		EndTime:    strings.TrimSpace(r.EndTime),
	}
}

type postureDTO struct {
	AdminID                   string        `json:"admin_id"`
	SystemArmed               bool          `json:"system_armed"`
	SensitiveDevicesProtected bool          `json:"sensitive_devices_protected"`
	Schedules                 []scheduleDTO `json:"schedules"`
	UpdatedAt                 string        `json:"updated_at,omitempty"`
}

type scheduleDTO struct {
	ID         string `json:"id"`
	DeviceID   string `json:"device_id"`
	UserID     string `json:"user_id,omitempty"`
	DayPattern string `json:"day_pattern"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type accessCheckResponse struct {
	DeviceID  string `json:"device_id"`
	UserID    string `json:"user_id,omitempty"`
	At        string `json:"at"`
	Permitted bool   `json:"permitted"`
}

func toPostureDTO(posture persistence.SecurityPosture) postureDTO {
	dto := postureDTO{
		AdminID:                   posture.AdminID,
		SystemArmed:               posture.SystemArmed,
		SensitiveDevicesProtected: posture.SensitiveDevicesProtected,
		Schedules:                 make([]scheduleDTO, 0, len(posture.AccessSchedules)),
	}
	for _, schedule := range posture.AccessSchedules {
		dto.Schedules = append(dto.Schedules, toScheduleDTO(schedule))
	}
	sortScheduleDTOs(dto.Schedules)
	if !posture.UpdatedAt.IsZero() {
		dto.UpdatedAt = posture.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func toScheduleDTO(schedule persistence.AccessSchedule) scheduleDTO {
	return scheduleDTO{
		ID:         schedule.ID,
		DeviceID:   schedule.DeviceID,
		UserID:     schedule.UserID,
		DayPattern: schedule.DayPattern,
		StartTime:  schedule.StartTime,
		EndTime:    schedule.EndTime,
	}
}

func sortScheduleDTOs(schedules []scheduleDTO) {
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })
}
