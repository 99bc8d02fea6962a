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

type simulationService interface {
	CreateEvent(ctx context.Context, adminID string, input application.EventInput) (persistence.SimulatedEvent, error)
	GetEvent(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error)
	ListEvents(ctx context.Context, adminID string) ([]persistence.SimulatedEvent, error)
	Run(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error)
	Complete(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error)
	Cancel(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error)
}

type SimulationHandler struct {
	service   simulationService
	responder responder
}

func NewSimulationHandler(service simulationService, logger *slog.Logger) *SimulationHandler {
	return &SimulationHandler{service: service, responder: newResponder(logger)}
}

func (h *SimulationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	adminID, _ := AdminIDFromContext(r.Context())
	event, err := h.service.CreateEvent(r.Context(), adminID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEventDTO(event))
}

func (h *SimulationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	adminID, _ := AdminIDFromContext(r.Context())
	event, err := h.service.GetEvent(r.Context(), adminID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *SimulationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	adminID, _ := AdminIDFromContext(r.Context())
	events, err := h.service.ListEvents(r.Context(), adminID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, toEventDTO(event))
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].ScheduledAt < dtos[j].ScheduledAt })

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: dtos})
}

func (h *SimulationHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.lifecycleMove(w, r, "run")
}

func (h *SimulationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.lifecycleMove(w, r, "complete")
}

func (h *SimulationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycleMove(w, r, "cancel")
}

func (h *SimulationHandler) lifecycleMove(w http.ResponseWriter, r *http.Request, operation string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var move func(ctx context.Context, adminID, id string) (persistence.SimulatedEvent, error)
	switch operation {
	case "run":
		move = h.service.Run
	case "complete":
		move = h.service.Complete
	case "cancel":
		move = h.service.Cancel
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	adminID, _ := AdminIDFromContext(r.Context())
	event, err := move(r.Context(), adminID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.responder.logger, "simulation", operation, "event_id", eventID).
		InfoContext(r.Context(), "simulation lifecycle move applied", "status", string(event.Status))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

type eventRequest struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	ScheduledAt     string   `json:"scheduled_at"`
	AffectedDevices []string `json:"affected_devices"`
	NotifyUsers     bool     `json:"notify_users"`
}

func (r eventRequest) toInput() application.EventInput {
	return application.EventInput{
		Name:            strings.TrimSpace(r.Name),
		Type:            strings.TrimSpace(r.Type),
		Description:     r.Description,
		ScheduledAt:     parseTime(r.ScheduledAt),
		AffectedDevices: append([]string(nil), r.AffectedDevices...),
		NotifyUsers:     r.NotifyUsers,
	}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	ID              string   `json:"id"`
	AdminID         string   `json:"admin_id"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Description     string   `json:"description,omitempty"`
	ScheduledAt     string   `json:"scheduled_at"`
	AffectedDevices []string `json:"affected_devices"`
	NotifyUsers     bool     `json:"notify_users"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

func toEventDTO(event persistence.SimulatedEvent) eventDTO {
	dto := eventDTO{
		ID:              event.ID,
		AdminID:         event.AdminID,
		Name:            event.Name,
		Type:            string(event.Type),
		Description:     event.Description,
		ScheduledAt:     event.ScheduledAt.UTC().Format(time.RFC3339Nano),
		AffectedDevices: append([]string(nil), event.AffectedDevices...),
		NotifyUsers:     event.NotifyUsers,
		Status:          string(event.Status),
	}
	if !event.CreatedAt.IsZero() {
		dto.CreatedAt = event.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !event.UpdatedAt.IsZero() {
		dto.UpdatedAt = event.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
