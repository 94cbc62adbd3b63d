package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lowii-3dy/campus-sched/internal/application"
)

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	GetEvent(ctx context.Context, principal application.Principal, eventID string) (application.Event, error)
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	RescheduleEvent(ctx context.Context, params application.RescheduleEventParams) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
}

// EventHandler serves schedule events and /events/{id}.
type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

// List serves GET /schedules/{id}/events with optional from and to bounds.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	events, err := h.service.ListEvents(r.Context(), application.ListEventsParams{
		Principal:  principal,
		ScheduleID: r.PathValue("id"),
		From:       strings.TrimSpace(query.Get("from")),
		To:         strings.TrimSpace(query.Get("to")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

// Create serves POST /schedules/{id}/events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	input, ok := h.decodeInput(w, r, "Create")
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		Principal:  principal,
		ScheduleID: r.PathValue("id"),
		Input:      input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.GetEvent(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	input, ok := h.decodeInput(w, r, "Update")
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   r.PathValue("id"),
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

// Reschedule serves PATCH /events/{id}/interval. The approval status is kept.
func (h *EventHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Reschedule", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode interval request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.RescheduleEvent(r.Context(), application.RescheduleEventParams{
		Principal: principal,
		EventID:   r.PathValue("id"),
		Start:     strings.TrimSpace(req.Start),
		End:       strings.TrimSpace(req.End),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteEvent(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) decodeInput(w http.ResponseWriter, r *http.Request, operation string) (application.EventInput, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.EventInput{}, false
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return application.EventInput{}, false
	}
	return input, true
}

type intervalRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type eventRequest struct {
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Start            string             `json:"start"`
	End              string             `json:"end"`
	Location         *locationDTO       `json:"location"`
	Color            string             `json:"color"`
	RequiresApproval bool               `json:"requires_approval"`
	Draft            bool               `json:"draft"`
	Recurrence       *recurrenceRequest `json:"recurrence"`
}

type recurrenceRequest struct {
	Frequency string   `json:"frequency"`
	Weekdays  []string `json:"weekdays"`
	Until     string   `json:"until"`
}

func (r eventRequest) toInput() (application.EventInput, error) {
	input := application.EventInput{
		Title:            strings.TrimSpace(r.Title),
		Description:      r.Description,
		Start:            strings.TrimSpace(r.Start),
		End:              strings.TrimSpace(r.End),
		Color:            strings.TrimSpace(r.Color),
		RequiresApproval: r.RequiresApproval,
		Draft:            r.Draft,
	}
	if r.Location != nil {
		input.Building = strings.TrimSpace(r.Location.Building)
		input.Room = strings.TrimSpace(r.Location.Room)
	}
	if r.Recurrence != nil {
		rec := &application.RecurrenceInput{
			Frequency: strings.ToLower(strings.TrimSpace(r.Recurrence.Frequency)),
			Until:     strings.TrimSpace(r.Recurrence.Until),
		}
		for _, name := range r.Recurrence.Weekdays {
			day, ok := parseWeekday(name)
			if !ok {
				return application.EventInput{}, &application.ValidationError{FieldErrors: map[string]string{
					"recurrence.weekdays": fmt.Sprintf("unknown weekday %q", name),
				}}
			}
			rec.Weekdays = append(rec.Weekdays, day)
		}
		input.Recurrence = rec
	}
	return input, nil
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}
