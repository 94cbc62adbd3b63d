package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

type schedulingService interface {
	CheckEventOverlap(ctx context.Context, query application.OverlapQuery) (scheduler.OverlapResult, error)
	CheckFacilityAvailability(ctx context.Context, query application.FacilityQuery) (scheduler.AvailabilityResult, error)
	SuggestAlternativeTimes(ctx context.Context, query application.SuggestQuery) ([]scheduler.Suggestion, error)
	DayView(ctx context.Context, principal application.Principal, scheduleID, date string) (application.DayView, error)
	WeekView(ctx context.Context, principal application.Principal, scheduleID, start string) (application.WeekView, error)
	ConflictReport(ctx context.Context, principal application.Principal, scheduleID string) (application.ConflictReport, error)
	ResolveConflict(ctx context.Context, params application.ResolveConflictParams) ([]application.ResolutionStrategy, error)
	ListFacilities(ctx context.Context) ([]scheduler.FacilitySummary, error)
	FacilityEvents(ctx context.Context, principal application.Principal, building, room string) ([]scheduler.Event, error)
}

// SchedulingHandler serves the engine endpoints: checks, suggestions,
// calendar views, conflict reports and facility listings.
type SchedulingHandler struct {
	service   schedulingService
	responder responder
	logger    *slog.Logger
}

// NewSchedulingHandler constructs a SchedulingHandler.
func NewSchedulingHandler(service schedulingService, logger *slog.Logger) *SchedulingHandler {
	base := defaultLogger(logger)
	return &SchedulingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SchedulingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SchedulingHandler", operation, attrs...)
}

func (h *SchedulingHandler) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode scheduling request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	return true
}

// CheckOverlap serves POST /scheduling/check-overlap.
func (h *SchedulingHandler) CheckOverlap(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req overlapRequest
	if !h.decode(w, r, "CheckOverlap", &req) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.CheckEventOverlap(r.Context(), application.OverlapQuery{
		Principal:      principal,
		ScheduleID:     strings.TrimSpace(req.ScheduleID),
		Start:          strings.TrimSpace(req.Start),
		End:            strings.TrimSpace(req.End),
		ExcludeEventID: strings.TrimSpace(req.ExcludeEventID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := overlapResponse{HasOverlap: result.HasOverlap}
	if result.ConflictingEvent != nil {
		event := toEngineEventDTO(*result.ConflictingEvent)
		resp.ConflictingEvent = &event
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// FacilityAvailability serves POST /scheduling/facility-availability.
func (h *SchedulingHandler) FacilityAvailability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req facilityRequest
	if !h.decode(w, r, "FacilityAvailability", &req) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.CheckFacilityAvailability(r.Context(), application.FacilityQuery{
		Principal:      principal,
		Building:       strings.TrimSpace(req.Building),
		Room:           strings.TrimSpace(req.Room),
		Start:          strings.TrimSpace(req.Start),
		End:            strings.TrimSpace(req.End),
		ExcludeEventID: strings.TrimSpace(req.ExcludeEventID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available:     result.Available,
		ConflictCount: result.ConflictCount,
		Conflicts:     toEngineEventDTOs(result.Conflicts),
	})
}

// SuggestTimes serves POST /scheduling/suggest-times.
func (h *SchedulingHandler) SuggestTimes(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req suggestRequest
	if !h.decode(w, r, "SuggestTimes", &req) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	suggestions, err := h.service.SuggestAlternativeTimes(r.Context(), application.SuggestQuery{
		Principal:       principal,
		ScheduleID:      strings.TrimSpace(req.ScheduleID),
		Start:           strings.TrimSpace(req.Start),
		End:             strings.TrimSpace(req.End),
		DurationMinutes: req.DurationMinutes,
		Building:        strings.TrimSpace(req.Building),
		Room:            strings.TrimSpace(req.Room),
		ExcludeEventID:  strings.TrimSpace(req.ExcludeEventID),
		Limit:           req.Limit,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, suggestionsResponse{Suggestions: toSuggestionDTOs(suggestions)})
}

// ResolveConflict serves POST /scheduling/resolve-conflict.
func (h *SchedulingHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req resolveRequest
	if !h.decode(w, r, "ResolveConflict", &req) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	strategies, err := h.service.ResolveConflict(r.Context(), application.ResolveConflictParams{
		Principal:          principal,
		PrimaryEventID:     strings.TrimSpace(req.PrimaryEventID),
		ConflictingEventID: strings.TrimSpace(req.ConflictingEventID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]strategyDTO, 0, len(strategies))
	for _, strategy := range strategies {
		out = append(out, strategyDTO{
			Action:      string(strategy.Action),
			Target:      strategy.Target,
			EventID:     strategy.EventID,
			Suggestions: toSuggestionDTOs(strategy.Suggestions),
			Warning:     strategy.Warning,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resolveResponse{Strategies: out})
}

// Day serves GET /schedules/{id}/day?date=YYYY-MM-DD.
func (h *SchedulingHandler) Day(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.DayView(r.Context(), principal, r.PathValue("id"), strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, dayViewResponse{
		ScheduleID: view.ScheduleID,
		Date:       view.Date.Format(dateLayout),
		Events:     toOccurrenceDTOs(view.Events),
	})
}

// Week serves GET /schedules/{id}/week?start=YYYY-MM-DD.
func (h *SchedulingHandler) Week(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.WeekView(r.Context(), principal, r.PathValue("id"), strings.TrimSpace(r.URL.Query().Get("start")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := weekViewResponse{
		ScheduleID: view.ScheduleID,
		WeekStart:  view.WeekStart.Format(dateLayout),
		Days:       make([]weekDayDTO, 0, len(view.Days)),
	}
	for _, day := range view.Days {
		resp.Days = append(resp.Days, weekDayDTO{
			Date:    day.Date.Format(dateLayout),
			Weekday: weekdayName(day.Weekday),
			Events:  toOccurrenceDTOs(day.Events),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Conflicts serves GET /schedules/{id}/conflicts.
func (h *SchedulingHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	report, err := h.service.ConflictReport(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := conflictReportResponse{ScheduleID: report.ScheduleID, Conflicts: make([]conflictPairDTO, 0, len(report.Conflicts))}
	for _, conflict := range report.Conflicts {
		resp.Conflicts = append(resp.Conflicts, conflictPairDTO{
			First:          toEngineEventDTO(conflict.First),
			Second:         toEngineEventDTO(conflict.Second),
			Overlap:        toIntervalDTO(conflict.Overlap),
			OverlapMinutes: conflict.OverlapMinutes(),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Facilities serves GET /facilities.
func (h *SchedulingHandler) Facilities(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	summaries, err := h.service.ListFacilities(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]facilityDTO, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, facilityDTO{Building: summary.Building, Room: summary.Room, EventCount: summary.EventCount})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, facilitiesResponse{Facilities: out})
}

// FacilityEvents serves GET /facilities/{building}/{room}/events.
func (h *SchedulingHandler) FacilityEvents(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	events, err := h.service.FacilityEvents(r.Context(), principal, r.PathValue("building"), r.PathValue("room"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, facilityEventsResponse{Events: toEngineEventDTOs(events)})
}

type overlapRequest struct {
	ScheduleID     string `json:"schedule_id"`
	Start          string `json:"start"`
	End            string `json:"end"`
	ExcludeEventID string `json:"exclude_event_id"`
}

type overlapResponse struct {
	HasOverlap       bool            `json:"has_overlap"`
	ConflictingEvent *engineEventDTO `json:"conflicting_event"`
}

type facilityRequest struct {
	Building       string `json:"building"`
	Room           string `json:"room"`
	Start          string `json:"start"`
	End            string `json:"end"`
	ExcludeEventID string `json:"exclude_event_id"`
}

type availabilityResponse struct {
	Available     bool             `json:"available"`
	ConflictCount int              `json:"conflict_count"`
	Conflicts     []engineEventDTO `json:"conflicts"`
}

type suggestRequest struct {
	ScheduleID      string `json:"schedule_id"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	Building        string `json:"building"`
	Room            string `json:"room"`
	ExcludeEventID  string `json:"exclude_event_id"`
	Limit           int    `json:"limit"`
}

type suggestionsResponse struct {
	Suggestions []suggestionDTO `json:"suggestions"`
}

type resolveRequest struct {
	PrimaryEventID     string `json:"primary_event_id"`
	ConflictingEventID string `json:"conflicting_event_id"`
}

type strategyDTO struct {
	Action      string          `json:"action"`
	Target      string          `json:"target,omitempty"`
	EventID     string          `json:"event_id"`
	Suggestions []suggestionDTO `json:"suggestions,omitempty"`
	Warning     string          `json:"warning,omitempty"`
}

type resolveResponse struct {
	Strategies []strategyDTO `json:"strategies"`
}

type dayViewResponse struct {
	ScheduleID string          `json:"schedule_id"`
	Date       string          `json:"date"`
	Events     []occurrenceDTO `json:"events"`
}

type weekDayDTO struct {
	Date    string          `json:"date"`
	Weekday string          `json:"weekday"`
	Events  []occurrenceDTO `json:"events"`
}

type weekViewResponse struct {
	ScheduleID string       `json:"schedule_id"`
	WeekStart  string       `json:"week_start"`
	Days       []weekDayDTO `json:"days"`
}

type conflictPairDTO struct {
	First          engineEventDTO `json:"first"`
	Second         engineEventDTO `json:"second"`
	Overlap        intervalDTO    `json:"overlap"`
	OverlapMinutes int            `json:"overlap_minutes"`
}

type conflictReportResponse struct {
	ScheduleID string            `json:"schedule_id"`
	Conflicts  []conflictPairDTO `json:"conflicts"`
}

type facilityDTO struct {
	Building   string `json:"building"`
	Room       string `json:"room"`
	EventCount int    `json:"event_count"`
}

type facilitiesResponse struct {
	Facilities []facilityDTO `json:"facilities"`
}

type facilityEventsResponse struct {
	Events []engineEventDTO `json:"events"`
}
