package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/calendar"
)

const maxCalendarUpload = 4 << 20

type calendarService interface {
	Export(ctx context.Context, principal application.Principal, scheduleID string, w io.Writer) error
	Import(ctx context.Context, principal application.Principal, scheduleID string, r io.Reader) (calendar.ImportReport, error)
}

// CalendarHandler serves /schedules/{id}/calendar.ics.
type CalendarHandler struct {
	service   calendarService
	responder responder
	logger    *slog.Logger
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(service calendarService, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), principal, scheduleID, &buf); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(scheduleID+".ics"))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		handlerLogger(r.Context(), h.logger, "CalendarHandler", "Export").ErrorContext(r.Context(), "failed to write calendar", "error", err)
	}
}

// Import serves POST /schedules/{id}/calendar.ics. Per item failures are
// reported in the body with a 200 status.
func (h *CalendarHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	body := http.MaxBytesReader(w, r.Body, maxCalendarUpload)
	report, err := h.service.Import(r.Context(), principal, r.PathValue("id"), body)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidCalendar) {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := importResponse{
		Created: toEventDTOs(report.Created),
		Failed:  make([]importFailureDTO, 0, len(report.Failed)),
	}
	for _, failure := range report.Failed {
		dto := importFailureDTO{
			UID:     failure.UID,
			Summary: failure.Summary,
			Kind:    application.ErrorKind(failure.Err),
			Message: failure.Err.Error(),
		}
		var conflict *application.ConflictError
		if errors.As(failure.Err, &conflict) {
			dto.Conflict = toConflictDTO(conflict)
		}
		resp.Failed = append(resp.Failed, dto)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type importFailureDTO struct {
	UID      string       `json:"uid"`
	Summary  string       `json:"summary"`
	Kind     string       `json:"kind"`
	Message  string       `json:"message"`
	Conflict *conflictDTO `json:"conflict,omitempty"`
}

type importResponse struct {
	Created []eventDTO         `json:"created"`
	Failed  []importFailureDTO `json:"failed"`
}
