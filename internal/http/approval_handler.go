package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
)

type approvalService interface {
	RequestApproval(ctx context.Context, principal application.Principal, eventID string) (approval.Record, error)
	TransitionApproval(ctx context.Context, params application.TransitionParams) (approval.Record, error)
	GetApproval(ctx context.Context, principal application.Principal, eventID string) (approval.Record, error)
	ListApprovals(ctx context.Context, params application.ListApprovalsParams) (application.ApprovalPage, error)
	PendingCount(ctx context.Context, principal application.Principal) (int, error)
}

// ApprovalHandler serves approval records and transitions.
type ApprovalHandler struct {
	service   approvalService
	responder responder
	logger    *slog.Logger
}

// NewApprovalHandler constructs an ApprovalHandler.
func NewApprovalHandler(service approvalService, logger *slog.Logger) *ApprovalHandler {
	base := defaultLogger(logger)
	return &ApprovalHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ApprovalHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ApprovalHandler", operation, attrs...)
}

// Get serves GET /events/{id}/approval.
func (h *ApprovalHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.GetApproval(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, approvalResponse{Approval: toApprovalDTO(record)})
}

// Request serves POST /events/{id}/approval. Requesting an already pending
// approval returns the unchanged record.
func (h *ApprovalHandler) Request(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.RequestApproval(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, approvalResponse{Approval: toApprovalDTO(record)})
}

// Transition serves POST /events/{id}/approval/{action}. The body is
// optional and may carry a reason.
func (h *ApprovalHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	action, ok := approval.ParseAction(r.PathValue("action"))
	if !ok || action == approval.ActionCreate || action == approval.ActionRequest {
		http.NotFound(w, r)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log(r.Context(), "Transition", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode transition request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.service.TransitionApproval(r.Context(), application.TransitionParams{
		Principal: principal,
		EventID:   r.PathValue("id"),
		Action:    action,
		Reason:    req.Reason,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, approvalResponse{Approval: toApprovalDTO(record)})
}

// List serves GET /approvals?status=&page=&per_page=.
func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	page, pageErr := optionalInt(query.Get("page"))
	perPage, perPageErr := optionalInt(query.Get("per_page"))
	if pageErr != nil || perPageErr != nil {
		fields := map[string]string{}
		if pageErr != nil {
			fields["page"] = "must be an integer"
		}
		if perPageErr != nil {
			fields["per_page"] = "must be an integer"
		}
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: fields})
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.ListApprovals(r.Context(), application.ListApprovalsParams{
		Principal: principal,
		Status:    strings.TrimSpace(query.Get("status")),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := approvalPageResponse{
		Approvals: make([]approvalDTO, 0, len(result.Records)),
		Total:     result.Total,
		Page:      result.Page,
		PerPage:   result.PerPage,
	}
	for _, record := range result.Records {
		resp.Approvals = append(resp.Approvals, toApprovalDTO(record))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// PendingCount serves GET /approvals/pending-count for administrators.
func (h *ApprovalHandler) PendingCount(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	count, err := h.service.PendingCount(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, pendingCountResponse{Count: count})
}

func optionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

type approvalResponse struct {
	Approval approvalDTO `json:"approval"`
}

type approvalPageResponse struct {
	Approvals []approvalDTO `json:"approvals"`
	Total     int           `json:"total"`
	Page      int           `json:"page"`
	PerPage   int           `json:"per_page"`
}

type pendingCountResponse struct {
	Count int `json:"count"`
}
