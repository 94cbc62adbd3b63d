package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Lowii-3dy/campus-sched/internal/application"
)

type notificationService interface {
	ListNotifications(ctx context.Context, principal application.Principal, unreadOnly bool) ([]application.Notification, error)
	MarkRead(ctx context.Context, principal application.Principal, notificationID string) error
	MarkAllRead(ctx context.Context, principal application.Principal) (int, error)
}

// NotificationHandler serves the caller's notifications.
type NotificationHandler struct {
	service   notificationService
	responder responder
	logger    *slog.Logger
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(service notificationService, logger *slog.Logger) *NotificationHandler {
	base := defaultLogger(logger)
	return &NotificationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	unreadOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("unread")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
			return
		}
		unreadOnly = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())
	notifications, err := h.service.ListNotifications(r.Context(), principal, unreadOnly)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]notificationDTO, 0, len(notifications))
	for _, notification := range notifications {
		out = append(out, toNotificationDTO(notification))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, notificationsResponse{Notifications: out})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	count, err := h.service.MarkAllRead(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, markAllReadResponse{Updated: count})
}

type notificationsResponse struct {
	Notifications []notificationDTO `json:"notifications"`
}

type markAllReadResponse struct {
	Updated int `json:"updated"`
}
