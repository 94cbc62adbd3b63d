package http

import (
	"context"
	"net/http"
)

// RouterConfig collects the handlers mounted by NewRouter. Nil handlers leave
// their routes unregistered.
type RouterConfig struct {
	Schedules     *ScheduleHandler
	Events        *EventHandler
	Scheduling    *SchedulingHandler
	Approvals     *ApprovalHandler
	Notifications *NotificationHandler
	Calendar      *CalendarHandler
	// Session guards every route except /healthz.
	Session func(http.Handler) http.Handler
	// Health reports readiness of the backing store.
	Health     func(ctx context.Context) error
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := http.NewServeMux()

	if h := cfg.Schedules; h != nil {
		api.HandleFunc("GET /schedules", h.List)
		api.HandleFunc("POST /schedules", h.Create)
		api.HandleFunc("GET /schedules/{id}", h.Get)
		api.HandleFunc("PUT /schedules/{id}", h.Update)
		api.HandleFunc("DELETE /schedules/{id}", h.Delete)
	}

	if h := cfg.Events; h != nil {
		api.HandleFunc("GET /schedules/{id}/events", h.List)
		api.HandleFunc("POST /schedules/{id}/events", h.Create)
		api.HandleFunc("GET /events/{id}", h.Get)
		api.HandleFunc("PUT /events/{id}", h.Update)
		api.HandleFunc("DELETE /events/{id}", h.Delete)
		api.HandleFunc("PATCH /events/{id}/interval", h.Reschedule)
	}

	if h := cfg.Scheduling; h != nil {
		api.HandleFunc("GET /schedules/{id}/conflicts", h.Conflicts)
		api.HandleFunc("GET /schedules/{id}/day", h.Day)
		api.HandleFunc("GET /schedules/{id}/week", h.Week)
		api.HandleFunc("POST /scheduling/check-overlap", h.CheckOverlap)
		api.HandleFunc("POST /scheduling/facility-availability", h.FacilityAvailability)
		api.HandleFunc("POST /scheduling/suggest-times", h.SuggestTimes)
		api.HandleFunc("POST /scheduling/resolve-conflict", h.ResolveConflict)
		api.HandleFunc("GET /facilities", h.Facilities)
		api.HandleFunc("GET /facilities/{building}/{room}/events", h.FacilityEvents)
	}

	if h := cfg.Calendar; h != nil {
		api.HandleFunc("GET /schedules/{id}/calendar.ics", h.Export)
		api.HandleFunc("POST /schedules/{id}/calendar.ics", h.Import)
	}

	if h := cfg.Approvals; h != nil {
		api.HandleFunc("GET /events/{id}/approval", h.Get)
		api.HandleFunc("POST /events/{id}/approval", h.Request)
		api.HandleFunc("POST /events/{id}/approval/{action}", h.Transition)
		api.HandleFunc("GET /approvals", h.List)
		api.HandleFunc("GET /approvals/pending-count", h.PendingCount)
	}

	if h := cfg.Notifications; h != nil {
		api.HandleFunc("GET /notifications", h.List)
		api.HandleFunc("POST /notifications/{id}/read", h.MarkRead)
		api.HandleFunc("POST /notifications/read-all", h.MarkAllRead)
	}

	var protected http.Handler = api
	if cfg.Session != nil {
		protected = cfg.Session(api)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler(cfg.Health))
	mux.Handle("/", protected)

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	responder := newResponder(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

type healthResponse struct {
	Status string `json:"status"`
}
