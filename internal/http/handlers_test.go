package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/calendar"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

var (
	testPrincipal = application.Principal{UserID: "owner", Role: approval.RoleTeacher, CanCreateSchedules: true}
	monday        = time.Date(2024, time.October, 7, 0, 0, 0, 0, time.UTC)
)

// stubAPI implements every service interface the handlers consume.
type stubAPI struct {
	mu    sync.Mutex
	err   error
	calls []string

	eventInput      application.EventInput
	transition      application.TransitionParams
	approvalsParams application.ListApprovalsParams
	unreadOnly      bool
	weekView        application.WeekView
	calendarBody    string
}

func (s *stubAPI) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.err
}

func (s *stubAPI) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubAPI) CreateSchedule(ctx context.Context, params application.CreateScheduleParams) (application.Schedule, error) {
	return application.Schedule{ID: "sched-1", OwnerID: params.Principal.UserID, Title: params.Input.Title}, s.record("CreateSchedule")
}

func (s *stubAPI) GetSchedule(ctx context.Context, principal application.Principal, scheduleID string) (application.Schedule, error) {
	return application.Schedule{ID: scheduleID}, s.record("GetSchedule:" + scheduleID)
}

func (s *stubAPI) UpdateSchedule(ctx context.Context, params application.UpdateScheduleParams) (application.Schedule, error) {
	return application.Schedule{ID: params.ScheduleID}, s.record("UpdateSchedule")
}

func (s *stubAPI) DeleteSchedule(ctx context.Context, principal application.Principal, scheduleID string) error {
	return s.record("DeleteSchedule:" + scheduleID)
}

func (s *stubAPI) ListSchedules(ctx context.Context, principal application.Principal) ([]application.Schedule, error) {
	return []application.Schedule{{ID: "sched-1"}}, s.record("ListSchedules")
}

func (s *stubAPI) CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error) {
	s.mu.Lock()
	s.eventInput = params.Input
	s.mu.Unlock()
	return application.Event{ID: "evt-1", ScheduleID: params.ScheduleID, Title: params.Input.Title}, s.record("CreateEvent:" + params.ScheduleID)
}

func (s *stubAPI) GetEvent(ctx context.Context, principal application.Principal, eventID string) (application.Event, error) {
	return application.Event{ID: eventID}, s.record("GetEvent:" + eventID)
}

func (s *stubAPI) ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error) {
	return nil, s.record(fmt.Sprintf("ListEvents:%s:%s:%s", params.ScheduleID, params.From, params.To))
}

func (s *stubAPI) UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error) {
	return application.Event{ID: params.EventID}, s.record("UpdateEvent:" + params.EventID)
}

func (s *stubAPI) RescheduleEvent(ctx context.Context, params application.RescheduleEventParams) (application.Event, error) {
	return application.Event{ID: params.EventID}, s.record(fmt.Sprintf("RescheduleEvent:%s:%s:%s", params.EventID, params.Start, params.End))
}

func (s *stubAPI) DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error {
	return s.record("DeleteEvent:" + eventID)
}

func (s *stubAPI) CheckEventOverlap(ctx context.Context, query application.OverlapQuery) (scheduler.OverlapResult, error) {
	return scheduler.OverlapResult{HasOverlap: true, ConflictingEvent: &scheduler.Event{ID: "busy"}}, s.record("CheckEventOverlap:" + query.ScheduleID)
}

func (s *stubAPI) CheckFacilityAvailability(ctx context.Context, query application.FacilityQuery) (scheduler.AvailabilityResult, error) {
	return scheduler.AvailabilityResult{Available: true}, s.record("CheckFacilityAvailability:" + query.Building)
}

func (s *stubAPI) SuggestAlternativeTimes(ctx context.Context, query application.SuggestQuery) ([]scheduler.Suggestion, error) {
	slot := scheduler.Interval{Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour)}
	return []scheduler.Suggestion{{Interval: slot, Weekday: time.Monday}}, s.record(fmt.Sprintf("SuggestAlternativeTimes:%d", query.DurationMinutes))
}

func (s *stubAPI) DayView(ctx context.Context, principal application.Principal, scheduleID, date string) (application.DayView, error) {
	return application.DayView{ScheduleID: scheduleID, Date: monday}, s.record("DayView:" + date)
}

func (s *stubAPI) WeekView(ctx context.Context, principal application.Principal, scheduleID, start string) (application.WeekView, error) {
	s.mu.Lock()
	view := s.weekView
	s.mu.Unlock()
	return view, s.record("WeekView:" + start)
}

func (s *stubAPI) ConflictReport(ctx context.Context, principal application.Principal, scheduleID string) (application.ConflictReport, error) {
	first := scheduler.Event{ID: "a", Interval: scheduler.Interval{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}}
	second := scheduler.Event{ID: "b", Interval: scheduler.Interval{Start: monday.Add(9*time.Hour + 30*time.Minute), End: monday.Add(11 * time.Hour)}}
	overlap, _ := first.Interval.Intersection(second.Interval)
	return application.ConflictReport{
		ScheduleID: scheduleID,
		Conflicts:  []scheduler.Conflict{{First: first, Second: second, Overlap: overlap}},
	}, s.record("ConflictReport:" + scheduleID)
}

func (s *stubAPI) ResolveConflict(ctx context.Context, params application.ResolveConflictParams) ([]application.ResolutionStrategy, error) {
	return []application.ResolutionStrategy{{Action: application.ResolutionAcceptOverlap, EventID: params.PrimaryEventID}}, s.record("ResolveConflict")
}

func (s *stubAPI) ListFacilities(ctx context.Context) ([]scheduler.FacilitySummary, error) {
	return []scheduler.FacilitySummary{{Building: "Science", Room: "101", EventCount: 2}}, s.record("ListFacilities")
}

func (s *stubAPI) FacilityEvents(ctx context.Context, principal application.Principal, building, room string) ([]scheduler.Event, error) {
	return nil, s.record("FacilityEvents:" + building + "/" + room)
}

func (s *stubAPI) RequestApproval(ctx context.Context, principal application.Principal, eventID string) (approval.Record, error) {
	return approval.Record{EventID: eventID, Status: approval.StatusPending}, s.record("RequestApproval:" + eventID)
}

func (s *stubAPI) TransitionApproval(ctx context.Context, params application.TransitionParams) (approval.Record, error) {
	s.mu.Lock()
	s.transition = params
	s.mu.Unlock()
	return approval.Record{EventID: params.EventID, Status: approval.StatusDeclined, Reason: params.Reason}, s.record("TransitionApproval")
}

func (s *stubAPI) GetApproval(ctx context.Context, principal application.Principal, eventID string) (approval.Record, error) {
	return approval.Record{EventID: eventID}, s.record("GetApproval:" + eventID)
}

func (s *stubAPI) ListApprovals(ctx context.Context, params application.ListApprovalsParams) (application.ApprovalPage, error) {
	s.mu.Lock()
	s.approvalsParams = params
	s.mu.Unlock()
	return application.ApprovalPage{Page: params.Page, PerPage: params.PerPage}, s.record("ListApprovals")
}

func (s *stubAPI) PendingCount(ctx context.Context, principal application.Principal) (int, error) {
	return 4, s.record("PendingCount")
}

func (s *stubAPI) ListNotifications(ctx context.Context, principal application.Principal, unreadOnly bool) ([]application.Notification, error) {
	s.mu.Lock()
	s.unreadOnly = unreadOnly
	s.mu.Unlock()
	return []application.Notification{{ID: "n1", Kind: application.NotificationApproved}}, s.record("ListNotifications")
}

func (s *stubAPI) MarkRead(ctx context.Context, principal application.Principal, notificationID string) error {
	return s.record("MarkRead:" + notificationID)
}

func (s *stubAPI) MarkAllRead(ctx context.Context, principal application.Principal) (int, error) {
	return 3, s.record("MarkAllRead")
}

func (s *stubAPI) Export(ctx context.Context, principal application.Principal, scheduleID string, w io.Writer) error {
	if err := s.record("Export:" + scheduleID); err != nil {
		return err
	}
	_, err := io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	return err
}

func (s *stubAPI) Import(ctx context.Context, principal application.Principal, scheduleID string, r io.Reader) (calendar.ImportReport, error) {
	body, _ := io.ReadAll(r)
	s.mu.Lock()
	s.calendarBody = string(body)
	s.mu.Unlock()
	if err := s.record("Import:" + scheduleID); err != nil {
		return calendar.ImportReport{}, err
	}
	return calendar.ImportReport{
		Created: []application.Event{{ID: "evt-1"}},
		Failed: []calendar.ImportFailure{{
			UID: "uid-2", Summary: "Clash",
			Err: &application.ConflictError{Scope: application.ConflictScopeSchedule, ConflictingEvent: &scheduler.Event{ID: "busy"}},
		}},
	}, nil
}

func newTestRouter(api *stubAPI, health func(context.Context) error) http.Handler {
	logger := discardLogger()
	return NewRouter(RouterConfig{
		Schedules:     NewScheduleHandler(api, logger),
		Events:        NewEventHandler(api, logger),
		Scheduling:    NewSchedulingHandler(api, logger),
		Approvals:     NewApprovalHandler(api, logger),
		Notifications: NewNotificationHandler(api, logger),
		Calendar:      NewCalendarHandler(api, logger),
		Session:       RequireSession(fakeSessionValidator{principal: testPrincipal}, logger),
		Health:        health,
		Middleware:    []func(http.Handler) http.Handler{RequestLogger(logger)},
	})
}

func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer token")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", recorder.Body.String(), err)
	}
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubAPI{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("healthz must not require a session, got %d", recorder.Code)
	}

	failing := newTestRouter(&stubAPI{}, func(context.Context) error { return errors.New("db closed") })
	recorder = httptest.NewRecorder()
	failing.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/schedules", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", recorder.Code)
	}
}

func TestRouter_Dispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		target string
		body   string
		status int
		call   string
	}{
		{http.MethodGet, "/schedules", "", http.StatusOK, "ListSchedules"},
		{http.MethodPost, "/schedules", `{"title":"Clubs"}`, http.StatusCreated, "CreateSchedule"},
		{http.MethodGet, "/schedules/s1", "", http.StatusOK, "GetSchedule:s1"},
		{http.MethodPut, "/schedules/s1", `{"title":"Clubs"}`, http.StatusOK, "UpdateSchedule"},
		{http.MethodDelete, "/schedules/s1", "", http.StatusNoContent, "DeleteSchedule:s1"},
		{http.MethodGet, "/schedules/s1/events?from=2024-10-07&to=2024-10-14", "", http.StatusOK, "ListEvents:s1:2024-10-07:2024-10-14"},
		{http.MethodGet, "/events/e1", "", http.StatusOK, "GetEvent:e1"},
		{http.MethodPut, "/events/e1", `{"title":"Lab"}`, http.StatusOK, "UpdateEvent:e1"},
		{http.MethodDelete, "/events/e1", "", http.StatusNoContent, "DeleteEvent:e1"},
		{http.MethodPatch, "/events/e1/interval", `{"start":"2024-10-07T10:00","end":"2024-10-07T11:00"}`, http.StatusOK, "RescheduleEvent:e1:2024-10-07T10:00:2024-10-07T11:00"},
		{http.MethodGet, "/schedules/s1/day?date=2024-10-07", "", http.StatusOK, "DayView:2024-10-07"},
		{http.MethodGet, "/schedules/s1/conflicts", "", http.StatusOK, "ConflictReport:s1"},
		{http.MethodPost, "/scheduling/check-overlap", `{"schedule_id":"s1"}`, http.StatusOK, "CheckEventOverlap:s1"},
		{http.MethodPost, "/scheduling/facility-availability", `{"building":"Science"}`, http.StatusOK, "CheckFacilityAvailability:Science"},
		{http.MethodPost, "/scheduling/suggest-times", `{"duration_minutes":45}`, http.StatusOK, "SuggestAlternativeTimes:45"},
		{http.MethodPost, "/scheduling/resolve-conflict", `{"primary_event_id":"a","conflicting_event_id":"b"}`, http.StatusOK, "ResolveConflict"},
		{http.MethodGet, "/facilities", "", http.StatusOK, "ListFacilities"},
		{http.MethodGet, "/facilities/Science/101/events", "", http.StatusOK, "FacilityEvents:Science/101"},
		{http.MethodGet, "/events/e1/approval", "", http.StatusOK, "GetApproval:e1"},
		{http.MethodPost, "/events/e1/approval", "", http.StatusOK, "RequestApproval:e1"},
		{http.MethodGet, "/approvals/pending-count", "", http.StatusOK, "PendingCount"},
		{http.MethodPost, "/notifications/n1/read", "", http.StatusNoContent, "MarkRead:n1"},
		{http.MethodPost, "/notifications/read-all", "", http.StatusOK, "MarkAllRead"},
		{http.MethodGet, "/schedules/s1/calendar.ics", "", http.StatusOK, "Export:s1"},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			t.Parallel()

			api := &stubAPI{}
			recorder := serve(t, newTestRouter(api, nil), tc.method, tc.target, tc.body)
			if recorder.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, recorder.Code, recorder.Body.String())
			}
			calls := api.called()
			if len(calls) != 1 || calls[0] != tc.call {
				t.Fatalf("expected call %q, got %v", tc.call, calls)
			}
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	recorder := serve(t, newTestRouter(&stubAPI{}, nil), http.MethodDelete, "/approvals", "")
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestResponder_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &application.ValidationError{FieldErrors: map[string]string{"title": "title is required"}}, http.StatusUnprocessableEntity},
		{"invalid interval", fmt.Errorf("parse: %w", scheduler.ErrInvalidInterval), http.StatusUnprocessableEntity},
		{"missing reason", approval.ErrMissingReason, http.StatusUnprocessableEntity},
		{"invalid transition", approval.ErrInvalidTransition, http.StatusConflict},
		{"conflict", &application.ConflictError{Scope: application.ConflictScopeFacility}, http.StatusConflict},
		{"stale", application.ErrStale, http.StatusConflict},
		{"unauthorized", application.ErrUnauthorized, http.StatusForbidden},
		{"not found", application.ErrNotFound, http.StatusNotFound},
		{"unavailable", fmt.Errorf("%w: db: %w", application.ErrCollaboratorUnavailable, errors.New("locked")), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			recorder := httptest.NewRecorder()
			newResponder(discardLogger()).handleServiceError(context.Background(), recorder, tc.err)
			if recorder.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, recorder.Code)
			}
		})
	}
}

func TestEventHandlers(t *testing.T) {
	t.Parallel()

	t.Run("decodes locations and recurrence weekdays", func(t *testing.T) {
		t.Parallel()

		api := &stubAPI{}
		body := `{"title":" Lab ","start":"2024-10-07T09:00","end":"2024-10-07T10:00",
			"location":{"building":"Science","room":"101"},"requires_approval":true,
			"recurrence":{"frequency":"Weekly","weekdays":["mon","Wednesday"],"until":"2024-12-20"}}`
		recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/schedules/s1/events", body)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}

		input := api.eventInput
		if input.Title != "Lab" || input.Building != "Science" || input.Room != "101" || !input.RequiresApproval {
			t.Fatalf("unexpected input %+v", input)
		}
		rec := input.Recurrence
		if rec == nil || rec.Frequency != "weekly" || rec.Until != "2024-12-20" {
			t.Fatalf("unexpected recurrence %+v", rec)
		}
		if len(rec.Weekdays) != 2 || rec.Weekdays[0] != time.Monday || rec.Weekdays[1] != time.Wednesday {
			t.Fatalf("unexpected weekdays %v", rec.Weekdays)
		}
	})

	t.Run("rejects unknown weekdays before calling the service", func(t *testing.T) {
		t.Parallel()

		api := &stubAPI{}
		body := `{"title":"Lab","recurrence":{"frequency":"weekly","weekdays":["someday"]}}`
		recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/schedules/s1/events", body)
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		if len(api.called()) != 0 {
			t.Fatalf("service must not be called, got %v", api.called())
		}
	})

	t.Run("malformed bodies are bad requests", func(t *testing.T) {
		t.Parallel()

		recorder := serve(t, newTestRouter(&stubAPI{}, nil), http.MethodPost, "/schedules/s1/events", `{"title":`)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("conflicts carry the conflicting event and suggestions", func(t *testing.T) {
		t.Parallel()

		slot := scheduler.Interval{Start: monday.Add(11 * time.Hour), End: monday.Add(12 * time.Hour)}
		api := &stubAPI{err: &application.ConflictError{
			Scope:            application.ConflictScopeSchedule,
			ConflictingEvent: &scheduler.Event{ID: "busy", Title: "Seminar"},
			Suggestions:      []scheduler.Suggestion{{Interval: slot, Weekday: time.Monday}},
		}}
		recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/schedules/s1/events", `{"title":"Lab"}`)
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}

		var resp errorResponse
		decodeBody(t, recorder, &resp)
		if resp.Conflict == nil || resp.Conflict.ConflictingEvent == nil || resp.Conflict.ConflictingEvent.ID != "busy" {
			t.Fatalf("unexpected conflict payload %+v", resp.Conflict)
		}
		if len(resp.Conflict.Suggestions) != 1 || resp.Conflict.Suggestions[0].Start != "2024-10-07T11:00:00Z" || resp.Conflict.Suggestions[0].Weekday != "Monday" {
			t.Fatalf("unexpected suggestions %+v", resp.Conflict.Suggestions)
		}
	})
}

func TestSchedulingHandlers_WeekView(t *testing.T) {
	t.Parallel()

	event := application.Event{ID: "lecture", Title: "Lecture"}
	slot := scheduler.Interval{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}
	view := application.WeekView{ScheduleID: "s1", WeekStart: monday, Days: make([]application.WeekDay, 7)}
	for i := range view.Days {
		date := monday.AddDate(0, 0, i)
		view.Days[i] = application.WeekDay{Date: date, Weekday: date.Weekday()}
	}
	view.Days[0].Events = []application.Occurrence{{Event: event, Interval: slot}}

	api := &stubAPI{weekView: view}
	recorder := serve(t, newTestRouter(api, nil), http.MethodGet, "/schedules/s1/week?start=2024-10-09", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var resp weekViewResponse
	decodeBody(t, recorder, &resp)
	if resp.WeekStart != "2024-10-07" || len(resp.Days) != 7 {
		t.Fatalf("unexpected week %+v", resp)
	}
	if resp.Days[0].Weekday != "Monday" || resp.Days[6].Weekday != "Sunday" {
		t.Fatalf("weeks start on Monday, got %s..%s", resp.Days[0].Weekday, resp.Days[6].Weekday)
	}
	if len(resp.Days[0].Events) != 1 || resp.Days[0].Events[0].Start != "2024-10-07T09:00:00Z" {
		t.Fatalf("unexpected occurrences %+v", resp.Days[0].Events)
	}
}

func TestSchedulingHandlers_ConflictReport(t *testing.T) {
	t.Parallel()

	recorder := serve(t, newTestRouter(&stubAPI{}, nil), http.MethodGet, "/schedules/s1/conflicts", "")
	var resp conflictReportResponse
	decodeBody(t, recorder, &resp)
	if len(resp.Conflicts) != 1 || resp.Conflicts[0].OverlapMinutes != 30 {
		t.Fatalf("unexpected report %+v", resp)
	}
	if resp.Conflicts[0].Overlap.Start != "2024-10-07T09:30:00Z" {
		t.Fatalf("unexpected overlap window %+v", resp.Conflicts[0].Overlap)
	}
}

func TestApprovalHandlers(t *testing.T) {
	t.Parallel()

	t.Run("transitions pass the action and reason", func(t *testing.T) {
		t.Parallel()

		api := &stubAPI{}
		recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/events/e1/approval/decline", `{"reason":"room closed"}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if api.transition.Action != approval.ActionDecline || api.transition.Reason != "room closed" || api.transition.EventID != "e1" {
			t.Fatalf("unexpected params %+v", api.transition)
		}

		var resp approvalResponse
		decodeBody(t, recorder, &resp)
		if resp.Approval.Status != "declined" || resp.Approval.Reason != "room closed" {
			t.Fatalf("unexpected approval %+v", resp.Approval)
		}
	})

	t.Run("bodies are optional", func(t *testing.T) {
		t.Parallel()

		api := &stubAPI{}
		recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/events/e1/approval/request-changes", "")
		if recorder.Code != http.StatusOK || api.transition.Action != approval.ActionRequestChanges {
			t.Fatalf("expected request-changes, got %d %+v", recorder.Code, api.transition)
		}
	})

	t.Run("unknown actions are not found", func(t *testing.T) {
		t.Parallel()

		for _, action := range []string{"publish", "create", "request"} {
			api := &stubAPI{}
			recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/events/e1/approval/"+action, "")
			if recorder.Code != http.StatusNotFound || len(api.called()) != 0 {
				t.Fatalf("%s: expected 404 without a service call, got %d", action, recorder.Code)
			}
		}
	})

	t.Run("missing reasons map to 422", func(t *testing.T) {
		t.Parallel()

		api := &stubAPI{err: approval.ErrMissingReason}
		recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/events/e1/approval/decline", `{}`)
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
	})

	t.Run("list parses pagination", func(t *testing.T) {
		t.Parallel()

		api := &stubAPI{}
		recorder := serve(t, newTestRouter(api, nil), http.MethodGet, "/approvals?status=pending&page=2&per_page=10", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if api.approvalsParams.Status != "pending" || api.approvalsParams.Page != 2 || api.approvalsParams.PerPage != 10 {
			t.Fatalf("unexpected params %+v", api.approvalsParams)
		}

		recorder = serve(t, newTestRouter(&stubAPI{}, nil), http.MethodGet, "/approvals?page=two", "")
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
	})
}

func TestNotificationHandlers_UnreadFilter(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	recorder := serve(t, newTestRouter(api, nil), http.MethodGet, "/notifications?unread=true", "")
	if recorder.Code != http.StatusOK || !api.unreadOnly {
		t.Fatalf("expected unread filter, got %d %v", recorder.Code, api.unreadOnly)
	}

	recorder = serve(t, newTestRouter(&stubAPI{}, nil), http.MethodGet, "/notifications?unread=maybe", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestCalendarHandlers(t *testing.T) {
	t.Parallel()

	t.Run("export sets calendar headers", func(t *testing.T) {
		t.Parallel()

		recorder := serve(t, newTestRouter(&stubAPI{}, nil), http.MethodGet, "/schedules/s1/calendar.ics", "")
		if ct := recorder.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
			t.Fatalf("unexpected content type %q", ct)
		}
		if !bytes.HasPrefix(recorder.Body.Bytes(), []byte("BEGIN:VCALENDAR")) {
			t.Fatalf("unexpected body %q", recorder.Body.String())
		}
	})

	t.Run("export errors are JSON", func(t *testing.T) {
		t.Parallel()

		recorder := serve(t, newTestRouter(&stubAPI{err: application.ErrUnauthorized}, nil), http.MethodGet, "/schedules/s1/calendar.ics", "")
		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", recorder.Code)
		}
	})

	t.Run("import reports per item failures", func(t *testing.T) {
		t.Parallel()

		api := &stubAPI{}
		recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/schedules/s1/calendar.ics", "BEGIN:VCALENDAR")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if api.calendarBody != "BEGIN:VCALENDAR" {
			t.Fatalf("unexpected body passed through %q", api.calendarBody)
		}

		var resp importResponse
		decodeBody(t, recorder, &resp)
		if len(resp.Created) != 1 || len(resp.Failed) != 1 {
			t.Fatalf("unexpected report %+v", resp)
		}
		failure := resp.Failed[0]
		if failure.Kind != "conflict" || failure.Conflict == nil || failure.Conflict.ConflictingEvent.ID != "busy" {
			t.Fatalf("unexpected failure %+v", failure)
		}
	})

	t.Run("invalid calendars are bad requests", func(t *testing.T) {
		t.Parallel()

		api := &stubAPI{err: fmt.Errorf("%w: expected begin", calendar.ErrInvalidCalendar)}
		recorder := serve(t, newTestRouter(api, nil), http.MethodPost, "/schedules/s1/calendar.ics", "nope")
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})
}
