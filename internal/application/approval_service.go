package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

const (
	defaultApprovalsPerPage = 20
	maxApprovalsPerPage     = 100
)

// ApprovalServiceConfig carries the collaborators of an ApprovalService.
type ApprovalServiceConfig struct {
	Schedules   ScheduleRepository
	Events      EventRepository
	Approvals   ApprovalStore
	Source      EventSource
	Notifier    Notifier
	Publisher   EventPublisher
	Facilities  *FacilityCache
	Suggester   *scheduler.Suggester
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// ApprovalService drives events through the review workflow.
type ApprovalService struct {
	schedules   ScheduleRepository
	events      EventRepository
	approvals   ApprovalStore
	notifier    Notifier
	publisher   EventPublisher
	facilities  *FacilityCache
	guard       conflictGuard
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewApprovalService wires dependencies for approval operations.
func NewApprovalService(cfg ApprovalServiceConfig) *ApprovalService {
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ApprovalService{
		schedules:   cfg.Schedules,
		events:      cfg.Events,
		approvals:   cfg.Approvals,
		notifier:    cfg.Notifier,
		publisher:   cfg.Publisher,
		facilities:  cfg.Facilities,
		guard:       conflictGuard{source: cfg.Source, suggester: cfg.Suggester},
		idGenerator: cfg.IDGenerator,
		now:         cfg.Now,
		logger:      defaultLogger(cfg.Logger),
	}
}

// RequestApproval re-requests review of a pending event. It is a no-op that
// returns the current record; any other status is an invalid transition.
func (s *ApprovalService) RequestApproval(ctx context.Context, principal Principal, eventID string) (approval.Record, error) {
	return s.TransitionApproval(ctx, TransitionParams{Principal: principal, EventID: eventID, Action: approval.ActionRequest})
}

// TransitionApproval applies a review action to an event's approval record.
func (s *ApprovalService) TransitionApproval(ctx context.Context, params TransitionParams) (record approval.Record, err error) {
	if s == nil {
		return approval.Record{}, fmt.Errorf("ApprovalService is nil")
	}
	if s.approvals == nil || s.events == nil || s.schedules == nil {
		return approval.Record{}, fmt.Errorf("approval collaborators not configured")
	}
	logger := serviceLogger(ctx, s.logger, "ApprovalService", "TransitionApproval",
		"principal_id", params.Principal.UserID, "event_id", params.EventID, "action", params.Action)
	defer func() {
		logOutcome(ctx, logger, err, "approval transition applied", "status", record.Status)
	}()

	// Role and organizer gates belong to approval.Apply (ErrInvalidTransition).
	if params.Principal.UserID == "" {
		return approval.Record{}, ErrUnauthorized
	}

	event, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return approval.Record{}, mapRepoError("get event", err)
	}
	current, err := s.approvals.GetApproval(ctx, event.ID)
	if err != nil {
		return approval.Record{}, mapRepoError("get approval", err)
	}

	outcome, err := approval.Apply(current, approval.Request{
		Action: params.Action,
		Actor:  params.Principal.actor(),
		Reason: params.Reason,
		At:     s.now(),
	})
	if err != nil {
		return approval.Record{}, err
	}
	if !outcome.Changed {
		return outcome.Record, nil
	}

	candidate := event.Engine()
	candidate.Status = outcome.Record.Status
	if !current.Status.Occupies() {
		if err := s.guard.check(ctx, candidate); err != nil {
			return approval.Record{}, err
		}
	}

	record, err = s.approvals.PersistApprovalTransition(ctx, event.ID, current.Status, outcome.Record, outcome.Transition)
	if err != nil {
		return approval.Record{}, s.guard.withCommitConflict(ctx, candidate, mapRepoError("persist approval transition", err))
	}

	s.facilities.Upsert(candidate)
	s.notifyOrganizer(ctx, logger, event, outcome.Transition)
	if s.publisher != nil {
		if err := s.publisher.PublishApprovalTransition(ctx, record, outcome.Transition); err != nil {
			logger.WarnContext(ctx, "publish approval transition failed", "error", err)
		}
	}
	return record, nil
}

// GetApproval returns the approval record of an event.
func (s *ApprovalService) GetApproval(ctx context.Context, principal Principal, eventID string) (approval.Record, error) {
	if s == nil {
		return approval.Record{}, fmt.Errorf("ApprovalService is nil")
	}
	if s.approvals == nil || s.events == nil || s.schedules == nil {
		return approval.Record{}, fmt.Errorf("approval collaborators not configured")
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return approval.Record{}, mapRepoError("get event", err)
	}
	schedule, err := s.schedules.GetSchedule(ctx, event.ScheduleID)
	if err != nil {
		return approval.Record{}, mapRepoError("get schedule", err)
	}
	if !canManageEvent(principal, schedule, event) {
		return approval.Record{}, ErrUnauthorized
	}
	record, err := s.approvals.GetApproval(ctx, eventID)
	if err != nil {
		return approval.Record{}, mapRepoError("get approval", err)
	}
	return record, nil
}

// ListApprovals pages through approval records, newest first. Admins see
// every record; other users only the events they organise.
func (s *ApprovalService) ListApprovals(ctx context.Context, params ListApprovalsParams) (ApprovalPage, error) {
	if s == nil {
		return ApprovalPage{}, fmt.Errorf("ApprovalService is nil")
	}
	if s.approvals == nil {
		return ApprovalPage{}, fmt.Errorf("approval store not configured")
	}
	if params.Principal.UserID == "" {
		return ApprovalPage{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	filter := ApprovalListFilter{}
	if status := strings.TrimSpace(params.Status); status != "" {
		parsed, ok := approval.ParseStatus(status)
		if !ok {
			vErr.add("status", "unknown approval status")
		}
		filter.Status = parsed
	}
	page, perPage := params.Page, params.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = defaultApprovalsPerPage
	}
	if page < 1 {
		vErr.add("page", "page must be at least 1")
	}
	if perPage < 1 || perPage > maxApprovalsPerPage {
		vErr.add("per_page", fmt.Sprintf("per_page must be between 1 and %d", maxApprovalsPerPage))
	}
	if vErr.HasErrors() {
		return ApprovalPage{}, vErr
	}

	if !params.Principal.IsAdmin() {
		filter.OrganizerID = params.Principal.UserID
	}
	filter.Offset = (page - 1) * perPage
	filter.Limit = perPage

	records, total, err := s.approvals.ListApprovals(ctx, filter)
	if err != nil {
		return ApprovalPage{}, mapRepoError("list approvals", err)
	}
	return ApprovalPage{Records: records, Total: total, Page: page, PerPage: perPage}, nil
}

// PendingCount returns the number of events awaiting review. Admin only.
func (s *ApprovalService) PendingCount(ctx context.Context, principal Principal) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("ApprovalService is nil")
	}
	if s.approvals == nil {
		return 0, fmt.Errorf("approval store not configured")
	}
	if !principal.IsAdmin() {
		return 0, ErrUnauthorized
	}
	count, err := s.approvals.CountApprovals(ctx, approval.StatusPending)
	if err != nil {
		return 0, mapRepoError("count approvals", err)
	}
	return count, nil
}

func (s *ApprovalService) notifyOrganizer(ctx context.Context, logger *slog.Logger, event Event, transition approval.Transition) {
	if s.notifier == nil || event.OrganizerID == "" {
		return
	}
	kind, message := notificationFor(event, transition)
	err := s.notifier.Notify(ctx, Notification{
		ID:        s.idGenerator(),
		UserID:    event.OrganizerID,
		EventID:   event.ID,
		Kind:      kind,
		Message:   message,
		CreatedAt: transition.At,
	})
	if err != nil {
		logger.WarnContext(ctx, "organizer notification failed", "error", err)
	}
}

func notificationFor(event Event, transition approval.Transition) (NotificationKind, string) {
	switch transition.To {
	case approval.StatusApproved:
		return NotificationApproved, fmt.Sprintf("Your event %q was approved", event.Title)
	case approval.StatusDeclined:
		return NotificationDeclined, fmt.Sprintf("Your event %q was declined: %s", event.Title, transition.Reason)
	case approval.StatusChangesRequested:
		return NotificationChangesRequested, fmt.Sprintf("Changes were requested for your event %q: %s", event.Title, transition.Reason)
	default:
		return NotificationInfo, fmt.Sprintf("Your event %q was submitted for review", event.Title)
	}
}
