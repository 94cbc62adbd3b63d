package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ScheduleService orchestrates validation and persistence for schedule operations.
type ScheduleService struct {
	schedules   ScheduleRepository
	facilities  *FacilityCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(schedules ScheduleRepository, facilities *FacilityCache, idGenerator func() string, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithLogger(schedules, facilities, idGenerator, now, nil)
}

// NewScheduleServiceWithLogger wires dependencies with a custom logger.
func NewScheduleServiceWithLogger(schedules ScheduleRepository, facilities *FacilityCache, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		schedules:   schedules,
		facilities:  facilities,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateSchedule validates the request before delegating to persistence.
func (s *ScheduleService) CreateSchedule(ctx context.Context, params CreateScheduleParams) (schedule Schedule, err error) {
	if s == nil {
		return Schedule{}, fmt.Errorf("ScheduleService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "ScheduleService", "CreateSchedule", "principal_id", params.Principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "schedule created", "schedule_id", schedule.ID)
	}()

	principal := params.Principal
	if principal.UserID == "" || !(principal.IsAdmin() || principal.CanCreateSchedules) {
		return Schedule{}, ErrUnauthorized
	}

	if vErr := validateScheduleInput(params.Input); vErr.HasErrors() {
		return Schedule{}, vErr
	}

	createdAt := s.now()
	schedule = applyScheduleInput(Schedule{
		ID:        s.idGenerator(),
		OwnerID:   principal.UserID,
		CreatedAt: createdAt,
	}, params.Input)
	schedule.UpdatedAt = createdAt

	if s.schedules == nil {
		return schedule, nil
	}
	if err := s.schedules.CreateSchedule(ctx, schedule); err != nil {
		return Schedule{}, mapRepoError("create schedule", err)
	}
	return schedule, nil
}

// GetSchedule returns a schedule the principal is allowed to see.
func (s *ScheduleService) GetSchedule(ctx context.Context, principal Principal, scheduleID string) (Schedule, error) {
	if s == nil {
		return Schedule{}, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return Schedule{}, fmt.Errorf("schedule repository not configured")
	}
	schedule, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Schedule{}, mapRepoError("get schedule", err)
	}
	if !canViewSchedule(principal, schedule) {
		return Schedule{}, ErrUnauthorized
	}
	return schedule, nil
}

// UpdateSchedule applies validation and authorization before updating persistence state.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, params UpdateScheduleParams) (updated Schedule, err error) {
	if s == nil {
		return Schedule{}, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return Schedule{}, fmt.Errorf("schedule repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "ScheduleService", "UpdateSchedule", "principal_id", params.Principal.UserID, "schedule_id", params.ScheduleID)
	defer func() {
		logOutcome(ctx, logger, err, "schedule updated")
	}()

	existing, err := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if err != nil {
		return Schedule{}, mapRepoError("get schedule", err)
	}
	if !canManageSchedule(params.Principal, existing) {
		return Schedule{}, ErrUnauthorized
	}
	if vErr := validateScheduleInput(params.Input); vErr.HasErrors() {
		return Schedule{}, vErr
	}

	updated = applyScheduleInput(existing, params.Input)
	updated.UpdatedAt = s.now()
	if err := s.schedules.UpdateSchedule(ctx, updated); err != nil {
		return Schedule{}, mapRepoError("update schedule", err)
	}
	return updated, nil
}

// DeleteSchedule removes a schedule together with its events and approvals.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, principal Principal, scheduleID string) (err error) {
	if s == nil {
		return fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return fmt.Errorf("schedule repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "ScheduleService", "DeleteSchedule", "principal_id", principal.UserID, "schedule_id", scheduleID)
	defer func() {
		logOutcome(ctx, logger, err, "schedule deleted")
	}()

	existing, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return mapRepoError("get schedule", err)
	}
	if !canManageSchedule(principal, existing) {
		return ErrUnauthorized
	}
	if err := s.schedules.DeleteSchedule(ctx, scheduleID); err != nil {
		return mapRepoError("delete schedule", err)
	}
	// Events went with the schedule; rebuild the facility snapshot lazily.
	s.facilities.Invalidate()
	return nil
}

// ListSchedules returns the principal's own schedules and public ones.
// Admins see every schedule.
func (s *ScheduleService) ListSchedules(ctx context.Context, principal Principal) ([]Schedule, error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return nil, fmt.Errorf("schedule repository not configured")
	}

	filter := ScheduleListFilter{OwnerID: principal.UserID, IncludePublic: true}
	if principal.IsAdmin() {
		filter = ScheduleListFilter{}
	}
	schedules, err := s.schedules.ListSchedules(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, mapRepoError("list schedules", err)
	}

	ordered := make([]Schedule, len(schedules))
	copy(ordered, schedules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered, nil
}

func validateScheduleInput(input ScheduleInput) *ValidationError {
	vErr := &ValidationError{}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		vErr.add("title", "title is required")
	} else if len(title) > 200 {
		vErr.add("title", "title must be at most 200 characters")
	}
	if color := strings.TrimSpace(input.Color); color != "" && !colorPattern.MatchString(color) {
		vErr.add("color", "color must be a hex value like #3b82f6")
	}
	return vErr
}

func applyScheduleInput(schedule Schedule, input ScheduleInput) Schedule {
	schedule.Title = strings.TrimSpace(input.Title)
	schedule.Description = strings.TrimSpace(input.Description)
	schedule.Color = normalizeColor(input.Color)
	schedule.IsPublic = input.IsPublic
	schedule.IsClassSchedule = input.IsClassSchedule
	return schedule
}

func normalizeColor(color string) string {
	color = strings.TrimSpace(color)
	if color == "" {
		return DefaultColor
	}
	return strings.ToLower(color)
}
