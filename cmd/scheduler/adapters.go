package main

import (
	"context"
	"strings"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/persistence"
	"github.com/Lowii-3dy/campus-sched/internal/recurrence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

type scheduleRepositoryAdapter struct {
	repo persistence.ScheduleRepository
}

func newScheduleRepositoryAdapter(repo persistence.ScheduleRepository) *scheduleRepositoryAdapter {
	return &scheduleRepositoryAdapter{repo: repo}
}

func (a *scheduleRepositoryAdapter) CreateSchedule(ctx context.Context, schedule application.Schedule) error {
	return a.repo.CreateSchedule(ctx, toPersistenceSchedule(schedule))
}

func (a *scheduleRepositoryAdapter) UpdateSchedule(ctx context.Context, schedule application.Schedule) error {
	return a.repo.UpdateSchedule(ctx, toPersistenceSchedule(schedule))
}

func (a *scheduleRepositoryAdapter) GetSchedule(ctx context.Context, id string) (application.Schedule, error) {
	stored, err := a.repo.GetSchedule(ctx, id)
	if err != nil {
		return application.Schedule{}, err
	}
	return toApplicationSchedule(stored), nil
}

func (a *scheduleRepositoryAdapter) ListSchedules(ctx context.Context, filter application.ScheduleListFilter) ([]application.Schedule, error) {
	models, err := a.repo.ListSchedules(ctx, persistence.ScheduleFilter{
		OwnerID:       filter.OwnerID,
		IncludePublic: filter.IncludePublic,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	schedules := make([]application.Schedule, 0, len(models))
	for _, model := range models {
		schedules = append(schedules, toApplicationSchedule(model))
	}
	return schedules, nil
}

func (a *scheduleRepositoryAdapter) DeleteSchedule(ctx context.Context, id string) error {
	return a.repo.DeleteSchedule(ctx, id)
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
	now  func() time.Time
}

func newEventRepositoryAdapter(repo persistence.EventRepository, now func() time.Time) *eventRepositoryAdapter {
	if now == nil {
		now = time.Now
	}
	return &eventRepositoryAdapter{repo: repo, now: now}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event, record approval.Record) error {
	return a.repo.CreateEvent(ctx, toPersistenceEvent(event), toPersistenceApproval(record))
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) error {
	return a.repo.UpdateEvent(ctx, toPersistenceEvent(event))
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventListFilter) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		ScheduleID:   filter.ScheduleID,
		StartsBefore: cloneTime(filter.StartsBefore),
		EndsAfter:    cloneTime(filter.EndsAfter),
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

// FetchScheduleEvents implements application.EventSource.
func (a *eventRepositoryAdapter) FetchScheduleEvents(ctx context.Context, scheduleID string) ([]scheduler.Event, error) {
	return a.fetch(ctx, persistence.EventFilter{ScheduleID: scheduleID, Order: persistence.EventOrderInsertion}, false)
}

func (a *eventRepositoryAdapter) FetchFacilityEvents(ctx context.Context, building, room string) ([]scheduler.Event, error) {
	return a.fetch(ctx, persistence.EventFilter{Building: building, Room: room}, true)
}

func (a *eventRepositoryAdapter) FetchLocatedEvents(ctx context.Context) ([]scheduler.Event, error) {
	return a.fetch(ctx, persistence.EventFilter{}, true)
}

func (a *eventRepositoryAdapter) fetch(ctx context.Context, filter persistence.EventFilter, locatedOnly bool) ([]scheduler.Event, error) {
	models, err := a.repo.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	events := make([]scheduler.Event, 0, len(models))
	for _, model := range models {
		event := toApplicationEvent(model)
		if locatedOnly && event.Location == nil {
			continue
		}
		events = append(events, event.Engine())
	}
	return events, nil
}

// PersistEventInterval implements application.IntervalStore.
func (a *eventRepositoryAdapter) PersistEventInterval(ctx context.Context, eventID string, interval scheduler.Interval) (scheduler.Event, error) {
	stored, err := a.repo.UpdateEventInterval(ctx, eventID, interval.Start, interval.End, a.now())
	if err != nil {
		return scheduler.Event{}, err
	}
	return toApplicationEvent(stored).Engine(), nil
}

type approvalStoreAdapter struct {
	repo persistence.ApprovalRepository
}

func newApprovalStoreAdapter(repo persistence.ApprovalRepository) *approvalStoreAdapter {
	return &approvalStoreAdapter{repo: repo}
}

func (a *approvalStoreAdapter) GetApproval(ctx context.Context, eventID string) (approval.Record, error) {
	stored, err := a.repo.GetApprovalByEvent(ctx, eventID)
	if err != nil {
		return approval.Record{}, err
	}
	return toApplicationApproval(stored), nil
}

func (a *approvalStoreAdapter) PersistApprovalTransition(ctx context.Context, eventID string, expected approval.Status, record approval.Record, transition approval.Transition) (approval.Record, error) {
	if record.EventID == "" {
		record.EventID = eventID
	}
	stored, err := a.repo.AppendApprovalTransition(ctx, toPersistenceApproval(record), string(expected), toPersistenceTransition(record.ID, transition))
	if err != nil {
		return approval.Record{}, err
	}
	return toApplicationApproval(stored), nil
}

func (a *approvalStoreAdapter) ListApprovals(ctx context.Context, filter application.ApprovalListFilter) ([]approval.Record, int, error) {
	models, total, err := a.repo.ListApprovals(ctx, persistence.ApprovalFilter{
		Status:      string(filter.Status),
		OrganizerID: filter.OrganizerID,
		Offset:      filter.Offset,
		Limit:       filter.Limit,
	})
	if err != nil {
		return nil, 0, err
	}
	records := make([]approval.Record, 0, len(models))
	for _, model := range models {
		records = append(records, toApplicationApproval(model))
	}
	return records, total, nil
}

func (a *approvalStoreAdapter) CountApprovals(ctx context.Context, status approval.Status) (int, error) {
	return a.repo.CountApprovals(ctx, string(status))
}

type notificationRepositoryAdapter struct {
	repo persistence.NotificationRepository
}

func newNotificationRepositoryAdapter(repo persistence.NotificationRepository) *notificationRepositoryAdapter {
	return &notificationRepositoryAdapter{repo: repo}
}

func (a *notificationRepositoryAdapter) CreateNotification(ctx context.Context, notification application.Notification) error {
	return a.repo.CreateNotification(ctx, toPersistenceNotification(notification))
}

func (a *notificationRepositoryAdapter) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]application.Notification, error) {
	models, err := a.repo.ListNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	notifications := make([]application.Notification, 0, len(models))
	for _, model := range models {
		notifications = append(notifications, toApplicationNotification(model))
	}
	return notifications, nil
}

func (a *notificationRepositoryAdapter) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	return a.repo.MarkNotificationRead(ctx, userID, id, at)
}

func (a *notificationRepositoryAdapter) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	return a.repo.MarkAllNotificationsRead(ctx, userID, at)
}

func (a *notificationRepositoryAdapter) PurgeNotifications(ctx context.Context, readBefore time.Time) (int, error) {
	return a.repo.PurgeNotifications(ctx, readBefore)
}

func toApplicationSchedule(model persistence.Schedule) application.Schedule {
	return application.Schedule{
		ID:              model.ID,
		OwnerID:         model.OwnerID,
		Title:           model.Title,
		Description:     derefString(model.Description),
		Color:           model.Color,
		IsPublic:        model.IsPublic,
		IsClassSchedule: model.IsClassSchedule,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceSchedule(schedule application.Schedule) persistence.Schedule {
	return persistence.Schedule{
		ID:              schedule.ID,
		OwnerID:         schedule.OwnerID,
		Title:           schedule.Title,
		Description:     optionalString(schedule.Description),
		Color:           schedule.Color,
		IsPublic:        schedule.IsPublic,
		IsClassSchedule: schedule.IsClassSchedule,
		CreatedAt:       schedule.CreatedAt,
		UpdatedAt:       schedule.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	event := application.Event{
		ID:               model.ID,
		ScheduleID:       model.ScheduleID,
		OrganizerID:      model.OrganizerID,
		Title:            model.Title,
		Description:      derefString(model.Description),
		Interval:         scheduler.Interval{Start: model.Start, End: model.End},
		Color:            derefString(model.Color),
		Status:           approval.Status(model.Status),
		RequiresApproval: model.RequiresApproval,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	if model.Building != nil || model.Room != nil {
		event.Location = &scheduler.Location{Building: derefString(model.Building), Room: derefString(model.Room)}
	}
	if model.Recurrence != nil {
		event.Recurrence = &application.Recurrence{
			Frequency: recurrence.Frequency(model.Recurrence.Frequency),
			Weekdays:  append([]time.Weekday(nil), model.Recurrence.Weekdays...),
			Until:     cloneTime(model.Recurrence.Until),
		}
	}
	return event
}

func toPersistenceEvent(event application.Event) persistence.Event {
	model := persistence.Event{
		ID:               event.ID,
		ScheduleID:       event.ScheduleID,
		OrganizerID:      event.OrganizerID,
		Title:            event.Title,
		Description:      optionalString(event.Description),
		Start:            event.Interval.Start,
		End:              event.Interval.End,
		Color:            optionalString(event.Color),
		Status:           string(event.Status),
		RequiresApproval: event.RequiresApproval,
		CreatedAt:        event.CreatedAt,
		UpdatedAt:        event.UpdatedAt,
	}
	if event.Location != nil {
		model.Building = optionalString(event.Location.Building)
		model.Room = optionalString(event.Location.Room)
	}
	if event.Recurrence != nil && event.Recurrence.Frequency != recurrence.FrequencyNone {
		model.Recurrence = &persistence.Recurrence{
			Frequency: string(event.Recurrence.Frequency),
			Weekdays:  append([]time.Weekday(nil), event.Recurrence.Weekdays...),
			Until:     cloneTime(event.Recurrence.Until),
		}
	}
	return model
}

func toApplicationApproval(model persistence.Approval) approval.Record {
	record := approval.Record{
		ID:               model.ID,
		EventID:          model.EventID,
		OrganizerID:      model.OrganizerID,
		RequiresApproval: model.RequiresApproval,
		Status:           approval.Status(model.Status),
		Reason:           derefString(model.Reason),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	if len(model.History) > 0 {
		record.History = make([]approval.Transition, 0, len(model.History))
		for _, entry := range model.History {
			record.History = append(record.History, approval.Transition{
				Action:    approval.Action(entry.Action),
				From:      approval.Status(entry.FromStatus),
				To:        approval.Status(entry.ToStatus),
				ActorID:   entry.ActorID,
				ActorRole: approval.Role(entry.ActorRole),
				Reason:    derefString(entry.Reason),
				At:        entry.At,
			})
		}
	}
	return record
}

func toPersistenceApproval(record approval.Record) persistence.Approval {
	model := persistence.Approval{
		ID:               record.ID,
		EventID:          record.EventID,
		OrganizerID:      record.OrganizerID,
		RequiresApproval: record.RequiresApproval,
		Status:           string(record.Status),
		Reason:           optionalString(record.Reason),
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
	for i, transition := range record.History {
		entry := toPersistenceTransition(record.ID, transition)
		entry.Sequence = i + 1
		model.History = append(model.History, entry)
	}
	return model
}

func toPersistenceTransition(approvalID string, transition approval.Transition) persistence.ApprovalTransition {
	return persistence.ApprovalTransition{
		ApprovalID: approvalID,
		Action:     string(transition.Action),
		FromStatus: string(transition.From),
		ToStatus:   string(transition.To),
		ActorID:    transition.ActorID,
		ActorRole:  string(transition.ActorRole),
		Reason:     optionalString(transition.Reason),
		At:         transition.At,
	}
}

func toApplicationNotification(model persistence.Notification) application.Notification {
	return application.Notification{
		ID:        model.ID,
		UserID:    model.UserID,
		EventID:   derefString(model.EventID),
		Kind:      application.NotificationKind(model.Kind),
		Message:   model.Message,
		ReadAt:    cloneTime(model.ReadAt),
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceNotification(notification application.Notification) persistence.Notification {
	return persistence.Notification{
		ID:        notification.ID,
		UserID:    notification.UserID,
		EventID:   optionalString(notification.EventID),
		Kind:      string(notification.Kind),
		Message:   notification.Message,
		ReadAt:    cloneTime(notification.ReadAt),
		CreatedAt: notification.CreatedAt,
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
