package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/persistence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

var testBase = time.Date(2024, time.October, 7, 0, 0, 0, 0, time.UTC) // a Monday

func at(day, hour, minute int) time.Time {
	return testBase.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func iso(t time.Time) string {
	return t.Format(time.RFC3339)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var (
	owner   = Principal{UserID: "owner", Role: approval.RoleStudent, CanCreateSchedules: true}
	visitor = Principal{UserID: "visitor", Role: approval.RoleStudent}
	admin   = Principal{UserID: "admin", Role: approval.RoleAdmin}
)

// memoryStore implements every collaborator interface over maps.
type memoryStore struct {
	mu            sync.Mutex
	schedules     map[string]Schedule
	events        map[string]Event
	order         []string
	records       map[string]approval.Record
	notifications []Notification

	// failWith makes every call fail with the error.
	failWith error
	// persistErr is returned by PersistApprovalTransition.
	persistErr error
	// createErr is returned by CreateEvent.
	createErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		schedules: make(map[string]Schedule),
		events:    make(map[string]Event),
		records:   make(map[string]approval.Record),
	}
}

func (m *memoryStore) addSchedule(schedule Schedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[schedule.ID] = schedule
}

func (m *memoryStore) addEvent(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putEventLocked(event)
	m.records[event.ID] = approval.Record{
		ID:          "apr-" + event.ID,
		EventID:     event.ID,
		OrganizerID: event.OrganizerID,
		Status:      event.Status,
		History: []approval.Transition{{
			Action: approval.ActionCreate, To: event.Status, ActorID: event.OrganizerID, At: event.CreatedAt,
		}},
		RequiresApproval: event.RequiresApproval,
	}
}

func (m *memoryStore) putEventLocked(event Event) {
	if _, ok := m.events[event.ID]; !ok {
		m.order = append(m.order, event.ID)
	}
	m.events[event.ID] = event
}

func (m *memoryStore) CreateSchedule(ctx context.Context, schedule Schedule) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.addSchedule(schedule)
	return nil
}

func (m *memoryStore) UpdateSchedule(ctx context.Context, schedule Schedule) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[schedule.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.schedules[schedule.ID] = schedule
	return nil
}

func (m *memoryStore) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	if m.failWith != nil {
		return Schedule{}, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	schedule, ok := m.schedules[id]
	if !ok {
		return Schedule{}, persistence.ErrNotFound
	}
	return schedule, nil
}

func (m *memoryStore) ListSchedules(ctx context.Context, filter ScheduleListFilter) ([]Schedule, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Schedule
	for _, schedule := range m.schedules {
		if filter.OwnerID != "" && schedule.OwnerID != filter.OwnerID && !(filter.IncludePublic && schedule.IsPublic) {
			continue
		}
		out = append(out, schedule)
	}
	return out, nil
}

func (m *memoryStore) DeleteSchedule(ctx context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, id)
	return nil
}

func (m *memoryStore) CreateEvent(ctx context.Context, event Event, record approval.Record) error {
	if m.failWith != nil {
		return m.failWith
	}
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putEventLocked(event)
	m.records[event.ID] = record
	return nil
}

func (m *memoryStore) UpdateEvent(ctx context.Context, event Event) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.events[event.ID] = event
	return nil
}

func (m *memoryStore) GetEvent(ctx context.Context, id string) (Event, error) {
	if m.failWith != nil {
		return Event{}, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	return event, nil
}

func (m *memoryStore) ListEvents(ctx context.Context, filter EventListFilter) ([]Event, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, id := range m.order {
		event, ok := m.events[id]
		if !ok || (filter.ScheduleID != "" && event.ScheduleID != filter.ScheduleID) {
			continue
		}
		if filter.StartsBefore != nil && !event.Interval.Start.Before(*filter.StartsBefore) {
			continue
		}
		if filter.EndsAfter != nil && !event.Interval.End.After(*filter.EndsAfter) && event.Recurrence == nil {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (m *memoryStore) DeleteEvent(ctx context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.events, id)
	delete(m.records, id)
	return nil
}

func (m *memoryStore) engineEvents(keep func(Event) bool) []scheduler.Event {
	var out []scheduler.Event
	for _, id := range m.order {
		event, ok := m.events[id]
		if ok && keep(event) {
			out = append(out, event.Engine())
		}
	}
	return out
}

func (m *memoryStore) FetchScheduleEvents(ctx context.Context, scheduleID string) ([]scheduler.Event, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engineEvents(func(e Event) bool { return e.ScheduleID == scheduleID }), nil
}

func (m *memoryStore) FetchFacilityEvents(ctx context.Context, building, room string) ([]scheduler.Event, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scheduler.NewFacilityKey(building, room)
	return m.engineEvents(func(e Event) bool { return e.Location != nil && e.Location.Key() == key }), nil
}

func (m *memoryStore) FetchLocatedEvents(ctx context.Context) ([]scheduler.Event, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engineEvents(func(e Event) bool { return e.Location != nil }), nil
}

func (m *memoryStore) PersistEventInterval(ctx context.Context, eventID string, interval scheduler.Interval) (scheduler.Event, error) {
	if m.failWith != nil {
		return scheduler.Event{}, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return scheduler.Event{}, persistence.ErrNotFound
	}
	event.Interval = interval
	m.events[eventID] = event
	return event.Engine(), nil
}

func (m *memoryStore) GetApproval(ctx context.Context, eventID string) (approval.Record, error) {
	if m.failWith != nil {
		return approval.Record{}, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[eventID]
	if !ok {
		return approval.Record{}, persistence.ErrNotFound
	}
	return record.Clone(), nil
}

func (m *memoryStore) PersistApprovalTransition(ctx context.Context, eventID string, expected approval.Status, record approval.Record, transition approval.Transition) (approval.Record, error) {
	if m.failWith != nil {
		return approval.Record{}, m.failWith
	}
	if m.persistErr != nil {
		return approval.Record{}, m.persistErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[eventID]
	if !ok {
		return approval.Record{}, persistence.ErrNotFound
	}
	if current.Status != expected {
		return approval.Record{}, persistence.ErrStale
	}
	m.records[eventID] = record.Clone()
	event := m.events[eventID]
	event.Status = record.Status
	m.events[eventID] = event
	return record.Clone(), nil
}

func (m *memoryStore) ListApprovals(ctx context.Context, filter ApprovalListFilter) ([]approval.Record, int, error) {
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []approval.Record
	for _, id := range m.order {
		record, ok := m.records[id]
		if !ok {
			continue
		}
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		if filter.OrganizerID != "" && record.OrganizerID != filter.OrganizerID {
			continue
		}
		matched = append(matched, record)
	}
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (m *memoryStore) CountApprovals(ctx context.Context, status approval.Status) (int, error) {
	_, total, err := m.ListApprovals(ctx, ApprovalListFilter{Status: status})
	return total, err
}

func (m *memoryStore) CreateNotification(ctx context.Context, notification Notification) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, notification)
	return nil
}

func (m *memoryStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.notifications {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) MarkNotificationRead(ctx context.Context, userID, id string, readAt time.Time) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				m.notifications[i].ReadAt = &readAt
			}
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (m *memoryStore) MarkAllNotificationsRead(ctx context.Context, userID string, readAt time.Time) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i, n := range m.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			m.notifications[i].ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) PurgeNotifications(ctx context.Context, readBefore time.Time) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.notifications[:0]
	purged := 0
	for _, n := range m.notifications {
		if n.ReadAt != nil && n.ReadAt.Before(readBefore) {
			purged++
			continue
		}
		kept = append(kept, n)
	}
	m.notifications = kept
	return purged, nil
}

type recordingPublisher struct {
	mu          sync.Mutex
	lifecycle   []LifecycleAction
	transitions []approval.Transition
	err         error
}

func (p *recordingPublisher) PublishApprovalTransition(ctx context.Context, record approval.Record, transition approval.Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, transition)
	return p.err
}

func (p *recordingPublisher) PublishEventLifecycle(ctx context.Context, action LifecycleAction, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lifecycle = append(p.lifecycle, action)
	return p.err
}

var errStoreDown = errors.New("store down")

// fixture bundles a store with services wired to it.
type fixture struct {
	store      *memoryStore
	publisher  *recordingPublisher
	facilities *FacilityCache
	schedules  *ScheduleService
	events     *EventService
	scheduling *SchedulingService
	approvals  *ApprovalService
	notices    *NotificationService
}

func newFixture() *fixture {
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	now := func() time.Time { return testBase }
	ids := sequence("id")
	facilities := NewFacilityCache(store, time.Minute, now)
	suggester := scheduler.NewSuggester(scheduler.SuggestConfig{Step: 30 * time.Minute, HorizonDays: 1, Limit: 5}, time.UTC)
	notices := NewNotificationService(store, now, discardLogger())

	return &fixture{
		store:      store,
		publisher:  publisher,
		facilities: facilities,
		schedules:  NewScheduleServiceWithLogger(store, facilities, ids, now, discardLogger()),
		events: NewEventService(EventServiceConfig{
			Schedules: store, Events: store, Source: store, Intervals: store, Publisher: publisher,
			Facilities: facilities, Suggester: suggester, IDGenerator: ids, Now: now, Logger: discardLogger(),
		}),
		scheduling: NewSchedulingService(SchedulingServiceConfig{
			Schedules: store, Events: store, Source: store, Facilities: facilities, Suggester: suggester, Logger: discardLogger(),
		}),
		approvals: NewApprovalService(ApprovalServiceConfig{
			Schedules: store, Events: store, Approvals: store, Source: store, Notifier: notices, Publisher: publisher,
			Facilities: facilities, Suggester: suggester, IDGenerator: ids, Now: now, Logger: discardLogger(),
		}),
		notices: notices,
	}
}

func (f *fixture) schedule(id, ownerID string, public bool) Schedule {
	schedule := Schedule{ID: id, OwnerID: ownerID, Title: id, Color: DefaultColor, IsPublic: public, CreatedAt: testBase}
	f.store.addSchedule(schedule)
	return schedule
}

func (f *fixture) event(id, scheduleID string, status approval.Status, start, end time.Time) Event {
	event := Event{
		ID:          id,
		ScheduleID:  scheduleID,
		OrganizerID: "owner",
		Title:       id,
		Interval:    scheduler.Interval{Start: start, End: end},
		Status:      status,
		CreatedAt:   testBase,
	}
	f.store.addEvent(event)
	return event
}
