// Package calendar exports schedules as iCalendar files and imports VEVENTs
// into them through the regular event creation path.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/recurrence"
)

const (
	productID = "-//campus-sched//schedule export//EN"

	propertyBuilding = ics.ComponentProperty("X-CAMPUS-BUILDING")
	propertyRoom     = ics.ComponentProperty("X-CAMPUS-ROOM")
	propertyApproval = ics.ComponentProperty("X-CAMPUS-APPROVAL")

	localLayout = "20060102T150405"
	naiveLayout = "2006-01-02T15:04:05"
)

// ErrInvalidCalendar is returned when an import body is not iCalendar data.
var ErrInvalidCalendar = errors.New("calendar: invalid iCalendar data")

type scheduleReader interface {
	GetSchedule(ctx context.Context, principal application.Principal, scheduleID string) (application.Schedule, error)
}

type eventService interface {
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
}

// Service converts between schedules and iCalendar documents.
type Service struct {
	schedules  scheduleReader
	events     eventService
	recurrence *recurrence.Engine
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

// NewService wires the calendar service. Times are written with a TZID of loc
// unless loc is UTC.
func NewService(schedules scheduleReader, events eventService, engine *recurrence.Engine, loc *time.Location, now func() time.Time, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if engine == nil {
		engine = recurrence.NewEngine(loc, 0)
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{schedules: schedules, events: events, recurrence: engine, location: loc, now: now, logger: logger}
}

// Export writes the events of a schedule that the principal may see.
func (s *Service) Export(ctx context.Context, principal application.Principal, scheduleID string, w io.Writer) error {
	if s == nil || s.schedules == nil || s.events == nil {
		return fmt.Errorf("calendar service not configured")
	}
	schedule, err := s.schedules.GetSchedule(ctx, principal, scheduleID)
	if err != nil {
		return err
	}
	events, err := s.events.ListEvents(ctx, application.ListEventsParams{Principal: principal, ScheduleID: scheduleID})
	if err != nil {
		return err
	}

	cal, err := s.build(schedule, events)
	if err != nil {
		return err
	}
	return cal.SerializeTo(w)
}

func (s *Service) build(schedule application.Schedule, events []application.Event) (*ics.Calendar, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(schedule.Title)
	cal.SetXWRCalName(schedule.Title)
	if schedule.Description != "" {
		cal.SetXWRCalDesc(schedule.Description)
	}
	if schedule.Color != "" {
		cal.SetColor(schedule.Color)
	}
	if s.location != time.UTC {
		cal.SetXWRTimezone(s.location.String())
	}

	stamp := s.now()
	for _, event := range events {
		vevent := cal.AddEvent(event.ID)
		vevent.SetDtStampTime(stamp)
		if !event.CreatedAt.IsZero() {
			vevent.SetCreatedTime(event.CreatedAt)
		}
		if !event.UpdatedAt.IsZero() {
			vevent.SetModifiedAt(event.UpdatedAt)
		}
		s.setTime(&vevent.ComponentBase, ics.ComponentPropertyDtStart, event.Interval.Start)
		s.setTime(&vevent.ComponentBase, ics.ComponentPropertyDtEnd, event.Interval.End)
		vevent.SetSummary(event.Title)
		if event.Description != "" {
			vevent.SetDescription(event.Description)
		}
		if event.Color != "" {
			vevent.SetColor(event.Color)
		}
		if event.Location != nil {
			vevent.SetLocation(strings.TrimSpace(event.Location.Building + " " + event.Location.Room))
			vevent.SetProperty(propertyBuilding, event.Location.Building)
			vevent.SetProperty(propertyRoom, event.Location.Room)
		}
		vevent.SetStatus(objectStatus(event.Status))
		vevent.SetProperty(propertyApproval, string(event.Status))

		if event.Recurrence != nil {
			rule, err := s.recurrence.RRule(event.Recurrence.Rule(), event.Interval.Start)
			if err != nil {
				return nil, fmt.Errorf("render recurrence of %s: %w", event.ID, err)
			}
			if rule != "" {
				vevent.AddRrule(rule)
			}
		}
	}
	return cal, nil
}

func (s *Service) setTime(component *ics.ComponentBase, property ics.ComponentProperty, t time.Time) {
	if s.location == time.UTC {
		if property == ics.ComponentPropertyDtStart {
			component.SetStartAt(t)
		} else {
			component.SetEndAt(t)
		}
		return
	}
	component.SetProperty(property, t.In(s.location).Format(localLayout), ics.WithTZID(s.location.String()))
}

func objectStatus(status approval.Status) ics.ObjectStatus {
	switch status {
	case approval.StatusApproved:
		return ics.ObjectStatusConfirmed
	case approval.StatusDeclined:
		return ics.ObjectStatusCancelled
	default:
		return ics.ObjectStatusTentative
	}
}

// ImportFailure describes a VEVENT that could not be created.
type ImportFailure struct {
	UID     string
	Summary string
	Err     error
}

// ImportReport lists the outcome of every VEVENT in an import.
type ImportReport struct {
	Created []application.Event
	Failed  []ImportFailure
}

// Import creates one event per VEVENT. Items fail independently; a conflict
// or validation error on one item does not stop the others.
func (s *Service) Import(ctx context.Context, principal application.Principal, scheduleID string, r io.Reader) (ImportReport, error) {
	if s == nil || s.events == nil {
		return ImportReport{}, fmt.Errorf("calendar service not configured")
	}
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return ImportReport{}, fmt.Errorf("%w: %w", ErrInvalidCalendar, err)
	}

	var report ImportReport
	for _, vevent := range cal.Events() {
		failure := ImportFailure{UID: vevent.Id(), Summary: propertyValue(vevent, ics.ComponentPropertySummary)}

		input, err := toEventInput(vevent)
		if err != nil {
			failure.Err = err
			report.Failed = append(report.Failed, failure)
			continue
		}
		event, err := s.events.CreateEvent(ctx, application.CreateEventParams{
			Principal:  principal,
			ScheduleID: scheduleID,
			Input:      input,
		})
		if err != nil {
			if errors.Is(err, application.ErrUnauthorized) || errors.Is(err, application.ErrNotFound) || errors.Is(err, application.ErrCollaboratorUnavailable) {
				// The whole import would fail the same way.
				return report, err
			}
			failure.Err = err
			report.Failed = append(report.Failed, failure)
			continue
		}
		report.Created = append(report.Created, event)
	}

	s.logger.InfoContext(ctx, "calendar imported",
		"schedule_id", scheduleID, "created", len(report.Created), "failed", len(report.Failed))
	return report, nil
}

func toEventInput(vevent *ics.VEvent) (application.EventInput, error) {
	start, err := inputTimestamp(vevent, ics.ComponentPropertyDtStart)
	if err != nil {
		return application.EventInput{}, err
	}
	end, err := inputTimestamp(vevent, ics.ComponentPropertyDtEnd)
	if err != nil {
		return application.EventInput{}, err
	}

	input := application.EventInput{
		Title:       propertyValue(vevent, ics.ComponentPropertySummary),
		Description: propertyValue(vevent, ics.ComponentPropertyDescription),
		Start:       start,
		End:         end,
		Color:       propertyValue(vevent, ics.ComponentPropertyColor),
		Building:    propertyValue(vevent, propertyBuilding),
		Room:        propertyValue(vevent, propertyRoom),
	}
	if input.Building == "" && input.Room == "" {
		input.Building, input.Room = splitLocation(propertyValue(vevent, ics.ComponentPropertyLocation))
	}

	if raw := propertyValue(vevent, ics.ComponentPropertyRrule); raw != "" {
		rec, err := recurrenceInput(raw)
		if err != nil {
			return application.EventInput{}, err
		}
		input.Recurrence = rec
	}
	return input, nil
}

// inputTimestamp renders DTSTART/DTEND for EventInput. Floating and all-day
// values stay naive so the service interprets them in its own location.
func inputTimestamp(vevent *ics.VEvent, property ics.ComponentProperty) (string, error) {
	prop := vevent.GetProperty(property)
	if prop == nil {
		return "", fmt.Errorf("missing %s", property)
	}
	var (
		t   time.Time
		err error
	)
	if property == ics.ComponentPropertyDtStart {
		t, err = vevent.GetStartAt()
	} else {
		t, err = vevent.GetEndAt()
	}
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", property, err)
	}
	floating := !strings.HasSuffix(prop.Value, "Z") && len(prop.ICalParameters["TZID"]) == 0
	if floating {
		return t.Format(naiveLayout), nil
	}
	return t.Format(time.RFC3339), nil
}

func recurrenceInput(raw string) (*application.RecurrenceInput, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE: %w", err)
	}
	rec := &application.RecurrenceInput{}
	switch opt.Freq {
	case rrule.DAILY:
		rec.Frequency = string(recurrence.FrequencyDaily)
	case rrule.WEEKLY:
		rec.Frequency = string(recurrence.FrequencyWeekly)
	case rrule.MONTHLY:
		rec.Frequency = string(recurrence.FrequencyMonthly)
	default:
		return nil, fmt.Errorf("unsupported RRULE frequency %s", opt.Freq)
	}
	for i := range opt.Byweekday {
		// rrule counts weekdays from Monday.
		rec.Weekdays = append(rec.Weekdays, time.Weekday((opt.Byweekday[i].Day()+1)%7))
	}
	if !opt.Until.IsZero() {
		rec.Until = opt.Until.UTC().Format(time.RFC3339)
	}
	return rec, nil
}

// splitLocation splits "Building Room" on the last space. A single word is
// not a usable facility and is dropped.
func splitLocation(location string) (string, string) {
	location = strings.TrimSpace(location)
	idx := strings.LastIndexAny(location, " ,")
	if idx <= 0 {
		return "", ""
	}
	return strings.TrimRight(strings.TrimSpace(location[:idx]), ","), strings.TrimSpace(location[idx+1:])
}

func propertyValue(vevent *ics.VEvent, property ics.ComponentProperty) string {
	if prop := vevent.GetProperty(property); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}
