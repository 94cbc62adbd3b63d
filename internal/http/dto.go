package http

import (
	"strings"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type intervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func toIntervalDTO(interval scheduler.Interval) intervalDTO {
	return intervalDTO{Start: formatTime(interval.Start), End: formatTime(interval.End)}
}

type locationDTO struct {
	Building string `json:"building"`
	Room     string `json:"room"`
}

func toLocationDTO(location *scheduler.Location) *locationDTO {
	if location == nil {
		return nil
	}
	return &locationDTO{Building: location.Building, Room: location.Room}
}

// engineEventDTO is the slim event shape used in conflicts and facility
// listings.
type engineEventDTO struct {
	ID               string       `json:"id"`
	ScheduleID       string       `json:"schedule_id"`
	Title            string       `json:"title"`
	Start            string       `json:"start"`
	End              string       `json:"end"`
	Location         *locationDTO `json:"location,omitempty"`
	Status           string       `json:"status"`
	OrganizerID      string       `json:"organizer_id"`
	RequiresApproval bool         `json:"requires_approval"`
}

func toEngineEventDTO(event scheduler.Event) engineEventDTO {
	return engineEventDTO{
		ID:               event.ID,
		ScheduleID:       event.ScheduleID,
		Title:            event.Title,
		Start:            formatTime(event.Interval.Start),
		End:              formatTime(event.Interval.End),
		Location:         toLocationDTO(event.Location),
		Status:           string(event.Status),
		OrganizerID:      event.OrganizerID,
		RequiresApproval: event.RequiresApproval,
	}
}

func toEngineEventDTOs(events []scheduler.Event) []engineEventDTO {
	out := make([]engineEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEngineEventDTO(event))
	}
	return out
}

type recurrenceDTO struct {
	Frequency string   `json:"frequency"`
	Weekdays  []string `json:"weekdays,omitempty"`
	Until     string   `json:"until,omitempty"`
}

type eventDTO struct {
	ID               string         `json:"id"`
	ScheduleID       string         `json:"schedule_id"`
	OrganizerID      string         `json:"organizer_id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Start            string         `json:"start"`
	End              string         `json:"end"`
	Location         *locationDTO   `json:"location,omitempty"`
	Color            string         `json:"color"`
	Status           string         `json:"status"`
	RequiresApproval bool           `json:"requires_approval"`
	Recurrence       *recurrenceDTO `json:"recurrence,omitempty"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	dto := eventDTO{
		ID:               event.ID,
		ScheduleID:       event.ScheduleID,
		OrganizerID:      event.OrganizerID,
		Title:            event.Title,
		Description:      event.Description,
		Start:            formatTime(event.Interval.Start),
		End:              formatTime(event.Interval.End),
		Location:         toLocationDTO(event.Location),
		Color:            event.Color,
		Status:           string(event.Status),
		RequiresApproval: event.RequiresApproval,
		CreatedAt:        formatTime(event.CreatedAt),
		UpdatedAt:        formatTime(event.UpdatedAt),
	}
	if rec := event.Recurrence; rec != nil {
		out := &recurrenceDTO{Frequency: string(rec.Frequency)}
		for _, day := range rec.Weekdays {
			out.Weekdays = append(out.Weekdays, weekdayName(day))
		}
		if rec.Until != nil {
			out.Until = formatTime(*rec.Until)
		}
		dto.Recurrence = out
	}
	return dto
}

func toEventDTOs(events []application.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

type occurrenceDTO struct {
	Event eventDTO `json:"event"`
	Start string   `json:"start"`
	End   string   `json:"end"`
}

func toOccurrenceDTOs(occurrences []application.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, occurrence := range occurrences {
		out = append(out, occurrenceDTO{
			Event: toEventDTO(occurrence.Event),
			Start: formatTime(occurrence.Interval.Start),
			End:   formatTime(occurrence.Interval.End),
		})
	}
	return out
}

type suggestionDTO struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Weekday string `json:"weekday"`
}

func toSuggestionDTOs(suggestions []scheduler.Suggestion) []suggestionDTO {
	out := make([]suggestionDTO, 0, len(suggestions))
	for _, suggestion := range suggestions {
		out = append(out, suggestionDTO{
			Start:   formatTime(suggestion.Interval.Start),
			End:     formatTime(suggestion.Interval.End),
			Weekday: weekdayName(suggestion.Weekday),
		})
	}
	return out
}

type transitionDTO struct {
	Action    string `json:"action"`
	From      string `json:"from"`
	To        string `json:"to"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Reason    string `json:"reason,omitempty"`
	At        string `json:"at"`
}

type approvalDTO struct {
	ID               string          `json:"id"`
	EventID          string          `json:"event_id"`
	OrganizerID      string          `json:"organizer_id"`
	RequiresApproval bool            `json:"requires_approval"`
	Status           string          `json:"status"`
	Reason           string          `json:"reason,omitempty"`
	History          []transitionDTO `json:"history"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

func toApprovalDTO(record approval.Record) approvalDTO {
	dto := approvalDTO{
		ID:               record.ID,
		EventID:          record.EventID,
		OrganizerID:      record.OrganizerID,
		RequiresApproval: record.RequiresApproval,
		Status:           string(record.Status),
		Reason:           record.Reason,
		History:          make([]transitionDTO, 0, len(record.History)),
		CreatedAt:        formatTime(record.CreatedAt),
		UpdatedAt:        formatTime(record.UpdatedAt),
	}
	for _, transition := range record.History {
		dto.History = append(dto.History, transitionDTO{
			Action:    string(transition.Action),
			From:      string(transition.From),
			To:        string(transition.To),
			ActorID:   transition.ActorID,
			ActorRole: string(transition.ActorRole),
			Reason:    transition.Reason,
			At:        formatTime(transition.At),
		})
	}
	return dto
}

type notificationDTO struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	ReadAt    string `json:"read_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toNotificationDTO(notification application.Notification) notificationDTO {
	dto := notificationDTO{
		ID:        notification.ID,
		EventID:   notification.EventID,
		Kind:      string(notification.Kind),
		Message:   notification.Message,
		Read:      notification.IsRead(),
		CreatedAt: formatTime(notification.CreatedAt),
	}
	if notification.ReadAt != nil {
		dto.ReadAt = formatTime(*notification.ReadAt)
	}
	return dto
}

func weekdayName(day time.Weekday) string {
	return day.String()
}

// parseWeekday accepts full English names and prefixes of at least three
// letters, case insensitive.
func parseWeekday(value string) (time.Weekday, bool) {
	value = strings.TrimSpace(value)
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := day.String()
		if len(value) >= 3 && len(value) <= len(name) && strings.EqualFold(name[:len(value)], value) {
			return day, true
		}
	}
	return 0, false
}
