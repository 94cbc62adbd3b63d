package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/persistence"
)

var occupyingStatuses = []string{string(approval.StatusPending), string(approval.StatusApproved)}

type eventRow struct {
	ID                  string         `db:"id"`
	ScheduleID          string         `db:"schedule_id"`
	OrganizerID         string         `db:"organizer_id"`
	Title               string         `db:"title"`
	Description         sql.NullString `db:"description"`
	StartTime           string         `db:"start_time"`
	EndTime             string         `db:"end_time"`
	Building            sql.NullString `db:"building"`
	Room                sql.NullString `db:"room"`
	BuildingKey         sql.NullString `db:"building_key"`
	RoomKey             sql.NullString `db:"room_key"`
	Color               sql.NullString `db:"color"`
	Status              string         `db:"status"`
	RequiresApproval    bool           `db:"requires_approval"`
	RecurrenceFrequency sql.NullString `db:"recurrence_frequency"`
	RecurrenceWeekdays  sql.NullString `db:"recurrence_weekdays"`
	RecurrenceUntil     sql.NullString `db:"recurrence_until"`
	CreatedAt           string         `db:"created_at"`
	UpdatedAt           string         `db:"updated_at"`
}

const eventColumns = `id, schedule_id, organizer_id, title, description, start_time, end_time,
	building, room, building_key, room_key, color, status, requires_approval,
	recurrence_frequency, recurrence_weekdays, recurrence_until, created_at, updated_at`

func newEventRow(event persistence.Event) eventRow {
	row := eventRow{
		ID:               event.ID,
		ScheduleID:       event.ScheduleID,
		OrganizerID:      event.OrganizerID,
		Title:            event.Title,
		Description:      nullString(event.Description),
		StartTime:        formatTime(event.Start),
		EndTime:          formatTime(event.End),
		Building:         nullString(event.Building),
		Room:             nullString(event.Room),
		BuildingKey:      facilityKeyPart(event.Building),
		RoomKey:          facilityKeyPart(event.Room),
		Color:            nullString(event.Color),
		Status:           event.Status,
		RequiresApproval: event.RequiresApproval,
		CreatedAt:        formatTime(event.CreatedAt),
		UpdatedAt:        formatTime(event.UpdatedAt),
	}
	if rec := event.Recurrence; rec != nil && rec.Frequency != "" {
		row.RecurrenceFrequency = sql.NullString{String: rec.Frequency, Valid: true}
		row.RecurrenceWeekdays = encodeWeekdays(rec.Weekdays)
		row.RecurrenceUntil = nullTime(rec.Until)
	}
	return row
}

func (r eventRow) toModel() (persistence.Event, error) {
	start, err := parseTime("start_time", r.StartTime)
	if err != nil {
		return persistence.Event{}, err
	}
	end, err := parseTime("end_time", r.EndTime)
	if err != nil {
		return persistence.Event{}, err
	}
	createdAt, err := parseTime("created_at", r.CreatedAt)
	if err != nil {
		return persistence.Event{}, err
	}
	updatedAt, err := parseTime("updated_at", r.UpdatedAt)
	if err != nil {
		return persistence.Event{}, err
	}

	event := persistence.Event{
		ID:               r.ID,
		ScheduleID:       r.ScheduleID,
		OrganizerID:      r.OrganizerID,
		Title:            r.Title,
		Description:      stringPtr(r.Description),
		Start:            start,
		End:              end,
		Building:         stringPtr(r.Building),
		Room:             stringPtr(r.Room),
		Color:            stringPtr(r.Color),
		Status:           r.Status,
		RequiresApproval: r.RequiresApproval,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
	if r.RecurrenceFrequency.Valid && r.RecurrenceFrequency.String != "" {
		until, err := parseNullTime("recurrence_until", r.RecurrenceUntil)
		if err != nil {
			return persistence.Event{}, err
		}
		weekdays, err := decodeWeekdays(r.RecurrenceWeekdays)
		if err != nil {
			return persistence.Event{}, err
		}
		event.Recurrence = &persistence.Recurrence{
			Frequency: r.RecurrenceFrequency.String,
			Weekdays:  weekdays,
			Until:     until,
		}
	}
	return event, nil
}

// CreateEvent inserts the event, its approval record and the record's
// initial history in one transaction.
func (s *Storage) CreateEvent(ctx context.Context, event persistence.Event, record persistence.Approval) error {
	if event.ID == "" || event.ScheduleID == "" || record.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if !event.End.After(event.Start) {
		return persistence.ErrConstraintViolation
	}

	return s.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := guardOverlap(ctx, tx, event.ScheduleID, event.ID, event.Status, event.Start, event.End); err != nil {
			return err
		}
		const insert = `INSERT INTO events (` + eventColumns + `)
			VALUES (:id, :schedule_id, :organizer_id, :title, :description, :start_time, :end_time,
				:building, :room, :building_key, :room_key, :color, :status, :requires_approval,
				:recurrence_frequency, :recurrence_weekdays, :recurrence_until, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, newEventRow(event)); err != nil {
			return mapError(err)
		}
		return insertApproval(ctx, tx, record)
	})
}

// UpdateEvent replaces the event's details. Status and ownership are only
// changed through approval transitions.
func (s *Storage) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if !event.End.After(event.Start) {
		return persistence.ErrConstraintViolation
	}
	return s.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var current eventRow
		if err := tx.GetContext(ctx, &current, `SELECT `+eventColumns+` FROM events WHERE id = ?`, event.ID); err != nil {
			return mapError(err)
		}
		if err := guardOverlap(ctx, tx, current.ScheduleID, event.ID, current.Status, event.Start, event.End); err != nil {
			return err
		}

		row := newEventRow(event)
		const update = `UPDATE events
			SET title = :title, description = :description, start_time = :start_time, end_time = :end_time,
				building = :building, room = :room, building_key = :building_key, room_key = :room_key,
				color = :color, requires_approval = :requires_approval,
				recurrence_frequency = :recurrence_frequency, recurrence_weekdays = :recurrence_weekdays,
				recurrence_until = :recurrence_until, updated_at = :updated_at
			WHERE id = :id`
		result, err := tx.NamedExecContext(ctx, update, row)
		if err != nil {
			return mapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE approvals SET requires_approval = ? WHERE event_id = ?`,
			event.RequiresApproval, event.ID); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// UpdateEventInterval moves an event to a new slot, keeping its status.
func (s *Storage) UpdateEventInterval(ctx context.Context, id string, start, end, updatedAt time.Time) (persistence.Event, error) {
	if !end.After(start) {
		return persistence.Event{}, persistence.ErrConstraintViolation
	}
	var updated eventRow
	err := s.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var current eventRow
		if err := tx.GetContext(ctx, &current, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id); err != nil {
			return mapError(err)
		}
		if err := guardOverlap(ctx, tx, current.ScheduleID, id, current.Status, start, end); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE events SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ?`,
			formatTime(start), formatTime(end), formatTime(updatedAt), id); err != nil {
			return mapError(err)
		}
		return mapError(tx.GetContext(ctx, &updated, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return updated.toModel()
}

// GetEvent loads an event by identifier.
func (s *Storage) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	var row eventRow
	if err := s.pool.DB().GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id); err != nil {
		return persistence.Event{}, mapError(err)
	}
	return row.toModel()
}

// ListEvents returns events matching the filter in the requested order.
func (s *Storage) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ScheduleID != "" {
		conditions = append(conditions, "schedule_id = ?")
		args = append(args, filter.ScheduleID)
	}
	if filter.Building != "" || filter.Room != "" {
		conditions = append(conditions, "building_key = ? AND room_key = ?")
		args = append(args,
			strings.ToLower(strings.TrimSpace(filter.Building)),
			strings.ToLower(strings.TrimSpace(filter.Room)),
		)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "(end_time > ? OR recurrence_frequency IS NOT NULL)")
		args = append(args, formatTime(*filter.EndsAfter))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	switch filter.Order {
	case persistence.EventOrderInsertion:
		query += " ORDER BY rowid ASC"
	default:
		query += " ORDER BY start_time ASC, rowid ASC"
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: expand event query: %w", err)
	}

	var rows []eventRow
	if err := s.pool.DB().SelectContext(ctx, &rows, s.pool.DB().Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	events := make([]persistence.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// DeleteEvent removes an event together with its approval history.
func (s *Storage) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.pool.DB().ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// guardOverlap is the booking commit point: inside the write transaction it
// rejects an occupying event whose slot overlaps another occupying event of
// the same schedule.
func guardOverlap(ctx context.Context, tx *sqlx.Tx, scheduleID, eventID, status string, start, end time.Time) error {
	if !approval.Status(status).Occupies() {
		return nil
	}
	query, args, err := sqlx.In(`SELECT id FROM events
		WHERE schedule_id = ? AND id <> ? AND status IN (?) AND start_time < ? AND end_time > ?
		ORDER BY rowid ASC LIMIT 1`,
		scheduleID, eventID, occupyingStatuses, formatTime(end), formatTime(start))
	if err != nil {
		return fmt.Errorf("sqlite: expand overlap query: %w", err)
	}

	var conflictID string
	err = tx.GetContext(ctx, &conflictID, tx.Rebind(query), args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return mapError(err)
	default:
		return fmt.Errorf("%w: conflicts with event %s", persistence.ErrOverlap, conflictID)
	}
}

func encodeWeekdays(days []time.Weekday) sql.NullString {
	if len(days) == 0 {
		return sql.NullString{}
	}
	parts := make([]string, len(days))
	for i, day := range days {
		parts[i] = strconv.Itoa(int(day))
	}
	return sql.NullString{String: strings.Join(parts, ","), Valid: true}
}

func decodeWeekdays(value sql.NullString) ([]time.Weekday, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parts := strings.Split(value.String, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("sqlite: invalid weekday %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}
