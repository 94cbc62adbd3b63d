package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Lowii-3dy/campus-sched/internal/persistence"
)

type scheduleRow struct {
	ID              string         `db:"id"`
	OwnerID         string         `db:"owner_id"`
	Title           string         `db:"title"`
	Description     sql.NullString `db:"description"`
	Color           string         `db:"color"`
	IsPublic        bool           `db:"is_public"`
	IsClassSchedule bool           `db:"is_class_schedule"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       string         `db:"updated_at"`
}

const scheduleColumns = `id, owner_id, title, description, color, is_public, is_class_schedule, created_at, updated_at`

func newScheduleRow(schedule persistence.Schedule) scheduleRow {
	return scheduleRow{
		ID:              schedule.ID,
		OwnerID:         schedule.OwnerID,
		Title:           schedule.Title,
		Description:     nullString(schedule.Description),
		Color:           schedule.Color,
		IsPublic:        schedule.IsPublic,
		IsClassSchedule: schedule.IsClassSchedule,
		CreatedAt:       formatTime(schedule.CreatedAt),
		UpdatedAt:       formatTime(schedule.UpdatedAt),
	}
}

func (r scheduleRow) toModel() (persistence.Schedule, error) {
	createdAt, err := parseTime("created_at", r.CreatedAt)
	if err != nil {
		return persistence.Schedule{}, err
	}
	updatedAt, err := parseTime("updated_at", r.UpdatedAt)
	if err != nil {
		return persistence.Schedule{}, err
	}
	return persistence.Schedule{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Title:           r.Title,
		Description:     stringPtr(r.Description),
		Color:           r.Color,
		IsPublic:        r.IsPublic,
		IsClassSchedule: r.IsClassSchedule,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

// CreateSchedule inserts a schedule.
func (s *Storage) CreateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	if schedule.ID == "" || schedule.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}
	const query = `INSERT INTO schedules (` + scheduleColumns + `)
		VALUES (:id, :owner_id, :title, :description, :color, :is_public, :is_class_schedule, :created_at, :updated_at)`
	if _, err := s.pool.DB().NamedExecContext(ctx, query, newScheduleRow(schedule)); err != nil {
		return mapError(err)
	}
	return nil
}

// UpdateSchedule replaces the mutable schedule fields. The owner and
// creation time never change.
func (s *Storage) UpdateSchedule(ctx context.Context, schedule persistence.Schedule) error {
	const query = `UPDATE schedules
		SET title = :title, description = :description, color = :color, is_public = :is_public,
			is_class_schedule = :is_class_schedule, updated_at = :updated_at
		WHERE id = :id`
	result, err := s.pool.DB().NamedExecContext(ctx, query, newScheduleRow(schedule))
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetSchedule loads a schedule by identifier.
func (s *Storage) GetSchedule(ctx context.Context, id string) (persistence.Schedule, error) {
	var row scheduleRow
	if err := s.pool.DB().GetContext(ctx, &row, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id); err != nil {
		return persistence.Schedule{}, mapError(err)
	}
	return row.toModel()
}

// ListSchedules returns schedules ordered by creation. With an owner set,
// only the owner's schedules are returned, plus public ones when requested.
func (s *Storage) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.Schedule, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.OwnerID != "" {
		if filter.IncludePublic {
			conditions = append(conditions, "(owner_id = ? OR is_public = 1)")
		} else {
			conditions = append(conditions, "owner_id = ?")
		}
		args = append(args, filter.OwnerID)
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	var rows []scheduleRow
	if err := s.pool.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	schedules := make([]persistence.Schedule, 0, len(rows))
	for _, row := range rows {
		schedule, err := row.toModel()
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule. Events, approvals and history cascade.
func (s *Storage) DeleteSchedule(ctx context.Context, id string) error {
	result, err := s.pool.DB().ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
