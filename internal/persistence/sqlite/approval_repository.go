package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/persistence"
)

type approvalRow struct {
	ID               string         `db:"id"`
	EventID          string         `db:"event_id"`
	OrganizerID      string         `db:"organizer_id"`
	RequiresApproval bool           `db:"requires_approval"`
	Status           string         `db:"status"`
	Reason           sql.NullString `db:"reason"`
	CreatedAt        string         `db:"created_at"`
	UpdatedAt        string         `db:"updated_at"`
}

type transitionRow struct {
	ApprovalID string         `db:"approval_id"`
	Sequence   int            `db:"sequence"`
	Action     string         `db:"action"`
	FromStatus string         `db:"from_status"`
	ToStatus   string         `db:"to_status"`
	ActorID    string         `db:"actor_id"`
	ActorRole  string         `db:"actor_role"`
	Reason     sql.NullString `db:"reason"`
	At         string         `db:"at"`
}

const approvalColumns = `id, event_id, organizer_id, requires_approval, status, reason, created_at, updated_at`

const transitionColumns = `approval_id, sequence, action, from_status, to_status, actor_id, actor_role, reason, at`

const insertTransition = `INSERT INTO approval_transitions (` + transitionColumns + `)
	VALUES (:approval_id, :sequence, :action, :from_status, :to_status, :actor_id, :actor_role, :reason, :at)`

func (r approvalRow) toModel(history []transitionRow) (persistence.Approval, error) {
	createdAt, err := parseTime("created_at", r.CreatedAt)
	if err != nil {
		return persistence.Approval{}, err
	}
	updatedAt, err := parseTime("updated_at", r.UpdatedAt)
	if err != nil {
		return persistence.Approval{}, err
	}
	record := persistence.Approval{
		ID:               r.ID,
		EventID:          r.EventID,
		OrganizerID:      r.OrganizerID,
		RequiresApproval: r.RequiresApproval,
		Status:           r.Status,
		Reason:           stringPtr(r.Reason),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
	for _, row := range history {
		at, err := parseTime("at", row.At)
		if err != nil {
			return persistence.Approval{}, err
		}
		record.History = append(record.History, persistence.ApprovalTransition{
			Sequence:   row.Sequence,
			ApprovalID: row.ApprovalID,
			Action:     row.Action,
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			ActorID:    row.ActorID,
			ActorRole:  row.ActorRole,
			Reason:     stringPtr(row.Reason),
			At:         at,
		})
	}
	return record, nil
}

func newTransitionRow(approvalID string, sequence int, transition persistence.ApprovalTransition) transitionRow {
	return transitionRow{
		ApprovalID: approvalID,
		Sequence:   sequence,
		Action:     transition.Action,
		FromStatus: transition.FromStatus,
		ToStatus:   transition.ToStatus,
		ActorID:    transition.ActorID,
		ActorRole:  transition.ActorRole,
		Reason:     nullString(transition.Reason),
		At:         formatTime(transition.At),
	}
}

func insertApproval(ctx context.Context, tx *sqlx.Tx, record persistence.Approval) error {
	row := approvalRow{
		ID:               record.ID,
		EventID:          record.EventID,
		OrganizerID:      record.OrganizerID,
		RequiresApproval: record.RequiresApproval,
		Status:           record.Status,
		Reason:           nullString(record.Reason),
		CreatedAt:        formatTime(record.CreatedAt),
		UpdatedAt:        formatTime(record.UpdatedAt),
	}
	const insert = `INSERT INTO approvals (` + approvalColumns + `)
		VALUES (:id, :event_id, :organizer_id, :requires_approval, :status, :reason, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
		return mapError(err)
	}
	for i, transition := range record.History {
		if _, err := tx.NamedExecContext(ctx, insertTransition, newTransitionRow(record.ID, i+1, transition)); err != nil {
			return mapError(err)
		}
	}
	return nil
}

// GetApprovalByEvent loads the approval record of an event with its history.
func (s *Storage) GetApprovalByEvent(ctx context.Context, eventID string) (persistence.Approval, error) {
	var row approvalRow
	if err := s.pool.DB().GetContext(ctx, &row, `SELECT `+approvalColumns+` FROM approvals WHERE event_id = ?`, eventID); err != nil {
		return persistence.Approval{}, mapError(err)
	}
	history, err := s.loadHistory(ctx, s.pool.DB(), []string{row.ID})
	if err != nil {
		return persistence.Approval{}, err
	}
	return row.toModel(history[row.ID])
}

// ListApprovals returns a page of approvals, newest first, and the total
// number of matching records.
func (s *Storage) ListApprovals(ctx context.Context, filter persistence.ApprovalFilter) ([]persistence.Approval, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.OrganizerID != "" {
		conditions = append(conditions, "organizer_id = ?")
		args = append(args, filter.OrganizerID)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.pool.DB().GetContext(ctx, &total, `SELECT COUNT(*) FROM approvals`+where, args...); err != nil {
		return nil, 0, mapError(err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + approvalColumns + ` FROM approvals` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	var rows []approvalRow
	if err := s.pool.DB().SelectContext(ctx, &rows, query, append(args, limit, max(filter.Offset, 0))...); err != nil {
		return nil, 0, mapError(err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	history, err := s.loadHistory(ctx, s.pool.DB(), ids)
	if err != nil {
		return nil, 0, err
	}

	records := make([]persistence.Approval, 0, len(rows))
	for _, row := range rows {
		record, err := row.toModel(history[row.ID])
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	return records, total, nil
}

// CountApprovals counts approvals in a status. An empty status counts all.
func (s *Storage) CountApprovals(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) FROM approvals`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	var count int
	if err := s.pool.DB().GetContext(ctx, &count, query, args...); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// AppendApprovalTransition is the commit point of an approval transition.
// The record's status is compared and swapped from expectedStatus, the event
// status follows it, and the transition is appended to the history. Moving an
// event into an occupying status re-checks schedule overlap.
func (s *Storage) AppendApprovalTransition(ctx context.Context, record persistence.Approval, expectedStatus string, transition persistence.ApprovalTransition) (persistence.Approval, error) {
	var (
		stored  approvalRow
		history map[string][]transitionRow
	)
	err := s.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE approvals SET status = ?, reason = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			record.Status, nullString(record.Reason), formatTime(record.UpdatedAt), record.ID, expectedStatus)
		if err != nil {
			return mapError(err)
		}
		if err := requireAffected(result); err != nil {
			var exists int
			if lookupErr := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM approvals WHERE id = ?`, record.ID); lookupErr != nil {
				return mapError(lookupErr)
			}
			if exists == 0 {
				return persistence.ErrNotFound
			}
			return persistence.ErrStale
		}

		var event eventRow
		if err := tx.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE id = ?`, record.EventID); err != nil {
			return mapError(err)
		}
		if !approval.Status(expectedStatus).Occupies() {
			start, err := parseTime("start_time", event.StartTime)
			if err != nil {
				return err
			}
			end, err := parseTime("end_time", event.EndTime)
			if err != nil {
				return err
			}
			if err := guardOverlap(ctx, tx, event.ScheduleID, event.ID, record.Status, start, end); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE events SET status = ?, updated_at = ? WHERE id = ?`,
			record.Status, formatTime(record.UpdatedAt), record.EventID); err != nil {
			return mapError(err)
		}

		var sequence int
		if err := tx.GetContext(ctx, &sequence, `SELECT COALESCE(MAX(sequence), 0) FROM approval_transitions WHERE approval_id = ?`, record.ID); err != nil {
			return mapError(err)
		}
		if _, err := tx.NamedExecContext(ctx, insertTransition, newTransitionRow(record.ID, sequence+1, transition)); err != nil {
			return mapError(err)
		}

		if err := tx.GetContext(ctx, &stored, `SELECT `+approvalColumns+` FROM approvals WHERE id = ?`, record.ID); err != nil {
			return mapError(err)
		}
		history, err = s.loadHistory(ctx, tx, []string{record.ID})
		return err
	})
	if err != nil {
		return persistence.Approval{}, err
	}
	return stored.toModel(history[stored.ID])
}

func (s *Storage) loadHistory(ctx context.Context, q sqlx.QueryerContext, approvalIDs []string) (map[string][]transitionRow, error) {
	history := make(map[string][]transitionRow, len(approvalIDs))
	if len(approvalIDs) == 0 {
		return history, nil
	}
	query, args, err := sqlx.In(`SELECT `+transitionColumns+` FROM approval_transitions
		WHERE approval_id IN (?) ORDER BY approval_id, sequence ASC`, approvalIDs)
	if err != nil {
		return nil, fmt.Errorf("sqlite: expand history query: %w", err)
	}
	var rows []transitionRow
	if err := sqlx.SelectContext(ctx, q, &rows, s.pool.DB().Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	for _, row := range rows {
		history[row.ApprovalID] = append(history[row.ApprovalID], row)
	}
	return history, nil
}
