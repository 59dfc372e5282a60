package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/harlequingg/nearhelp/internal/data"
)

type HelperStore struct {
	db *sqlx.DB
}

const helperColumns = `h.id, h.created_at, h.task_id, h.helper_id, h.creator_id,
			  h.notified, h.accepted, h.completed, h.completed_on`

type helperRow struct {
	data.Helper
	VolunteerName string `db:"volunteer_name"`
	TaskTitle     string `db:"task_title"`
}

func (r helperRow) helper() data.Helper {
	h := r.Helper
	h.Volunteer = data.UserRef{ID: h.HelperID, Name: r.VolunteerName}
	h.TaskTitle = r.TaskTitle
	return h
}

const helperSelect = `SELECT ` + helperColumns + `, u.name AS volunteer_name, t.title AS task_title
			  FROM helpers h
			  JOIN users u ON u.id = h.helper_id
			  JOIN tasks t ON t.id = h.task_id`

// Insert records h unless the volunteer already offered help on the task, in
// which case the existing record is loaded into h. It reports whether a new
// row was written.
func (s *HelperStore) Insert(ctx context.Context, h *data.Helper) (bool, error) {
	query := `INSERT INTO helpers (created_at, task_id, helper_id, creator_id)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT (task_id, helper_id) DO NOTHING
			  RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	h.CreatedAt = now()
	h.Notified, h.Accepted, h.Completed, h.CompletedOn = false, false, false, nil
	row := s.db.QueryRowxContext(ctx, s.db.Rebind(query), h.CreatedAt, h.TaskID, h.HelperID, h.CreatorID)
	err := row.Scan(&h.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := s.getBy(ctx, helperSelect+` WHERE h.task_id = ? AND h.helper_id = ?`, h.TaskID, h.HelperID)
		if err != nil {
			return false, err
		}
		*h = *existing
		return false, nil
	case isForeignKeyViolation(err):
		return false, data.ErrNotFound
	default:
		return false, err
	}
}

func (s *HelperStore) Get(ctx context.Context, id int64) (*data.Helper, error) {
	return s.getBy(ctx, helperSelect+` WHERE h.id = ?`, id)
}

func (s *HelperStore) getBy(ctx context.Context, query string, args ...any) (*data.Helper, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var r helperRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(query), args...)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, data.ErrNotFound
		default:
			return nil, err
		}
	}
	h := r.helper()
	return &h, nil
}

// ByTask lists the offers on a task in the order they were made.
func (s *HelperStore) ByTask(ctx context.Context, taskID int64) ([]data.Helper, error) {
	return s.list(ctx, helperSelect+` WHERE h.task_id = ? ORDER BY h.created_at, h.id`, taskID)
}

// ByVolunteer lists uid's offers in the given completion state, earliest
// completion first. Offers never completed sort first.
func (s *HelperStore) ByVolunteer(ctx context.Context, uid int64, completed bool) ([]data.Helper, error) {
	query := helperSelect + ` WHERE h.helper_id = ? AND h.completed = ?
			  ORDER BY CASE WHEN h.completed_on IS NULL THEN 0 ELSE 1 END, h.completed_on, h.id`
	return s.list(ctx, query, uid, completed)
}

func (s *HelperStore) list(ctx context.Context, query string, args ...any) ([]data.Helper, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []helperRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	helpers := make([]data.Helper, 0, len(rows))
	for _, r := range rows {
		helpers = append(helpers, r.helper())
	}
	return helpers, nil
}

// HasOpen reports whether uid has an offer that is not completed yet, on
// taskID or, when taskID is 0, on any task.
func (s *HelperStore) HasOpen(ctx context.Context, uid, taskID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM helpers WHERE helper_id = ? AND completed = ?`
	args := []any{uid, false}
	if taskID != 0 {
		query += ` AND task_id = ?`
		args = append(args, taskID)
	}
	query += `)`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ok bool
	err := s.db.GetContext(ctx, &ok, s.db.Rebind(query), args...)
	return ok, err
}

// The transitions below only ever move a flag from false to true. Each
// reports whether the row changed.

func (s *HelperStore) MarkNotified(ctx context.Context, id int64) (bool, error) {
	return s.transition(ctx, `UPDATE helpers SET notified = ? WHERE id = ? AND notified = ?`, true, id, false)
}

func (s *HelperStore) MarkAccepted(ctx context.Context, id int64) (bool, error) {
	return s.transition(ctx, `UPDATE helpers SET accepted = ? WHERE id = ? AND accepted = ?`, true, id, false)
}

// MarkCompleted stamps completed_on only on the first completion.
func (s *HelperStore) MarkCompleted(ctx context.Context, id int64) (bool, error) {
	return s.transition(ctx, `UPDATE helpers SET completed = ?, completed_on = ? WHERE id = ? AND completed = ?`, true, now(), id, false)
}

func (s *HelperStore) transition(ctx context.Context, query string, args ...any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
