package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/harlequingg/nearhelp/internal/data"
)

type TaskStore struct {
	db *sqlx.DB
}

// taskRow is a task joined with its owner's name.
type taskRow struct {
	data.Task
	OwnerName string `db:"owner_name"`
}

func (r taskRow) view() data.TaskView {
	return data.TaskView{
		Task:  r.Task,
		Owner: data.UserRef{ID: r.UserID, Name: r.OwnerName},
	}
}

const taskSelect = `SELECT t.id, t.created_at, t.title, t.description, t.due, t.location, t.lat, t.lng,
			  t.willpay, t.bounty, t.completed, t.user_id, t.version, u.name AS owner_name
			  FROM tasks t
			  JOIN users u ON u.id = t.user_id`

func (s *TaskStore) Insert(ctx context.Context, t *data.Task) error {
	query := `INSERT INTO tasks (created_at, title, description, due, location, lat, lng, willpay, bounty, user_id)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  RETURNING id, version`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t.CreatedAt = now()
	t.Completed = false
	args := []any{t.CreatedAt, t.Title, t.Description, t.Due, t.Location, t.Lat, t.Lng, t.WillPay, t.Bounty, t.UserID}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), args...).Scan(&t.ID, &t.Version)
	if err != nil && isForeignKeyViolation(err) {
		return data.ErrNotFound
	}
	return err
}

func (s *TaskStore) Get(ctx context.Context, id int64) (*data.TaskView, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var r taskRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(taskSelect+` WHERE t.id = ?`), id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, data.ErrNotFound
		default:
			return nil, err
		}
	}
	v := r.view()
	return &v, nil
}

// All lists every task, soonest due first.
func (s *TaskStore) All(ctx context.Context) ([]data.TaskView, error) {
	return s.list(ctx, taskSelect+` ORDER BY t.due, t.id`)
}

// WithBounty lists paying tasks with a positive bounty, smallest bounty first.
func (s *TaskStore) WithBounty(ctx context.Context) ([]data.TaskView, error) {
	return s.list(ctx, taskSelect+` WHERE t.willpay = ? AND t.bounty > 0 ORDER BY t.bounty, t.id`, true)
}

// ByOwner lists the tasks posted by uid, soonest due first.
func (s *TaskStore) ByOwner(ctx context.Context, uid int64) ([]data.TaskView, error) {
	return s.list(ctx, taskSelect+` WHERE t.user_id = ? ORDER BY t.due, t.id`, uid)
}

// ByOwners lists the tasks posted by any of uids, soonest due first.
func (s *TaskStore) ByOwners(ctx context.Context, uids []int64) ([]data.TaskView, error) {
	if len(uids) == 0 {
		return []data.TaskView{}, nil
	}
	query, args, err := sqlx.In(taskSelect+` WHERE t.user_id IN (?) ORDER BY t.due, t.id`, uids)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, query, args...)
}

func (s *TaskStore) list(ctx context.Context, query string, args ...any) ([]data.TaskView, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	views := make([]data.TaskView, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.view())
	}
	return views, nil
}

// Summaries lists (id, title) of the tasks posted by uid.
func (s *TaskStore) Summaries(ctx context.Context, uid int64) ([]data.TaskSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	summaries := []data.TaskSummary{}
	query := `SELECT id, title FROM tasks WHERE user_id = ? ORDER BY due, id`
	err := s.db.SelectContext(ctx, &summaries, s.db.Rebind(query), uid)
	return summaries, err
}

// Update writes the editable fields back, guarded by the version read with t.
func (s *TaskStore) Update(ctx context.Context, t *data.Task) error {
	query := `UPDATE tasks SET title = ?, description = ?, due = ?, location = ?, lat = ?, lng = ?,
			  willpay = ?, bounty = ?, version = version + 1
			  WHERE id = ? AND version = ?
			  RETURNING version`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	args := []any{t.Title, t.Description, t.Due, t.Location, t.Lat, t.Lng, t.WillPay, t.Bounty, t.ID, t.Version}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), args...).Scan(&t.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return data.ErrConflict
	}
	return err
}

// MarkCompleted flips completed on for a task owned by ownerID. It reports
// whether the row changed; completing twice is a no-op.
func (s *TaskStore) MarkCompleted(ctx context.Context, id, ownerID int64) (bool, error) {
	query := `UPDATE tasks SET completed = ?, version = version + 1
			  WHERE id = ? AND user_id = ? AND completed = ?`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), true, id, ownerID, false)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
