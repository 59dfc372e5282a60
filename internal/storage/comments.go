package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/harlequingg/nearhelp/internal/data"
)

type CommentStore struct {
	db *sqlx.DB
}

type commentRow struct {
	data.Comment
	AuthorName string `db:"author_name"`
}

func (r commentRow) comment() data.Comment {
	c := r.Comment
	c.Author = data.UserRef{ID: c.UserID, Name: r.AuthorName}
	return c
}

const commentSelect = `SELECT c.id, c.created_at, c.content, c.user_id, c.task_id, u.name AS author_name
			  FROM comments c
			  JOIN users u ON u.id = c.user_id`

// Insert appends c to its task's thread. The comment list is derived from
// task_id, so concurrent inserts on one task can never drop each other. A
// missing task surfaces as data.ErrNotFound through the foreign key.
func (s *CommentStore) Insert(ctx context.Context, c *data.Comment) error {
	query := `INSERT INTO comments (created_at, content, user_id, task_id)
			  VALUES (?, ?, ?, ?)
			  RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	c.CreatedAt = now()
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), c.CreatedAt, c.Content, c.UserID, c.TaskID).Scan(&c.ID)
	if err != nil && isForeignKeyViolation(err) {
		return data.ErrNotFound
	}
	return err
}

// ByTask lists a task's comments, newest first.
func (s *CommentStore) ByTask(ctx context.Context, taskID int64) ([]data.Comment, error) {
	return s.list(ctx, commentSelect+` WHERE c.task_id = ? ORDER BY c.created_at DESC, c.id DESC`, taskID)
}

// ByTasks groups the comments of several tasks by task id, each group in the
// order the comments were posted.
func (s *CommentStore) ByTasks(ctx context.Context, taskIDs []int64) (map[int64][]data.Comment, error) {
	grouped := make(map[int64][]data.Comment, len(taskIDs))
	if len(taskIDs) == 0 {
		return grouped, nil
	}
	query, args, err := sqlx.In(commentSelect+` WHERE c.task_id IN (?) ORDER BY c.created_at, c.id`, taskIDs)
	if err != nil {
		return nil, err
	}
	comments, err := s.list(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		grouped[c.TaskID] = append(grouped[c.TaskID], c)
	}
	return grouped, nil
}

func (s *CommentStore) list(ctx context.Context, query string, args ...any) ([]data.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []commentRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	comments := make([]data.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, r.comment())
	}
	return comments, nil
}

func (s *CommentStore) Get(ctx context.Context, id int64) (*data.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var r commentRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(commentSelect+` WHERE c.id = ?`), id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, data.ErrNotFound
		default:
			return nil, err
		}
	}
	c := r.comment()
	return &c, nil
}
