package storage

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/harlequingg/nearhelp/internal/data"
)

type NotificationStore struct {
	db *sqlx.DB
}

type notificationRow struct {
	data.Notification
	FromName string `db:"from_name"`
}

func (s *NotificationStore) Insert(ctx context.Context, n *data.Notification) error {
	query := `INSERT INTO notifications (created_at, user_id, from_id, kind, ref, subject)
			  VALUES (?, ?, ?, ?, ?, ?)
			  RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n.CreatedAt = now()
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), n.CreatedAt, n.UserID, n.FromID, n.Kind, n.Ref, n.Subject).Scan(&n.ID)
	if err != nil && isForeignKeyViolation(err) {
		return data.ErrNotFound
	}
	return err
}

// ByUser lists the notifications addressed to uid, newest first.
func (s *NotificationStore) ByUser(ctx context.Context, uid int64, limit int) ([]data.Notification, error) {
	query := `SELECT n.id, n.created_at, n.user_id, n.from_id, n.kind, n.ref, n.subject, n.read, u.name AS from_name
			  FROM notifications n
			  JOIN users u ON u.id = n.from_id
			  WHERE n.user_id = ?
			  ORDER BY n.created_at DESC, n.id DESC
			  LIMIT ?`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), uid, limit); err != nil {
		return nil, err
	}
	out := make([]data.Notification, 0, len(rows))
	for _, r := range rows {
		n := r.Notification
		n.From = data.UserRef{ID: n.FromID, Name: r.FromName}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead marks every unread notification of uid as read and reports how many changed.
func (s *NotificationStore) MarkRead(ctx context.Context, uid int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE notifications SET read = ? WHERE user_id = ? AND read = ?`), true, uid, false)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
