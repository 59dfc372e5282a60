package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/harlequingg/nearhelp/internal/data"
)

type UserStore struct {
	db *sqlx.DB
}

const userColumns = `id, created_at, name, email, password_hash, version`

func (s *UserStore) Insert(ctx context.Context, u *data.User) error {
	query := `INSERT INTO users (created_at, name, email, password_hash)
			  VALUES (?, ?, ?, ?)
			  RETURNING id, version`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	u.CreatedAt = now()
	row := s.db.QueryRowxContext(ctx, s.db.Rebind(query), u.CreatedAt, u.Name, u.Email, u.PasswordHash)
	err := row.Scan(&u.ID, &u.Version)
	if err != nil && isUniqueViolation(err) {
		return data.ErrDuplicateEmail
	}
	return err
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*data.User, error) {
	return s.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*data.User, error) {
	return s.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *UserStore) getBy(ctx context.Context, query string, arg any) (*data.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u data.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(query), arg)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, data.ErrNotFound
		default:
			return nil, err
		}
	}
	return &u, nil
}

// Update writes u back if nobody else changed the row since it
// was read; otherwise it returns data.ErrConflict.
func (s *UserStore) Update(ctx context.Context, u *data.User) error {
	query := `UPDATE users SET name = ?, email = ?, password_hash = ?, version = version + 1
			  WHERE id = ? AND version = ?
			  RETURNING version`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowxContext(ctx, s.db.Rebind(query), u.Name, u.Email, u.PasswordHash, u.ID, u.Version)
	err := row.Scan(&u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return data.ErrConflict
		case isUniqueViolation(err):
			return data.ErrDuplicateEmail
		default:
			return err
		}
	}
	return nil
}

func (s *UserStore) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ok bool
	err := s.db.GetContext(ctx, &ok, s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`), id)
	return ok, err
}

// Follow records the edge follower -> followee. It reports whether the edge
// is new; following twice is a no-op. A missing followee surfaces as
// data.ErrNotFound through the foreign key.
func (s *UserStore) Follow(ctx context.Context, followerID, followeeID int64) (bool, error) {
	query := `INSERT INTO follows (follower_id, followee_id, created_at)
			  VALUES (?, ?, ?)
			  ON CONFLICT (follower_id, followee_id) DO NOTHING`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), followerID, followeeID, now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, data.ErrNotFound
		}
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Unfollow removes the edge if present.
func (s *UserStore) Unfollow(ctx context.Context, followerID, followeeID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`), followerID, followeeID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *UserStore) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = ? AND followee_id = ?)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ok bool
	err := s.db.GetContext(ctx, &ok, s.db.Rebind(query), followerID, followeeID)
	return ok, err
}

// Followers lists the users following id, by name.
func (s *UserStore) Followers(ctx context.Context, id int64) ([]data.UserRef, error) {
	query := `SELECT u.id, u.name FROM follows f
			  JOIN users u ON u.id = f.follower_id
			  WHERE f.followee_id = ?
			  ORDER BY u.name, u.id`
	return s.refs(ctx, query, id)
}

// Following lists the users id follows, by name.
func (s *UserStore) Following(ctx context.Context, id int64) ([]data.UserRef, error) {
	query := `SELECT u.id, u.name FROM follows f
			  JOIN users u ON u.id = f.followee_id
			  WHERE f.follower_id = ?
			  ORDER BY u.name, u.id`
	return s.refs(ctx, query, id)
}

func (s *UserStore) FollowingIDs(ctx context.Context, id int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`SELECT followee_id FROM follows WHERE follower_id = ? ORDER BY followee_id`), id)
	return ids, err
}

func (s *UserStore) refs(ctx context.Context, query string, args ...any) ([]data.UserRef, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	refs := []data.UserRef{}
	err := s.db.SelectContext(ctx, &refs, s.db.Rebind(query), args...)
	return refs, err
}
