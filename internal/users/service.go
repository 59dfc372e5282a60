// Package users is the user directory: accounts, sign-in and the follow graph.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/nearhelp/internal/auth"
	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/metrics"
	"github.com/harlequingg/nearhelp/internal/validator"
)

type Store interface {
	Insert(ctx context.Context, u *data.User) error
	GetByID(ctx context.Context, id int64) (*data.User, error)
	GetByEmail(ctx context.Context, email string) (*data.User, error)
	Update(ctx context.Context, u *data.User) error
	Follow(ctx context.Context, followerID, followeeID int64) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID int64) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error)
	Followers(ctx context.Context, id int64) ([]data.UserRef, error)
	Following(ctx context.Context, id int64) ([]data.UserRef, error)
	FollowingIDs(ctx context.Context, id int64) ([]int64, error)
}

type Notifier interface {
	Notify(ctx context.Context, n data.Notification) (*data.Notification, error)
}

// Session is the result of a successful sign-in.
type Session struct {
	User    *data.User `json:"user"`
	Token   string     `json:"token"`
	Expires time.Time  `json:"expires"`
}

type Service struct {
	store    Store
	tokens   *auth.Tokens
	notifier Notifier
	log      *logrus.Entry
}

func New(store Store, tokens *auth.Tokens, notifier Notifier, log *logrus.Logger) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		log:      log.WithField("component", "users"),
	}
}

func (s *Service) Register(ctx context.Context, name, email, password string) (*data.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	v := validator.New()
	v.CheckName(name)
	v.CheckEmail(email)
	v.CheckPassword(password)
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &data.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.store.Insert(ctx, u); err != nil {
		if errors.Is(err, data.ErrDuplicateEmail) {
			return nil, &data.ValidationError{Fields: map[string]string{"email": err.Error()}}
		}
		return nil, err
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	return u, nil
}

// Authenticate checks email and password and issues a bearer token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	v := validator.New()
	v.CheckEmail(email)
	v.Check(password != "", "password", "must be provided")
	if err := v.Err(); err != nil {
		return nil, err
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, data.ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, data.ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(u.ID, u.Name)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token, Expires: expires}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*data.User, error) {
	return s.store.GetByID(ctx, id)
}

// Rename changes the display name of id, guarded by version.
func (s *Service) Rename(ctx context.Context, id int64, name string, version int) (*data.User, error) {
	name = strings.TrimSpace(name)
	v := validator.New()
	v.CheckName(name)
	if err := v.Err(); err != nil {
		return nil, err
	}

	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = name
	u.Version = version
	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Profile returns id with both sides of its follow graph.
func (s *Service) Profile(ctx context.Context, id int64) (*data.Profile, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	following, err := s.store.Following(ctx, id)
	if err != nil {
		return nil, err
	}
	followers, err := s.store.Followers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &data.Profile{
		ID:        u.ID,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		Following: following,
		Followers: followers,
	}, nil
}

func (s *Service) IsFollowing(ctx context.Context, viewerID, targetID int64) (bool, error) {
	if viewerID == 0 || viewerID == targetID {
		return false, nil
	}
	return s.store.IsFollowing(ctx, viewerID, targetID)
}

// Follow makes followerID follow targetID. Following someone twice changes
// nothing and sends no second notification.
func (s *Service) Follow(ctx context.Context, followerID, targetID int64) error {
	if followerID == 0 {
		return data.ErrForbidden
	}
	if followerID == targetID {
		return &data.ValidationError{Fields: map[string]string{"user": "cannot follow yourself"}}
	}

	created, err := s.store.Follow(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	metrics.FollowChanged("follow")

	if s.notifier != nil {
		_, err := s.notifier.Notify(ctx, data.Notification{
			UserID: targetID,
			FromID: followerID,
			Kind:   data.KindFollow,
			Ref:    followerID,
		})
		if err != nil {
			s.log.WithError(err).WithField("user_id", targetID).Error("follow notification failed")
		}
	}
	return nil
}

// Unfollow removes the edge followerID -> targetID if there is one.
func (s *Service) Unfollow(ctx context.Context, followerID, targetID int64) error {
	if followerID == 0 {
		return data.ErrForbidden
	}
	removed, err := s.store.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if removed {
		metrics.FollowChanged("unfollow")
	}
	return nil
}

// Following returns the ids id follows.
func (s *Service) Following(ctx context.Context, id int64) ([]int64, error) {
	return s.store.FollowingIDs(ctx, id)
}

func (s *Service) FollowingUsers(ctx context.Context, id int64) ([]data.UserRef, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Following(ctx, id)
}

func (s *Service) Followers(ctx context.Context, id int64) ([]data.UserRef, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Followers(ctx, id)
}
