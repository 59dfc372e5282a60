// Package notifications records events addressed to a user ("X followed
// you", "X can help") and, when a mailer is configured, emails them.
package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/mailer"
	"github.com/harlequingg/nearhelp/internal/metrics"
)

const defaultLimit = 50

type Store interface {
	Insert(ctx context.Context, n *data.Notification) error
	ByUser(ctx context.Context, uid int64, limit int) ([]data.Notification, error)
	MarkRead(ctx context.Context, uid int64) (int64, error)
}

type Users interface {
	GetByID(ctx context.Context, id int64) (*data.User, error)
}

type Mailer interface {
	Send(recipient, templateFile string, data any) error
}

type Service struct {
	store  Store
	users  Users
	mailer Mailer
	log    *logrus.Entry
	wg     sync.WaitGroup
}

// New builds the feed. mailer may be nil, in which case notifications are
// only recorded.
func New(store Store, users Users, m Mailer, log *logrus.Logger) *Service {
	return &Service{
		store:  store,
		users:  users,
		mailer: m,
		log:    log.WithField("component", "notifications"),
	}
}

// Notify records n. Nobody is notified about their own actions, so a
// notification from a user to themselves is dropped and Notify returns nil, nil.
func (s *Service) Notify(ctx context.Context, n data.Notification) (*data.Notification, error) {
	if n.UserID == n.FromID {
		return nil, nil
	}
	if err := s.store.Insert(ctx, &n); err != nil {
		metrics.NotificationSent(n.Kind, "feed", false)
		return nil, fmt.Errorf("record %s notification: %w", n.Kind, err)
	}
	metrics.NotificationSent(n.Kind, "feed", true)

	if s.mailer != nil {
		s.background(func() { s.email(n) })
	}
	return &n, nil
}

func (s *Service) email(n data.Notification) {
	ctx := context.Background()
	log := s.log.WithFields(logrus.Fields{"notification_id": n.ID, "kind": n.Kind})

	recipient, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		log.WithError(err).Warn("notification recipient lookup failed")
		return
	}
	sender, err := s.users.GetByID(ctx, n.FromID)
	if err != nil {
		log.WithError(err).Warn("notification sender lookup failed")
		return
	}

	d := mailer.Data{
		RecipientName: recipient.Name,
		FromName:      sender.Name,
		Subject:       n.Subject,
		Ref:           n.Ref,
	}
	err = s.mailer.Send(recipient.Email, mailer.TemplateFor(n.Kind), d)
	metrics.NotificationSent(n.Kind, "email", err == nil)
	if err != nil {
		log.WithError(err).Error("notification email failed")
	}
}

// background runs fn on its own goroutine; Wait blocks until all of them end.
func (s *Service) background(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				s.log.WithField("panic", err).Error("notification delivery panicked")
			}
		}()
		fn()
	}()
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// List returns uid's notifications, newest first.
func (s *Service) List(ctx context.Context, uid int64, limit int) ([]data.Notification, error) {
	if uid == 0 {
		return nil, data.ErrForbidden
	}
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	return s.store.ByUser(ctx, uid, limit)
}

func (s *Service) MarkRead(ctx context.Context, uid int64) (int64, error) {
	if uid == 0 {
		return 0, data.ErrForbidden
	}
	return s.store.MarkRead(ctx, uid)
}
