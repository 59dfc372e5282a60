// Package comments implements the discussion thread attached to each task.
package comments

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/markup"
	"github.com/harlequingg/nearhelp/internal/metrics"
	"github.com/harlequingg/nearhelp/internal/validator"
)

const maxContentLength = 10000

type Store interface {
	Insert(ctx context.Context, c *data.Comment) error
	Get(ctx context.Context, id int64) (*data.Comment, error)
	ByTask(ctx context.Context, taskID int64) ([]data.Comment, error)
}

type Tasks interface {
	Get(ctx context.Context, id int64) (*data.TaskView, error)
}

type Notifier interface {
	Notify(ctx context.Context, n data.Notification) (*data.Notification, error)
}

type Service struct {
	store    Store
	tasks    Tasks
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

func New(store Store, tasks Tasks, notifier Notifier, log *logrus.Logger) *Service {
	return &Service{
		store:    store,
		tasks:    tasks,
		notifier: notifier,
		log:      log.WithField("component", "comments"),
		now:      time.Now,
	}
}

// Add posts content on taskID as authorID and tells the task owner about it.
func (s *Service) Add(ctx context.Context, taskID, authorID int64, content string) (*data.Comment, error) {
	if authorID == 0 {
		return nil, data.ErrForbidden
	}

	v := validator.New()
	v.Check(strings.TrimSpace(content) != "", "content", "must be provided")
	v.Check(utf8.RuneCountInString(content) <= maxContentLength, "content", "must be atmost 10000 characters")
	if err := v.Err(); err != nil {
		return nil, err
	}

	c := &data.Comment{TaskID: taskID, UserID: authorID, Content: content}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, err
	}
	metrics.CommentAdded()

	posted, err := s.store.Get(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.notifyOwner(ctx, posted)

	Render(posted, s.now())
	return posted, nil
}

func (s *Service) notifyOwner(ctx context.Context, c *data.Comment) {
	if s.notifier == nil {
		return
	}
	log := s.log.WithFields(logrus.Fields{"task_id": c.TaskID, "comment_id": c.ID})

	task, err := s.tasks.Get(ctx, c.TaskID)
	if err != nil {
		log.WithError(err).Warn("comment task lookup failed")
		return
	}
	_, err = s.notifier.Notify(ctx, data.Notification{
		UserID:  task.UserID,
		FromID:  c.UserID,
		Kind:    data.KindComment,
		Ref:     task.ID,
		Subject: task.Title,
	})
	if err != nil {
		log.WithError(err).Error("comment notification failed")
	}
}

// List returns the thread of taskID, newest first.
func (s *Service) List(ctx context.Context, taskID int64) ([]data.Comment, error) {
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		return nil, err
	}

	thread, err := s.store.ByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range thread {
		Render(&thread[i], now)
	}
	return thread, nil
}

// Render fills the display fields of c.
func Render(c *data.Comment, now time.Time) {
	c.ContentHTML = markup.Paragraphs(c.Content)
	c.PrettyAt = markup.Ago(c.CreatedAt, now)
}
