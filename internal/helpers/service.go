// Package helpers keeps the ledger of volunteers offering help on tasks.
package helpers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/markup"
	"github.com/harlequingg/nearhelp/internal/metrics"
)

type Store interface {
	Insert(ctx context.Context, h *data.Helper) (bool, error)
	Get(ctx context.Context, id int64) (*data.Helper, error)
	ByTask(ctx context.Context, taskID int64) ([]data.Helper, error)
	ByVolunteer(ctx context.Context, uid int64, completed bool) ([]data.Helper, error)
	HasOpen(ctx context.Context, uid, taskID int64) (bool, error)
	MarkNotified(ctx context.Context, id int64) (bool, error)
	MarkAccepted(ctx context.Context, id int64) (bool, error)
	MarkCompleted(ctx context.Context, id int64) (bool, error)
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
		log:      log.WithField("component", "helpers"),
		now:      time.Now,
	}
}

// Offer records volunteerID as a helper on taskID. Owners cannot help on
// their own tasks. Offering twice returns the first offer unchanged.
func (s *Service) Offer(ctx context.Context, taskID, volunteerID int64) (*data.Helper, error) {
	if volunteerID == 0 {
		return nil, data.ErrForbidden
	}
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		metrics.HelpOffer("rejected")
		return nil, err
	}
	if task.UserID == volunteerID {
		metrics.HelpOffer("rejected")
		return nil, data.ErrForbidden
	}

	h := &data.Helper{TaskID: task.ID, HelperID: volunteerID, CreatorID: task.UserID}
	created, err := s.store.Insert(ctx, h)
	if err != nil {
		metrics.HelpOffer("rejected")
		return nil, err
	}
	if !created {
		metrics.HelpOffer("repeated")
		return s.store.Get(ctx, h.ID)
	}
	metrics.HelpOffer("created")

	log := s.log.WithFields(logrus.Fields{"task_id": task.ID, "helper_id": h.ID})
	log.Info("help offered")
	if s.notifier != nil {
		_, err := s.notifier.Notify(ctx, data.Notification{
			UserID:  task.UserID,
			FromID:  volunteerID,
			Kind:    data.KindHelpOffer,
			Ref:     task.ID,
			Subject: task.Title,
		})
		if err != nil {
			log.WithError(err).Error("help offer notification failed")
		} else if _, err := s.store.MarkNotified(ctx, h.ID); err != nil {
			log.WithError(err).Warn("mark helper notified failed")
		}
	}
	return s.store.Get(ctx, h.ID)
}

// ListForTask returns the offers on taskID, oldest first.
func (s *Service) ListForTask(ctx context.Context, taskID int64) ([]data.Helper, error) {
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.ByTask(ctx, taskID)
}

// IsHelping reports whether userID has an offer that is not completed yet,
// on taskID or, when taskID is 0, on any task.
func (s *Service) IsHelping(ctx context.Context, userID, taskID int64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	return s.store.HasOpen(ctx, userID, taskID)
}

// Activity lists userID's offers in the given completion state with their
// task titles, earliest completion first.
func (s *Service) Activity(ctx context.Context, userID int64, completed bool) ([]data.Helper, error) {
	list, err := s.store.ByVolunteer(ctx, userID, completed)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		if on := list[i].CompletedOn; on != nil {
			list[i].PrettyCompletedOn = markup.Ago(*on, now)
		}
	}
	return list, nil
}

// Accept marks an offer as taken up by the task owner.
func (s *Service) Accept(ctx context.Context, helperID, actorID int64) (*data.Helper, error) {
	return s.transition(ctx, helperID, actorID, s.store.MarkAccepted)
}

// MarkCompleted marks an offer as done. completed_on is set once, by the
// first call.
func (s *Service) MarkCompleted(ctx context.Context, helperID, actorID int64) (*data.Helper, error) {
	return s.transition(ctx, helperID, actorID, s.store.MarkCompleted)
}

func (s *Service) transition(ctx context.Context, helperID, actorID int64, mark func(context.Context, int64) (bool, error)) (*data.Helper, error) {
	h, err := s.store.Get(ctx, helperID)
	if err != nil {
		return nil, err
	}
	if h.CreatorID != actorID {
		return nil, data.ErrForbidden
	}
	if _, err := mark(ctx, helperID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, helperID)
}
