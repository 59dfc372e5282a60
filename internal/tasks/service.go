// Package tasks implements the task board: posting help requests and
// listing them through the nearby, bounty, mine and friends views.
package tasks

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/harlequingg/nearhelp/internal/comments"
	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/markup"
	"github.com/harlequingg/nearhelp/internal/metrics"
	"github.com/harlequingg/nearhelp/internal/validator"
)

type View string

const (
	ViewNearby  View = "nearby"
	ViewBounty  View = "bounty"
	ViewMine    View = "mine"
	ViewFriends View = "friends"
	ViewAll     View = "all"
)

// ParseView accepts the view names that can be requested by name.
func ParseView(s string) (View, bool) {
	switch v := View(s); v {
	case ViewNearby, ViewBounty, ViewMine, ViewFriends, ViewAll:
		return v, true
	}
	return "", false
}

// ListParams narrows a view. User is the caller. Users overrides the
// caller's following set for the friends view.
type ListParams struct {
	User  int64
	Users []int64
	Near  *Near
}

// Input is what a client may set on a task.
type Input struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Due         time.Time `json:"due"`
	Location    string    `json:"location"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
	WillPay     bool      `json:"willpay"`
	Bounty      *float64  `json:"bounty"`
	Version     *int      `json:"version,omitempty"`
}

type Store interface {
	Insert(ctx context.Context, t *data.Task) error
	Get(ctx context.Context, id int64) (*data.TaskView, error)
	All(ctx context.Context) ([]data.TaskView, error)
	WithBounty(ctx context.Context) ([]data.TaskView, error)
	ByOwner(ctx context.Context, uid int64) ([]data.TaskView, error)
	ByOwners(ctx context.Context, uids []int64) ([]data.TaskView, error)
	Summaries(ctx context.Context, uid int64) ([]data.TaskSummary, error)
	Update(ctx context.Context, t *data.Task) error
	MarkCompleted(ctx context.Context, id, ownerID int64) (bool, error)
}

type CommentSource interface {
	ByTasks(ctx context.Context, taskIDs []int64) (map[int64][]data.Comment, error)
}

type FollowSource interface {
	FollowingIDs(ctx context.Context, id int64) ([]int64, error)
}

type Service struct {
	store    Store
	comments CommentSource
	follows  FollowSource
	log      *logrus.Entry
	now      func() time.Time
}

func New(store Store, thread CommentSource, follows FollowSource, log *logrus.Logger) *Service {
	return &Service{
		store:    store,
		comments: thread,
		follows:  follows,
		log:      log.WithField("component", "tasks"),
		now:      time.Now,
	}
}

// List returns the tasks of view with owners and comments resolved. An
// unrecognised view lists every task.
func (s *Service) List(ctx context.Context, view View, params ListParams) ([]data.TaskView, error) {
	var (
		views []data.TaskView
		err   error
	)
	switch view {
	case ViewBounty:
		views, err = s.store.WithBounty(ctx)
	case ViewMine:
		if params.User == 0 {
			return nil, data.ErrForbidden
		}
		views, err = s.store.ByOwner(ctx, params.User)
	case ViewFriends:
		users := params.Users
		if len(users) == 0 {
			if params.User == 0 {
				return nil, data.ErrForbidden
			}
			users, err = s.follows.FollowingIDs(ctx, params.User)
			if err != nil {
				return nil, err
			}
		}
		views, err = s.store.ByOwners(ctx, users)
	case ViewNearby:
		views, err = s.store.All(ctx)
		if err == nil && params.Near != nil {
			views = filterNear(views, params.Near)
		}
	default:
		views, err = s.store.All(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := s.decorate(ctx, views); err != nil {
		return nil, err
	}
	return views, nil
}

func filterNear(views []data.TaskView, near *Near) []data.TaskView {
	kept := views[:0]
	for _, v := range views {
		if near.contains(v.Lat, v.Lng) {
			kept = append(kept, v)
		}
	}
	return kept
}

func (s *Service) Get(ctx context.Context, id int64) (*data.TaskView, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	views := []data.TaskView{*v}
	if err := s.decorate(ctx, views); err != nil {
		return nil, err
	}
	return &views[0], nil
}

// decorate attaches comments and display fields to every view in place.
func (s *Service) decorate(ctx context.Context, views []data.TaskView) error {
	if len(views) == 0 {
		return nil
	}
	ids := make([]int64, len(views))
	for i := range views {
		ids[i] = views[i].ID
	}
	grouped, err := s.comments.ByTasks(ctx, ids)
	if err != nil {
		return err
	}

	now := s.now()
	for i := range views {
		v := &views[i]
		v.Comments = grouped[v.ID]
		if v.Comments == nil {
			v.Comments = []data.Comment{}
		}
		for j := range v.Comments {
			comments.Render(&v.Comments[j], now)
		}
		v.DescriptionHTML = markup.Paragraphs(v.Description)
		v.DateMonthDay = markup.DayMonth(v.Due)
	}
	return nil
}

// Create posts a new task owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, in Input) (*data.Task, error) {
	if ownerID == 0 {
		return nil, data.ErrForbidden
	}
	t := &data.Task{UserID: ownerID}
	if err := apply(t, in); err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return nil, err
	}
	metrics.TaskCreated()
	s.log.WithFields(logrus.Fields{"task_id": t.ID, "user_id": ownerID}).Info("task created")
	return t, nil
}

// Update replaces the editable fields of a task. Only the owner may edit,
// and the edit is rejected with data.ErrConflict when in.Version is stale.
func (s *Service) Update(ctx context.Context, id, actorID int64, in Input) (*data.TaskView, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != actorID {
		return nil, data.ErrForbidden
	}

	t := current.Task
	if in.Version != nil {
		t.Version = *in.Version
	}
	if err := apply(&t, in); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, &t); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetCompleted closes a task. Only the owner may do so and a completed task
// stays completed.
func (s *Service) SetCompleted(ctx context.Context, id, actorID int64) (*data.TaskView, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != actorID {
		return nil, data.ErrForbidden
	}
	if _, err := s.store.MarkCompleted(ctx, id, actorID); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ListByUser returns (id, title) of every task posted by userID.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]data.TaskSummary, error) {
	return s.store.Summaries(ctx, userID)
}

// apply validates in and copies it onto t.
func apply(t *data.Task, in Input) error {
	v := validator.New()
	v.Check(strings.TrimSpace(in.Title) != "", "title", "must be provided")
	v.Check(utf8.RuneCountInString(in.Title) <= 255, "title", "must be atmost 255 characters")
	v.Check(utf8.RuneCountInString(in.Location) <= 255, "location", "must be atmost 255 characters")
	v.Check(!in.Due.IsZero(), "due", "must be provided")
	v.Check(in.Lat != nil, "lat", "must be provided")
	v.Check(in.Lng != nil, "lng", "must be provided")
	if in.Lat != nil {
		v.Check(*in.Lat >= -90 && *in.Lat <= 90, "lat", "must be between -90 and 90")
	}
	if in.Lng != nil {
		v.Check(*in.Lng >= -180 && *in.Lng <= 180, "lng", "must be between -180 and 180")
	}

	var bounty float64
	if in.Bounty != nil {
		bounty = *in.Bounty
	}
	v.Check(bounty >= 0, "bounty", "must not be negative")
	if in.WillPay {
		v.Check(bounty > 0, "bounty", "must be greater than zero when willing to pay")
	} else {
		bounty = 0
	}
	if err := v.Err(); err != nil {
		return err
	}

	t.Title = strings.TrimSpace(in.Title)
	t.Description = in.Description
	t.Due = in.Due.UTC()
	t.Location = in.Location
	t.Lat = *in.Lat
	t.Lng = *in.Lng
	t.WillPay = in.WillPay
	t.Bounty = bounty
	return nil
}
