package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/storage"
	"github.com/harlequingg/nearhelp/internal/storage/storagetest"
)

func TestOpenRejectsUnreachableDatabase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := storage.Open(ctx, storage.Config{DSN: "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"})
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	s := storagetest.Open(t)
	ctx := context.Background()
	ada := storagetest.User(t, s, "ada")

	got, err := s.Users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)
	assert.Equal(t, 1, got.Version)
	assert.True(t, ada.CreatedAt.Equal(got.CreatedAt))

	_, err = s.Users.GetByID(ctx, ada.ID+100)
	assert.ErrorIs(t, err, data.ErrNotFound)

	dup := &data.User{Name: "ada2", Email: "ada@example.com", PasswordHash: []byte("x")}
	assert.ErrorIs(t, s.Users.Insert(ctx, dup), data.ErrDuplicateEmail)

	got.Name = "Ada"
	require.NoError(t, s.Users.Update(ctx, got))
	assert.Equal(t, 2, got.Version)

	stale := *ada
	stale.Name = "stale"
	assert.ErrorIs(t, s.Users.Update(ctx, &stale), data.ErrConflict)

	ok, err := s.Users.Exists(ctx, ada.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFollowEdges(t *testing.T) {
	s := storagetest.Open(t)
	ctx := context.Background()
	ada := storagetest.User(t, s, "ada")
	grace := storagetest.User(t, s, "grace")
	bob := storagetest.User(t, s, "bob")

	created, err := s.Users.Follow(ctx, ada.ID, grace.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Users.Follow(ctx, ada.ID, grace.ID)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = s.Users.Follow(ctx, bob.ID, grace.ID)
	require.NoError(t, err)

	_, err = s.Users.Follow(ctx, ada.ID, 999)
	assert.ErrorIs(t, err, data.ErrNotFound)

	followers, err := s.Users.Followers(ctx, grace.ID)
	require.NoError(t, err)
	assert.Equal(t, []data.UserRef{{ID: ada.ID, Name: "ada"}, {ID: bob.ID, Name: "bob"}}, followers)

	following, err := s.Users.Following(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []data.UserRef{{ID: grace.ID, Name: "grace"}}, following)

	removed, err := s.Users.Unfollow(ctx, ada.ID, grace.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Users.Unfollow(ctx, ada.ID, grace.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	ids, err := s.Users.FollowingIDs(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTaskQueries(t *testing.T) {
	s := storagetest.Open(t)
	ctx := context.Background()
	ada := storagetest.User(t, s, "ada")
	grace := storagetest.User(t, s, "grace")

	cheap := storagetest.Task(t, s, ada, "cheap", 3*time.Hour, 5)
	storagetest.Task(t, s, ada, "free", time.Hour, 0)
	pricey := storagetest.Task(t, s, grace, "pricey", 2*time.Hour, 50)

	bounty, err := s.Tasks.WithBounty(ctx)
	require.NoError(t, err)
	require.Len(t, bounty, 2)
	assert.Equal(t, cheap.ID, bounty[0].ID)
	assert.Equal(t, pricey.ID, bounty[1].ID)
	assert.Equal(t, "grace", bounty[1].Owner.Name)

	all, err := s.Tasks.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "free", all[0].Title)

	both, err := s.Tasks.ByOwners(ctx, []int64{ada.ID, grace.ID})
	require.NoError(t, err)
	assert.Len(t, both, 3)

	none, err := s.Tasks.ByOwners(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.Tasks.Get(ctx, 999)
	assert.ErrorIs(t, err, data.ErrNotFound)

	orphan := &data.Task{Title: "orphan", Due: time.Now(), UserID: 999}
	assert.ErrorIs(t, s.Tasks.Insert(ctx, orphan), data.ErrNotFound)

	changed, err := s.Tasks.MarkCompleted(ctx, cheap.ID, grace.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.Tasks.MarkCompleted(ctx, cheap.ID, ada.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Tasks.MarkCompleted(ctx, cheap.ID, ada.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHelperLedger(t *testing.T) {
	s := storagetest.Open(t)
	ctx := context.Background()
	owner := storagetest.User(t, s, "owner")
	helper := storagetest.User(t, s, "helper")
	task := storagetest.Task(t, s, owner, "shed", time.Hour, 0)

	h := &data.Helper{TaskID: task.ID, HelperID: helper.ID, CreatorID: owner.ID}
	created, err := s.Helpers.Insert(ctx, h)
	require.NoError(t, err)
	assert.True(t, created)

	again := &data.Helper{TaskID: task.ID, HelperID: helper.ID, CreatorID: owner.ID}
	created, err = s.Helpers.Insert(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, h.ID, again.ID)

	_, err = s.Helpers.Insert(ctx, &data.Helper{TaskID: 999, HelperID: helper.ID, CreatorID: owner.ID})
	assert.ErrorIs(t, err, data.ErrNotFound)

	changed, err := s.Helpers.MarkCompleted(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	first, err := s.Helpers.Get(ctx, h.ID)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedOn)

	changed, err = s.Helpers.MarkCompleted(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	second, err := s.Helpers.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, first.CompletedOn.Equal(*second.CompletedOn))

	done, err := s.Helpers.ByVolunteer(ctx, helper.ID, true)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "shed", done[0].TaskTitle)
	assert.Equal(t, "helper", done[0].Volunteer.Name)
}

func TestCommentThreads(t *testing.T) {
	s := storagetest.Open(t)
	ctx := context.Background()
	owner := storagetest.User(t, s, "owner")
	t1 := storagetest.Task(t, s, owner, "one", time.Hour, 0)
	t2 := storagetest.Task(t, s, owner, "two", time.Hour, 0)

	for _, c := range []struct {
		task    int64
		content string
	}{{t1.ID, "a"}, {t1.ID, "b"}, {t2.ID, "c"}} {
		require.NoError(t, s.Comments.Insert(ctx, &data.Comment{TaskID: c.task, UserID: owner.ID, Content: c.content}))
	}

	err := s.Comments.Insert(ctx, &data.Comment{TaskID: 999, UserID: owner.ID, Content: "lost"})
	assert.ErrorIs(t, err, data.ErrNotFound)

	thread, err := s.Comments.ByTask(ctx, t1.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "b", thread[0].Content)

	grouped, err := s.Comments.ByTasks(ctx, []int64{t1.ID, t2.ID})
	require.NoError(t, err)
	require.Len(t, grouped[t1.ID], 2)
	assert.Equal(t, "a", grouped[t1.ID][0].Content)
	assert.Len(t, grouped[t2.ID], 1)

	c, err := s.Comments.Get(ctx, thread[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "owner", c.Author.Name)

	_, err = s.Comments.Get(ctx, 999)
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestNotificationFeed(t *testing.T) {
	s := storagetest.Open(t)
	ctx := context.Background()
	ada := storagetest.User(t, s, "ada")
	grace := storagetest.User(t, s, "grace")

	for i := 0; i < 3; i++ {
		n := &data.Notification{UserID: grace.ID, FromID: ada.ID, Kind: data.KindFollow, Ref: int64(i)}
		require.NoError(t, s.Notifications.Insert(ctx, n))
	}

	list, err := s.Notifications.ByUser(ctx, grace.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].Ref)
	assert.Equal(t, "ada", list[0].From.Name)

	n, err := s.Notifications.MarkRead(ctx, grace.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestByVolunteerOrdersByCompletion(t *testing.T) {
	s := storagetest.Open(t)
	ctx := context.Background()
	owner := storagetest.User(t, s, "owner")
	helper := storagetest.User(t, s, "helper")

	var offers []*data.Helper
	for _, title := range []string{"shed", "lawn", "gutter"} {
		task := storagetest.Task(t, s, owner, title, time.Hour, 0)
		h := &data.Helper{TaskID: task.ID, HelperID: helper.ID, CreatorID: owner.ID}
		_, err := s.Helpers.Insert(ctx, h)
		require.NoError(t, err)
		offers = append(offers, h)
	}

	// complete in reverse creation order so id order and completion order differ
	for i := len(offers) - 1; i >= 0; i-- {
		changed, err := s.Helpers.MarkCompleted(ctx, offers[i].ID)
		require.NoError(t, err)
		require.True(t, changed)
		time.Sleep(5 * time.Millisecond)
	}

	done, err := s.Helpers.ByVolunteer(ctx, helper.ID, true)
	require.NoError(t, err)
	require.Len(t, done, 3)
	for i := 1; i < len(done); i++ {
		require.NotNil(t, done[i].CompletedOn)
		assert.False(t, done[i].CompletedOn.Before(*done[i-1].CompletedOn), "completed_on must not decrease")
	}
	assert.Equal(t, []string{"gutter", "lawn", "shed"}, []string{done[0].TaskTitle, done[1].TaskTitle, done[2].TaskTitle})
}
