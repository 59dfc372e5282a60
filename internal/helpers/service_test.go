package helpers

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/storage"
	"github.com/harlequingg/nearhelp/internal/storage/storagetest"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []data.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n data.Notification) (*data.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return &n, nil
}

type fixture struct {
	svc      *Service
	store    *storage.Store
	notifier *recordingNotifier
	owner    *data.User
	helper   *data.User
	task     *data.Task
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := storagetest.Open(t)
	owner := storagetest.User(t, store, "owner")
	helper := storagetest.User(t, store, "helper")
	task := storagetest.Task(t, store, owner, "Paint the shed", 24*time.Hour, 25)

	log := logrus.New()
	log.SetOutput(io.Discard)
	n := &recordingNotifier{}
	return fixture{
		svc:      New(store.Helpers, store.Tasks, n, log),
		store:    store,
		notifier: n,
		owner:    owner,
		helper:   helper,
		task:     task,
	}
}

func TestOffer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	h, err := f.svc.Offer(ctx, f.task.ID, f.helper.ID)
	require.NoError(t, err)
	assert.NotZero(t, h.ID)
	assert.Equal(t, f.owner.ID, h.CreatorID)
	assert.Equal(t, "helper", h.Volunteer.Name)
	assert.Equal(t, "Paint the shed", h.TaskTitle)
	assert.True(t, h.Notified)
	assert.False(t, h.Accepted)
	assert.False(t, h.Completed)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.owner.ID, f.notifier.sent[0].UserID)
	assert.Equal(t, f.helper.ID, f.notifier.sent[0].FromID)
	assert.Equal(t, data.KindHelpOffer, f.notifier.sent[0].Kind)
}

func TestOfferTwiceReturnsExisting(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.Offer(ctx, f.task.ID, f.helper.ID)
	require.NoError(t, err)
	second, err := f.svc.Offer(ctx, f.task.ID, f.helper.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.notifier.sent, 1)

	list, err := f.svc.ListForTask(ctx, f.task.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConcurrentOffersCreateOneRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 6)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := f.svc.Offer(ctx, f.task.ID, f.helper.ID)
			if assert.NoError(t, err) {
				ids[i] = h.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	list, err := f.svc.ListForTask(ctx, f.task.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOfferRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Offer(ctx, f.task.ID, f.owner.ID)
	assert.ErrorIs(t, err, data.ErrForbidden)

	_, err = f.svc.Offer(ctx, f.task.ID+100, f.helper.ID)
	assert.ErrorIs(t, err, data.ErrNotFound)

	_, err = f.svc.Offer(ctx, f.task.ID, 0)
	assert.ErrorIs(t, err, data.ErrForbidden)

	assert.Empty(t, f.notifier.sent)
}

func TestIsHelping(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := storagetest.Task(t, f.store, f.owner, "Other", time.Hour, 0)

	ok, err := f.svc.IsHelping(ctx, f.helper.ID, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	h, err := f.svc.Offer(ctx, f.task.ID, f.helper.ID)
	require.NoError(t, err)

	ok, err = f.svc.IsHelping(ctx, f.helper.ID, f.task.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.IsHelping(ctx, f.helper.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.IsHelping(ctx, f.helper.ID, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.MarkCompleted(ctx, h.ID, f.owner.ID)
	require.NoError(t, err)

	ok, err = f.svc.IsHelping(ctx, f.helper.ID, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.IsHelping(ctx, 0, f.task.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcceptAndComplete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	h, err := f.svc.Offer(ctx, f.task.ID, f.helper.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, h.ID, f.helper.ID)
	assert.ErrorIs(t, err, data.ErrForbidden)

	accepted, err := f.svc.Accept(ctx, h.ID, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)

	done, err := f.svc.MarkCompleted(ctx, h.ID, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedOn)

	again, err := f.svc.MarkCompleted(ctx, h.ID, f.owner.ID)
	require.NoError(t, err)
	require.NotNil(t, again.CompletedOn)
	assert.True(t, done.CompletedOn.Equal(*again.CompletedOn))

	_, err = f.svc.MarkCompleted(ctx, h.ID+100, f.owner.ID)
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestActivity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	second := storagetest.Task(t, f.store, f.owner, "Mow the lawn", 2*time.Hour, 0)

	h1, err := f.svc.Offer(ctx, f.task.ID, f.helper.ID)
	require.NoError(t, err)
	_, err = f.svc.Offer(ctx, second.ID, f.helper.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkCompleted(ctx, h1.ID, f.owner.ID)
	require.NoError(t, err)

	open, err := f.svc.Activity(ctx, f.helper.ID, false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Mow the lawn", open[0].TaskTitle)
	assert.Empty(t, open[0].PrettyCompletedOn)

	done, err := f.svc.Activity(ctx, f.helper.ID, true)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "Paint the shed", done[0].TaskTitle)
	assert.NotEmpty(t, done[0].PrettyCompletedOn)
}

func TestActivityEarliestCompletionFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lawn := storagetest.Task(t, f.store, f.owner, "Mow the lawn", 2*time.Hour, 0)
	gutter := storagetest.Task(t, f.store, f.owner, "Clear the gutter", 3*time.Hour, 0)

	var ids []int64
	for _, id := range []int64{f.task.ID, lawn.ID, gutter.ID} {
		h, err := f.svc.Offer(ctx, id, f.helper.ID)
		require.NoError(t, err)
		ids = append(ids, h.ID)
	}
	for i := len(ids) - 1; i >= 0; i-- {
		_, err := f.svc.MarkCompleted(ctx, ids[i], f.owner.ID)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	done, err := f.svc.Activity(ctx, f.helper.ID, true)
	require.NoError(t, err)
	require.Len(t, done, 3)
	titles := make([]string, len(done))
	for i, h := range done {
		titles[i] = h.TaskTitle
		if i > 0 {
			assert.False(t, h.CompletedOn.Before(*done[i-1].CompletedOn))
		}
	}
	assert.Equal(t, []string{"Clear the gutter", "Mow the lawn", "Paint the shed"}, titles)
}
