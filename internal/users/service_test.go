package users

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlequingg/nearhelp/internal/auth"
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

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newService(t *testing.T) (*Service, *storage.Store, *recordingNotifier, *auth.Tokens) {
	t.Helper()
	store := storagetest.Open(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	tokens := auth.NewTokens("test-secret-test-secret", time.Hour)
	n := &recordingNotifier{}
	return New(store.Users, tokens, n, log), store, n, tokens
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _, _, tokens := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Ada Lovelace ", "Ada@Example.com", "correct horse")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, []byte("correct horse"), u.PasswordHash)

	session, err := svc.Authenticate(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, session.User.ID)
	assert.True(t, session.Expires.After(time.Now()))

	id, err := tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, data.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, data.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "not-an-email", "short")
	var verr *data.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")

	_, err = svc.Register(ctx, "Ada", "ada@example.com", "long enough")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Ada Two", "ada@example.com", "long enough")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, data.ErrDuplicateEmail.Error(), verr.Fields["email"])
}

func TestFollow(t *testing.T) {
	svc, store, n, _ := newService(t)
	ada := storagetest.User(t, store, "ada")
	grace := storagetest.User(t, store, "grace")
	ctx := context.Background()

	require.NoError(t, svc.Follow(ctx, ada.ID, grace.ID))
	require.NoError(t, svc.Follow(ctx, ada.ID, grace.ID))
	assert.Equal(t, 1, n.count())
	assert.Equal(t, data.KindFollow, n.sent[0].Kind)
	assert.Equal(t, grace.ID, n.sent[0].UserID)

	ok, err := svc.IsFollowing(ctx, ada.ID, grace.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsFollowing(ctx, grace.ID, ada.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	profile, err := svc.Profile(ctx, grace.ID)
	require.NoError(t, err)
	assert.Equal(t, []data.UserRef{{ID: ada.ID, Name: "ada"}}, profile.Followers)
	assert.Empty(t, profile.Following)

	ids, err := svc.Following(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{grace.ID}, ids)
}

func TestFollowRejected(t *testing.T) {
	svc, store, n, _ := newService(t)
	ada := storagetest.User(t, store, "ada")
	ctx := context.Background()

	err := svc.Follow(ctx, ada.ID, ada.ID)
	assert.True(t, data.IsValidation(err))

	err = svc.Follow(ctx, ada.ID, ada.ID+100)
	assert.ErrorIs(t, err, data.ErrNotFound)

	err = svc.Follow(ctx, 0, ada.ID)
	assert.ErrorIs(t, err, data.ErrForbidden)

	assert.Zero(t, n.count())
}

func TestConcurrentFollowsKeepOneEdge(t *testing.T) {
	svc, store, n, _ := newService(t)
	ada := storagetest.User(t, store, "ada")
	grace := storagetest.User(t, store, "grace")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Follow(ctx, ada.ID, grace.ID))
		}()
	}
	wg.Wait()

	followers, err := svc.Followers(ctx, grace.ID)
	require.NoError(t, err)
	assert.Len(t, followers, 1)
	assert.Equal(t, 1, n.count())
}

func TestUnfollow(t *testing.T) {
	svc, store, _, _ := newService(t)
	ada := storagetest.User(t, store, "ada")
	grace := storagetest.User(t, store, "grace")
	ctx := context.Background()

	require.NoError(t, svc.Unfollow(ctx, ada.ID, grace.ID))

	require.NoError(t, svc.Follow(ctx, ada.ID, grace.ID))
	require.NoError(t, svc.Unfollow(ctx, ada.ID, grace.ID))
	require.NoError(t, svc.Unfollow(ctx, ada.ID, grace.ID))

	following, err := svc.FollowingUsers(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, following)

	_, err = svc.Followers(ctx, grace.ID+100)
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestRename(t *testing.T) {
	svc, store, _, _ := newService(t)
	ada := storagetest.User(t, store, "ada")
	ctx := context.Background()

	u, err := svc.Rename(ctx, ada.ID, "Countess", ada.Version)
	require.NoError(t, err)
	assert.Equal(t, "Countess", u.Name)
	assert.Equal(t, ada.Version+1, u.Version)

	_, err = svc.Rename(ctx, ada.ID, "Stale", ada.Version)
	assert.ErrorIs(t, err, data.ErrConflict)

	_, err = svc.Rename(ctx, ada.ID, " ", u.Version)
	assert.True(t, data.IsValidation(err))
}
