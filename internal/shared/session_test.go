package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client, time.Hour), mr
}

func TestSessionStoreLifecycle(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, Session{UserID: 5, Username: "ines"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, time.Hour, mr.TTL("session:"+sess.ID))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.UserID)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.NoError(t, store.Delete(ctx, sess.ID))
}

func TestSessionStoreExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	sess, err := store.Create(context.Background(), Session{UserID: 1})
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(context.Background(), sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreDeleteUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	a, err := store.Create(ctx, Session{UserID: 9})
	require.NoError(t, err)
	b, err := store.Create(ctx, Session{UserID: 9})
	require.NoError(t, err)
	other, err := store.Create(ctx, Session{UserID: 10})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, 9))
	for _, id := range []string{a.ID, b.ID} {
		_, err := store.Get(ctx, id)
		require.ErrorIs(t, err, ErrSessionNotFound)
	}
	_, err = store.Get(ctx, other.ID)
	require.NoError(t, err)
}

func TestSessionRequiresUser(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Create(context.Background(), Session{})
	require.Error(t, err)
}
