package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestSessionStoreSaveAndGet(t *testing.T) {
	mr, client := newRedis(t)
	store := NewSessionStore(client, 12*time.Hour)
	ctx := context.Background()

	sess := store.New(time.Now())
	sess.UserID = "user-1"
	sess.CSRFToken = "token-1"
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "token-1", got.CSRFToken)
	assert.True(t, got.Authenticated())

	assert.True(t, mr.Exists("session:"+sess.ID))
	assert.InDelta(t, (12 * time.Hour).Seconds(), mr.TTL("session:"+sess.ID).Seconds(), 2)
	members, err := mr.Members("user_sessions:user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{sess.ID}, members)
}

func TestSessionStoreAnonymousIsNotIndexed(t *testing.T) {
	mr, client := newRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	sess := store.New(time.Now())
	sess.CSRFToken = "anon-token"
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Authenticated())
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "user_sessions:")
	}
}

func TestSessionStoreGetMissingOrExpired(t *testing.T) {
	mr, client := newRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Get(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := store.New(time.Now())
	require.NoError(t, store.Save(ctx, sess))
	mr.FastForward(2 * time.Hour)

	got, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStoreDelete(t *testing.T) {
	mr, client := newRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	sess := store.New(time.Now())
	sess.UserID = "user-1"
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Delete(ctx, sess.ID))

	assert.False(t, mr.Exists("session:"+sess.ID))
	assert.False(t, mr.Exists("user_sessions:user-1"))

	require.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestSessionStoreDeleteByUser(t *testing.T) {
	_, client := newRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	var mine []string
	for i := 0; i < 3; i++ {
		s := store.New(time.Now())
		s.UserID = "user-1"
		require.NoError(t, store.Save(ctx, s))
		mine = append(mine, s.ID)
	}
	other := store.New(time.Now())
	other.UserID = "user-2"
	require.NoError(t, store.Save(ctx, other))

	list, err := store.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, store.DeleteByUser(ctx, "user-1"))

	for _, id := range mine {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	got, err := store.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	list, err = store.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRateLimiterLocksAfterMaxAttempts(t *testing.T) {
	mr, client := newRedis(t)
	rl := NewRateLimiter(client)
	rl.MaxAttempts = 2
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		locked, _, err := rl.RegisterResetAttempt(ctx, "QA@example.com", "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, locked)
	}

	locked, ttl, err := rl.RegisterResetAttempt(ctx, "qa@example.com", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, locked, "email counter is case-insensitive")
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(resetAttemptTTL + time.Second)
	locked, _, err = rl.RegisterResetAttempt(ctx, "qa@example.com", "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, locked)

	rl.ResetAttempts(ctx, "qa@example.com", "10.0.0.2")
	assert.False(t, mr.Exists("reset_attempts:qa@example.com"))
}

func TestAuditLoggerCapsList(t *testing.T) {
	_, client := newRedis(t)
	audit := &AuditLogger{Redis: client, MaxLen: 3}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, audit.Log(ctx, AuditEvent{EventType: EventLoginRejected, UserID: "user-1", IP: "10.0.0.1"}))
	}
	require.NoError(t, audit.Log(ctx, AuditEvent{EventType: EventPasswordResetRequested, Email: "x@example.com"}))

	events, err := audit.Recent(ctx, "audit:user-1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, EventLoginRejected, events[0].EventType)
	assert.False(t, events[0].Timestamp.IsZero())

	anon, err := audit.Recent(ctx, "audit", 10)
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Equal(t, "x@example.com", anon[0].Email)

	var nilLogger *AuditLogger
	assert.NoError(t, nilLogger.Log(ctx, AuditEvent{EventType: EventLogout}))
}
