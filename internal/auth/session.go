package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is the server-side state behind the sid cookie. Anonymous visitors
// get one too so the CSRF token survives until login.
type Session struct {
	ID        string
	UserID    string
	CSRFToken string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

type SessionStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{Redis: client, TTL: ttl}
}

func sessionKey(id string) string {
	return "session:" + id
}

func userSessionsKey(userID string) string {
	return "user_sessions:" + userID
}

// New returns an unsaved session starting now.
func (s *SessionStore) New(now time.Time) *Session {
	return &Session{
		ID:        NewSessionID(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
}

// Save writes the session hash and, for signed-in sessions, indexes it under
// the owning user so it can be revoked with DeleteByUser.
func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	key := sessionKey(sess.ID)
	data := map[string]interface{}{
		"userId":    sess.UserID,
		"csrfToken": sess.CSRFToken,
		"createdAt": sess.CreatedAt.Unix(),
		"expires":   sess.ExpiresAt.Unix(),
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, ttl)
	if sess.UserID != "" {
		idx := userSessionsKey(sess.UserID)
		pipe.SAdd(ctx, idx, sess.ID)
		pipe.Expire(ctx, idx, s.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	vals, err := s.Redis.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}

	createdUnix, _ := strconv.ParseInt(vals["createdAt"], 10, 64)
	expUnix, _ := strconv.ParseInt(vals["expires"], 10, 64)

	sess := &Session{
		ID:        id,
		UserID:    vals["userId"],
		CSRFToken: vals["csrfToken"],
		CreatedAt: time.Unix(createdUnix, 0),
		ExpiresAt: time.Unix(expUnix, 0),
	}

	if !sess.ExpiresAt.After(time.Now()) {
		_ = s.Delete(ctx, id)
		return nil, nil
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	userID, err := s.Redis.HGet(ctx, sessionKey(id), "userId").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.Redis.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	if userID != "" {
		pipe.SRem(ctx, userSessionsKey(userID), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteByUser revokes every session that belongs to userID.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	idx := userSessionsKey(userID)
	ids, err := s.Redis.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}

	pipe := s.Redis.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKey(id))
	}
	pipe.Del(ctx, idx)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SessionStore) ListForUser(ctx context.Context, userID string) ([]Session, error) {
	ids, err := s.Redis.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	var sessions []Session
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			s.Redis.SRem(ctx, userSessionsKey(userID), id)
			continue
		}
		if sess.UserID == userID {
			sessions = append(sessions, *sess)
		}
	}
	return sessions, nil
}

func NewSessionID() string {
	return uuid.NewString()
}
