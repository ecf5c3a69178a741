package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EventLoginSuccess           = "login.success"
	EventLoginRejected          = "login.rejected"
	EventLogout                 = "logout"
	EventUserRegistered         = "user.registered"
	EventPasswordSet            = "password.set"
	EventPasswordResetRequested = "password.reset_requested"
)

type AuditEvent struct {
	EventType string                 `json:"eventType"`
	UserID    string                 `json:"userId,omitempty"`
	Email     string                 `json:"email,omitempty"`
	IP        string                 `json:"ip"`
	UserAgent string                 `json:"userAgent"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// AuditLogger appends auth events to capped Redis lists: "audit" for events
// without a user and "audit:<userID>" otherwise. A nil logger drops events.
type AuditLogger struct {
	Redis  *redis.Client
	MaxLen int64
}

func (a *AuditLogger) Log(ctx context.Context, e AuditEvent) error {
	if a == nil || a.Redis == nil {
		return nil
	}
	e.Timestamp = time.Now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := "audit"
	if e.UserID != "" {
		key = "audit:" + e.UserID
	}

	pipe := a.Redis.Pipeline()
	pipe.RPush(ctx, key, data)
	if a.MaxLen > 0 {
		pipe.LTrim(ctx, key, -a.MaxLen, -1)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n of the newest events stored under key.
func (a *AuditLogger) Recent(ctx context.Context, key string, n int64) ([]AuditEvent, error) {
	raw, err := a.Redis.LRange(ctx, key, -n, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]AuditEvent, 0, len(raw))
	for _, r := range raw {
		var e AuditEvent
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
