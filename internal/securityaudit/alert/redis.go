// Package alert delivers high-risk security events to on-call tooling.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"courtside/internal/securityaudit"
)

const (
	// Channel is the pub/sub channel alerts are published on.
	Channel = "security:alerts"
	// counterTTL bounds how long a per-actor alert counter lives after its
	// last increment.
	counterTTL = 24 * time.Hour
)

// RedisClient is the subset of the go-redis client used for alerting.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Alert is the published message.
type Alert struct {
	EventID   string                  `json:"eventId"`
	Type      securityaudit.EventType `json:"type"`
	RiskLevel securityaudit.RiskLevel `json:"riskLevel"`
	ActorID   string                  `json:"actorId"`
	ActorRole string                  `json:"actorRole"`
	Action    string                  `json:"action"`
	Resource  string                  `json:"resource"`
	Timestamp time.Time               `json:"timestamp"`
	Count     int64                   `json:"count"` // alerts for this actor in the last day
}

// RedisAlerter publishes high-risk events and counts them per actor. It is
// meant to be installed as the audit log's high-risk handler; failures are
// logged and never reach the recorder.
type RedisAlerter struct {
	client RedisClient
	logger *slog.Logger
}

// NewRedisAlerter creates an alerter. A nil logger uses slog.Default.
func NewRedisAlerter(client RedisClient, logger *slog.Logger) (*RedisAlerter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisAlerter{client: client, logger: logger}, nil
}

// CounterKey is the Redis key counting alerts raised for actorID.
func CounterKey(actorID string) string {
	return Channel + ":" + actorID
}

// Observe implements securityaudit.Observer.
func (a *RedisAlerter) Observe(ctx context.Context, e securityaudit.SecurityEvent) {
	key := CounterKey(e.ActorID)
	count, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		a.logger.WarnContext(ctx, "failed to count security alert", "event_id", e.ID, "error", err)
	} else if err := a.client.Expire(ctx, key, counterTTL).Err(); err != nil {
		a.logger.WarnContext(ctx, "failed to set security alert counter expiry", "event_id", e.ID, "error", err)
	}

	payload, err := json.Marshal(Alert{
		EventID:   e.ID,
		Type:      e.Type,
		RiskLevel: e.RiskLevel,
		ActorID:   e.ActorID,
		ActorRole: e.ActorRole,
		Action:    e.Action,
		Resource:  e.Resource,
		Timestamp: e.Timestamp,
		Count:     count,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to encode security alert", "event_id", e.ID, "error", err)
		return
	}
	if err := a.client.Publish(ctx, Channel, payload).Err(); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish security alert", "event_id", e.ID, "error", err)
	}
}
