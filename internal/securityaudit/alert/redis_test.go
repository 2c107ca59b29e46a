package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/internal/securityaudit"
)

type fakeRedis struct {
	published [][]byte
	counters  map[string]int64
	ttls      map[string]time.Duration
	incrErr   error
	pubErr    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counters: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	if f.pubErr != nil {
		return redis.NewIntResult(0, f.pubErr)
	}
	f.published = append(f.published, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRedisAlerter(t *testing.T) {
	_, err := NewRedisAlerter(nil, nil)
	require.Error(t, err)
}

func TestObserve(t *testing.T) {
	ev := securityaudit.SecurityEvent{
		ID:        "e1",
		Type:      securityaudit.EventSuspiciousActivity,
		RiskLevel: securityaudit.RiskHigh,
		ActorID:   "u1",
		ActorRole: "system",
	}

	t.Run("publishes with a running count", func(t *testing.T) {
		rdb := newFakeRedis()
		a, err := NewRedisAlerter(rdb, discard())
		require.NoError(t, err)

		a.Observe(context.Background(), ev)
		a.Observe(context.Background(), ev)

		require.Len(t, rdb.published, 2)
		var alert Alert
		require.NoError(t, json.Unmarshal(rdb.published[1], &alert))
		assert.Equal(t, "e1", alert.EventID)
		assert.Equal(t, int64(2), alert.Count)
		assert.Equal(t, 24*time.Hour, rdb.ttls[CounterKey("u1")])
	})

	t.Run("counter failure still publishes", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.incrErr = errors.New("READONLY")
		a, err := NewRedisAlerter(rdb, discard())
		require.NoError(t, err)

		a.Observe(context.Background(), ev)
		assert.Len(t, rdb.published, 1)
	})

	t.Run("publish failure does not panic", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.pubErr = errors.New("connection reset")
		a, err := NewRedisAlerter(rdb, discard())
		require.NoError(t, err)

		assert.NotPanics(t, func() { a.Observe(context.Background(), ev) })
	})
}

func TestInstalledAsHighRiskHandler(t *testing.T) {
	rdb := newFakeRedis()
	a, err := NewRedisAlerter(rdb, discard())
	require.NoError(t, err)
	log := securityaudit.New(securityaudit.WithLogger(discard()), securityaudit.WithHighRiskHandler(a))

	log.PermissionDenied(context.Background(), "u1", "staff", "read", "tasks", "")
	assert.Empty(t, rdb.published)

	log.UnauthorizedAccess(context.Background(), "u1", "staff", "vending", "")
	assert.Len(t, rdb.published, 1)
}
