//go:build integration

package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/internal/securityaudit"
	"courtside/pkg/testutil/containers"
)

func TestRedisAlerterAgainstRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sub := rc.Client.Subscribe(ctx, Channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	a, err := NewRedisAlerter(rc.Client, discard())
	require.NoError(t, err)
	log := securityaudit.New(securityaudit.WithLogger(discard()), securityaudit.WithHighRiskHandler(a))
	recorded := log.UnauthorizedAccess(ctx, "u1", "staff", "vending", "role lacks vending access")

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var alert Alert
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &alert))
	assert.Equal(t, recorded.ID, alert.EventID)
	assert.Equal(t, int64(1), alert.Count)

	ttl, err := rc.Client.TTL(ctx, CounterKey("u1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 23*time.Hour)
}
