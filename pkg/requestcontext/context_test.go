package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors_Unset(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ActorID(ctx))
	assert.Empty(t, ActorRole(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.Empty(t, RequestID(ctx))
	_, ok := NowIfSet(ctx)
	assert.False(t, ok)
}

func TestAccessors_RoundTrip(t *testing.T) {
	fixed := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	ctx := WithActor(context.Background(), "u1", "front_desk")
	ctx = WithClientMetadata(ctx, "10.0.0.7", "Mozilla/5.0")
	ctx = WithRequestID(ctx, "req-42")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, "u1", ActorID(ctx))
	assert.Equal(t, "front_desk", ActorRole(ctx))
	assert.Equal(t, "10.0.0.7", ClientIP(ctx))
	assert.Equal(t, "Mozilla/5.0", UserAgent(ctx))
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
