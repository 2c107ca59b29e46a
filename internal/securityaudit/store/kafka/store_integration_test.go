//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"courtside/internal/platform/config"
	kafkaclient "courtside/internal/platform/kafka"
	"courtside/internal/securityaudit"
	"courtside/pkg/testutil/containers"
)

func TestStoreAgainstBroker(t *testing.T) {
	broker := containers.NewKafkaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.KafkaConfig{Brokers: broker.Brokers, Topic: "security-events"}
	producer, err := kafkaclient.New(ctx, cfg)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, kafkaclient.EnsureTopic(ctx, producer, cfg.Topic, 1, 1))
	require.NoError(t, kafkaclient.EnsureTopic(ctx, producer, cfg.Topic, 1, 1), "existing topic is not an error")

	store, err := New(producer, cfg.Topic)
	require.NoError(t, err)

	log := securityaudit.New()
	recorded := log.PermissionDenied(ctx, "u1", "staff", "delete", "reports", "reports:delete")
	require.NoError(t, store.AppendBatch(ctx, []securityaudit.SecurityEvent{recorded}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollRecords(ctx, 1)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)

	var got securityaudit.SecurityEvent
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, recorded.ID, got.ID)
	assert.Equal(t, recorded.Hash, got.Hash)
	assert.Equal(t, []byte("u1"), records[0].Key)
}
