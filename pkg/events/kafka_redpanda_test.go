package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// createKafkaTopic creates a single-partition topic.
func createKafkaTopic(t *testing.T, ctx context.Context, brokers string, topicName string) {
	adminClient, err := kgo.NewClient(
		kgo.SeedBrokers(brokers),
	)
	require.NoError(t, err)
	defer adminClient.Close()

	createTopicsReq := kmsg.NewCreateTopicsRequest()
	createTopicsReq.Topics = []kmsg.CreateTopicsRequestTopic{
		{
			Topic:             topicName,
			NumPartitions:     1,
			ReplicationFactor: 1,
		},
	}
	_, err = adminClient.Request(ctx, &createTopicsReq)
	require.NoError(t, err)

	time.Sleep(1 * time.Second)
}

func TestKafkaPublisher_Redpanda(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redpandaContainer, err := redpanda.Run(ctx,
		"docker.redpanda.com/redpandadata/redpanda:latest",
	)
	require.NoError(t, err)
	defer func() {
		_ = redpandaContainer.Terminate(ctx)
	}()

	brokers, err := redpandaContainer.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	topic := "test.pages"
	createKafkaTopic(t, ctx, brokers, topic)

	pub, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{brokers}, Topic: topic}, hclog.NewNullLogger())
	require.NoError(t, err)
	defer pub.Close()

	event := NewPagesCreated("space-1", "ws-1", []string{"p1", "p2", "p3"})
	require.NoError(t, pub.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup("test-consumer"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var received *PagesCreated
	var key string
	for received == nil {
		fetches := consumer.PollFetches(fetchCtx)
		if fetches.IsClientClosed() {
			break
		}
		if err := fetches.Err(); err != nil {
			t.Fatalf("fetch error: %v", err)
		}

		fetches.EachRecord(func(record *kgo.Record) {
			var got PagesCreated
			require.NoError(t, json.Unmarshal(record.Value, &got))
			received = &got
			key = string(record.Key)
		})
	}

	require.NotNil(t, received, "no message received from Redpanda")
	assert.Equal(t, event.ID, received.ID)
	assert.Equal(t, EventTypePagesCreated, received.Type)
	assert.Equal(t, []string{"p1", "p2", "p3"}, received.PageIDs)
	assert.Equal(t, "space:space-1", key)
}
