package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/oauth"
)

func TestParseConfig(t *testing.T) {
	cfg := events.ParseConfig("broker1:9092, broker2:9092", "")
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Brokers)
	assert.Equal(t, events.DefaultTopic, cfg.Topic)

	cfg = events.ParseConfig("localhost:9092", "custom-topic")
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "custom-topic", cfg.Topic)
}

func TestPublisher_Publish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Kafka integration test in short mode")
	}

	zapLogger, _ := zap.NewDevelopment()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	publisher := events.NewPublisher(events.ParseConfig("localhost:9092", ""), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	publisher.OnEvent(ctx, oauth.Event{
		Type:        oauth.EventAuthorizeStarted,
		Integration: "hubspot",
		UserID:      "u1",
		OrgID:       "o1",
		Timestamp:   time.Now().UTC(),
	})

	require.NoError(t, publisher.Close())
}
