// Package events publishes integration lifecycle events to Kafka for
// downstream consumers. The publisher implements oauth.Observer so the core
// flow stays free of messaging concerns.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/oauth"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultTopic is the lifecycle event topic
const DefaultTopic = "integration-events"

// Config holds Kafka publisher configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers, topic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return Config{Brokers: brokerList, Topic: topic}
}

// Publisher writes lifecycle events to a Kafka topic
type Publisher struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// NewPublisher creates a Kafka-backed event publisher
func NewPublisher(cfg Config, logger ectologger.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		// Without this, a first publish may fail with "Unknown Topic Or Partition".
		AllowAutoTopicCreation: true,
	}

	return &Publisher{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the underlying writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// message is the wire form of a lifecycle event
type message struct {
	oauth.Event

	Error   string `json:"error,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// OnEvent publishes a lifecycle event. Publish failures are logged and
// counted, never surfaced onto the request path.
func (p *Publisher) OnEvent(ctx context.Context, event oauth.Event) {
	p.publish(ctx, message{Event: event})
}

// OnError publishes a failed lifecycle event with the error string attached
func (p *Publisher) OnError(ctx context.Context, event oauth.Event, err error) {
	msg := message{Event: event}
	if err != nil {
		msg.Error = err.Error()
	}
	p.publish(ctx, msg)
}

func (p *Publisher) publish(ctx context.Context, msg message) {
	ctx, span := tracing.StartSpan(ctx, "Events.Publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event_type", msg.Type),
		attribute.String("integration", msg.Integration),
	)

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.TraceID = tracing.GetTraceID(ctx)
	msg.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		metrics.RecordEventPublish(p.topic, "marshal_error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to marshal integration event")
		return
	}

	// Partition by org + user so one flow's events stay ordered
	key := msg.OrgID + ":" + msg.UserID

	headers := []kafka.Header{
		{Key: "integration", Value: []byte(msg.Integration)},
		{Key: "type", Value: []byte(msg.Type)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	}); err != nil {
		span.RecordError(err)
		metrics.RecordEventPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish integration event to Kafka topic %s", p.topic)
		return
	}

	metrics.RecordEventPublish(p.topic, "success")
}
