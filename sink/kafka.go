package sink

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mflodin/asynclog/entry"
)

// KafkaSink publishes every entry's formatted body to a topic over a
// segmentio/kafka-go writer. It is exported (rather than returning the
// Sink interface) so a durable.Retrier can hold one directly and drive
// PublishRaw for replayed deliveries.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink constructs a sink that publishes to brokers/topic with
// RequireAll acks.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Write implements Sink, publishing immediately with no replay on
// failure. Callers that need delivery guaranteed across restarts should
// route through a durable.DurableSink and let a durable.Retrier drive
// PublishRaw instead of calling Write directly.
func (s *KafkaSink) Write(e entry.Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Level.String()),
		Value: []byte(e.Format()),
	})
}

// PublishRaw publishes a pre-formatted payload with no key, the shape a
// durable.Retrier replays ledger records through.
func (s *KafkaSink) PublishRaw(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.writer.WriteMessages(ctx, kafka.Message{Value: payload})
}

// Topic reports the topic this sink publishes to.
func (s *KafkaSink) Topic() string {
	return s.writer.Topic
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
