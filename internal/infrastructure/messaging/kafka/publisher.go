// internal/infrastructure/messaging/kafka/publisher.go
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/your-org/storefront-cart/internal/domain/order"
)

const eventTypeOrderPlaced = "order.placed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes order events to a kafka topic
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a publisher for topic on brokers
func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
		RequiredAcks:           kafkago.RequireOne,
	}
	return &Publisher{writer: w}
}

// PublishOrderPlaced emits the event keyed by order number so events of one
// order keep their partition
func (p *Publisher) PublishOrderPlaced(ctx context.Context, event order.OrderPlaced) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event failed: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.OrderNumber),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventTypeOrderPlaced)},
		},
		Time: event.PlacedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order event failed: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
