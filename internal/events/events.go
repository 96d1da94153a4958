// Package events publishes storefront activity to Kafka for downstream
// consumers (analytics, notifications). Publishing is best-effort: a broker
// outage must never fail a customer's order.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// OrderPlaced carries a pseudonymous user reference, never the session
// token itself.
type OrderPlaced struct {
	OrderID    string    `json:"order_id"`
	UserRef    string    `json:"user_ref"`
	Amount     int64     `json:"amount"`
	MethodCode string    `json:"payment_method"`
	ItemCount  int       `json:"item_count"`
	PlacedAt   time.Time `json:"placed_at"`
}

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns nil when no brokers are configured; a nil *Publisher
// is safe to call and publishes nothing.
func NewPublisher(brokers []string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-placed",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w}
}

func (p *Publisher) OrderPlaced(ctx context.Context, event OrderPlaced) {
	if p == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal order-placed event: %v", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: payload,
	})
	if err != nil {
		log.Printf("failed to publish order-placed event for order %v: %v", event.OrderID, err)
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		log.Printf("error closing kafka writer: %v", err)
	}
}
