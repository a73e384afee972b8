package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-registration/internal/models"
)

// OrderEvent is the payload published for order lifecycle events. Cart
// and total-relevant fields ride along; wizard state does not.
type OrderEvent struct {
	Type       string        `json:"type"`
	Identifier string        `json:"identifier"`
	Cart       models.Cart   `json:"cart"`
	PaymentID  string        `json:"payment_id,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
	Order      *models.Order `json:"order"`
}

type Producer struct {
	confirmedWriter *kafka.Writer
	paidWriter      *kafka.Writer
}

func NewProducer(brokers []string, confirmedTopic, paidTopic string) *Producer {
	return &Producer{
		confirmedWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   confirmedTopic,
		}),
		paidWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   paidTopic,
		}),
	}
}

// PublishOrderConfirmed streams the confirmation event.
func (p *Producer) PublishOrderConfirmed(order models.Order) error {
	return publish(p.confirmedWriter, "order_confirmed", order)
}

// PublishOrderPaid streams the payment-settled event.
func (p *Producer) PublishOrderPaid(order models.Order) error {
	return publish(p.paidWriter, "order_paid", order)
}

func publish(writer *kafka.Writer, eventType string, order models.Order) error {
	event := OrderEvent{
		Type:       eventType,
		Identifier: order.Identifier,
		Cart:       order.Cart,
		PaymentID:  order.PaymentID,
		OccurredAt: time.Now(),
		Order:      &order,
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(order.Identifier),
			Value: msgBytes,
		},
	)
}

// Close flushes and closes both writers.
func (p *Producer) Close() error {
	if err := p.confirmedWriter.Close(); err != nil {
		return err
	}
	return p.paidWriter.Close()
}
