package app

import (
	"context"
	"fmt"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
	"github.com/gokkuu100/konserve-cp-sub003/pkg/rabbitmq"
)

// AMQPOutcomePublisher publishes payment outcomes to a topic exchange with
// routing keys "payment.successful" / "payment.failed", consumed by the
// external notification service.
type AMQPOutcomePublisher struct {
	producer *rabbitmq.EventProducer
	exchange string
}

func NewAMQPOutcomePublisher(producer *rabbitmq.EventProducer, exchange string) *AMQPOutcomePublisher {
	if exchange == "" {
		exchange = "payment_events"
	}
	return &AMQPOutcomePublisher{producer: producer, exchange: exchange}
}

// PublishOutcome implements OutcomePublisher.
func (p *AMQPOutcomePublisher) PublishOutcome(ctx context.Context, event domain.PaymentOutcomeEvent) error {
	routingKey := fmt.Sprintf("payment.%s", event.Status)
	return p.producer.Publish(ctx, p.exchange, routingKey, event)
}
