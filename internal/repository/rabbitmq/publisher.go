package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/pkg/utils"
)

// RetryPublisher schedules delayed re-invocations of the orchestrator.
// Messages go to a TTL queue with no consumer; when the TTL expires they
// dead-letter into the processing exchange, where the processor service
// picks them up. The queues are durable, so pending retries survive
// restarts and deploys.
type RetryPublisher struct {
	channel    *amqp.Channel
	delayQueue string
}

func NewRetryPublisher(conn *amqp.Connection, exchange, routingKey, processQueue, delayQueue string, delay time.Duration) (*RetryPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		processQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	if err := ch.QueueBind(processQueue, routingKey, exchange, false, nil); err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		delayQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    exchange,
			"x-dead-letter-routing-key": routingKey,
			"x-message-ttl":             delay.Milliseconds(),
		},
	)
	if err != nil {
		return nil, err
	}

	return &RetryPublisher{
		channel:    ch,
		delayQueue: delayQueue,
	}, nil
}

func (p *RetryPublisher) ScheduleRetry(ctx context.Context, msg entity.RetryMessage) error {
	body, err := utils.ToRawMessage(msg)
	if err != nil {
		return err
	}

	// Published through the default exchange straight into the delay queue.
	return p.channel.PublishWithContext(ctx,
		"",
		p.delayQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
