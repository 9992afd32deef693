package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/usecase"
)

// RetryConsumer drains the processing queue, i.e. retry messages whose
// delay has elapsed, and re-invokes the orchestrator for each one.
type RetryConsumer struct {
	channel      *amqp.Channel
	queue        string
	Orchestrator usecase.DocumentProcessor
	prefetchCnt  int
}

func NewRetryConsumer(conn *amqp.Connection, queue string, orch usecase.DocumentProcessor) (*RetryConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	consumer := &RetryConsumer{
		channel:      ch,
		queue:        queue,
		Orchestrator: orch,
		prefetchCnt:  1,
	}

	if err := ch.Qos(consumer.prefetchCnt, 0, false); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RetryConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("RetryConsumer shutting down")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				log.Println("RabbitMQ channel closed")
				return nil
			}

			var retry entity.RetryMessage
			if err := json.Unmarshal(msg.Body, &retry); err != nil {
				log.Println("failed to unmarshal retry message:", err)
				msg.Nack(false, false)
				continue
			}

			c.handle(ctx, retry, msg)
		}
	}
}

func (c *RetryConsumer) handle(ctx context.Context, retry entity.RetryMessage, msg amqp.Delivery) {
	log.Printf("retry fired for document %s (attempt %d)", retry.DocumentID, retry.Attempt)

	_, err := c.Orchestrator.ProcessDocument(ctx, usecase.ProcessRequest{
		UserID:      retry.UserID,
		Competencia: retry.Competencia,
		FileName:    retry.FileName,
		Event:       retry.Event,
		DocumentID:  retry.DocumentID,
	})
	if err != nil {
		// The orchestrator persisted whatever outcome it reached and owns
		// any further retry; redelivering here would double-process. Drop
		// the message except on a counter race, which is worth one redo.
		if errors.Is(err, entity.ErrRetryConflict) {
			log.Printf("retry conflict for document %s, requeueing: %v", retry.DocumentID, err)
			msg.Nack(false, true)
			return
		}
		log.Printf("retry for document %s failed: %v", retry.DocumentID, err)
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}
