package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"docuchat/internal/model"
)

// RunLogPublisher pushes turn audit records onto a durable queue; the
// run-log worker persists them out of the request path.
type RunLogPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewRunLogPublisher(conn *amqp.Connection, queueName string) *RunLogPublisher {
	return &RunLogPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *RunLogPublisher) Publish(ctx context.Context, runLog model.RunLog) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(runLog)
	if err != nil {
		return fmt.Errorf("marshal run log payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish run log failed: %w", err)
	}
	return nil
}
