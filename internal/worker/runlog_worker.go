package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"docuchat/internal/model"
	"docuchat/internal/repository"
)

// RunLogWorker consumes turn audit records from the run-log queue and
// persists them, keeping the write out of the chat request path.
type RunLogWorker struct {
	conn      *amqp.Connection
	repo      *repository.RunLogRepository
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunLogWorker(conn *amqp.Connection, repo *repository.RunLogRepository, queueName string) *RunLogWorker {
	return &RunLogWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
	}
}

func (w *RunLogWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var runLog model.RunLog
				if err := json.Unmarshal(d.Body, &runLog); err != nil {
					log.Warn().Err(err).Msg("worker decode run log failed")
					_ = d.Nack(false, false)
					continue
				}

				if err := w.repo.Create(&runLog); err != nil {
					log.Warn().Err(err).Msg("worker persist run log failed")
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *RunLogWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
