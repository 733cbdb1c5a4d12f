package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"github.com/rabbitmq/amqp091-go"
)

type Config struct {
	URL      string `valid:"required"`
	Exchange string `valid:"required"`
	Queue    string `valid:"required"`
	Prefetch int
}

// Queue relays settlement webhooks from the api server to the worker over
// a durable direct exchange.
type Queue struct {
	cfg    Config
	logger *slog.Logger

	conn    *amqp091.Connection
	channel *amqp091.Channel
	mu      sync.Mutex
}

func New(cfg Config, logger *slog.Logger) (*Queue, error) {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		return nil, err
	}

	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 16
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q := &Queue{
		cfg:     cfg,
		logger:  logger.With("queue", cfg.Queue),
		conn:    conn,
		channel: channel,
	}

	if err := q.setup(); err != nil {
		q.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return q, nil
}

func (q *Queue) setup() error {
	if err := q.channel.ExchangeDeclare(
		q.cfg.Exchange, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := q.channel.QueueDeclare(
		q.cfg.Queue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := q.channel.QueueBind(q.cfg.Queue, q.cfg.Queue, q.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return q.channel.Qos(q.cfg.Prefetch, 0, false)
}

func (q *Queue) Close() {
	if q.channel != nil {
		_ = q.channel.Close()
	}

	if q.conn != nil {
		_ = q.conn.Close()
	}
}

func (q *Queue) Publish(ctx context.Context, settlement *core.Settlement) error {
	body, err := json.Marshal(settlement)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.channel.PublishWithContext(
		ctx,
		q.cfg.Exchange, // exchange
		q.cfg.Queue,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    settlement.TraceID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish settlement: %w", err)
	}

	q.logger.Debug("settlement published", "trace", settlement.TraceID, "status", settlement.Status)
	return nil
}

func (q *Queue) Consume(ctx context.Context, fn func(ctx context.Context, settlement *core.Settlement) error) error {
	deliveries, err := q.channel.ConsumeWithContext(
		ctx,
		q.cfg.Queue, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			q.handle(ctx, d, fn)
		}
	}
}

func (q *Queue) handle(ctx context.Context, d amqp091.Delivery, fn func(ctx context.Context, settlement *core.Settlement) error) {
	var settlement core.Settlement
	if err := json.Unmarshal(d.Body, &settlement); err != nil {
		q.logger.Error("malformed settlement dropped", "err", err)
		_ = d.Reject(false)
		return
	}

	if err := fn(ctx, &settlement); err != nil {
		// a lost status race is retried, anything else gets one more try
		if d.Redelivered && !errors.Is(err, store.ErrOptimisticLock) {
			q.logger.Error("settlement dropped after redelivery", "trace", settlement.TraceID, "err", err)
			_ = d.Reject(false)
			return
		}

		q.logger.Error("handle settlement", "trace", settlement.TraceID, "err", err)
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
}
