package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/cyplat/gandalf/internal/log"
)

// ErrDrop marks a message that can never succeed; it is acked instead of requeued.
var ErrDrop = errors.New("drop message")

type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	q    string
	log  *zap.Logger
}

func NewConsumer(url, exchange, queue, key string, lg *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	qd, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(qd.Name, key, exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &Consumer{conn: conn, ch: ch, q: qd.Name, log: lg.Named("consumer")}, nil
}

func (c *Consumer) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Consume runs a pool of workers until ctx is done or the delivery channel closes.
func (c *Consumer) Consume(ctx context.Context, workers int, handle Handler) error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if workers <= 0 {
		workers = 1
	}

	if err := c.ch.Qos(workers*2, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.q, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case d, ok := <-msgs:
					if !ok {
						return
					}
					c.dispatch(ctx, d, handle)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	wg.Wait()
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle Handler) {
	if rid, ok := d.Headers["X-Request-ID"].(string); ok && rid != "" {
		ctx = log.WithRequestID(ctx, rid)
	}
	lg := log.FromContext(ctx, c.log, zap.String("message_id", d.MessageId), zap.String("routing_key", d.RoutingKey))

	err := handle(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrDrop):
		lg.Warn("message dropped", zap.Error(err))
		_ = d.Ack(false)
	default:
		// requeue for another attempt, unless it has already been redelivered
		lg.Error("message handling failed", zap.Error(err), zap.Bool("redelivered", d.Redelivered))
		_ = d.Nack(false, !d.Redelivered)
	}
}
