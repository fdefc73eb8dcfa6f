package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultRabbitQueue is the durable queue jobs are published to.
const DefaultRabbitQueue = "orderdesk.jobs"

// RabbitMQDriver publishes jobs as persistent messages on a durable queue
// and consumes them with manual acks. A message is acked once the Manager
// has taken it, since retries are handled in-process.
type RabbitMQDriver struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// NewRabbitMQDriver dials url, declares the queue and starts consuming with
// the given prefetch.
func NewRabbitMQDriver(url, queue string, prefetch int) (*RabbitMQDriver, error) {
	if queue == "" {
		queue = DefaultRabbitQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue/rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue/rabbitmq: channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue/rabbitmq: declare %s: %w", queue, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue/rabbitmq: qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "orderdesk-worker", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue/rabbitmq: consume: %w", err)
	}

	return &RabbitMQDriver{conn: conn, ch: ch, queue: queue, deliveries: deliveries}, nil
}

func (d *RabbitMQDriver) Push(ctx context.Context, payload []byte) error {
	err := d.ch.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("queue/rabbitmq: publish: %w", err)
	}
	return nil
}

func (d *RabbitMQDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-d.deliveries:
		if !ok {
			return nil, errors.New("queue/rabbitmq: delivery channel closed")
		}
		if err := msg.Ack(false); err != nil {
			return nil, fmt.Errorf("queue/rabbitmq: ack: %w", err)
		}
		return msg.Body, nil
	}
}

func (d *RabbitMQDriver) Close() error {
	var errs []error
	if d.ch != nil {
		errs = append(errs, d.ch.Close())
	}
	if d.conn != nil {
		errs = append(errs, d.conn.Close())
	}
	return errors.Join(errs...)
}
