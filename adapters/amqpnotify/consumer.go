package amqpnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultPrefetch = 32

// Waker is satisfied by core.Service.
type Waker interface {
	WakeDispatch(tenantID string)
}

// Consumer wakes local dispatch workers when another process announces an
// append. Wake is idempotent, so redelivered events are harmless.
type Consumer struct {
	ch       Channel
	exchange string
	queue    string
	waker    Waker
	prefetch int
	logger   glog.Logger
}

type ConsumerOption func(*Consumer)

func WithConsumerLogger(logger glog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = glog.Ensure(logger)
	}
}

func WithPrefetch(prefetch int) ConsumerOption {
	return func(c *Consumer) {
		if prefetch > 0 {
			c.prefetch = prefetch
		}
	}
}

// NewConsumer binds queue to the feed exchange. An empty queue name gets a
// server-named exclusive queue, one per process.
func NewConsumer(ch Channel, exchange string, queue string, waker Waker, opts ...ConsumerOption) (*Consumer, error) {
	if ch == nil {
		return nil, fmt.Errorf("amqpnotify: channel is required")
	}
	if waker == nil {
		return nil, fmt.Errorf("amqpnotify: waker is required")
	}
	c := &Consumer{
		ch:       ch,
		exchange: exchangeName(exchange),
		queue:    strings.TrimSpace(queue),
		waker:    waker,
		prefetch: defaultPrefetch,
		logger:   glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Run consumes until ctx is done or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.setup()
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(delivery)
		}
	}
}

func (c *Consumer) setup() (<-chan amqp.Delivery, error) {
	if err := declareExchange(c.ch, c.exchange); err != nil {
		return nil, fmt.Errorf("amqpnotify: declare exchange: %w", err)
	}
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("amqpnotify: qos: %w", err)
	}
	durable := c.queue != ""
	q, err := c.ch.QueueDeclare(c.queue, durable, !durable, !durable, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqpnotify: declare queue: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, RoutingKeyAppended, c.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("amqpnotify: bind queue: %w", err)
	}
	deliveries, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqpnotify: consume: %w", err)
	}
	c.logger.Info("feed consumer started", "queue", q.Name, "exchange", c.exchange)
	return deliveries, nil
}

func (c *Consumer) handle(delivery amqp.Delivery) {
	var event AppendedEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil || strings.TrimSpace(event.TenantID) == "" {
		c.logger.Warn("dropping malformed feed event", "message_id", delivery.MessageId)
		_ = delivery.Nack(false, false)
		return
	}
	c.waker.WakeDispatch(event.TenantID)
	if err := delivery.Ack(false); err != nil {
		c.logger.Warn("feed event ack failed", "tenant_id", event.TenantID, "error", err.Error())
	}
}
