package amqpnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	glog "github.com/goliatone/go-logger/glog"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/goliatone/go-relay/core"
)

const (
	DefaultExchange    = "relay.feed"
	RoutingKeyAppended = "relay.feed.appended"
	contentTypeJSON    = "application/json"
)

// Channel is the subset of *amqp.Channel used by the notifier.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AppendedEvent announces that a tenant's feed gained the message at Seq.
type AppendedEvent struct {
	TenantID  string    `json:"tenant_id"`
	Seq       int64     `json:"seq"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Dial opens a connection and channel and declares the feed exchange.
func Dial(url string, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declareExchange(ch Channel, exchange string) error {
	return ch.ExchangeDeclare(exchangeName(exchange), "topic", true, false, false, false, nil)
}

func exchangeName(exchange string) string {
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		return DefaultExchange
	}
	return exchange
}

// Publisher implements core.FeedNotifier by publishing AppendedEvent
// messages to a topic exchange.
type Publisher struct {
	ch       Channel
	exchange string
	logger   glog.Logger
	now      func() time.Time
}

type PublisherOption func(*Publisher)

func WithPublisherLogger(logger glog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = glog.Ensure(logger)
	}
}

func NewPublisher(ch Channel, exchange string, opts ...PublisherOption) (*Publisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("amqpnotify: channel is required")
	}
	p := &Publisher{
		ch:       ch,
		exchange: exchangeName(exchange),
		logger:   glog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		return nil, fmt.Errorf("amqpnotify: declare exchange: %w", err)
	}
	return p, nil
}

func (p *Publisher) NotifyAppended(ctx context.Context, tenantID string, seq int64) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("amqpnotify: tenant id is required")
	}
	now := p.now()
	body, err := json.Marshal(AppendedEvent{TenantID: tenantID, Seq: seq, EmittedAt: now})
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyAppended, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    now,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqpnotify: publish: %w", err)
	}
	p.logger.Debug("feed append published", "tenant_id", tenantID, "seq", seq, "exchange", p.exchange)
	return nil
}

var _ core.FeedNotifier = (*Publisher)(nil)
