// Package events publishes inventory changes to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const (
	ExchangeName = "inventory.events"
	ExchangeType = "topic"

	EventVersion = "1.0.0"

	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Second
	confirmTimeout = 5 * time.Second
	publishTimeout = 30 * time.Second
	closeTimeout   = 10 * time.Second
	queueSize      = 1024
)

var (
	ErrNotAcknowledged = errors.New("event not acknowledged by broker")
	ErrQueueFull       = errors.New("publish queue full")
	ErrClosed          = errors.New("publisher closed")
)

var publishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "events_publish_failures_total",
	Help: "Events dropped after exhausting publish retries.",
})

// Envelope is the message body of every published event.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion string          `json:"event_version"`
	Timestamp    string          `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
}

// message is a queued event with its trace headers already injected.
type message struct {
	routingKey string
	event      Envelope
	headers    amqp.Table
}

// Publisher sends events to a topic exchange with publisher confirms. Publish
// only enqueues; a single worker delivers in order.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
	log      *zap.Logger

	send  func(ctx context.Context, msg message) error
	queue chan message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		ExchangeName,
		ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Info("Connected to RabbitMQ", zap.String("exchange", ExchangeName))

	p := newPublisher(log, queueSize)
	p.conn = conn
	p.channel = channel
	p.confirms = channel.NotifyPublish(make(chan amqp.Confirmation, 64))
	p.send = p.publishWithRetry
	go p.run()
	return p, nil
}

func newPublisher(log *zap.Logger, size int) *Publisher {
	return &Publisher{
		log:   log,
		queue: make(chan message, size),
		done:  make(chan struct{}),
	}
}

// Publish marshals payload into an Envelope and queues it for delivery under
// routingKey. It does not wait for the broker.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	event, err := NewEnvelope(routingKey, payload)
	if err != nil {
		return err
	}

	headers := amqp.Table{
		"event_type":    event.EventType,
		"event_version": event.EventVersion,
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- message{routingKey: routingKey, event: event, headers: headers}:
		return nil
	default:
		return ErrQueueFull
	}
}

// NewEnvelope wraps payload with a fresh event id and timestamp.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: EventVersion,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Payload:      raw,
	}, nil
}

func (p *Publisher) run() {
	defer close(p.done)

	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.send(ctx, msg)
		cancel()
		if err != nil {
			publishFailuresTotal.Inc()
			p.log.Error("Dropping event",
				zap.String("event_id", msg.event.EventID),
				zap.String("routing_key", msg.routingKey),
				zap.Error(err),
			)
		}
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, msg message) error {
	body, err := json.Marshal(msg.event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff = min(backoff*2, maxBackoff)
			}
		}

		tag := p.channel.GetNextPublishSeqNo()
		err := p.channel.PublishWithContext(
			ctx,
			ExchangeName,
			msg.routingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				MessageId:    msg.event.EventID,
				Body:         body,
				Headers:      msg.headers,
			},
		)
		if err != nil {
			lastErr = err
			p.log.Warn("Failed to publish event, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		lastErr = awaitConfirm(ctx, p.confirms, tag, confirmTimeout)
		if lastErr == nil {
			p.log.Debug("Event published",
				zap.String("event_id", msg.event.EventID),
				zap.String("routing_key", msg.routingKey),
			)
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}

		p.log.Warn("Event publish not confirmed, retrying", zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}

	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

// awaitConfirm waits for the confirmation of delivery tag. Confirmations for
// earlier tags belong to attempts that already timed out and are discarded.
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, tag uint64, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case confirm, ok := <-confirms:
			if !ok {
				return amqp.ErrClosed
			}
			if confirm.DeliveryTag < tag {
				continue
			}
			if !confirm.Ack {
				return ErrNotAcknowledged
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errors.New("confirmation timeout")
		}
	}
}

// IsHealthy reports whether the broker connection is open.
func (p *Publisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Close stops accepting events, waits for queued ones to be delivered, then
// closes the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(closeTimeout):
		p.log.Warn("Closing publisher with events still queued", zap.Int("queued", len(p.queue)))
	}

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Error("Failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return err
		}
	}
	p.log.Info("Publisher closed")
	return nil
}

// headerCarrier lets the otel propagator write trace context into AMQP headers.
type headerCarrier amqp.Table

var _ propagation.TextMapCarrier = headerCarrier(nil)

func (c headerCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
