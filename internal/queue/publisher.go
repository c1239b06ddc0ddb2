// Package queue publishes committed booking transitions to RabbitMQ so other
// systems can react without polling the database.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "booking.events"

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel to the broker together with its connection.
type Dialer func(ctx context.Context) (Channel, Closer, error)

type Closer interface{ Close() error }

const (
	dialTimeout  = 5 * time.Second
	retryBackoff = 10 * time.Second
)

// ErrBrokerUnavailable is returned while a dial is in flight or the publisher
// is backing off after a failed one. The event is dropped.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// Publisher sends each event as a persistent JSON message on a durable topic
// exchange, routed by "booking.<action>". The broker connection is opened on
// first use and reopened after a failed publish. Only one dial runs at a time
// and it is bounded by the caller's context.
type Publisher struct {
	mu       sync.Mutex
	dial     Dialer
	exchange string
	ch       Channel
	conn     Closer
	dialing  bool
	retryAt  time.Time
	now      func() time.Time
}

func NewPublisher(url, exchange string) *Publisher {
	return NewPublisherWithDialer(func(ctx context.Context) (Channel, Closer, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(dialTimeout),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
		}
		return ch, conn, nil
	}, exchange)
}

func NewPublisherWithDialer(dial Dialer, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{dial: dial, exchange: exchange, now: time.Now}
}

func RoutingKey(action domain.BookingAction) string {
	return "booking." + string(action)
}

func (p *Publisher) Publish(ctx context.Context, event domain.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    fmt.Sprintf("%d:%s:%d", event.BookingID, event.Action, event.OccurredAt.UnixNano()),
		Body:         body,
	}
	key := RoutingKey(event.Action)
	logger.ExternalServiceCall("rabbitmq", "Publish", "exchange", p.exchange, "key", key, "bookingID", event.BookingID)
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, pub)
	logger.ExternalServiceResult("rabbitmq", "Publish", err, "key", key)
	if err != nil {
		p.invalidate(ch)
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

// channel returns the open channel or dials a new one. Callers that arrive
// while another dial is running, or inside the backoff window, fail fast.
func (p *Publisher) channel(ctx context.Context) (Channel, error) {
	p.mu.Lock()
	if p.ch != nil {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing || p.now().Before(p.retryAt) {
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	p.dialing = true
	p.mu.Unlock()

	ch, conn, err := p.open(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = p.now().Add(retryBackoff)
		logger.Warn("RabbitMQ unavailable, dropping events until retry", "retryAt", p.retryAt, "error", err)
		return nil, err
	}
	p.ch, p.conn = ch, conn
	p.retryAt = time.Time{}
	return ch, nil
}

type dialResult struct {
	ch   Channel
	conn Closer
	err  error
}

// open dials and declares the exchange. A dial that outlives ctx is
// abandoned and its connection closed once it completes.
func (p *Publisher) open(ctx context.Context) (Channel, Closer, error) {
	done := make(chan dialResult, 1)
	go func() {
		ch, conn, err := p.dial(ctx)
		if err == nil {
			if err = ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
				closeAll(ch, conn)
				err = fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
			}
		}
		done <- dialResult{ch: ch, conn: conn, err: err}
	}()

	select {
	case r := <-done:
		return r.ch, r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				closeAll(r.ch, r.conn)
			}
		}()
		return nil, nil, fmt.Errorf("rabbitmq: dial abandoned: %w", ctx.Err())
	}
}

// invalidate drops ch if it is still the current channel.
func (p *Publisher) invalidate(ch Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.closeLocked()
	}
}

func closeAll(ch Channel, conn Closer) {
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
