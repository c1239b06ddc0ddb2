package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carbooking-backend/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	event := domain.BookingEvent{
		Action:     domain.ActionConfirmPayment,
		BookingID:  11,
		Reference:  "ref-11",
		CarID:      3,
		CustomerID: 7,
		Status:     domain.BookingStatusPaid,
		TotalPrice: 2000,
		OccurredAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}

	t.Run("Declares exchange once and publishes persistent JSON", func(t *testing.T) {
		ch := &fakeChannel{}
		dials := 0
		p := NewPublisherWithDialer(func(context.Context) (Channel, Closer, error) {
			dials++
			return ch, nil, nil
		}, "")

		require.NoError(t, p.Publish(ctx, event))
		require.NoError(t, p.Publish(ctx, event))

		assert.Equal(t, 1, dials)
		assert.Equal(t, []string{"booking.events:topic"}, ch.declared)
		assert.Equal(t, "booking.events/booking.confirm_payment", ch.keys[0])
		require.Len(t, ch.published, 2)
		assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
		assert.Equal(t, "application/json", ch.published[0].ContentType)

		var got domain.BookingEvent
		require.NoError(t, json.Unmarshal(ch.published[0].Body, &got))
		assert.Equal(t, event, got)
	})

	t.Run("Reconnects after a failed publish", func(t *testing.T) {
		broken := &fakeChannel{publishErr: errors.New("channel closed")}
		healthy := &fakeChannel{}
		channels := []*fakeChannel{broken, healthy}
		p := NewPublisherWithDialer(func(context.Context) (Channel, Closer, error) {
			ch := channels[0]
			channels = channels[1:]
			return ch, nil, nil
		}, "fleet.events")

		assert.Error(t, p.Publish(ctx, event))
		assert.True(t, broken.closed)

		require.NoError(t, p.Publish(ctx, event))
		assert.Equal(t, "fleet.events/booking.confirm_payment", healthy.keys[0])
	})

	t.Run("Dial failure is returned", func(t *testing.T) {
		p := NewPublisherWithDialer(func(context.Context) (Channel, Closer, error) {
			return nil, nil, errors.New("connection refused")
		}, "")
		assert.ErrorContains(t, p.Publish(ctx, event), "connection refused")
	})

	t.Run("Backs off after a failed dial", func(t *testing.T) {
		dials := 0
		p := NewPublisherWithDialer(func(context.Context) (Channel, Closer, error) {
			dials++
			return nil, nil, errors.New("connection refused")
		}, "")
		now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		p.now = func() time.Time { return now }

		assert.Error(t, p.Publish(ctx, event))
		assert.ErrorIs(t, p.Publish(ctx, event), ErrBrokerUnavailable)
		assert.Equal(t, 1, dials)

		now = now.Add(retryBackoff)
		assert.ErrorContains(t, p.Publish(ctx, event), "connection refused")
		assert.Equal(t, 2, dials)
	})
}

func TestPublisher_HangingBroker(t *testing.T) {
	event := domain.BookingEvent{Action: domain.ActionAccept, BookingID: 12, OccurredAt: time.Now().UTC()}
	release := make(chan struct{})
	var dials atomic.Int32
	p := NewPublisherWithDialer(func(context.Context) (Channel, Closer, error) {
		dials.Add(1)
		<-release
		return nil, nil, errors.New("connection timed out")
	}, "")
	defer close(release)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	begin := time.Now()
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			errs[i] = p.Publish(ctx, event)
		}(i)
	}
	wg.Wait()

	assert.Less(t, time.Since(begin), 500*time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
	for _, err := range errs {
		assert.Error(t, err)
	}
	assert.ErrorIs(t, p.Publish(context.Background(), event), ErrBrokerUnavailable)
}
