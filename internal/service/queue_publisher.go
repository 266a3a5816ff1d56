package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	q "github.com/iliyamo/identity-api/internal/queue"
)

var (
	// ErrPublisherBusy is returned when the event buffer is full.  The
	// event is dropped.
	ErrPublisherBusy = errors.New("rabbitmq: event buffer full")
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("rabbitmq: publisher closed")
)

// PublisherOptions tunes AMQPPublisher.  Zero values pick the defaults.
type PublisherOptions struct {
	Logger      zerolog.Logger
	Buffer      int           // queued events, default 256
	DialTimeout time.Duration // dial and handshake, default 3s
	RetryAfter  time.Duration // pause after a failed dial, default 5s
}

// AMQPPublisher publishes AuthEvents to the auth.events queue from a
// background goroutine.  Publish only enqueues, so a slow or missing
// broker never delays the caller.  The connection is dialed lazily and
// re-dialed after a failure; events arriving while the broker is
// unreachable are logged and dropped.
type AMQPPublisher struct {
	url  string
	opts PublisherOptions

	events  chan q.AuthEvent
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// owned by run
	conn      *amqp.Connection
	ch        *amqp.Channel
	downUntil time.Time
}

func NewAMQPPublisher(url string, opts PublisherOptions) *AMQPPublisher {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 3 * time.Second
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 5 * time.Second
	}
	p := &AMQPPublisher{
		url:     url,
		opts:    opts,
		events:  make(chan q.AuthEvent, opts.Buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues ev without blocking.
func (p *AMQPPublisher) Publish(_ context.Context, ev q.AuthEvent) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrPublisherBusy
	}
}

// Close stops the background goroutine and releases the broker
// connection.  Events still buffered are discarded.
func (p *AMQPPublisher) Close() error {
	p.once.Do(func() { close(p.done) })
	<-p.stopped
	return nil
}

func (p *AMQPPublisher) run() {
	defer close(p.stopped)
	defer p.reset()
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
			if err := p.send(ev); err != nil {
				p.opts.Logger.Warn().Err(err).Str("event", ev.Type).Str("id", ev.ID).Msg("publish auth event failed")
			}
		}
	}
}

func (p *AMQPPublisher) send(ev q.AuthEvent) error {
	pub, err := newPublishing(ev)
	if err != nil {
		return err
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.DialTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx,
		"",                // default exchange
		q.AuthEventsQueue, // routing key = queue name
		false,             // mandatory
		false,             // immediate
		pub,
	); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

// newPublishing encodes ev as a persistent JSON message.
func newPublishing(ev q.AuthEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

// channel returns an open channel, dialing if needed.  After a failed dial
// it fails fast until RetryAfter has passed.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if time.Now().Before(p.downUntil) {
		return nil, errors.New("rabbitmq: broker unavailable")
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(p.opts.DialTimeout),
	})
	if err != nil {
		p.downUntil = time.Now().Add(p.opts.RetryAfter)
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.downUntil = time.Now().Add(p.opts.RetryAfter)
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	// Durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(q.AuthEventsQueue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}
