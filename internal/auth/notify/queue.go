package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the durable queue delivery jobs are published to.
const DefaultQueue = "otp.delivery"

// DeliveryJob is the message body consumed by the delivery workers.
type DeliveryJob struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	To        string    `json:"to"`
	Purpose   string    `json:"purpose"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrReconnecting is returned while another Send is re-establishing the
// broker connection.
var ErrReconnecting = errors.New("rabbitmq: reconnect in progress")

// DefaultDialTimeout bounds the TCP connect and AMQP handshake when the
// caller's context carries no deadline.
const DefaultDialTimeout = 30 * time.Second

// QueueNotifier hands deliveries to workers over RabbitMQ. A successful Send
// means the broker accepted a persistent message, not that it was delivered.
type QueueNotifier struct {
	URL   string
	Queue string

	mu           sync.Mutex
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
	closed       bool
	now          func() time.Time
}

// NewQueueNotifier dials the broker and declares the queue.
func NewQueueNotifier(url, queue string) (*QueueNotifier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDialTimeout)
	defer cancel()
	return NewQueueNotifierContext(ctx, url, queue)
}

// NewQueueNotifierContext is NewQueueNotifier with the dial bounded by ctx.
func NewQueueNotifierContext(ctx context.Context, url, queue string) (*QueueNotifier, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	q := &QueueNotifier{URL: url, Queue: queue, now: time.Now}

	if _, err := q.channel(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// channel returns a usable channel, reconnecting if needed. The dial runs
// outside mu; concurrent callers fail fast with ErrReconnecting instead of
// queueing behind it.
func (q *QueueNotifier) channel(ctx context.Context) (*amqp.Channel, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, amqp.ErrClosed
	}
	if q.ch != nil && !q.ch.IsClosed() {
		ch := q.ch
		q.mu.Unlock()
		return ch, nil
	}
	if q.reconnecting {
		q.mu.Unlock()
		return nil, ErrReconnecting
	}
	q.reconnecting = true
	conn := q.conn
	q.mu.Unlock()

	conn, ch, err := q.connect(ctx, conn)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.reconnecting = false
	if err != nil {
		return nil, err
	}
	if q.closed {
		_ = ch.Close()
		_ = conn.Close()
		return nil, amqp.ErrClosed
	}
	q.conn, q.ch = conn, ch
	return ch, nil
}

// connect reuses conn when it is still open, otherwise dials with a deadline
// taken from ctx, then opens a channel and declares the queue.
func (q *QueueNotifier) connect(ctx context.Context, conn *amqp.Connection) (*amqp.Connection, *amqp.Channel, error) {
	if conn == nil || conn.IsClosed() {
		c, err := amqp.DialConfig(q.URL, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      contextDialer(ctx),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq: dial: %w", err)
		}
		conn = c
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: channel: %w", err)
	}

	// Durable so jobs survive broker restarts
	if _, err := ch.QueueDeclare(
		q.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	return conn, ch, nil
}

// contextDialer connects with ctx and sets the socket deadline to ctx's
// deadline so a broker that accepts TCP but stalls the handshake cannot
// outlive the caller. amqp clears the deadline once the connection is open.
func contextDialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(DefaultDialTimeout)
		}

		d := net.Dialer{Deadline: deadline}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func (q *QueueNotifier) Send(ctx context.Context, to domain.Identity, msg Message) error {
	now := q.now().UTC()
	job := DeliveryJob{
		ID:        uuid.NewString(),
		Channel:   string(to.Kind),
		To:        to.Value,
		Purpose:   string(msg.Purpose),
		Subject:   msg.Subject,
		Body:      msg.Body,
		ExpiresAt: now.Add(msg.ExpiresIn),
		CreatedAt: now,
	}
	body, err := json.Marshal(job)
	if err != nil {
		return deliveryError("queue", err)
	}

	ch, err := q.channel(ctx)
	if err != nil {
		return deliveryError("queue", err)
	}

	// The job is useless once the code expires
	expiration := ""
	if msg.ExpiresIn > 0 {
		expiration = fmt.Sprint(msg.ExpiresIn.Milliseconds())
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		q.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Timestamp:    now,
			Expiration:   expiration,
			Body:         body,
		},
	)
	if err != nil {
		return deliveryError("queue", fmt.Errorf("rabbitmq: publish: %w", err))
	}
	return nil
}

// Close shuts the channel and connection.
func (q *QueueNotifier) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	var errs []error
	if q.ch != nil && !q.ch.IsClosed() {
		errs = append(errs, q.ch.Close())
	}
	if q.conn != nil && !q.conn.IsClosed() {
		errs = append(errs, q.conn.Close())
	}
	return errors.Join(errs...)
}
