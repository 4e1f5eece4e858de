// Package notify tells judges about newly planned assignments over AMQP.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/logger"
	"github.com/okian/juryline/pkg/metrics"
)

const (
	defaultPublishTimeout = 5 * time.Second
	contentTypeJSON       = "application/json"
)

// Notification is the message body published for one new assignment.
type Notification struct {
	Type         string    `json:"type"`
	AssignmentID string    `json:"assignment_id"`
	EventID      string    `json:"event_id"`
	SubmissionID string    `json:"submission_id"`
	JudgeID      string    `json:"judge_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// Notifier announces new assignments.
type Notifier interface {
	Notify(ctx context.Context, assignments []model.Assignment) error
	Close() error
}

// Nop discards notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, []model.Assignment) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// Publisher is the subset of *amqp.Channel used by AMQPNotifier.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes one persistent JSON message per assignment to a
// durable queue through the default exchange.
type AMQPNotifier struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	ch      Publisher
	queue   string
	timeout time.Duration
	closed  bool
	logger  logger.Logger
}

// Option configures an AMQPNotifier.
type Option func(*AMQPNotifier)

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(n *AMQPNotifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(n *AMQPNotifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// Dial connects to the broker at url and declares queue as durable.
func Dial(url, queue string, opts ...Option) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}

	n := New(ch, q.Name, opts...)
	n.conn = conn
	return n, nil
}

// New wraps an already opened publisher.
func New(p Publisher, queue string, opts ...Option) *AMQPNotifier {
	n := &AMQPNotifier{
		ch:      p,
		queue:   queue,
		timeout: defaultPublishTimeout,
		logger:  logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify publishes every assignment. It stops at the first failure and
// reports how far it got.
func (n *AMQPNotifier) Notify(ctx context.Context, assignments []model.Assignment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}

	for i := range assignments {
		a := &assignments[i]
		body, err := json.Marshal(Notification{
			Type:         "assignment.created",
			AssignmentID: a.ID,
			EventID:      a.EventID,
			SubmissionID: a.SubmissionID,
			JudgeID:      a.JudgeID,
			AssignedAt:   a.CreatedAt,
		})
		if err != nil {
			metrics.RecordNotification("error")
			return fmt.Errorf("encode assignment %s: %w", a.ID, err)
		}

		pctx, cancel := context.WithTimeout(ctx, n.timeout)
		err = n.ch.PublishWithContext(pctx, "", n.queue, false, false, amqp.Publishing{
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp.Persistent,
			MessageId:    a.ID,
			Timestamp:    a.CreatedAt,
			Body:         body,
		})
		cancel()
		if err != nil {
			metrics.RecordNotification("error")
			n.logger.Error(ctx, "publish failed",
				logger.String("assignment_id", a.ID),
				logger.Int("published", i),
				logger.Int("total", len(assignments)),
				logger.Error(err),
			)
			return fmt.Errorf("%w: assignment %s: %w", ErrPublish, a.ID, err)
		}
		metrics.RecordNotification("published")
	}
	return nil
}

// Close releases the channel and the connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	err := n.ch.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
