// Package amqp carries receipt jobs between the API and worker processes
// over RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
)

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Client publishes and consumes receipt jobs. Job state is mirrored into
// store so the API can report progress.
type Client struct {
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	queueName    string
	store        jobs.JobStore
	backoff      func(attempt int) time.Duration

	state        int32
	failureCount int64
	mu           sync.Mutex
	lastFailure  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient dials url and declares a durable direct exchange and queue.
func NewClient(url, exchangeName, queueName string, store jobs.JobStore) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client, err := newClient(ch, exchangeName, queueName, store)
	if err != nil {
		conn.Close()
		return nil, err
	}
	client.conn = conn
	return client, nil
}

func newClient(ch channel, exchangeName, queueName string, store jobs.JobStore) (*Client, error) {
	client := &Client{
		channel:      ch,
		exchangeName: exchangeName,
		queueName:    queueName,
		store:        store,
		backoff:      jobs.Backoff,
	}
	if err := client.setup(); err != nil {
		ch.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return client, nil
}

func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// Routing key is the queue name on the direct exchange.
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishAnalyzeReceipt implements jobs.Publisher.
func (c *Client) PublishAnalyzeReceipt(ctx context.Context, job *jobs.AnalyzeReceiptJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish job: circuit breaker is open")
	}

	jobs.Prepare(job, uuid.NewString, time.Now())
	if c.store != nil {
		if err := c.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("save job: %w", err)
		}
	}

	if err := c.publish(ctx, job); err != nil {
		if isConnectionError(err) {
			c.recordFailure()
		}
		return err
	}
	c.recordSuccess()

	log := logger.FromContext(ctx)

	log.Info().
		Str("job_id", job.JobID).
		Str("exchange", c.exchangeName).
		Str("queue", c.queueName).
		Msg("Published receipt job")
	return nil
}

func (c *Client) publish(ctx context.Context, job *jobs.AnalyzeReceiptJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    job.JobID,
		Type:         string(job.Type()),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Start implements jobs.Consumer. Deliveries are handled one at a time.
func (c *Client) Start(ctx context.Context, handler jobs.JobHandler) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx, deliveries, handler)
	}()

	log := logger.FromContext(ctx)
	log.Info().Str("queue", c.queueName).Msg("Started consuming receipt jobs")
	return nil
}

func (c *Client) consume(ctx context.Context, deliveries <-chan amqp091.Delivery, handler jobs.JobHandler) {
	log := logger.FromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Err(ctx.Err()).Msg("Stopping message consumption")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Warn().Msg("Delivery channel closed")
				return
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler jobs.JobHandler) {
	log := logger.FromContext(ctx)

	var job jobs.AnalyzeReceiptJob
	if err := json.Unmarshal(d.Body, &job); err != nil || job.JobID == "" {
		log.Error().Err(err).Msg("Failed to unmarshal job message")
		_ = d.Nack(false, false)
		return
	}
	log = log.With().Str("job_id", job.JobID).Logger()

	now := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &now
	c.save(ctx, &job)

	err := handler(ctx, &job)
	retry := jobs.Finish(&job, err, time.Now())
	c.save(ctx, &job)

	if err != nil {
		log.Warn().Err(err).Int("retry_count", job.RetryCount).Str("status", string(job.Status)).Msg("Job attempt failed")
	}

	// The retry travels as a new message carrying the incremented RetryCount.
	if retry {
		delay := c.backoff(job.RetryCount - 1)
		retryJob := job.Clone()
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			retryJob.Status = jobs.JobStatusPending
			retryJob.StartedAt = nil
			retryJob.CompletedAt = nil
			c.save(ctx, retryJob)
			if err := c.publish(context.WithoutCancel(ctx), retryJob); err != nil {
				log.Error().Err(err).Msg("Failed to re-publish job")
			}
		}()
	}

	_ = d.Ack(false)
}

func (c *Client) save(ctx context.Context, job *jobs.AnalyzeReceiptJob) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements jobs.Consumer.
func (c *Client) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (c *Client) Close() error {
	_ = c.Stop(context.Background())
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastFailure) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var _ jobs.Publisher = (*Client)(nil)
var _ jobs.Consumer = (*Client)(nil)
