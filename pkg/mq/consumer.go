package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"projectportal/pkg/metrics"
	"projectportal/pkg/otel"
	"projectportal/pkg/trace"
	"projectportal/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// RetryTracker counts delivery attempts per message across redeliveries.
type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger

	retries    RetryTracker
	maxRetries int64

	stopOnce sync.Once
}

// NewConsumer creates a consumer for a specific routing key. The work queue
// dead-letters into <queue>.dlq.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := DeclareExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare exchange: %w", err))
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare dlq exchange: %w", err))
	}
	if _, err := DeclareDLQQueue(ch, queueName, routingKey); err != nil {
		return fail(err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		deadLetterArgs(),
	)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}

	err = ch.QueueBind(
		q.Name,
		routingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to bind queue: %w", err))
	}

	if err := ch.Qos(16, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set qos: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
		zap.String("dlq", DLQQueueName(queueName)),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// WithRetryLimit bounds redeliveries of retryable failures. Without it a
// retryable failure is requeued indefinitely.
func (c *Consumer) WithRetryLimit(tracker RetryTracker, maxRetries int64) *Consumer {
	c.retries = tracker
	c.maxRetries = maxRetries
	return c
}

func (c *Consumer) IsConnected() bool {
	if c.conn == nil || c.channel == nil {
		return false
	}
	return !c.conn.IsClosed()
}

// Stop cancels the subscription; StartConsuming returns once in-flight
// deliveries are drained.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		if c.channel != nil {
			if err := c.channel.Cancel(c.consumerTag(), false); err != nil {
				c.logger.Warn("Failed to cancel consumer",
					zap.String("queue", c.queue.Name),
					zap.Error(err),
				)
			}
		}
	})
}

func (c *Consumer) Close() {
	c.Stop()
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Consumer) consumerTag() string {
	return c.queue.Name + ".consumer"
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.consumerTag(),
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	// 保证每条消息都会被 ack 或 nack
	for msg := range deliveries {
		c.process(msg)
	}

	c.logger.Info("Consumer stopped",
		zap.String("queue", c.queue.Name),
	)
	return nil
}

func (c *Consumer) process(msg amqp091.Delivery) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), otel.NewMQHeaderCarrier(msg.Headers))
	if traceID, ok := msg.Headers[trace.HeaderName].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, span := otel.MQConsumeSpan(ctx, msg.RoutingKey, c.queue.Name)
	defer span.End()

	start := time.Now()
	log := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
		zap.String(trace.FieldName, trace.FromContext(ctx)),
	)
	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	// Panic 恢复：handler panic 视为可重试失败
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			c.reject(ctx, log, msg, fmt.Errorf("handler panic: %v", r), true, "panic")
			metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, "panic", time.Since(start))
		}
	}()

	if err := c.handler(ctx, msg.Body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		retryable, kind := util.IsRetryableError(err)
		log.Error("Handler error",
			zap.Bool("retryable", retryable),
			zap.String("error_type", kind),
			zap.Error(err),
		)
		outcome := c.reject(ctx, log, msg, err, retryable, kind)
		metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, outcome, time.Since(start))
		return
	}

	if c.retries != nil && msg.MessageId != "" {
		_ = c.retries.Reset(ctx, c.retryKey(msg))
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	} else {
		log.Debug("Message processed successfully")
	}
	metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, "ack", time.Since(start))
}

// reject nacks the delivery, requeueing retryable failures while the retry
// budget lasts and dead-lettering everything else. Returns the outcome label.
func (c *Consumer) reject(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, cause error, retryable bool, kind string) string {
	var attempt int64
	if retryable && c.retries != nil && msg.MessageId != "" {
		n, err := c.retries.IncrementAndGet(ctx, c.retryKey(msg))
		if err != nil {
			log.Warn("Retry counter unavailable, requeueing", zap.Error(err))
		} else {
			attempt = n
		}
	}

	requeue := util.ShouldRetry(attempt, c.limit(), retryable)
	if err := msg.Nack(false, requeue); err != nil {
		log.Error("Failed to nack message", zap.Error(err))
	}
	if requeue {
		return "requeue"
	}

	log.Warn("Message dead-lettered",
		zap.String("dlq", DLQQueueName(c.queue.Name)),
		zap.String("error_type", kind),
		zap.Int64("attempt", attempt),
		zap.NamedError("cause", cause),
	)
	return "dead_letter"
}

func (c *Consumer) limit() int64 {
	if c.retries == nil {
		// 未配置计数器时不限制重试次数
		return int64(^uint64(0) >> 1)
	}
	return c.maxRetries
}

func (c *Consumer) retryKey(msg amqp091.Delivery) string {
	return util.FormatRetryKey(c.queue.Name, msg.MessageId)
}
