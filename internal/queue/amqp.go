package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes to and consumes from durable RabbitMQ queues with
// manual acks. Failed deliveries are republished with an incremented
// x-retry-count header until MaxRetries, then rejected.
type AMQPQueue struct {
	MaxRetries int
	Logger     *zap.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
	wg   sync.WaitGroup

	publish func(topic string, msg amqp.Publishing) error
}

func DialAMQP(url string, maxRetries int, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &AMQPQueue{MaxRetries: maxRetries, Logger: logger, conn: conn, ch: ch}
	q.publish = q.channelPublish
	return q, nil
}

func (q *AMQPQueue) declare(topic string) error {
	_, err := q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	return nil
}

func (q *AMQPQueue) channelPublish(topic string, msg amqp.Publishing) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.Publish("", topic, false, false, msg)
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, body []byte) error {
	if err := q.declare(topic); err != nil {
		return err
	}
	return q.publish(topic, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Subscribe consumes topic until ctx is done or the channel closes.
func (q *AMQPQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if err := q.declare(topic); err != nil {
		return err
	}
	if err := q.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				q.handle(ctx, topic, d, handler)
			}
		}
	}()
	return nil
}

func (q *AMQPQueue) handle(ctx context.Context, topic string, d amqp.Delivery, handler Handler) {
	log := q.Logger.With(zap.String("topic", topic), zap.String("messageId", d.MessageId))

	err := handler(ctx, d.Body)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Error("ack failed", zap.Error(err))
		}
		return
	}

	if IsPermanent(err) {
		log.Error("job rejected", zap.Error(err))
		d.Reject(false)
		return
	}

	retries := retryCount(d.Headers)
	if retries >= q.MaxRetries {
		log.Error("job permanently failed", zap.Int("attempts", retries+1), zap.Error(err))
		d.Reject(false)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(retries + 1)
	repub := amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Body:         d.Body,
	}
	if perr := q.publish(topic, repub); perr != nil {
		log.Error("republish failed, requeueing", zap.Error(perr))
		d.Nack(false, true)
		return
	}
	log.Warn("job failed, retrying", zap.Int("attempt", retries+1), zap.Int("maxRetries", q.MaxRetries), zap.Error(err))
	d.Ack(false)
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// Wait blocks until every consumer loop has returned. A delivery in progress
// when ctx ends is finished first.
func (q *AMQPQueue) Wait() {
	q.wg.Wait()
}

func (q *AMQPQueue) Close() error {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
