package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one message body. Returning an error asks for a retry
// unless the error is Permanent.
type Handler func(ctx context.Context, body []byte) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// InMemoryQueue runs every published message on its own goroutine with retry.
type InMemoryQueue struct {
	MaxRetries int
	Backoff    time.Duration
	Logger     *zap.Logger

	mu       sync.Mutex
	handlers map[string][]subscription
	inflight sync.WaitGroup
}

type subscription struct {
	ctx     context.Context
	handler Handler
}

func NewInMemoryQueue(maxRetries int, logger *zap.Logger) *InMemoryQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryQueue{
		MaxRetries: maxRetries,
		Backoff:    500 * time.Millisecond,
		Logger:     logger,
		handlers:   make(map[string][]subscription),
	}
}

// job wraps a message body with retry info
type job struct {
	topic      string
	body       []byte
	retryCount int
}

// Publish hands a copy of body to every subscriber of topic.
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, body []byte) error {
	q.mu.Lock()
	subs := q.handlers[topic]
	q.mu.Unlock()

	if len(subs) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, sub := range subs {
		j := job{topic: topic, body: append([]byte(nil), body...)}
		q.inflight.Add(1)
		go func(sub subscription) {
			defer q.inflight.Done()
			q.process(sub, j)
		}(sub)
	}
	return nil
}

func (q *InMemoryQueue) process(sub subscription, j job) {
	log := q.Logger.With(zap.String("topic", j.topic))
	for {
		err := sub.handler(sub.ctx, j.body)
		if err == nil {
			log.Debug("job processed", zap.Int("attempt", j.retryCount+1))
			return
		}
		if IsPermanent(err) {
			log.Error("job rejected", zap.Error(err))
			return
		}

		j.retryCount++
		if j.retryCount > q.MaxRetries {
			log.Error("job permanently failed", zap.Int("attempts", j.retryCount), zap.Error(err))
			return
		}
		log.Warn("job failed, retrying", zap.Int("attempt", j.retryCount), zap.Int("maxRetries", q.MaxRetries), zap.Error(err))

		select {
		case <-sub.ctx.Done():
			return
		case <-time.After(time.Duration(j.retryCount) * q.Backoff):
		}
	}
}

// Subscribe adds a handler for a topic. ctx is passed to every invocation.
func (q *InMemoryQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], subscription{ctx: ctx, handler: handler})
	return nil
}

// Drain blocks until every published job has finished or given up.
func (q *InMemoryQueue) Drain() {
	q.inflight.Wait()
}
