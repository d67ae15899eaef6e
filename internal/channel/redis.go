package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRetryDelay is the pause after a receive error before receiving again.
const redisRetryDelay = time.Second

// Redis is a channel fed by Redis Pub/Sub. Every message on the subscribed
// topics must be an event envelope.
type Redis struct {
	pubsub *redis.PubSub
	topics []string
	queue  *Queue
	opts   options

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedis subscribes to topics and starts receiving. It returns once the
// subscription is confirmed by the server.
func NewRedis(ctx context.Context, client *redis.Client, topics []string, opts ...Option) (*Redis, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("redis channel: no topics")
	}

	ps := client.Subscribe(ctx, topics...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis channel: subscribe %v: %w", topics, err)
	}

	rctx, cancel := context.WithCancel(context.Background())
	r := &Redis{
		pubsub: ps,
		topics: topics,
		queue:  NewQueue(),
		opts:   buildOptions(opts),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.receive(rctx)

	r.opts.logger.Info("redis channel subscribed", "topics", topics)
	return r, nil
}

func (r *Redis) receive(ctx context.Context) {
	defer close(r.done)
	for {
		msg, err := r.pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			r.opts.logger.Error("redis receive failed", "topics", r.topics, "error", err)
			r.queue.Fail(fmt.Errorf("redis channel: %w", err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(redisRetryDelay):
			}
			continue
		}
		deliver(r.queue, &r.opts, msg.Channel, []byte(msg.Payload))
	}
}

// PollAll implements Channel.
func (r *Redis) PollAll() ([]any, error) {
	return r.queue.PollAll()
}

// Close unsubscribes and stops the receive loop. Events already received
// can still be polled.
func (r *Redis) Close() error {
	r.cancel()
	err := r.pubsub.Close()
	<-r.done
	r.queue.Close()
	return err
}
