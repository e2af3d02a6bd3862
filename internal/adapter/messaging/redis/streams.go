// Package redis provides a usecase.MessageChannel on Redis Streams with
// consumer groups. A message is acknowledged only after its handler
// succeeds; unacknowledged messages are reclaimed once they have been idle
// for ClaimIdle.
package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

const payloadField = "payload"

// Config for Channel.
type Config struct {
	Prefix      string        // Stream key prefix
	Group       string        // Consumer group
	Consumer    string        // Consumer name, unique per process
	BatchSize   int64         // Messages fetched per read
	Block       time.Duration // How long a read waits for new messages
	Concurrency int           // Messages of a batch handled in parallel
	ClaimIdle   time.Duration // Idle time before a pending message is reclaimed
	MaxLen      int64         // Approximate stream length cap, 0 keeps everything
	Logger      zerolog.Logger
}

// Channel implements usecase.MessageChannel using Redis Streams.
type Channel struct {
	client redis.UniversalClient
	cfg    Config
	log    zerolog.Logger
}

// NewChannel creates a Channel.
func NewChannel(client redis.UniversalClient, cfg Config) *Channel {
	if cfg.Prefix == "" {
		cfg.Prefix = "cashflow:stream:"
	}
	if cfg.Group == "" {
		cfg.Group = "cashflow"
	}
	if cfg.Consumer == "" {
		host, _ := os.Hostname()
		cfg.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = time.Minute
	}

	return &Channel{
		client: client,
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "redis_streams").Str("consumer", cfg.Consumer).Logger(),
	}
}

func (c *Channel) stream(queue string) string {
	return c.cfg.Prefix + queue
}

// Publish appends payload to the queue's stream.
func (c *Channel) Publish(ctx context.Context, queue string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: c.stream(queue),
		Values: map[string]any{payloadField: payload},
	}
	if c.cfg.MaxLen > 0 {
		args.MaxLen = c.cfg.MaxLen
		args.Approx = true
	}

	if err := c.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("%w: xadd %s: %v", domain.ErrTransientStoreFailure, queue, err)
	}
	return nil
}

// Subscribe consumes queue until ctx is cancelled. Stale pending messages
// are reclaimed before new ones are read.
func (c *Channel) Subscribe(ctx context.Context, queue string, handler usecase.MessageHandler) error {
	stream := c.stream(queue)

	err := c.client.XGroupCreateMkStream(ctx, stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("%w: create group %s: %v", domain.ErrTransientStoreFailure, stream, err)
	}

	c.log.Info().Str("stream", stream).Str("group", c.cfg.Group).Msg("subscribed")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := c.fetch(ctx, stream)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if len(msgs) == 0 {
			continue
		}

		c.dispatch(ctx, stream, msgs, handler)
	}
}

func (c *Channel) fetch(ctx context.Context, stream string) ([]redis.XMessage, error) {
	claimed, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    c.cfg.BatchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: xautoclaim %s: %v", domain.ErrTransientStoreFailure, stream, err)
	}
	if len(claimed) > 0 {
		c.log.Debug().Int("count", len(claimed)).Msg("reclaimed pending messages")
		return claimed, nil
	}

	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: xreadgroup %s: %v", domain.ErrTransientStoreFailure, stream, err)
	}

	var msgs []redis.XMessage
	for _, s := range res {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

// dispatch handles a batch with bounded parallelism and acknowledges the
// messages whose handler succeeded.
func (c *Channel) dispatch(ctx context.Context, stream string, msgs []redis.XMessage, handler usecase.MessageHandler) {
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)

	for _, msg := range msgs {
		g.Go(func() error {
			payload, ok := msg.Values[payloadField].(string)
			if !ok {
				c.log.Error().Str("id", msg.ID).Msg("dropping message without payload")
				c.ack(ctx, stream, msg.ID)
				return nil
			}

			if err := handler(ctx, []byte(payload)); err != nil {
				c.log.Warn().Err(err).Str("id", msg.ID).Msg("handler failed, message left pending")
				return nil
			}
			c.ack(ctx, stream, msg.ID)
			return nil
		})
	}

	_ = g.Wait()
}

func (c *Channel) ack(ctx context.Context, stream, id string) {
	if err := c.client.XAck(context.WithoutCancel(ctx), stream, c.cfg.Group, id).Err(); err != nil {
		c.log.Warn().Err(err).Str("id", id).Msg("ack failed")
	}
}
