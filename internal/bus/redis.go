package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/starford/reoverflow/internal/events"
)

// RedisOptions configures the Redis Streams bus.
type RedisOptions struct {
	Addr          string
	Password      string
	DB            int
	Stream        string
	Group         string
	Consumer      string
	MaxLen        int64
	Block         time.Duration
	ReclaimIdle   time.Duration
	MaxDeliveries int
	Logger        *slog.Logger
}

// Redis is a bus on a Redis stream with one consumer group. Entries are
// acknowledged only after the handler succeeds; failed entries stay pending
// and are reclaimed once idle for ReclaimIdle.
type Redis struct {
	rdb  *goredis.Client
	opts RedisOptions
	log  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ Bus = (*Redis)(nil)

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("bus: missing redis addr")
	}
	if opts.Stream == "" {
		opts.Stream = "reoverflow.events"
	}
	if opts.Group == "" {
		opts.Group = "search-indexer"
	}
	if opts.Consumer == "" {
		opts.Consumer = "indexer-1"
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	if opts.ReclaimIdle <= 0 {
		opts.ReclaimIdle = 30 * time.Second
	}
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("bus: redis ping: %w", err)
	}

	return &Redis{
		rdb:  rdb,
		opts: opts,
		log:  opts.Logger.With(slog.String("stream", opts.Stream), slog.String("group", opts.Group)),
	}, nil
}

// Publish appends ev to the stream.
func (r *Redis) Publish(ctx context.Context, ev events.Event) error {
	values, err := encodeValues(ev)
	if err != nil {
		return err
	}
	args := &goredis.XAddArgs{
		Stream: r.opts.Stream,
		Values: values,
	}
	if r.opts.MaxLen > 0 {
		args.MaxLen = r.opts.MaxLen
		args.Approx = true
	}
	if err := r.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("bus: xadd: %w", err)
	}
	return nil
}

// Consume reads new entries and reclaims stale pending ones until ctx is
// cancelled or the bus is closed.
func (r *Redis) Consume(ctx context.Context, h Handler) error {
	if err := r.ensureGroup(ctx); err != nil {
		return err
	}
	r.log.Info("bus: consuming", slog.String("consumer", r.opts.Consumer))

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.reclaim(ctx, h); err != nil && ctx.Err() == nil {
			if errors.Is(err, goredis.ErrClosed) {
				return nil
			}
			r.log.Warn("bus: reclaim failed", slog.String("error", err.Error()))
		}

		streams, err := r.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    r.opts.Group,
			Consumer: r.opts.Consumer,
			Streams:  []string{r.opts.Stream, ">"},
			Count:    16,
			Block:    r.opts.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) || ctx.Err() != nil {
				continue
			}
			if errors.Is(err, goredis.ErrClosed) {
				return nil
			}
			r.log.Error("bus: xreadgroup failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range streams {
			for _, msg := range s.Messages {
				r.handle(ctx, h, msg, 1)
			}
		}
	}
}

func (r *Redis) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.opts.Stream, r.opts.Group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("bus: create group: %w", err)
	}
	return nil
}

func (r *Redis) reclaim(ctx context.Context, h Handler) error {
	msgs, _, err := r.rdb.XAutoClaim(ctx, &goredis.XAutoClaimArgs{
		Stream:   r.opts.Stream,
		Group:    r.opts.Group,
		Consumer: r.opts.Consumer,
		MinIdle:  r.opts.ReclaimIdle,
		Start:    "0-0",
		Count:    16,
	}).Result()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		r.handle(ctx, h, msg, r.deliveryCount(ctx, msg.ID))
	}
	return nil
}

func (r *Redis) deliveryCount(ctx context.Context, id string) int {
	pending, err := r.rdb.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: r.opts.Stream,
		Group:  r.opts.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 2
	}
	return int(pending[0].RetryCount)
}

func (r *Redis) handle(ctx context.Context, h Handler, msg goredis.XMessage, attempt int) {
	ev, err := decodeValues(msg.Values)
	if err != nil {
		r.log.Error("bus: undecodable entry, acknowledging", slog.String("entry_id", msg.ID), slog.String("error", err.Error()))
		r.ack(ctx, msg.ID)
		return
	}
	if err := h(ctx, Delivery{Event: ev, Attempt: attempt}); err != nil {
		if attempt >= r.opts.MaxDeliveries {
			r.log.Error("bus: delivery budget spent, dropping event",
				slog.String("entry_id", msg.ID),
				slog.String("event_id", ev.ID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			r.ack(ctx, msg.ID)
		}
		return
	}
	r.ack(ctx, msg.ID)
}

func (r *Redis) ack(ctx context.Context, id string) {
	if err := r.rdb.XAck(ctx, r.opts.Stream, r.opts.Group, id).Err(); err != nil {
		r.log.Warn("bus: xack failed", slog.String("entry_id", id), slog.String("error", err.Error()))
	}
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	r.closeOnce.Do(func() { r.closeErr = r.rdb.Close() })
	return r.closeErr
}

func encodeValues(ev events.Event) (map[string]any, error) {
	raw, err := events.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("bus: encode event: %w", err)
	}
	return map[string]any{
		"event":       string(raw),
		"type":        string(ev.Type),
		"question_id": ev.QuestionID,
	}, nil
}

func decodeValues(values map[string]any) (events.Event, error) {
	raw, ok := values["event"].(string)
	if !ok {
		return events.Event{}, fmt.Errorf("bus: entry has no event field")
	}
	return events.Unmarshal([]byte(raw))
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
