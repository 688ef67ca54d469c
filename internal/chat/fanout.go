package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"projectportal/pkg/circuitbreaker"
)

// FanoutChannel is the Redis Pub/Sub channel shared by all instances.
const FanoutChannel = "chat:fanout"

// LocalFanout delivers to sessions held by this process only.
type LocalFanout struct {
	hub *Hub
}

func NewLocalFanout(hub *Hub) *LocalFanout {
	return &LocalFanout{hub: hub}
}

func (f *LocalFanout) Deliver(_ context.Context, rooms []string, frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	f.hub.Deliver(rooms, payload)
	return nil
}

type fanoutEnvelope struct {
	Rooms []string `json:"rooms"`
	Frame Frame    `json:"frame"`
}

// RedisFanout publishes frames to every instance through Redis Pub/Sub.
// When Redis is unavailable, or the breaker is open, it degrades to local
// delivery.
type RedisFanout struct {
	rdb     *redis.Client
	local   *LocalFanout
	breaker *circuitbreaker.CircuitBreaker
	channel string
	logger  *zap.Logger
}

func NewRedisFanout(rdb *redis.Client, hub *Hub, logger *zap.Logger) *RedisFanout {
	cfg := circuitbreaker.DefaultConfig()
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("chat fan-out breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &RedisFanout{
		rdb:     rdb,
		local:   NewLocalFanout(hub),
		breaker: circuitbreaker.NewCircuitBreaker(cfg),
		channel: FanoutChannel,
		logger:  logger,
	}
}

// WithChannel overrides the Pub/Sub channel; empty keeps the default.
func (f *RedisFanout) WithChannel(channel string) *RedisFanout {
	if channel != "" {
		f.channel = channel
	}
	return f
}

func (f *RedisFanout) Deliver(ctx context.Context, rooms []string, frame Frame) error {
	body, err := json.Marshal(fanoutEnvelope{Rooms: rooms, Frame: frame})
	if err != nil {
		return err
	}
	err = f.breaker.Execute(func() error {
		return f.rdb.Publish(ctx, f.channel, body).Err()
	})
	if err == nil {
		return nil
	}
	f.logger.Warn("redis fan-out unavailable, delivering locally", zap.Error(err))
	return f.local.Deliver(ctx, rooms, frame)
}

// Run subscribes to the shared channel and delivers every envelope to the
// local hub until ctx is cancelled.
func (f *RedisFanout) Run(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	f.logger.Info("chat fan-out subscribed", zap.String("channel", f.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env fanoutEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				f.logger.Warn("malformed fan-out envelope", zap.Error(err))
				continue
			}
			if err := f.local.Deliver(ctx, env.Rooms, env.Frame); err != nil {
				f.logger.Warn("local fan-out failed", zap.Error(err))
			}
		}
	}
}
