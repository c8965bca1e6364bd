package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-campaign/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const relayChannel = "campaign:live"

type relayMessage struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay carries published frames between service instances over Redis pub/sub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisRelay returns nil when the relay is disabled.
func NewRedisRelay(lc fx.Lifecycle, cfg *config.Config, hub *Hub, logger *zap.Logger) (*RedisRelay, error) {
	if !cfg.Redis.Enabled {
		logger.Info("redis relay disabled, live updates stay on this instance")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := &RedisRelay{
		client: client,
		hub:    hub,
		logger: logger.Named("relay"),
		done:   make(chan struct{}),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			r.cancel()
			select {
			case <-r.done:
			case <-ctx.Done():
			}
			return client.Close()
		},
	})

	return r, nil
}

func (r *RedisRelay) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	sub := r.client.Subscribe(ctx, relayChannel)

	go func() {
		defer close(r.done)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.deliver([]byte(msg.Payload))
			}
		}
	}()
	r.logger.Info("redis relay subscribed", zap.String("channel", relayChannel))
}

// Broadcast publishes a frame for every instance, this one included.
func (r *RedisRelay) Broadcast(ctx context.Context, topic string, payload []byte) error {
	data, err := json.Marshal(relayMessage{Topic: topic, Payload: payload})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, relayChannel, data).Err()
}

func (r *RedisRelay) deliver(data []byte) {
	var msg relayMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Topic == "" {
		r.logger.Warn("discarding malformed relay message", zap.Error(err))
		return
	}
	r.hub.PublishToTopic(msg.Topic, msg.Payload)
}
