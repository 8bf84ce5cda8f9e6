package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chatflow/client/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the pair in two Redis keys so several client processes
// (terminal UI, relay, admin CLI) can share one login.
type RedisStore struct {
	Redis  *redis.Client
	Prefix string
}

// NewRedisStore namespaces keys as chatflow:<profile>:<key>.
func NewRedisStore(rdb *redis.Client, profile string) *RedisStore {
	return &RedisStore{
		Redis:  rdb,
		Prefix: "chatflow:" + profile + ":",
	}
}

func (s *RedisStore) key(name string) string { return s.Prefix + name }

func (s *RedisStore) Tokens(ctx context.Context) (models.TokenPair, error) {
	vals, err := s.Redis.MGet(ctx, s.key(KeyAccessToken), s.key(KeyRefreshToken)).Result()
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("read tokens from redis: %w", err)
	}
	var pair models.TokenPair
	if v, ok := vals[0].(string); ok {
		pair.AccessToken = v
	}
	if v, ok := vals[1].(string); ok {
		pair.RefreshToken = v
	}
	return pair, nil
}

func (s *RedisStore) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setOrDel(ctx, pipe, s.key(KeyAccessToken), pair.AccessToken)
		setOrDel(ctx, pipe, s.key(KeyRefreshToken), pair.RefreshToken)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save tokens to redis: %w", err)
	}
	return nil
}

func setOrDel(ctx context.Context, pipe redis.Pipeliner, key, value string) {
	if value == "" {
		pipe.Del(ctx, key)
		return
	}
	pipe.Set(ctx, key, value, 0)
}

func (s *RedisStore) ClearTokens(ctx context.Context) error {
	if err := s.Redis.Del(ctx, s.key(KeyAccessToken), s.key(KeyRefreshToken)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear tokens in redis: %w", err)
	}
	return nil
}

// Event is the envelope relayed to Redis subscribers.
type Event struct {
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Event kinds.
const (
	EventMessageAdded      = "messageAdded"
	EventNotificationAdded = "notificationAdded"
)

// EventPublisher publishes relayed subscription events on a Redis channel.
type EventPublisher struct {
	Redis   *redis.Client
	Channel string
}

// NewEventPublisher returns a publisher for channel.
func NewEventPublisher(rdb *redis.Client, channel string) *EventPublisher {
	return &EventPublisher{Redis: rdb, Channel: channel}
}

// Publish serialises the payload into an Event and publishes it.
func (p *EventPublisher) Publish(ctx context.Context, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msgBytes, err := json.Marshal(Event{Kind: kind, Payload: raw, ReceivedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := p.Redis.Publish(ctx, p.Channel, string(msgBytes)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}

// Listen subscribes to the channel and calls fn for every event until ctx is
// done. Payloads that do not decode are reported to onErr and skipped.
func (p *EventPublisher) Listen(ctx context.Context, fn func(Event), onErr func(error)) error {
	pubsub := p.Redis.Subscribe(ctx, p.Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.Channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if onErr != nil {
					onErr(fmt.Errorf("decode event: %w", err))
				}
				continue
			}
			fn(ev)
		}
	}
}
