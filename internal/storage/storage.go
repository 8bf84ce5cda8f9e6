// Package storage persists the client's token pair. It is the only durable
// client state: two string values, access_token and refresh_token.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"chatflow/client/internal/config"
	"chatflow/client/internal/models"

	"github.com/redis/go-redis/v9"
)

// Keys under which the pair is persisted.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// TokenStore reads, writes and clears the persisted token pair.
type TokenStore interface {
	Tokens(ctx context.Context) (models.TokenPair, error)
	SaveTokens(ctx context.Context, pair models.TokenPair) error
	ClearTokens(ctx context.Context) error
}

// AccessToken is a convenience read of the access half of the pair.
func AccessToken(ctx context.Context, s TokenStore) (string, error) {
	pair, err := s.Tokens(ctx)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// MemoryStore keeps the pair in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	pair models.TokenPair
}

// NewMemoryStore returns a store seeded with pair.
func NewMemoryStore(pair models.TokenPair) *MemoryStore {
	return &MemoryStore{pair: pair}
}

func (s *MemoryStore) Tokens(context.Context) (models.TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, nil
}

func (s *MemoryStore) SaveTokens(_ context.Context, pair models.TokenPair) error {
	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearTokens(context.Context) error {
	s.mu.Lock()
	s.pair = models.TokenPair{}
	s.mu.Unlock()
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the token store selected by cfg.TokenStore. The returned
// closer releases the backend connection, if any.
func Open(ctx context.Context, cfg *config.Config) (TokenStore, io.Closer, error) {
	switch cfg.TokenStore {
	case config.StoreMemory:
		return NewMemoryStore(models.TokenPair{}), nopCloser{}, nil
	case config.StoreFile:
		path, err := cfg.TokenFilePath()
		if err != nil {
			return nil, nil, err
		}
		return NewFileStore(path), nopCloser{}, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(rdb, cfg.Profile), rdb, nil
	case config.StoreSQL:
		return openSQLStore(ctx, postgresDialector(cfg.PostgresDSN), cfg.Profile)
	}
	return nil, nil, errors.New("unknown token store " + cfg.TokenStore)
}
