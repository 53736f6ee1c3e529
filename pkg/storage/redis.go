package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the artifact keys.
const DefaultRedisPrefix = "sepal"

// RedisStore implements Store on top of Redis so that several server
// replicas can share one trained model. Both artifacts are written in a
// single MULTI/EXEC transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisStore creates a new Redis-backed store.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: artifact expiration; 0 keeps artifacts until retrained
//
// Returns an error if the connection to Redis fails or if parameters are invalid.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl < 0 {
		return nil, errors.New("redis ttl cannot be negative")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
		ttl:    ttl,
	}, nil
}

func (r *RedisStore) modelKey() string {
	return r.prefix + ":model"
}

func (r *RedisStore) metadataKey() string {
	return r.prefix + ":model-info"
}

// Save stores both artifacts atomically.
func (r *RedisStore) Save(ctx context.Context, a Artifacts) error {
	if err := a.Validate(); err != nil {
		return err
	}

	modelData, err := encodeModel(a.Model)
	if err != nil {
		return err
	}
	metadataData, err := encodeMetadata(a.Metadata)
	if err != nil {
		return err
	}

	client, err := r.conn()
	if err != nil {
		return err
	}

	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.modelKey(), modelData, r.ttl)
		pipe.Set(ctx, r.metadataKey(), metadataData, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store artifacts in redis: %w", err)
	}
	return nil
}

// Load fetches both artifacts with a single MGET.
func (r *RedisStore) Load(ctx context.Context) (Artifacts, bool, error) {
	client, err := r.conn()
	if err != nil {
		return Artifacts{}, false, err
	}

	values, err := client.MGet(ctx, r.modelKey(), r.metadataKey()).Result()
	if err != nil {
		return Artifacts{}, false, fmt.Errorf("failed to get artifacts from redis: %w", err)
	}

	modelData, ok := values[0].(string)
	if !ok {
		return Artifacts{}, false, nil
	}
	metadataData, ok := values[1].(string)
	if !ok {
		return Artifacts{}, false, errors.New("model found in redis without its metadata record")
	}

	artifacts, err := decode([]byte(modelData), []byte(metadataData))
	if err != nil {
		return Artifacts{}, false, err
	}
	return artifacts, true, nil
}

func (r *RedisStore) conn() (*redis.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return nil, errors.New("redis store is closed")
	}
	return r.client, nil
}

// Close closes the Redis client connection.
// It is safe to call multiple times (idempotent).
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}

	return err
}

// Ping checks the Redis connection health.
// Returns an error if the connection is unavailable.
func (r *RedisStore) Ping(ctx context.Context) error {
	client, err := r.conn()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}
