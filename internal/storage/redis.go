package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/combat-engine/pkg/encounter"
	"github.com/jwebster45206/combat-engine/pkg/storage"
)

// EncounterTTL is how long an idle encounter survives in Redis.
const EncounterTTL = 24 * time.Hour

// RedisStorage implements the Storage interface using Redis for
// encounters and filesystem for combatant templates
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:  rdb,
		logger:  logger,
		dataDir: dataDir,
	}
}

// NewRedisStorageWithClient wraps an existing client, used by tests
// and by services that share one connection pool.
func NewRedisStorageWithClient(client *redis.Client, dataDir string, logger *slog.Logger) *RedisStorage {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &RedisStorage{client: client, logger: logger, dataDir: dataDir}
}

// GetClient exposes the underlying Redis client for pub/sub and queue
// services that share the connection.
func (r *RedisStorage) GetClient() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Encounter operations (Redis-backed)

func (r *RedisStorage) SaveEncounter(ctx context.Context, id uuid.UUID, e *encounter.Encounter) error {
	data, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("Failed to marshal encounter", "uuid", id, "error", err)
		return fmt.Errorf("failed to marshal encounter: %w", err)
	}

	key := "encounter:" + id.String()
	cmd := r.client.Set(ctx, key, string(data), EncounterTTL)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to save encounter", "uuid", id, "error", err)
		return fmt.Errorf("failed to save encounter: %w", err)
	}

	return nil
}

func (r *RedisStorage) LoadEncounter(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	key := "encounter:" + id.String()
	cmd := r.client.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err == redis.Nil {
			r.logger.Warn("Encounter not found", "uuid", id)
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load encounter", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to load encounter: %w", err)
	}

	data := cmd.Val()
	if data == "" {
		r.logger.Warn("Encounter not found", "uuid", id)
		return nil, nil
	}

	var e encounter.Encounter
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		r.logger.Error("Failed to unmarshal encounter", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal encounter: %w", err)
	}

	return &e, nil
}

func (r *RedisStorage) DeleteEncounter(ctx context.Context, id uuid.UUID) error {
	key := "encounter:" + id.String()
	cmd := r.client.Del(ctx, key)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to delete encounter", "uuid", id, "error", err)
		return fmt.Errorf("failed to delete encounter: %w", err)
	}
	return nil
}
