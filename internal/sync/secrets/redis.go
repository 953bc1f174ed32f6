package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"haazri/pkg/domain"
)

const secretKeyPrefix = "sync:secret:"

// RedisStore is the production implementation for multi-instance
// deployments; expiry is delegated to Redis TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SecretFor(ctx context.Context, workerID domain.WorkerID, deviceID string) (string, error) {
	secret, err := s.client.Get(ctx, secretKeyPrefix+secretKey(workerID, deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get device secret: %w", err)
	}
	return secret, nil
}

func (s *RedisStore) Provision(ctx context.Context, workerID domain.WorkerID, deviceID, secret string, ttl time.Duration) error {
	if err := s.client.Set(ctx, secretKeyPrefix+secretKey(workerID, deviceID), secret, ttl).Err(); err != nil {
		return fmt.Errorf("set device secret: %w", err)
	}
	return nil
}
