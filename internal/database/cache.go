package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Cache implementation over Redis
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	AssistantConfigKey = "assistant:config:%s"
	SystemHealthKey    = "system:health"
	SessionLockKey     = "session:lock:%s"
)

// CacheAssistant caches an assistant's governance configuration
func (c *Cache) CacheAssistant(ctx context.Context, assistant *models.Assistant, expiration time.Duration) error {
	key := fmt.Sprintf(AssistantConfigKey, assistant.ID)

	data, err := json.Marshal(assistant)
	if err != nil {
		return fmt.Errorf("failed to marshal assistant config: %w", err)
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

// GetCachedAssistant retrieves a cached assistant configuration
func (c *Cache) GetCachedAssistant(ctx context.Context, assistantID string) (*models.Assistant, error) {
	key := fmt.Sprintf(AssistantConfigKey, assistantID)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var assistant models.Assistant
	if err := json.Unmarshal([]byte(data), &assistant); err != nil {
		return nil, err
	}

	return &assistant, nil
}

// InvalidateAssistant removes a cached assistant configuration
func (c *Cache) InvalidateAssistant(ctx context.Context, assistantID string) error {
	key := fmt.Sprintf(AssistantConfigKey, assistantID)
	return c.client.Del(ctx, key).Err()
}

// CacheSystemHealth caches system health status
func (c *Cache) CacheSystemHealth(ctx context.Context, health interface{}, expiration time.Duration) error {
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}
	return c.client.Set(ctx, SystemHealthKey, data, expiration).Err()
}

// GetCachedSystemHealth retrieves cached system health into result
func (c *Cache) GetCachedSystemHealth(ctx context.Context, result interface{}) error {
	data, err := c.client.Get(ctx, SystemHealthKey).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), result)
}

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionLocks serializes audit-trail appends per session. Appends to
// different sessions never contend; appends to the same session are rare but
// must preserve message ordering.
type SessionLocks struct {
	client *redis.Client
	logger *logrus.Logger
	ttl    time.Duration
}

func NewSessionLocks(client *redis.Client, logger *logrus.Logger) *SessionLocks {
	return &SessionLocks{
		client: client,
		logger: logger,
		ttl:    10 * time.Second,
	}
}

// Acquire takes the per-session lock, polling until the context expires.
// The returned function releases the lock.
func (l *SessionLocks) Acquire(ctx context.Context, sessionID string) (func(), error) {
	key := fmt.Sprintf(SessionLockKey, sessionID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("session lock wait cancelled: %w", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			l.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to release session lock")
		}
	}
	return release, nil
}
