package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
)

// ErrCacheMiss is returned when no fresh prediction exists for the key.
var ErrCacheMiss = errors.New("prediction cache miss")

// Cache stores the latest prediction per (patient, medication) key with a
// freshness window. A fresh read short-circuits recomputation; concurrent
// recomputes of a stale key are harmless since the computation is pure.
type Cache interface {
	Get(ctx context.Context, patientID, medicationID string) (models.AdherencePrediction, error)
	Set(ctx context.Context, prediction models.AdherencePrediction) error
	Invalidate(ctx context.Context, patientID, medicationID string) error
}

func cacheKey(patientID, medicationID string) string {
	if medicationID == "" {
		medicationID = "all"
	}
	return fmt.Sprintf("prediction:%s:%s", patientID, medicationID)
}

// RedisCache is the production cache backend.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, patientID, medicationID string) (models.AdherencePrediction, error) {
	payload, err := c.client.Get(ctx, cacheKey(patientID, medicationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.AdherencePrediction{}, ErrCacheMiss
	}
	if err != nil {
		return models.AdherencePrediction{}, fmt.Errorf("cache read failed: %w", err)
	}

	var prediction models.AdherencePrediction
	if err := json.Unmarshal(payload, &prediction); err != nil {
		return models.AdherencePrediction{}, fmt.Errorf("cache entry corrupt: %w", err)
	}
	return prediction, nil
}

func (c *RedisCache) Set(ctx context.Context, prediction models.AdherencePrediction) error {
	payload, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	key := cacheKey(prediction.PatientID, prediction.MedicationID)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, patientID, medicationID string) error {
	return c.client.Del(ctx, cacheKey(patientID, medicationID)).Err()
}

// MemoryCache backs tests and cacheless deployments.
type MemoryCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	prediction models.AdherencePrediction
	storedAt   time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, patientID, medicationID string) (models.AdherencePrediction, error) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(patientID, medicationID)]
	c.mu.RUnlock()
	if !ok || time.Since(entry.storedAt) > c.ttl {
		return models.AdherencePrediction{}, ErrCacheMiss
	}
	return entry.prediction, nil
}

func (c *MemoryCache) Set(ctx context.Context, prediction models.AdherencePrediction) error {
	c.mu.Lock()
	c.entries[cacheKey(prediction.PatientID, prediction.MedicationID)] = memoryEntry{
		prediction: prediction,
		storedAt:   time.Now(),
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, patientID, medicationID string) error {
	c.mu.Lock()
	delete(c.entries, cacheKey(patientID, medicationID))
	c.mu.Unlock()
	return nil
}
