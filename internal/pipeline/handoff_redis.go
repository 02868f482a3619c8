package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisHandoffStore keeps task results in Redis so several processes can share runs.
// Keys are "<prefix>:<run id>:<stage>" and a per-run set tracks them for Release.
type RedisHandoffStore struct {
	client    goredis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisHandoffStore creates a store over an existing client. A zero ttl keeps entries until released.
func NewRedisHandoffStore(client goredis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisHandoffStore {
	if keyPrefix == "" {
		keyPrefix = "bankcap:handoff"
	}
	return &RedisHandoffStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisHandoffStore) resultKey(runID, stage string) string {
	return s.keyPrefix + ":" + runID + ":" + stage
}

func (s *RedisHandoffStore) indexKey(runID string) string {
	return s.keyPrefix + ":" + runID
}

// Put indexes the key for Release, then records the result with SETNX so an existing
// entry is never replaced
func (s *RedisHandoffStore) Put(ctx context.Context, result TaskResult) error {
	if result.RunID == "" || result.Stage == "" {
		return NewValidationError("task result requires run id and stage")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("handoff marshal %s/%s: %w", result.RunID, result.Stage, err)
	}

	key := s.resultKey(result.RunID, result.Stage)
	index := s.indexKey(result.RunID)

	// index first: a failed SADD leaves no result behind, so the attempt can be retried
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, index, key)
	if s.ttl > 0 {
		pipe.Expire(ctx, index, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("handoff index %s: %w", index, err)
	}

	ok, err := s.client.SetNX(ctx, key, data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("handoff put %s: %w", key, err)
	}
	if !ok {
		return ErrResultExists
	}
	return nil
}

// Get returns the result for a run and stage
func (s *RedisHandoffStore) Get(ctx context.Context, runID, stage string) (TaskResult, error) {
	key := s.resultKey(runID, stage)
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return TaskResult{}, ErrResultNotFound
		}
		return TaskResult{}, fmt.Errorf("handoff get %s: %w", key, err)
	}

	var result TaskResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return TaskResult{}, fmt.Errorf("handoff unmarshal %s: %w", key, err)
	}
	return result, nil
}

// Release deletes every result of a run along with its index
func (s *RedisHandoffStore) Release(ctx context.Context, runID string) error {
	index := s.indexKey(runID)
	keys, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("handoff release %s: %w", runID, err)
	}
	keys = append(keys, index)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("handoff release %s: %w", runID, err)
	}
	return nil
}
