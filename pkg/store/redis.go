package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/ritzau/thoughtgraph/pkg/model"
)

const (
	redisKeyPrefix = "thoughtgraph:"
	redisIDSet     = redisKeyPrefix + "conns"

	// optimistic transactions retried before Merge gives up
	redisMergeRetries = 16
)

// RedisBackend stores each connection as a JSON string keyed by id, with a
// pair key pointing at the id and a set of all ids for listing.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to addr and checks the connection
func NewRedisBackend(ctx context.Context, addr string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendFromClient wraps an existing client
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func connKey(id string) string {
	return redisKeyPrefix + "conn:" + id
}

func pairKey(sourceID, targetID string) string {
	return redisKeyPrefix + "pair:" + sourceID + "|" + targetID
}

func (b *RedisBackend) Name() string {
	return "redis"
}

func (b *RedisBackend) Get(ctx context.Context, id string) (model.Connection, bool, error) {
	data, err := b.client.Get(ctx, connKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Connection{}, false, nil
	}
	if err != nil {
		return model.Connection{}, false, err
	}
	var c model.Connection
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return model.Connection{}, false, fmt.Errorf("decode connection %s: %w", id, err)
	}
	return c, true, nil
}

func (b *RedisBackend) FindPair(ctx context.Context, sourceID, targetID string) (model.Connection, bool, error) {
	id, err := b.client.Get(ctx, pairKey(sourceID, targetID)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Connection{}, false, nil
	}
	if err != nil {
		return model.Connection{}, false, err
	}
	return b.Get(ctx, id)
}

func (b *RedisBackend) Put(ctx context.Context, c model.Connection) error {
	old, existed, err := b.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode connection %s: %w", c.ID, err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if existed && (old.SourceID != c.SourceID || old.TargetID != c.TargetID) {
			pipe.Del(ctx, pairKey(old.SourceID, old.TargetID))
		}
		pipe.Set(ctx, connKey(c.ID), data, 0)
		pipe.Set(ctx, pairKey(c.SourceID, c.TargetID), c.ID, 0)
		pipe.SAdd(ctx, redisIDSet, c.ID)
		return nil
	})
	return err
}

// Merge watches the pair key, which every write to the pair touches, and
// retries when another client changed it between the read and the commit.
func (b *RedisBackend) Merge(ctx context.Context, c model.Connection) (model.Connection, bool, error) {
	pk := pairKey(c.SourceID, c.TargetID)

	var (
		result  model.Connection
		created bool
	)
	merge := func(tx *redis.Tx) error {
		id, err := tx.Get(ctx, pk).Result()
		switch {
		case errors.Is(err, redis.Nil):
			result, created = c, true
		case err != nil:
			return err
		default:
			data, err := tx.Get(ctx, connKey(id)).Result()
			if err != nil {
				return fmt.Errorf("load connection %s: %w", id, err)
			}
			result, created = model.Connection{}, false
			if err := json.Unmarshal([]byte(data), &result); err != nil {
				return fmt.Errorf("decode connection %s: %w", id, err)
			}
			result.Strength = model.ClampStrength(result.Strength + 1)
		}

		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode connection %s: %w", result.ID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, connKey(result.ID), data, 0)
			pipe.Set(ctx, pk, result.ID, 0)
			pipe.SAdd(ctx, redisIDSet, result.ID)
			return nil
		})
		return err
	}

	for range redisMergeRetries {
		err := b.client.Watch(ctx, merge, pk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return model.Connection{}, false, err
		}
		return result, created, nil
	}
	return model.Connection{}, false, fmt.Errorf("merge %s: %w", pk, redis.TxFailedErr)
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	old, existed, err := b.Get(ctx, id)
	if err != nil || !existed {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, connKey(id), pairKey(old.SourceID, old.TargetID))
		pipe.SRem(ctx, redisIDSet, id)
		return nil
	})
	return err
}

func (b *RedisBackend) List(ctx context.Context) ([]model.Connection, error) {
	ids, err := b.client.SMembers(ctx, redisIDSet).Result()
	if err != nil {
		return nil, err
	}
	result := make([]model.Connection, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = connKey(id)
	}
	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, val := range values {
		s, ok := val.(string)
		if !ok {
			// id set and record out of step; skip the missing record
			continue
		}
		var c model.Connection
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return nil, fmt.Errorf("decode connection %s: %w", ids[i], err)
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		return connectionLess(result[i], result[j])
	})
	return result, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
