package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yoockh/voicechallan/internal/models"
	"github.com/yoockh/voicechallan/internal/utils"
)

type RedisDraftCache struct {
	rdb *redis.Client
}

func NewRedisDraftCache(rdb *redis.Client) *RedisDraftCache {
	return &RedisDraftCache{rdb: rdb}
}

// maxUpdateRetries bounds optimistic-lock retries in UpdateDraft.
const maxUpdateRetries = 50

func (c *RedisDraftCache) GetDraft(ctx context.Context, draftID string) (*models.Draft, error) {
	return getDraft(ctx, c.rdb, draftID)
}

// getDeler is satisfied by both *redis.Client and *redis.Tx.
type getDeler interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// getDraft reads through cmd so it works inside a WATCH transaction too.
func getDraft(ctx context.Context, cmd getDeler, draftID string) (*models.Draft, error) {
	s, err := cmd.Get(ctx, draftKey(draftID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var d models.Draft
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		// corrupt entry: drop it and report a miss
		_ = cmd.Del(ctx, draftKey(draftID)).Err()
		return nil, utils.ErrNotFound
	}
	return &d, nil
}

// UpdateDraft uses WATCH/MULTI and retries when another writer changed the key
// between the read and the write.
func (c *RedisDraftCache) UpdateDraft(ctx context.Context, draftID string, fn UpdateFunc) (*models.Draft, error) {
	key := draftKey(draftID)

	var out *models.Draft
	txf := func(tx *redis.Tx) error {
		d, err := getDraft(ctx, tx, draftID)
		if err != nil {
			return err
		}
		ttl, err := fn(d)
		if err != nil {
			return err
		}
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		if err == nil {
			out = d
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := c.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, errors.New("draft update contention: retries exhausted")
}

func (c *RedisDraftCache) SetDraft(ctx context.Context, d *models.Draft, ttl time.Duration) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, draftKey(d.DraftID), b, ttl).Err()
}

func (c *RedisDraftCache) DelDraft(ctx context.Context, draftIDs ...string) error {
	if len(draftIDs) == 0 {
		return nil
	}
	keys := make([]string, len(draftIDs))
	for i, id := range draftIDs {
		keys[i] = draftKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}
