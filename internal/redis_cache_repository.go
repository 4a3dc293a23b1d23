package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// cachedRepository keeps the full record list of a model in Redis. Forms read it for
// relationship options; every write through the handle drops the cached list.
// Cache failures never fail the operation.
type cachedRepository struct {
	model  string
	inner  zoun.Repository
	client redis.Cmdable
	codec  *documentCodec
	ttl    time.Duration
	key    string
}

// NewCachedRepository wraps a storage handle with a Redis cache of FindAll results.
func NewCachedRepository(model string, inner zoun.Repository, client redis.Cmdable, keyPrefix string, ttl time.Duration, recordType reflect.Type, introspector *Introspector) (zoun.Repository, error) {
	codec, err := newDocumentCodec(recordType, introspector)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%s:all", keyPrefix, model)
	if keyPrefix == "" {
		key = model + ":all"
	}
	return &cachedRepository{
		model:  model,
		inner:  inner,
		client: client,
		codec:  codec,
		ttl:    ttl,
		key:    key,
	}, nil
}

func (c *cachedRepository) FindByID(ctx context.Context, id any) (any, bool, error) {
	return c.inner.FindByID(ctx, id)
}

func (c *cachedRepository) FindAllPaginated(ctx context.Context, page zoun.PageRequest) ([]any, int64, error) {
	return c.inner.FindAllPaginated(ctx, page)
}

func (c *cachedRepository) FindAll(ctx context.Context) ([]any, error) {
	if records, ok := c.load(ctx); ok {
		EmitCacheLookup(ctx, c.model, true)
		return records, nil
	}
	EmitCacheLookup(ctx, c.model, false)

	records, err := c.inner.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, records)
	return records, nil
}

func (c *cachedRepository) Save(ctx context.Context, record any) (any, error) {
	saved, err := c.inner.Save(ctx, record)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return saved, nil
}

func (c *cachedRepository) DeleteByID(ctx context.Context, id any) error {
	if err := c.inner.DeleteByID(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *cachedRepository) load(ctx context.Context) ([]any, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.S().Warnw("failed to read option cache", "model", c.model, "error", err)
		}
		return nil, false
	}

	var docs []json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		zap.S().Warnw("discarding unreadable option cache", "model", c.model, "error", err)
		return nil, false
	}
	records := make([]any, 0, len(docs))
	for _, doc := range docs {
		record, err := c.codec.decode(doc)
		if err != nil {
			zap.S().Warnw("discarding unreadable option cache", "model", c.model, "error", err)
			return nil, false
		}
		records = append(records, record)
	}
	return records, true
}

func (c *cachedRepository) store(ctx context.Context, records []any) {
	raw, err := json.Marshal(records)
	if err != nil {
		zap.S().Warnw("failed to encode option cache", "model", c.model, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		zap.S().Warnw("failed to write option cache", "model", c.model, "error", err)
	}
}

func (c *cachedRepository) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		zap.S().Warnw("failed to invalidate option cache", "model", c.model, "error", err)
	}
}
