// Package redisrepo stores annotations in a single Redis hash so that
// several server replicas share one narrative set.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the hash holding every annotation, keyed by RowID.Key().
const DefaultKey = "wbr:annotations"

// AnnotationRepo implements narrative.Repository on a Redis hash.
type AnnotationRepo struct {
	client *redis.Client
	key    string
}

// NewAnnotationRepo creates a repository. An empty key uses DefaultKey.
func NewAnnotationRepo(client *redis.Client, key string) *AnnotationRepo {
	if key == "" {
		key = DefaultKey
	}
	return &AnnotationRepo{client: client, key: key}
}

func (r *AnnotationRepo) Get(ctx context.Context, id domain.RowID) (domain.Annotation, bool, error) {
	raw, err := r.client.HGet(ctx, r.key, id.Key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Annotation{}, false, nil
	}
	if err != nil {
		return domain.Annotation{}, false, fmt.Errorf("redis hget %s: %w", id, err)
	}
	var a domain.Annotation
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Annotation{}, false, fmt.Errorf("decode annotation %s: %w", id, err)
	}
	return a, true, nil
}

func (r *AnnotationRepo) Put(ctx context.Context, id domain.RowID, a domain.Annotation) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode annotation: %w", err)
	}
	if err := r.client.HSet(ctx, r.key, id.Key(), raw).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", id, err)
	}
	return nil
}

func (r *AnnotationRepo) All(ctx context.Context) (map[domain.RowID]domain.Annotation, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make(map[domain.RowID]domain.Annotation, len(fields))
	for k, v := range fields {
		id, err := domain.RowIDFromKey(k)
		if err != nil {
			return nil, err
		}
		var a domain.Annotation
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			return nil, fmt.Errorf("decode annotation %s: %w", id, err)
		}
		out[id] = a
	}
	return out, nil
}

func (r *AnnotationRepo) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
