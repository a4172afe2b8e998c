package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const deactivatedKey = "admin:deactivated"

// RedisStore keeps each settings section as a JSON string under
// "<prefix>:<section>" and the deactivated users in a set.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "settings"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) sections(a *All) map[string]any {
	return map[string]any{
		"general":       &a.General,
		"model":         &a.Model,
		"notifications": &a.Notifications,
		"security":      &a.Security,
	}
}

// Load returns the stored sections; sections never saved keep their
// defaults.
func (s *RedisStore) Load(ctx context.Context) (All, error) {
	all := Defaults()
	for name, dst := range s.sections(&all) {
		raw, err := s.rdb.Get(ctx, s.prefix+":"+name).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return All{}, err
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return All{}, err
		}
	}
	return all, nil
}

func (s *RedisStore) Save(ctx context.Context, a All) error {
	pipe := s.rdb.TxPipeline()
	for name, src := range s.sections(&a) {
		b, err := json.Marshal(src)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.prefix+":"+name, b, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) SetDeactivated(ctx context.Context, userID string, off bool) error {
	if off {
		return s.rdb.SAdd(ctx, deactivatedKey, userID).Err()
	}
	return s.rdb.SRem(ctx, deactivatedKey, userID).Err()
}

func (s *RedisStore) Deactivated(ctx context.Context) (map[string]bool, error) {
	ids, err := s.rdb.SMembers(ctx, deactivatedKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
