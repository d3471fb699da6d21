package registry

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisRegistry keeps a version counter, one key per payload and a sorted set of versions per model
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

var _ Registry = &RedisRegistry{}

func NewRedisRegistry(client *redis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "rps:models"
	}
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) modelsKey() string {
	return r.prefix
}

func (r *RedisRegistry) counterKey(name string) string {
	return r.prefix + ":" + name + ":counter"
}

func (r *RedisRegistry) versionsKey(name string) string {
	return r.prefix + ":" + name + ":versions"
}

func (r *RedisRegistry) payloadKey(name string, version int64) string {
	return r.prefix + ":" + name + ":" + strconv.FormatInt(version, 10)
}

func (r *RedisRegistry) Publish(ctx context.Context, name string, payload []byte) (int64, error) {
	version, err := r.client.Incr(ctx, r.counterKey(name)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "allocating a version of %s", name)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.payloadKey(name, version), payload, 0)
		p.ZAdd(ctx, r.versionsKey(name), redis.Z{Score: float64(version), Member: version})
		p.SAdd(ctx, r.modelsKey(), name)
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "publishing %s@%d", name, version)
	}
	return version, nil
}

func (r *RedisRegistry) Latest(ctx context.Context, name string) (int64, []byte, error) {
	members, err := r.client.ZRevRange(ctx, r.versionsKey(name), 0, 0).Result()
	if err != nil {
		return 0, nil, errors.Wrapf(err, "reading versions of %s", name)
	}
	if len(members) == 0 {
		return 0, nil, errors.Wrap(ErrModelNotFound, name)
	}
	version, err := strconv.ParseInt(members[0], 10, 64)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "invalid version %q of %s", members[0], name)
	}
	payload, err := r.Get(ctx, name, version)
	return version, payload, err
}

func (r *RedisRegistry) Get(ctx context.Context, name string, version int64) ([]byte, error) {
	payload, err := r.client.Get(ctx, r.payloadKey(name, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		published, cerr := r.client.ZCard(ctx, r.versionsKey(name)).Result()
		if cerr == nil && published == 0 {
			return nil, errors.Wrap(ErrModelNotFound, name)
		}
		return nil, errors.Wrapf(ErrVersionNotFound, "%s@%d", name, version)
	}
	return payload, errors.Wrapf(err, "reading %s@%d", name, version)
}

func (r *RedisRegistry) Versions(ctx context.Context, name string) ([]int64, error) {
	members, err := r.client.ZRange(ctx, r.versionsKey(name), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading versions of %s", name)
	}
	if len(members) == 0 {
		return nil, errors.Wrap(ErrModelNotFound, name)
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		v, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid version %q of %s", m, name)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *RedisRegistry) Models(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.modelsKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing models")
	}
	sort.Strings(names)
	return names, nil
}
