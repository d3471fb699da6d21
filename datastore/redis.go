package datastore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/zeu5/rps-arena/types"
)

// RedisDatastore keeps the samples of a trial in a list, json encoded,
// and the trial ids in a set
type RedisDatastore struct {
	client *redis.Client
	prefix string
}

var _ Datastore = &RedisDatastore{}

func NewRedisDatastore(client *redis.Client, prefix string) *RedisDatastore {
	if prefix == "" {
		prefix = "rps"
	}
	return &RedisDatastore{client: client, prefix: prefix}
}

func (r *RedisDatastore) trialsKey() string {
	return r.prefix + ":trials"
}

func (r *RedisDatastore) samplesKey(trialID string) string {
	return r.prefix + ":samples:" + trialID
}

func (r *RedisDatastore) AddSample(ctx context.Context, sample *types.Sample) error {
	bs, err := json.Marshal(sample)
	if err != nil {
		return errors.Wrap(err, "encoding sample")
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, r.trialsKey(), sample.TrialID)
		p.RPush(ctx, r.samplesKey(sample.TrialID), bs)
		return nil
	})
	return errors.Wrapf(err, "adding sample of trial %s", sample.TrialID)
}

func (r *RedisDatastore) Samples(ctx context.Context, trialID string) ([]*types.Sample, error) {
	raw, err := r.client.LRange(ctx, r.samplesKey(trialID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading samples of trial %s", trialID)
	}
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrTrialNotFound, trialID)
	}
	samples := make([]*types.Sample, len(raw))
	for i, s := range raw {
		sample := &types.Sample{}
		if err := json.Unmarshal([]byte(s), sample); err != nil {
			return nil, errors.Wrapf(err, "decoding sample %d of trial %s", i, trialID)
		}
		samples[i] = sample
	}
	return samples, nil
}

func (r *RedisDatastore) Trials(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.trialsKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing trials")
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisDatastore) DeleteTrial(ctx context.Context, trialID string) error {
	removed, err := r.client.SRem(ctx, r.trialsKey(), trialID).Result()
	if err != nil {
		return errors.Wrapf(err, "deleting trial %s", trialID)
	}
	if removed == 0 {
		return errors.Wrap(ErrTrialNotFound, trialID)
	}
	return errors.Wrapf(r.client.Del(ctx, r.samplesKey(trialID)).Err(), "deleting samples of trial %s", trialID)
}
