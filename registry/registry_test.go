package registry

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRegistry(client, ""), mr
}

// checkRegistry runs the behaviour shared by every registry
func checkRegistry(t *testing.T, r Registry) {
	ctx := context.Background()

	_, _, err := r.Latest(ctx, "dqn")
	assert.ErrorIs(t, err, ErrModelNotFound)
	_, err = r.Versions(ctx, "dqn")
	assert.ErrorIs(t, err, ErrModelNotFound)
	_, err = r.Get(ctx, "dqn", 1)
	assert.ErrorIs(t, err, ErrModelNotFound)

	v1, err := r.Publish(ctx, "dqn", []byte("w1"))
	require.NoError(t, err)
	v2, err := r.Publish(ctx, "dqn", []byte("w2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(2), v2)

	version, payload, err := r.Latest(ctx, "dqn")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, []byte("w2"), payload)

	payload, err = r.Get(ctx, "dqn", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("w1"), payload)
	_, err = r.Get(ctx, "dqn", 3)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	versions, err := r.Versions(ctx, "dqn")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, versions)

	_, err = r.Publish(ctx, "ppo", []byte("p"))
	require.NoError(t, err)
	models, err := r.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dqn", "ppo"}, models)

	// versions keep increasing past one digit
	for i := 3; i <= 12; i++ {
		v, err := r.Publish(ctx, "dqn", []byte("w"+strconv.Itoa(i)))
		require.NoError(t, err)
		assert.Equal(t, int64(i), v)
	}
	version, payload, err = r.Latest(ctx, "dqn")
	require.NoError(t, err)
	assert.Equal(t, int64(12), version)
	assert.Equal(t, []byte("w12"), payload)
	versions, err = r.Versions(ctx, "dqn")
	require.NoError(t, err)
	require.Len(t, versions, 12)
	for i, v := range versions {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestMemoryRegistry(t *testing.T) {
	checkRegistry(t, NewMemoryRegistry())
}

func TestRedisRegistry(t *testing.T) {
	r, mr := newRedisRegistry(t)
	checkRegistry(t, r)

	counter, err := mr.Get(r.counterKey("dqn"))
	require.NoError(t, err)
	assert.Equal(t, "12", counter)
	stored, err := mr.Get(r.payloadKey("dqn", 1))
	require.NoError(t, err)
	assert.Equal(t, "w1", stored)
	members, err := mr.ZMembers(r.versionsKey("dqn"))
	require.NoError(t, err)
	assert.Len(t, members, 12)
}

func TestRedisRegistryUnavailable(t *testing.T) {
	r, mr := newRedisRegistry(t)
	mr.Close()
	_, err := r.Publish(context.Background(), "dqn", []byte("w"))
	assert.Error(t, err)
	_, _, err = r.Latest(context.Background(), "dqn")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrModelNotFound)
}

func TestPublishCopiesPayload(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	payload := []byte("abc")
	_, err := r.Publish(ctx, "m", payload)
	require.NoError(t, err)
	payload[0] = 'z'
	_, got, err := r.Latest(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestRedisKeys(t *testing.T) {
	r := NewRedisRegistry(nil, "")
	assert.Equal(t, "rps:models:dqn:counter", r.counterKey("dqn"))
	assert.Equal(t, "rps:models:dqn:versions", r.versionsKey("dqn"))
	assert.Equal(t, "rps:models:dqn:7", r.payloadKey("dqn", 7))
}
