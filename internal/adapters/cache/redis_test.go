package cache

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHook answers commands in memory so no server is dialed.
type recordingHook struct {
	mu     sync.Mutex
	values map[string]string
	seen   []string
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *recordingHook) ProcessHook(_ redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		args := cmd.Args()
		name := strings.ToLower(cmd.Name())
		key, _ := args[1].(string)
		h.seen = append(h.seen, name+" "+key)
		switch c := cmd.(type) {
		case *redis.StringCmd:
			v, ok := h.values[key]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
		case *redis.StatusCmd:
			h.values[key] = args[2].(string)
			c.SetVal("OK")
		case *redis.BoolCmd:
			if _, ok := h.values[key]; ok {
				c.SetVal(false)
				return nil
			}
			h.values[key] = args[2].(string)
			c.SetVal(true)
		case *redis.IntCmd:
			var n int64
			for _, arg := range args[1:] {
				k, _ := arg.(string)
				if _, ok := h.values[k]; ok {
					delete(h.values, k)
					n++
				}
			}
			c.SetVal(n)
		}
		return nil
	}
}

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newHookedCache(t *testing.T) (*RedisCache, *recordingHook) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	hook := &recordingHook{values: map[string]string{}}
	client.AddHook(hook)
	return NewRedisCache(client, "identity:"), hook
}

func TestRedisCachePrefixesKeys(t *testing.T) {
	c, hook := newHookedCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	require.NoError(t, c.Delete(ctx, "a"))

	assert.Equal(t, []string{"set identity:a", "get identity:a", "del identity:a"}, hook.seen)
}

func TestRedisCacheMissingKeyIsEmpty(t *testing.T) {
	c, _ := newHookedCache(t)
	v, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRedisCacheSetIfAbsent(t *testing.T) {
	c, _ := newHookedCache(t)
	ctx := context.Background()

	ok, err := c.SetIfAbsent(ctx, "lock", "owner-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetIfAbsent(ctx, "lock", "owner-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", v)
}

func TestRedisCacheDeleteWithoutKeys(t *testing.T) {
	c, hook := newHookedCache(t)
	require.NoError(t, c.Delete(context.Background()))
	assert.Empty(t, hook.seen)
}
