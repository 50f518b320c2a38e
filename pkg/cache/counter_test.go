package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounter_WindowResets(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := c.Incr(ctx, "ip:1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	now = now.Add(time.Minute)
	n, err := c.Incr(ctx, "ip:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryCounter_KeysAreIndependent(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()

	_, _ = c.Incr(ctx, "a", time.Minute)
	_, _ = c.Incr(ctx, "a", time.Minute)
	n, _ := c.Incr(ctx, "b", time.Minute)
	assert.Equal(t, int64(1), n)

	require.NoError(t, c.Reset(ctx, "a"))
	n, _ = c.Incr(ctx, "a", time.Minute)
	assert.Equal(t, int64(1), n)
}

func TestMemoryCounter_Sweep(t *testing.T) {
	now := time.Now()
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }
	_, _ = c.Incr(context.Background(), "k", time.Second)

	now = now.Add(2 * time.Second)
	c.Sweep()
	assert.Empty(t, c.entries)
}

var _ Counter = (*MemoryCounter)(nil)
var _ Counter = (*RedisCounter)(nil)
