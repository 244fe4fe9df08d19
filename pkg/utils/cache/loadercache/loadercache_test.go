package loadercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackprogress/pkg/utils/cache"
)

type counter struct {
	calls map[string]int
}

func (c *counter) load(_ context.Context, key string) (*int, error) {
	if key == "broken" {
		return nil, errors.New("cannot load")
	}
	c.calls[key]++
	v := c.calls[key]
	return &v, nil
}

func TestLoaderCache(t *testing.T) {
	ctx := context.Background()
	cnt := &counter{calls: map[string]int{}}
	now := time.Date(2024, 4, 28, 11, 10, 12, 0, time.UTC)
	c := New(
		WithLoader[string, int](cnt.load),
		WithExpiration[string, int](time.Minute),
		WithClock[string, int](func() time.Time { return now }),
	)

	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, *v)

	// cached
	v, _ = c.Get(ctx, "a")
	assert.Equal(t, 1, *v)

	// expired
	now = now.Add(2 * time.Minute)
	v, _ = c.Get(ctx, "a")
	assert.Equal(t, 2, *v)

	c.Invalidate(ctx, "a")
	v, _ = c.Get(ctx, "a")
	assert.Equal(t, 3, *v)

	_, _ = c.Get(ctx, "b")
	c.InvalidateAll(ctx)
	v, _ = c.Get(ctx, "b")
	assert.Equal(t, 2, *v)

	_, err = c.Get(ctx, "broken")
	assert.Error(t, err)
}

func TestLoaderCache_NoLoader(t *testing.T) {
	c := New[string, int]()
	_, err := c.Get(context.Background(), "x")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
