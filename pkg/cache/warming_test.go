package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly/storycache/pkg/types"
)

func TestWarmCache(t *testing.T) {
	c := newTestCache(t, nil, nil)
	ctx := context.Background()

	calls := make(map[string]int)
	pattern := func(key string, value []byte) WarmupPattern {
		return WarmupPattern{
			Key:      key,
			Category: types.CategoryStory,
			Generate: func(ctx context.Context) (interface{}, error) {
				calls[key]++
				return value, nil
			},
		}
	}

	patterns := []WarmupPattern{
		pattern("stop-1", []byte("grand canyon")),
		pattern("stop-2", []byte("meteor crater")),
	}

	warmed := c.WarmCache(ctx, patterns)
	assert.Equal(t, 2, warmed)
	assert.Equal(t, 1, calls["stop-1"])
	assert.Equal(t, 1, calls["stop-2"])

	value, found := c.Get(ctx, "stop-1", types.CategoryStory)
	require.True(t, found)
	assert.Equal(t, []byte("grand canyon"), value)

	// Already-cached keys are skipped on the next pass.
	warmed = c.WarmCache(ctx, patterns)
	assert.Equal(t, 0, warmed)
	assert.Equal(t, 1, calls["stop-1"])
}

func TestWarmCacheGeneratorFailureContinuesBatch(t *testing.T) {
	c := newTestCache(t, nil, nil)
	ctx := context.Background()

	patterns := []WarmupPattern{
		{
			Key:      "broken",
			Category: types.CategoryStory,
			Generate: func(ctx context.Context) (interface{}, error) {
				return nil, errors.New("upstream down")
			},
		},
		{
			Key:      "healthy",
			Category: types.CategoryStory,
			Generate: func(ctx context.Context) (interface{}, error) {
				return []byte("ok"), nil
			},
		},
	}

	warmed := c.WarmCache(ctx, patterns)
	assert.Equal(t, 1, warmed)

	_, found := c.Get(ctx, "broken", types.CategoryStory)
	assert.False(t, found)
	_, found = c.Get(ctx, "healthy", types.CategoryStory)
	assert.True(t, found)
}

func TestWarmCacheSkipsNilResults(t *testing.T) {
	c := newTestCache(t, nil, nil)

	warmed := c.WarmCache(context.Background(), []WarmupPattern{
		{
			Key:      "none",
			Category: types.CategoryStory,
			Generate: func(ctx context.Context) (interface{}, error) {
				return nil, nil
			},
		},
		{Key: "no-generator", Category: types.CategoryStory},
	})
	assert.Equal(t, 0, warmed)
}

func TestWarmCacheSkipsRemoteResident(t *testing.T) {
	remote := newFakeRemote()
	c := newTestCache(t, remote, nil)
	ctx := context.Background()

	// Only the remote tier holds the key.
	require.NoError(t, remote.Set(ctx, "story:shared", []byte(`{"key":"story:shared"}`), time.Hour))

	warmed := c.WarmCache(ctx, []WarmupPattern{
		{
			Key:      "shared",
			Category: types.CategoryStory,
			Generate: func(ctx context.Context) (interface{}, error) {
				t.Fatal("generator must not run for a remote-resident key")
				return nil, nil
			},
		},
	})
	assert.Equal(t, 0, warmed)
}

func TestRegisterWarmup(t *testing.T) {
	c := newTestCache(t, nil, nil)

	c.RegisterWarmup(WarmupPattern{Key: "a", Category: types.CategoryStory})
	c.RegisterWarmup(
		WarmupPattern{Key: "b", Category: types.CategoryGeoData},
		WarmupPattern{Key: "c", Category: types.CategoryGeoData},
	)

	assert.Len(t, c.registeredWarmups(), 3)
}
