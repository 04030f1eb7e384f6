package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/requisition-engine/store"
	"github.com/warp/requisition-engine/store/cache"
)

func setup(t *testing.T) (*cache.Store, *store.Memory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	inner := store.NewMemory()
	return cache.New(inner, client, time.Minute, nil), inner, mr
}

func TestGetTemplate_ReadThrough(t *testing.T) {
	ctx := context.Background()
	c, inner, _ := setup(t)
	require.NoError(t, c.SaveTemplate(ctx, store.TemplateRecord{ID: "t1", Name: "EM", ConfigJSON: `{"v":1}`}))

	first, err := c.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, `{"v":1}`, first.ConfigJSON)

	// A write that bypasses the cache is not seen until the next bump.
	require.NoError(t, inner.SaveTemplate(ctx, store.TemplateRecord{ID: "t1", Name: "EM", ConfigJSON: `{"v":2}`}))
	cached, err := c.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, cached.ConfigJSON)

	require.NoError(t, c.SaveTemplate(ctx, store.TemplateRecord{ID: "t1", Name: "EM", ConfigJSON: `{"v":3}`}))
	fresh, err := c.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, `{"v":3}`, fresh.ConfigJSON)
}

func TestGetTemplate_MissingIsNotCached(t *testing.T) {
	ctx := context.Background()
	c, inner, _ := setup(t)

	got, err := c.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, inner.SaveTemplate(ctx, store.TemplateRecord{ID: "t1"}))
	got, err = c.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestListTemplates_InvalidatedByDelete(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t)
	require.NoError(t, c.SaveTemplate(ctx, store.TemplateRecord{ID: "t1", Name: "A"}))
	require.NoError(t, c.SaveTemplate(ctx, store.TemplateRecord{ID: "t2", Name: "B"}))

	list, err := c.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, c.DeleteTemplate(ctx, "t1"))
	list, err = c.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t2", list[0].ID)
}

func TestBump_IncrementsVersion(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t)

	v1, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)

	require.NoError(t, c.Bump(ctx))
	v2, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2)
}

func TestListenForInvalidation_AdoptsPublishedVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, _, mr := setup(t)
	require.NoError(t, c.ListenForInvalidation(ctx))

	mr.Publish("reqengine.templates.bump", "7")

	assert.Eventually(t, func() bool {
		v, err := c.Version(ctx)
		return err == nil && v == 7
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRedisDown_FallsThrough(t *testing.T) {
	ctx := context.Background()
	c, inner, mr := setup(t)
	require.NoError(t, inner.SaveTemplate(ctx, store.TemplateRecord{ID: "t1", Name: "EM"}))

	mr.Close()

	got, err := c.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "EM", got.Name)
}

func TestNilClient_PassesThrough(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemory()
	c := cache.New(inner, nil, time.Minute, nil)

	require.NoError(t, c.SaveTemplate(ctx, store.TemplateRecord{ID: "t1"}))
	got, err := c.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
