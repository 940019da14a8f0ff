package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) (*BlobCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewBlobCache(RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestBlobCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	_, ok, err := c.Get(ctx, "240101")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "240101", "blob"))
	blob, ok, err := c.Get(ctx, "240101")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "blob", blob)

	assert.Equal(t, time.Hour, mr.TTL("crossfeed:blob:240101"))
	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "240101")
	require.NoError(t, err)
	assert.False(t, ok, "expired")

	assert.NoError(t, c.Ping(ctx))
}

func TestCachedSourceReadThrough(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	src := newFakeSource()
	blob := feedBlob("240101", catGrid, catAcross, catDown)
	src.blobs["240101"] = blob

	cs := NewCachedSource(src, c, zaptest.NewLogger(t))

	got, err := cs.Fetch(ctx, "240101")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	assert.True(t, mr.Exists("crossfeed:blob:240101"))

	got, err = cs.Fetch(ctx, "240101")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	assert.Equal(t, 1, src.callCount("240101"))
}

func TestCachedSourceSkipsUnparsableBlobs(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	src := newFakeSource()
	src.blobs["240101"] = "<html>maintenance</html>"

	cs := NewCachedSource(src, c, zaptest.NewLogger(t))

	got, err := cs.Fetch(ctx, "240101")
	require.NoError(t, err)
	assert.Equal(t, "<html>maintenance</html>", got)
	assert.False(t, mr.Exists("crossfeed:blob:240101"))

	_, err = cs.Fetch(ctx, "240101")
	require.NoError(t, err)
	assert.Equal(t, 2, src.callCount("240101"))
}

func TestCachedSourcePassesErrorsThrough(t *testing.T) {
	c, _ := newTestCache(t)
	cs := NewCachedSource(newFakeSource(), c, zaptest.NewLogger(t))

	_, err := cs.Fetch(context.Background(), "240101")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestCachedSourceFallsThroughWhenRedisIsDown(t *testing.T) {
	c, mr := newTestCache(t)
	src := newFakeSource()
	blob := feedBlob("240101", catGrid, catAcross, catDown)
	src.blobs["240101"] = blob
	mr.Close()

	cs := NewCachedSource(src, c, zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := cs.Fetch(ctx, "240101")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	assert.Error(t, c.Ping(ctx))
}
