package pagekv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBufferPoolScenarioA mirrors the spec's Scenario A: pool_size = 2, k =
// 2. Dropping an unpinned, clean page frees its frame for a third NewPage;
// FetchPage of the evicted page then misses until a frame is freed again.
func TestBufferPoolScenarioA(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bp := NewBufferPool(NewMemDiskManager(true), WithPoolSize(2), WithReplacerK(2))

	id0, g0, ok := bp.NewPage(ctx)
	require.True(t, ok)
	assert.Equal(t, PageID(0), id0)

	id1, g1, ok := bp.NewPage(ctx)
	require.True(t, ok)
	assert.Equal(t, PageID(1), id1)

	g0.Drop() // unpin, clean

	id2, g2, ok := bp.NewPage(ctx)
	require.True(t, ok)
	assert.Equal(t, PageID(2), id2)
	defer g2.Drop()
	defer g1.Drop()

	_, stillThere := bp.pageTable[id1]
	assert.True(t, stillThere)
	_, evicted := bp.pageTable[id0]
	assert.False(t, evicted)

	_, ok = bp.FetchPage(ctx, id0)
	assert.False(t, ok, "all frames pinned, fetch of evicted page must miss")
}

func TestBufferPoolUnpinAndRefetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bp := NewBufferPool(NewMemDiskManager(true), WithPoolSize(4), WithReplacerK(2))

	id, g, ok := bp.NewPage(ctx)
	require.True(t, ok)
	g.Data()[0] = 0x42
	g.MarkDirty()
	g.Drop()

	g2, ok := bp.FetchPage(ctx, id)
	require.True(t, ok)
	assert.Equal(t, byte(0x42), g2.Data()[0])
	g2.Drop()
}

func TestBufferPoolUnpinAbsentPage(t *testing.T) {
	t.Parallel()

	bp := NewBufferPool(NewMemDiskManager(true), WithPoolSize(2), WithReplacerK(2))
	assert.False(t, bp.UnpinPage(99, false))
}

func TestBufferPoolDeletePinnedFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bp := NewBufferPool(NewMemDiskManager(true), WithPoolSize(2), WithReplacerK(2))
	id, g, ok := bp.NewPage(ctx)
	require.True(t, ok)
	defer g.Drop()

	assert.False(t, bp.DeletePage(id))
}

func TestBufferPoolDeleteAbsentIsNoop(t *testing.T) {
	t.Parallel()

	bp := NewBufferPool(NewMemDiskManager(true), WithPoolSize(2), WithReplacerK(2))
	assert.True(t, bp.DeletePage(123))
}

func TestBufferPoolFlushRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	disk := NewMemDiskManager(true)
	bp := NewBufferPool(disk, WithPoolSize(2), WithReplacerK(2))

	id, g, ok := bp.NewPage(ctx)
	require.True(t, ok)
	g.Data()[10] = 7
	g.MarkDirty()
	g.Drop()

	require.True(t, bp.FlushPage(ctx, id))

	var page Page
	require.NoError(t, disk.ReadPage(ctx, id, &page))
	assert.Equal(t, byte(7), page[10])
}

func TestBufferPoolExhaustedWhenAllPinned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bp := NewBufferPool(NewMemDiskManager(true), WithPoolSize(2), WithReplacerK(2))

	_, g0, ok := bp.NewPage(ctx)
	require.True(t, ok)
	defer g0.Drop()
	_, g1, ok := bp.NewPage(ctx)
	require.True(t, ok)
	defer g1.Drop()

	_, _, ok = bp.NewPage(ctx)
	assert.False(t, ok, "no free or evictable frame")
}
