package bplustree

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagekv"
)

func newTestTree(t *testing.T, opts ...Option) *Tree {
	t.Helper()
	disk := pagekv.NewMemDiskManager(true)
	bp := pagekv.NewBufferPool(disk, pagekv.WithPoolSize(32))
	tr, err := New(context.Background(), bp, opts...)
	require.NoError(t, err)
	return tr
}

// checkInvariants walks every leaf in next_page_id order and asserts keys
// are strictly ascending across the whole chain, then walks the tree
// top-down asserting every internal separator correctly bounds its child's
// key range.
func checkInvariants(t *testing.T, tr *Tree) {
	t.Helper()
	ctx := context.Background()

	rootID := tr.GetRootPageId(ctx)
	if rootID == pagekv.InvalidPageID {
		return
	}

	cur, cg, ok := tr.fetchNodeRead(ctx, rootID)
	require.True(t, ok)
	for !cur.isLeaf() {
		next, ng, ok := tr.fetchNodeRead(ctx, cur.children[0])
		cg.Drop()
		require.True(t, ok)
		cur, cg = next, ng
	}
	cg.Drop()

	var prev *Key
	leafID := cur.pageID
	for leafID != pagekv.InvalidPageID {
		leaf, lg, ok := tr.fetchNodeRead(ctx, leafID)
		require.True(t, ok)
		for _, k := range leaf.keys {
			if prev != nil {
				assert.True(t, tr.cmp(*prev, k) < 0, "leaf order must be strictly ascending")
			}
			kk := k
			prev = &kk
		}
		leafID = leaf.nextPageID
		lg.Drop()
	}

	checkRanges(t, tr, rootID, nil, nil)
}

func checkRanges(t *testing.T, tr *Tree, id pagekv.PageID, lo, hi *Key) {
	t.Helper()
	n, g, ok := tr.fetchNodeRead(context.Background(), id)
	require.True(t, ok)
	defer g.Drop()

	for i, k := range n.keys {
		if i == 0 && !n.isLeaf() {
			continue // slot 0 of an internal node is an unused sentinel
		}
		if lo != nil {
			assert.True(t, tr.cmp(*lo, k) <= 0)
		}
		if hi != nil {
			assert.True(t, tr.cmp(k, *hi) < 0)
		}
	}

	if n.isLeaf() {
		return
	}
	for i, child := range n.children {
		var childLo, childHi *Key
		if i > 0 {
			k := n.keys[i]
			childLo = &k
		} else {
			childLo = lo
		}
		if i+1 < len(n.keys) {
			k := n.keys[i+1]
			childHi = &k
		} else {
			childHi = hi
		}
		checkRanges(t, tr, child, childLo, childHi)
	}
}

// TestInsertSequentialMaintainsInvariants mirrors the spec's Scenario D.
func TestInsertSequentialMaintainsInvariants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t, WithLeafMax(4), WithInternalMax(4))
	for i := uint64(1); i <= 10; i++ {
		ok, err := tr.Insert(ctx, Uint64Key(i), RecordID{PageID: pagekv.PageID(i), Slot: 0})
		require.NoError(t, err)
		require.True(t, ok)
		checkInvariants(t, tr)
	}

	for i := uint64(1); i <= 10; i++ {
		vs, ok := tr.GetValue(ctx, Uint64Key(i))
		require.True(t, ok)
		assert.Equal(t, pagekv.PageID(i), vs[0].PageID)
	}
}

// TestInsertDuplicateRejected mirrors the spec's Scenario E.
func TestInsertDuplicateRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t)
	ok, err := tr.Insert(ctx, Uint64Key(5), RecordID{PageID: 1})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tr.Insert(ctx, Uint64Key(5), RecordID{PageID: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	vs, found := tr.GetValue(ctx, Uint64Key(5))
	require.True(t, found)
	assert.Equal(t, []RecordID{{PageID: 1}}, vs)
}

// TestConcurrentReaders is a scaled-down form of the spec's Scenario F: 10
// readers each run 1,000 GetValue calls over a deterministic key sequence.
func TestConcurrentReaders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t, WithLeafMax(8), WithInternalMax(8))
	const n = 500
	for i := uint64(0); i < n; i++ {
		ok, err := tr.Insert(ctx, Uint64Key(i), RecordID{PageID: pagekv.PageID(i)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			for j := uint64(0); j < 1000; j++ {
				k := (seed*2654435761 + j) % n
				vs, ok := tr.GetValue(ctx, Uint64Key(k))
				if !ok {
					t.Errorf("key %d unexpectedly missing", k)
					return
				}
				if vs[0].PageID != pagekv.PageID(k) {
					t.Errorf("key %d returned wrong record", k)
					return
				}
			}
		}(uint64(g))
	}
	wg.Wait()
}

func TestRemoveLeafOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t)
	_, err := tr.Insert(ctx, Uint64Key(1), RecordID{PageID: 1})
	require.NoError(t, err)

	ok, err := tr.Remove(ctx, Uint64Key(1))
	require.NoError(t, err)
	assert.True(t, ok)

	_, found := tr.GetValue(ctx, Uint64Key(1))
	assert.False(t, found)
}

func TestRemoveAbsentKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t)
	_, err := tr.Insert(ctx, Uint64Key(1), RecordID{PageID: 1})
	require.NoError(t, err)

	ok, err := tr.Remove(ctx, Uint64Key(99))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveTriggersMergeAndRootCollapse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t, WithLeafMax(4), WithInternalMax(4))
	for i := uint64(1); i <= 10; i++ {
		ok, err := tr.Insert(ctx, Uint64Key(i), RecordID{PageID: pagekv.PageID(i)})
		require.NoError(t, err)
		require.True(t, ok)
	}
	checkInvariants(t, tr)

	for i := uint64(1); i <= 9; i++ {
		ok, err := tr.Remove(ctx, Uint64Key(i))
		require.NoError(t, err)
		require.True(t, ok)
		checkInvariants(t, tr)
	}

	vs, found := tr.GetValue(ctx, Uint64Key(10))
	require.True(t, found)
	assert.Equal(t, pagekv.PageID(10), vs[0].PageID)

	for i := uint64(1); i <= 9; i++ {
		_, found := tr.GetValue(ctx, Uint64Key(i))
		assert.False(t, found)
	}
}

func TestIteratorWalksAscending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t, WithLeafMax(4), WithInternalMax(4))
	for i := uint64(10); i >= 1; i-- {
		_, err := tr.Insert(ctx, Uint64Key(i), RecordID{PageID: pagekv.PageID(i)})
		require.NoError(t, err)
		if i == 1 {
			break
		}
	}

	it := tr.Begin(ctx)
	defer it.Close()

	var got []uint64
	for it.Valid() {
		got = append(got, it.Key().Uint64())
		it.Next()
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
}

func TestIteratorBeginAtSeeksForward(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t, WithLeafMax(4), WithInternalMax(4))
	for i := uint64(1); i <= 10; i++ {
		_, err := tr.Insert(ctx, Uint64Key(i), RecordID{PageID: pagekv.PageID(i)})
		require.NoError(t, err)
	}

	it := tr.BeginAt(ctx, Uint64Key(5))
	defer it.Close()
	require.True(t, it.Valid())
	assert.Equal(t, uint64(5), it.Key().Uint64())
}

func TestIteratorEmptyTree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := newTestTree(t)
	it := tr.Begin(ctx)
	defer it.Close()
	assert.False(t, it.Valid())
}
