// Package bplustree implements a concurrent, latch-crabbing B+-tree index
// over a pagekv.BufferPool: an ordered unique map from fixed-width Keys to
// RecordIDs.
package bplustree

import (
	"context"

	"pagekv"
)

// Option configures a Tree at construction.
type Option func(*Tree)

// WithLeafMax sets the entry count at which a leaf page splits on the next
// insertion. Must not exceed MaxLeafEntries.
func WithLeafMax(n int) Option {
	return func(t *Tree) { t.leafMax = n }
}

// WithInternalMax sets the entry count at which an internal page splits on
// the next insertion. Must not exceed MaxInternalEntries.
func WithInternalMax(n int) Option {
	return func(t *Tree) { t.internalMax = n }
}

// WithComparator overrides the tree's key ordering; the default is
// lexicographic byte comparison.
func WithComparator(cmp Comparator) Option {
	return func(t *Tree) { t.cmp = cmp }
}

// Tree is a latch-crabbing B+-tree index. Reads crab with reader guards;
// writes hold writer guards along the deepest ancestor chain that may split.
// The header page is a stable rendezvous, held across a write only when the
// root may change.
type Tree struct {
	bp       *pagekv.BufferPool
	headerID pagekv.PageID

	leafMax     int
	internalMax int
	cmp         Comparator
}

// New creates an empty tree backed by bp, allocating its header page.
func New(ctx context.Context, bp *pagekv.BufferPool, opts ...Option) (*Tree, error) {
	t := &Tree{
		bp:          bp,
		leafMax:     MaxLeafEntries,
		internalMax: MaxInternalEntries,
		cmp:         defaultComparator,
	}
	for _, o := range opts {
		o(t)
	}

	id, g, ok := bp.NewPageGuarded(ctx)
	if !ok {
		return nil, pagekv.ErrPoolExhausted
	}
	t.headerID = id
	serializeHeader(&headerPage{rootPageID: pagekv.InvalidPageID}, g.DataMut())
	g.Drop()
	return t, nil
}

// IsEmpty reports whether the tree has no root yet.
func (t *Tree) IsEmpty(ctx context.Context) bool {
	g, ok := t.bp.FetchPageRead(ctx, t.headerID)
	if !ok {
		return true
	}
	defer g.Drop()
	return deserializeHeader(g.Data()).rootPageID == pagekv.InvalidPageID
}

// GetRootPageId returns the tree's current root page id, or InvalidPageID
// if the tree is empty.
func (t *Tree) GetRootPageId(ctx context.Context) pagekv.PageID {
	g, ok := t.bp.FetchPageRead(ctx, t.headerID)
	if !ok {
		return pagekv.InvalidPageID
	}
	defer g.Drop()
	return deserializeHeader(g.Data()).rootPageID
}

func (t *Tree) fetchNodeRead(ctx context.Context, id pagekv.PageID) (*node, *pagekv.ReadPageGuard, bool) {
	g, ok := t.bp.FetchPageRead(ctx, id)
	if !ok {
		return nil, nil, false
	}
	return deserializeNode(id, g.Data()), g, true
}

func (t *Tree) fetchNodeWrite(ctx context.Context, id pagekv.PageID) (*node, *pagekv.WritePageGuard, bool) {
	g, ok := t.bp.FetchPageWrite(ctx, id)
	if !ok {
		return nil, nil, false
	}
	return deserializeNode(id, g.Data()), g, true
}

// GetValue returns the value(s) stored for key. The B+-tree is a unique
// index, so the slice has length one on a hit.
func (t *Tree) GetValue(ctx context.Context, key Key) ([]RecordID, bool) {
	hg, ok := t.bp.FetchPageRead(ctx, t.headerID)
	if !ok {
		return nil, false
	}
	header := deserializeHeader(hg.Data())
	if header.rootPageID == pagekv.InvalidPageID {
		hg.Drop()
		return nil, false
	}

	cur, cg, ok := t.fetchNodeRead(ctx, header.rootPageID)
	hg.Drop()
	if !ok {
		return nil, false
	}

	for !cur.isLeaf() {
		idx := cur.keyIndex(key, t.cmp)
		childID := cur.children[idx]

		childNode, childGuard, ok := t.fetchNodeRead(ctx, childID)
		cg.Drop()
		if !ok {
			return nil, false
		}
		cur, cg = childNode, childGuard
	}

	v, found := cur.getValue(key, t.cmp)
	cg.Drop()
	if !found {
		return nil, false
	}
	return []RecordID{v}, true
}

type writeFrame struct {
	n     *node
	guard *pagekv.WritePageGuard
	idx   int // child slot index taken to reach the next level down
}

func dropFrames(frames []writeFrame) {
	for i := range frames {
		frames[i].guard.Drop()
	}
}

// Insert adds (key, value). Returns false without modifying the tree if key
// is already present.
func (t *Tree) Insert(ctx context.Context, key Key, value RecordID) (bool, error) {
	hg, ok := t.bp.FetchPageWrite(ctx, t.headerID)
	if !ok {
		return false, pagekv.ErrPoolExhausted
	}
	header := deserializeHeader(hg.Data())

	if header.rootPageID == pagekv.InvalidPageID {
		id, wg, ok := t.bp.NewPageGuarded(ctx)
		if !ok {
			hg.Drop()
			return false, pagekv.ErrPoolExhausted
		}
		leaf := newLeaf(id, t.leafMax)
		leaf.insertValue(key, value, t.cmp)
		leaf.serialize(wg.DataMut())
		wg.Drop()

		header.rootPageID = id
		serializeHeader(header, hg.DataMut())
		hg.Drop()
		return true, nil
	}

	frames := []writeFrame{}
	curID := header.rootPageID
	curNode, curGuard, ok := t.fetchNodeWrite(ctx, curID)
	if !ok {
		hg.Drop()
		return false, pagekv.ErrPoolExhausted
	}
	frames = append(frames, writeFrame{n: curNode, guard: curGuard})

	for !curNode.isLeaf() {
		idx := curNode.keyIndex(key, t.cmp)
		frames[len(frames)-1].idx = idx
		childID := curNode.children[idx]

		childNode, childGuard, ok := t.fetchNodeWrite(ctx, childID)
		if !ok {
			dropFrames(frames)
			hg.Drop()
			return false, pagekv.ErrPoolExhausted
		}
		frames = append(frames, writeFrame{n: childNode, guard: childGuard})
		curNode, curGuard = childNode, childGuard
	}

	leaf := frames[len(frames)-1].n
	if _, exists := leaf.getValue(key, t.cmp); exists {
		dropFrames(frames)
		hg.Drop()
		return false, nil
	}

	// Needs-split predicate, propagated bottom-up, decides how much of the
	// held writer-guard chain must survive past this point.
	needsSplit := make([]bool, len(frames))
	needsSplit[len(frames)-1] = leaf.size()+1 == leaf.maxSize
	for i := len(frames) - 2; i >= 0; i-- {
		if needsSplit[i+1] {
			needsSplit[i] = frames[i].n.size()+1 == frames[i].n.maxSize
		}
	}

	// keepFrom marks the first frame whose guard must survive past this
	// point: the topmost node that overflows, plus the one ancestor above
	// it that receives the lifted separator even when that ancestor does
	// not itself overflow.
	keepFrom := len(frames) - 1
	topSplit := -1
	for i := len(frames) - 1; i >= 0; i-- {
		if !needsSplit[i] {
			break
		}
		topSplit = i
	}
	if topSplit >= 0 {
		keepFrom = topSplit
		if keepFrom > 0 {
			keepFrom--
		}
	}
	rootChangeFlag := needsSplit[0]

	for i := 0; i < keepFrom; i++ {
		frames[i].guard.Drop()
	}
	if !rootChangeFlag {
		hg.Drop()
	}

	leaf.insertValue(key, value, t.cmp)

	headerDropped := !rootChangeFlag
	i := len(frames) - 1
	for i >= keepFrom && frames[i].n.size() == frames[i].n.maxSize {
		nd := frames[i].n

		var liftedKey Key
		var siblingID pagekv.PageID
		var splitErr error
		if nd.isLeaf() {
			liftedKey, siblingID, splitErr = t.splitLeaf(ctx, nd)
		} else {
			liftedKey, siblingID, splitErr = t.splitInternal(ctx, nd)
		}
		if splitErr != nil {
			dropFrames(frames[keepFrom:])
			if !headerDropped {
				hg.Drop()
			}
			return false, splitErr
		}

		if i == 0 {
			newRootID, wg, ok := t.bp.NewPageGuarded(ctx)
			if !ok {
				dropFrames(frames[keepFrom:])
				if !headerDropped {
					hg.Drop()
				}
				return false, pagekv.ErrPoolExhausted
			}
			newRoot := newInternal(newRootID, t.internalMax)
			newRoot.keys = []Key{{}, liftedKey}
			newRoot.children = []pagekv.PageID{nd.pageID, siblingID}
			newRoot.serialize(wg.DataMut())
			wg.Drop()

			header.rootPageID = newRootID
			serializeHeader(header, hg.DataMut())
			hg.Drop()
			headerDropped = true
			break
		}

		parent := frames[i-1].n
		parent.insertChildAt(frames[i-1].idx+1, liftedKey, siblingID)
		i--
	}

	if !headerDropped {
		hg.Drop()
	}
	for j := keepFrom; j < len(frames); j++ {
		frames[j].n.serialize(frames[j].guard.DataMut())
		frames[j].guard.Drop()
	}

	return true, nil
}

func (t *Tree) splitLeaf(ctx context.Context, nd *node) (Key, pagekv.PageID, error) {
	mid := nd.maxSize / 2

	id, wg, ok := t.bp.NewPageGuarded(ctx)
	if !ok {
		return Key{}, pagekv.InvalidPageID, pagekv.ErrPoolExhausted
	}
	sibling := newLeaf(id, nd.maxSize)
	sibling.insertAtBack(append([]Key{}, nd.keys[mid:]...), append([]RecordID{}, nd.values[mid:]...))
	sibling.nextPageID = nd.nextPageID

	nd.reduceToHalf(mid)
	nd.nextPageID = id

	sibling.serialize(wg.DataMut())
	wg.Drop()
	return sibling.keys[0], id, nil
}

func (t *Tree) splitInternal(ctx context.Context, nd *node) (Key, pagekv.PageID, error) {
	splitIdx := (nd.maxSize + 1) / 2
	liftedKey := nd.keys[splitIdx]

	id, wg, ok := t.bp.NewPageGuarded(ctx)
	if !ok {
		return Key{}, pagekv.InvalidPageID, pagekv.ErrPoolExhausted
	}
	sibling := newInternal(id, nd.maxSize)
	sibling.keys = append([]Key{{}}, nd.keys[splitIdx+1:]...)
	sibling.children = append([]pagekv.PageID{}, nd.children[splitIdx:]...)

	nd.reduceInternalToHalf(splitIdx)

	sibling.serialize(wg.DataMut())
	wg.Drop()
	return liftedKey, id, nil
}
