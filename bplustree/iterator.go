package bplustree

import (
	"context"

	"pagekv"
)

// Iterator walks leaf entries in ascending key order, following next_page_id
// links across leaf boundaries. It holds a reader guard on at most one leaf
// at a time. The context supplied to Begin/BeginAt bounds every subsequent
// leaf fetch made by Next, since an iterator's lifetime can span many pages.
type Iterator struct {
	t     *Tree
	ctx   context.Context
	guard *pagekv.ReadPageGuard
	leaf  *node
	slot  int
	done  bool
}

// Begin returns an iterator positioned at the first entry of the tree.
func (t *Tree) Begin(ctx context.Context) *Iterator {
	return t.seek(ctx, nil)
}

// BeginAt returns an iterator positioned at the first entry whose key is
// greater than or equal to key.
func (t *Tree) BeginAt(ctx context.Context, key Key) *Iterator {
	return t.seek(ctx, &key)
}

func (t *Tree) seek(ctx context.Context, key *Key) *Iterator {
	hg, ok := t.bp.FetchPageRead(ctx, t.headerID)
	if !ok {
		return &Iterator{t: t, ctx: ctx, done: true}
	}
	header := deserializeHeader(hg.Data())
	if header.rootPageID == pagekv.InvalidPageID {
		hg.Drop()
		return &Iterator{t: t, ctx: ctx, done: true}
	}

	cur, cg, ok := t.fetchNodeRead(ctx, header.rootPageID)
	hg.Drop()
	if !ok {
		return &Iterator{t: t, ctx: ctx, done: true}
	}

	for !cur.isLeaf() {
		var idx int
		if key != nil {
			idx = cur.keyIndex(*key, t.cmp)
		} else {
			idx = 0
		}
		childID := cur.children[idx]

		childNode, childGuard, ok := t.fetchNodeRead(ctx, childID)
		cg.Drop()
		if !ok {
			return &Iterator{t: t, ctx: ctx, done: true}
		}
		cur, cg = childNode, childGuard
	}

	slot := 0
	if key != nil {
		slot = cur.indexAt(*key, t.cmp)
	}
	it := &Iterator{t: t, ctx: ctx, guard: cg, leaf: cur, slot: slot}
	it.skipToValid()
	return it
}

// skipToValid advances across empty leaves until it rests on a valid entry
// or runs off the end of the tree.
func (it *Iterator) skipToValid() {
	for !it.done && it.slot >= len(it.leaf.keys) {
		next := it.leaf.nextPageID
		it.guard.Drop()
		if next == pagekv.InvalidPageID {
			it.guard = nil
			it.leaf = nil
			it.done = true
			return
		}
		leaf, guard, ok := it.t.fetchNodeRead(it.ctx, next)
		if !ok {
			it.guard = nil
			it.leaf = nil
			it.done = true
			return
		}
		it.leaf, it.guard, it.slot = leaf, guard, 0
	}
}

// Valid reports whether the iterator currently rests on an entry.
func (it *Iterator) Valid() bool {
	return !it.done
}

// Key returns the key at the iterator's current position. Valid must be true.
func (it *Iterator) Key() Key {
	return it.leaf.keys[it.slot]
}

// Value returns the value at the iterator's current position. Valid must be
// true.
func (it *Iterator) Value() RecordID {
	return it.leaf.values[it.slot]
}

// Next advances the iterator by one entry.
func (it *Iterator) Next() {
	if it.done {
		return
	}
	it.slot++
	it.skipToValid()
}

// Close releases the iterator's held leaf guard, if any. Safe to call
// multiple times and on an already-exhausted iterator.
func (it *Iterator) Close() {
	if it.guard != nil {
		it.guard.Drop()
		it.guard = nil
	}
	it.done = true
}
