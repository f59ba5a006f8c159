package bplustree

import (
	"context"

	"pagekv"
)

// Remove deletes key from the tree. Returns false if key was not present.
// It crabs down holding writer guards on the entire root-to-leaf path (no
// early release, unlike Insert), since a merge can touch a sibling fetched
// at any level and the simplest correct locking protocol is to keep every
// ancestor's latch until the whole rebalance is known to be done.
func (t *Tree) Remove(ctx context.Context, key Key) (bool, error) {
	hg, ok := t.bp.FetchPageWrite(ctx, t.headerID)
	if !ok {
		return false, pagekv.ErrPoolExhausted
	}
	header := deserializeHeader(hg.Data())
	if header.rootPageID == pagekv.InvalidPageID {
		hg.Drop()
		return false, nil
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
	if _, exists := leaf.getValue(key, t.cmp); !exists {
		dropFrames(frames)
		hg.Drop()
		return false, nil
	}
	removeLeafKey(leaf, key, t.cmp)

	i := len(frames) - 1
	for i > 0 {
		nd := frames[i].n
		minSize := (nd.maxSize + 1) / 2
		if nd.size() >= minSize {
			break
		}

		parent := frames[i-1].n
		childIdx := frames[i-1].idx

		if childIdx > 0 {
			leftID := parent.children[childIdx-1]
			leftNode, leftGuard, ok := t.fetchNodeWrite(ctx, leftID)
			if !ok {
				break
			}

			if leftNode.size() > minSize {
				if nd.isLeaf() {
					borrowFromLeftLeaf(nd, leftNode, parent, childIdx)
				} else {
					borrowFromLeftInternal(nd, leftNode, parent, childIdx)
				}
				leftNode.serialize(leftGuard.DataMut())
				leftGuard.Drop()
				break
			}

			if nd.isLeaf() {
				mergeLeafInto(leftNode, nd)
			} else {
				mergeInternalInto(leftNode, nd, parent, childIdx)
			}
			leftNode.serialize(leftGuard.DataMut())
			leftGuard.Drop()
			removeChildAt(parent, childIdx)
			frames[i].guard.Drop()
			t.bp.DeletePage(nd.pageID)
			frames = append(frames[:i], frames[i+1:]...)
			i--
			continue
		}

		rightID := parent.children[childIdx+1]
		rightNode, rightGuard, ok := t.fetchNodeWrite(ctx, rightID)
		if !ok {
			break
		}

		if rightNode.size() > minSize {
			if nd.isLeaf() {
				borrowFromRightLeaf(nd, rightNode, parent, childIdx)
			} else {
				borrowFromRightInternal(nd, rightNode, parent, childIdx)
			}
			rightNode.serialize(rightGuard.DataMut())
			rightGuard.Drop()
			break
		}

		if nd.isLeaf() {
			mergeLeafInto(nd, rightNode)
		} else {
			mergeInternalInto(nd, rightNode, parent, childIdx)
		}
		rightGuard.Drop()
		removeChildAt(parent, childIdx+1)
		t.bp.DeletePage(rightNode.pageID)
		i--
	}

	if root := frames[0].n; !root.isLeaf() && len(root.children) == 1 {
		newRootID := root.children[0]
		frames[0].guard.Drop()
		t.bp.DeletePage(root.pageID)
		header.rootPageID = newRootID
		frames = frames[1:]
	}

	serializeHeader(header, hg.DataMut())
	hg.Drop()

	for _, f := range frames {
		f.n.serialize(f.guard.DataMut())
		f.guard.Drop()
	}
	return true, nil
}

func removeLeafKey(n *node, key Key, cmp Comparator) {
	idx := n.indexAt(key, cmp)
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
	n.values = append(n.values[:idx], n.values[idx+1:]...)
}

func removeChildAt(parent *node, idx int) {
	parent.keys = append(parent.keys[:idx], parent.keys[idx+1:]...)
	parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
}

// borrowFromLeftLeaf moves left's last entry to the front of nd, keeping
// the parent separator at childIdx in sync with nd's new first key.
func borrowFromLeftLeaf(nd, left, parent *node, childIdx int) {
	last := len(left.keys) - 1
	nd.keys = append([]Key{left.keys[last]}, nd.keys...)
	nd.values = append([]RecordID{left.values[last]}, nd.values...)
	left.keys = left.keys[:last]
	left.values = left.values[:last]
	parent.keys[childIdx] = nd.keys[0]
}

// borrowFromRightLeaf moves right's first entry to the back of nd.
func borrowFromRightLeaf(nd, right, parent *node, childIdx int) {
	nd.keys = append(nd.keys, right.keys[0])
	nd.values = append(nd.values, right.values[0])
	right.keys = right.keys[1:]
	right.values = right.values[1:]
	parent.keys[childIdx+1] = right.keys[0]
}

// mergeLeafInto absorbs right's entries into left and carries forward
// right's next-leaf link.
func mergeLeafInto(left, right *node) {
	left.keys = append(left.keys, right.keys...)
	left.values = append(left.values, right.values...)
	left.nextPageID = right.nextPageID
}

// borrowFromLeftInternal moves left's last child to the front of nd,
// pulling the old separator down into nd and lifting left's last key up
// as the new separator.
func borrowFromLeftInternal(nd, left, parent *node, childIdx int) {
	last := len(left.keys) - 1
	borrowedChild := left.children[last]
	newSeparator := left.keys[last]

	nd.children = append([]pagekv.PageID{borrowedChild}, nd.children...)
	nd.keys = append([]Key{{}, parent.keys[childIdx]}, nd.keys[1:]...)

	left.keys = left.keys[:last]
	left.children = left.children[:last]
	parent.keys[childIdx] = newSeparator
}

// borrowFromRightInternal moves right's first child to the back of nd,
// pulling the old separator down into nd and lifting right's first real
// key up as the new separator.
func borrowFromRightInternal(nd, right, parent *node, childIdx int) {
	borrowedChild := right.children[0]
	newSeparator := right.keys[1]

	nd.keys = append(nd.keys, parent.keys[childIdx+1])
	nd.children = append(nd.children, borrowedChild)

	right.children = right.children[1:]
	right.keys = right.keys[1:]
	parent.keys[childIdx+1] = newSeparator
}

// mergeInternalInto absorbs right's entries into left, pulling the
// separator between them down from parent.
func mergeInternalInto(left, right *node, parent *node, childIdx int) {
	separator := parent.keys[childIdx+1]
	left.keys = append(left.keys, separator)
	left.keys = append(left.keys, right.keys[1:]...)
	left.children = append(left.children, right.children...)
}
