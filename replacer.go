package pagekv

import (
	"container/list"
	"math"
	"sync"
)

const infiniteDistance = math.MaxInt64

// lruKNode tracks one frame's access history for the LRU-K policy.
type lruKNode struct {
	frameID   FrameID
	history   []int64 // access timestamps, oldest first
	evictable bool
	elem      *list.Element
}

// backwardKDistance returns the frame's backward-k-distance at "now": +inf
// if it has fewer than k recorded accesses, else now minus the timestamp of
// its k-th-most-recent access.
func (n *lruKNode) backwardKDistance(k int, now int64) int64 {
	if len(n.history) < k {
		return infiniteDistance
	}
	return now - n.history[len(n.history)-k]
}

// LRUKReplacer selects an evictable frame using the backward-k-distance
// policy: evict the evictable frame with the greatest backward-k-distance,
// breaking ties among +inf frames by oldest first access and ties among
// finite distances by historical order.
//
// The candidate list is kept sorted front-to-back by descending priority to
// evict, so Evict is a single forward scan.
type LRUKReplacer struct {
	mu sync.Mutex

	k        int
	capacity int
	now      int64
	curSize  int

	nodes     map[FrameID]*lruKNode
	candidate *list.List
}

// NewLRUKReplacer creates a replacer tracking up to capacity frames with the
// given k.
func NewLRUKReplacer(capacity, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:         k,
		capacity:  capacity,
		nodes:     make(map[FrameID]*lruKNode, capacity),
		candidate: list.New(),
	}
}

// RecordAccess logs an access to frameID at the current logical time,
// creating its node on first access. Returns ErrReplacerFull if frameID is
// new and the replacer already tracks capacity frames.
func (r *LRUKReplacer) RecordAccess(frameID FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now++

	node, ok := r.nodes[frameID]
	if !ok {
		if len(r.nodes) >= r.capacity {
			return ErrReplacerFull
		}
		node = &lruKNode{frameID: frameID}
		r.nodes[frameID] = node
	} else {
		r.candidate.Remove(node.elem)
		node.elem = nil
	}

	node.history = append(node.history, r.now)
	r.reposition(node)
	return nil
}

// reposition inserts node into the candidate list at the position matching
// its current backward-k-distance, preserving descending-priority order.
func (r *LRUKReplacer) reposition(node *lruKNode) {
	newDist := node.backwardKDistance(r.k, r.now)

	for e := r.candidate.Front(); e != nil; e = e.Next() {
		other := e.Value.(*lruKNode)
		otherDist := other.backwardKDistance(r.k, r.now)

		if otherDist < newDist {
			node.elem = r.candidate.InsertBefore(node, e)
			return
		}
		if otherDist == newDist && otherDist == infiniteDistance {
			if other.history[0] > node.history[0] {
				node.elem = r.candidate.InsertBefore(node, e)
				return
			}
		}
	}
	node.elem = r.candidate.PushBack(node)
}

// Evict returns the evictable frame with the greatest backward-k-distance
// and stops tracking it. The second return is false if no frame is
// evictable.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := r.candidate.Front(); e != nil; e = e.Next() {
		node := e.Value.(*lruKNode)
		if !node.evictable {
			continue
		}
		r.candidate.Remove(e)
		delete(r.nodes, node.frameID)
		r.curSize--
		return node.frameID, true
	}
	return 0, false
}

// SetEvictable flips frameID's evictable flag. Returns ErrNotTracked if the
// frame is not tracked.
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		return ErrNotTracked
	}
	if node.evictable == evictable {
		return nil
	}
	node.evictable = evictable
	if evictable {
		r.curSize++
	} else {
		r.curSize--
	}
	return nil
}

// Remove stops tracking frameID, which must be evictable. Untracked frames
// are a no-op, matching the "explicit deletion" use case where the page may
// never have been accessed.
func (r *LRUKReplacer) Remove(frameID FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		return nil
	}
	if !node.evictable {
		return ErrNotEvictable
	}
	r.candidate.Remove(node.elem)
	delete(r.nodes, frameID)
	r.curSize--
	return nil
}

// Size returns the number of currently evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curSize
}
