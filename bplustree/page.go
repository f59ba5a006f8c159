package bplustree

import (
	"encoding/binary"

	"pagekv"
)

type pageKind uint16

const (
	invalidPage  pageKind = 0
	leafPage     pageKind = 1
	internalPage pageKind = 2
)

const (
	headerSize        = 16
	leafEntrySize      = KeySize + 8 // key + RecordID{PageID uint32, Slot uint32}
	internalEntrySize = KeySize + 4 // key + child PageID
)

// MaxLeafEntries is the largest number of entries a leaf page's on-disk
// layout can physically hold. A tree's configured max_size must not exceed
// this.
const MaxLeafEntries = (pagekv.UsablePageSize - headerSize) / leafEntrySize

// MaxInternalEntries is the largest number of entries an internal page's
// on-disk layout can physically hold.
const MaxInternalEntries = (pagekv.UsablePageSize - headerSize) / internalEntrySize

// node is the in-memory decoded form of a B+-tree page: header {page_type,
// size, max_size, leaf-only next_page_id} followed by the entry array.
// Internal nodes store children[i] paired with keys[i]; keys[0] is an
// unused sentinel (slot 0 has no separator, only a child).
type node struct {
	kind       pageKind
	pageID     pagekv.PageID
	maxSize    int
	nextPageID pagekv.PageID // leaf only

	keys     []Key
	values   []RecordID      // leaf only, len(values) == len(keys)
	children []pagekv.PageID // internal only, len(children) == len(keys)
}

func newLeaf(id pagekv.PageID, maxSize int) *node {
	return &node{kind: leafPage, pageID: id, maxSize: maxSize, nextPageID: pagekv.InvalidPageID}
}

func newInternal(id pagekv.PageID, maxSize int) *node {
	return &node{kind: internalPage, pageID: id, maxSize: maxSize}
}

func (n *node) isLeaf() bool { return n.kind == leafPage }
func (n *node) size() int    { return len(n.keys) }

// indexAt returns the first index whose key is >= target (lower_bound over
// [0, size)). Used by leaf pages: GetValue looks for an exact match at this
// index.
func (n *node) indexAt(key Key, cmp Comparator) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.keys[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// getValue returns the leaf's exact match for key, if present.
func (n *node) getValue(key Key, cmp Comparator) (RecordID, bool) {
	idx := n.indexAt(key, cmp)
	if idx < len(n.keys) && cmp(n.keys[idx], key) == 0 {
		return n.values[idx], true
	}
	return RecordID{}, false
}

// insertValue inserts (key, value) into a leaf in sorted position, shifting
// the tail right. Returns false if key is already present.
func (n *node) insertValue(key Key, value RecordID, cmp Comparator) bool {
	idx := n.indexAt(key, cmp)
	if idx < len(n.keys) && cmp(n.keys[idx], key) == 0 {
		return false
	}

	n.keys = append(n.keys, Key{})
	copy(n.keys[idx+1:], n.keys[idx:len(n.keys)-1])
	n.keys[idx] = key

	n.values = append(n.values, RecordID{})
	copy(n.values[idx+1:], n.values[idx:len(n.values)-1])
	n.values[idx] = value
	return true
}

// insertAtBack bulk-appends entries, used to move the upper half of a split
// leaf onto its new sibling.
func (n *node) insertAtBack(keys []Key, values []RecordID) {
	n.keys = append(n.keys, keys...)
	n.values = append(n.values, values...)
}

// reduceToHalf truncates the leaf to its first n entries, used after the
// upper half has been copied to a new sibling.
func (n *node) reduceToHalf(keep int) {
	n.keys = n.keys[:keep]
	n.values = n.values[:keep]
}

// keyIndex returns the index of the child to descend into: the largest i
// in [0, size) with key >= keys[i] (0 if no such i > 0 exists). Implemented
// as an upper_bound search over [1, size) minus one.
func (n *node) keyIndex(key Key, cmp Comparator) int {
	lo, hi := 1, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.keys[mid], key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// insertChildAt inserts (key, child) at idx, shifting the tail right. Used
// when an internal page gains a lifted separator from a child split.
func (n *node) insertChildAt(idx int, key Key, child pagekv.PageID) {
	n.keys = append(n.keys, Key{})
	copy(n.keys[idx+1:], n.keys[idx:len(n.keys)-1])
	n.keys[idx] = key

	n.children = append(n.children, pagekv.InvalidPageID)
	copy(n.children[idx+1:], n.children[idx:len(n.children)-1])
	n.children[idx] = child
}

// insertInternalAtBack bulk-appends entries, used to move the upper half
// of a split internal page onto its new sibling.
func (n *node) insertInternalAtBack(keys []Key, children []pagekv.PageID) {
	n.keys = append(n.keys, keys...)
	n.children = append(n.children, children...)
}

// reduceInternalToHalf truncates the internal page to its first n entries.
func (n *node) reduceInternalToHalf(keep int) {
	n.keys = n.keys[:keep]
	n.children = n.children[:keep]
}

// serialize encodes n into dst's usable bytes.
func (n *node) serialize(dst *pagekv.Page) {
	binary.LittleEndian.PutUint16(dst[0:], uint16(n.kind))
	binary.LittleEndian.PutUint16(dst[2:], uint16(len(n.keys)))
	binary.LittleEndian.PutUint16(dst[4:], uint16(n.maxSize))
	binary.LittleEndian.PutUint32(dst[8:], uint32(n.nextPageID))

	for i, k := range n.keys {
		off := headerSize
		if n.isLeaf() {
			off += i * leafEntrySize
			copy(dst[off:off+KeySize], k[:])
			binary.LittleEndian.PutUint32(dst[off+KeySize:], uint32(n.values[i].PageID))
			binary.LittleEndian.PutUint32(dst[off+KeySize+4:], n.values[i].Slot)
		} else {
			off += i * internalEntrySize
			copy(dst[off:off+KeySize], k[:])
			binary.LittleEndian.PutUint32(dst[off+KeySize:], uint32(n.children[i]))
		}
	}
}

// deserializeNode decodes a node from src. pageID is supplied by the caller
// (the buffer pool's page table key), since it is not itself persisted.
func deserializeNode(pageID pagekv.PageID, src *pagekv.Page) *node {
	kind := pageKind(binary.LittleEndian.Uint16(src[0:]))
	size := int(binary.LittleEndian.Uint16(src[2:]))
	maxSize := int(binary.LittleEndian.Uint16(src[4:]))
	nextPageID := pagekv.PageID(binary.LittleEndian.Uint32(src[8:]))

	n := &node{kind: kind, pageID: pageID, maxSize: maxSize, nextPageID: nextPageID}
	n.keys = make([]Key, size)
	if kind == leafPage {
		n.values = make([]RecordID, size)
	} else {
		n.children = make([]pagekv.PageID, size)
	}

	for i := 0; i < size; i++ {
		off := headerSize
		if kind == leafPage {
			off += i * leafEntrySize
			copy(n.keys[i][:], src[off:off+KeySize])
			n.values[i] = RecordID{
				PageID: pagekv.PageID(binary.LittleEndian.Uint32(src[off+KeySize:])),
				Slot:   binary.LittleEndian.Uint32(src[off+KeySize+4:]),
			}
		} else {
			off += i * internalEntrySize
			copy(n.keys[i][:], src[off:off+KeySize])
			n.children[i] = pagekv.PageID(binary.LittleEndian.Uint32(src[off+KeySize:]))
		}
	}
	return n
}

// headerPage holds the tree's current root page id, a stable rendezvous
// page updated only when the root changes.
type headerPage struct {
	rootPageID pagekv.PageID
}

func serializeHeader(h *headerPage, dst *pagekv.Page) {
	binary.LittleEndian.PutUint32(dst[0:], uint32(h.rootPageID))
}

func deserializeHeader(src *pagekv.Page) *headerPage {
	return &headerPage{rootPageID: pagekv.PageID(binary.LittleEndian.Uint32(src[0:]))}
}
