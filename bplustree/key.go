package bplustree

import (
	"bytes"
	"encoding/binary"

	"pagekv"
)

// KeySize is the fixed width, in bytes, of every B+-tree key. BusTub's
// GenericKey<N> is a template over this width; Go generics would force the
// width into the type parameter of every exported type, so a single
// constant plays the same role with a simpler API.
const KeySize = 8

// Key is a fixed-width byte key. Comparator defines the tree's total order
// over Keys; the default is lexicographic.
type Key [KeySize]byte

// Uint64Key builds a Key from a uint64 in big-endian order, so that
// numeric order matches lexicographic byte order.
func Uint64Key(v uint64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[:], v)
	return k
}

// Uint64 interprets the key as a big-endian uint64.
func (k Key) Uint64() uint64 {
	return binary.BigEndian.Uint64(k[:])
}

// Comparator defines a total order over Keys. The default, used when a tree
// is built without WithComparator, is lexicographic byte comparison.
type Comparator func(a, b Key) int

func defaultComparator(a, b Key) int {
	return bytes.Compare(a[:], b[:])
}

// RecordID is the opaque value a B+-tree leaf maps a Key to: the page and
// slot of the record it identifies in whatever table heap owns it.
type RecordID struct {
	PageID pagekv.PageID
	Slot   uint32
}
