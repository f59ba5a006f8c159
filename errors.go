package pagekv

import "errors"

// Sentinel errors returned by the buffer pool, replacer and B+-tree. Benign
// conditions (misses, exhaustion, duplicates) and caller mistakes alike
// (double-unpin, Remove of a pinned frame) are reported this way, not by
// panicking; only truly unreachable internal invariants panic.
var (
	ErrPoolExhausted   = errors.New("buffer pool: no free or evictable frame")
	ErrFrameNotFound   = errors.New("buffer pool: frame not tracked")
	ErrPageNotFound    = errors.New("buffer pool: page not resident")
	ErrPageOverflow    = errors.New("page: entry would overflow page size")
	ErrInvalidChecksum = errors.New("disk manager: checksum mismatch")
	ErrCorruption      = errors.New("disk manager: data corruption detected")
	ErrKeyNotFound     = errors.New("btree: key not found")
	ErrDuplicateKey    = errors.New("btree: key already exists")
	ErrNotEvictable    = errors.New("replacer: frame is not evictable")
	ErrNotTracked      = errors.New("replacer: frame is not tracked")
	ErrReplacerFull    = errors.New("replacer: at capacity")
	ErrInvalidPageID   = errors.New("disk manager: invalid page id")
)
