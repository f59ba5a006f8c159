package pagekv

import (
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ChecksumSize is the number of trailing bytes in every Page reserved for an
// xxhash checksum of the preceding bytes. Callers that interpret page
// contents (the B+-tree, in particular) must confine their layout to
// UsablePageSize bytes.
const ChecksumSize = 8

// UsablePageSize is the portion of a Page available to callers once the
// checksum trailer is reserved.
const UsablePageSize = PageSize - ChecksumSize

// DiskManager reads and writes fixed-size pages by id and hands out fresh
// page ids. Implementations may be backed by a real file (FileDiskManager)
// or held entirely in memory (MemDiskManager, used in tests). ReadPage and
// WritePage accept a context so callers can bound slow disk operations with
// the standard library's cancellation idiom; it is not propagated into
// latch acquisition elsewhere in the buffer pool.
type DiskManager interface {
	// ReadPage fills dest with the PageSize bytes stored for id.
	ReadPage(ctx context.Context, id PageID, dest *Page) error
	// WritePage persists the PageSize bytes of src for id.
	WritePage(ctx context.Context, id PageID, src *Page) error
	// AllocatePage returns a fresh, monotonically increasing page id.
	AllocatePage() PageID
	// DeallocatePage marks id's on-disk slot as reclaimable. The base
	// implementations do not reuse deallocated ids; they exist so higher
	// layers can track free space.
	DeallocatePage(id PageID) error
	// Close releases any underlying resources.
	Close() error
}

func writeChecksum(p *Page) {
	sum := xxhash.Sum64(p[:UsablePageSize])
	for i := 0; i < ChecksumSize; i++ {
		p[UsablePageSize+i] = byte(sum >> (8 * i))
	}
}

// verifyChecksum reports ErrInvalidChecksum joined with ErrCorruption on
// mismatch, so callers can match either sentinel with errors.Is.
func verifyChecksum(p *Page) error {
	var sum uint64
	for i := 0; i < ChecksumSize; i++ {
		sum |= uint64(p[UsablePageSize+i]) << (8 * i)
	}
	if sum != xxhash.Sum64(p[:UsablePageSize]) {
		return errors.Join(ErrCorruption, ErrInvalidChecksum)
	}
	return nil
}

// MemDiskManager implements DiskManager over an in-memory map. Its reads and
// writes fail only on a canceled context or, for reads with checksums
// enabled, a checksum mismatch. It is intended for tests and for callers
// that want a buffer pool with no persistence.
type MemDiskManager struct {
	mu       sync.Mutex
	pages    map[PageID]*Page
	nextID   PageID
	checksum bool
}

// NewMemDiskManager creates an empty in-memory DiskManager. When checksum is
// true, pages are verified against their trailer on read, matching
// FileDiskManager's behavior.
func NewMemDiskManager(checksum bool) *MemDiskManager {
	return &MemDiskManager{
		pages:    make(map[PageID]*Page),
		checksum: checksum,
	}
}

func (m *MemDiskManager) ReadPage(ctx context.Context, id PageID, dest *Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.pages[id]
	if !ok {
		*dest = Page{}
		return nil
	}
	*dest = *src
	if m.checksum {
		return verifyChecksum(dest)
	}
	return nil
}

func (m *MemDiskManager) WritePage(ctx context.Context, id PageID, src *Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.checksum {
		writeChecksum(src)
	}
	cp := *src
	m.pages[id] = &cp
	return nil
}

func (m *MemDiskManager) AllocatePage() PageID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	return id
}

// DeallocatePage keeps the stored bytes: the buffer pool deallocates a page's
// id when it evicts the page as well as when it deletes it, and an evicted
// page must still read back.
func (m *MemDiskManager) DeallocatePage(id PageID) error {
	return nil
}

func (m *MemDiskManager) Close() error { return nil }
