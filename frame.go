package pagekv

import "sync"

// Frame is one pool slot: a page-sized byte buffer plus the metadata needed
// to track its tenancy. Frames live for the pool's lifetime; only the page
// they hold changes.
type Frame struct {
	latch sync.RWMutex

	id     FrameID
	pageID PageID
	data   Page
	pinCnt int
	dirty  bool
}

func newFrame(id FrameID) *Frame {
	return &Frame{id: id, pageID: InvalidPageID}
}

// PageID returns the page currently resident in the frame.
func (f *Frame) PageID() PageID { return f.pageID }

// PinCount returns the number of outstanding pins on the frame.
func (f *Frame) PinCount() int { return f.pinCnt }

// Dirty reports whether the frame holds unflushed writes.
func (f *Frame) Dirty() bool { return f.dirty }

// Data exposes the frame's page bytes directly. Callers must hold the
// appropriate latch (via a guard) before reading or writing through it.
func (f *Frame) Data() *Page { return &f.data }

func (f *Frame) reset(pageID PageID) {
	f.pageID = pageID
	f.data = Page{}
	f.pinCnt = 0
	f.dirty = false
}
