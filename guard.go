package pagekv

// BasicPageGuard holds a pin on a frame with no latch. It is the building
// block ReadPageGuard and WritePageGuard wrap with a reader or writer latch.
// Guards are not copyable; once Drop (or the more specific guard's Drop) has
// run, the guard is inert and further calls are no-ops.
type BasicPageGuard struct {
	bp     *BufferPool
	frame  *Frame
	pageID PageID
	dirty  bool
	valid  bool
}

func newBasicGuard(bp *BufferPool, frame *Frame) BasicPageGuard {
	return BasicPageGuard{bp: bp, frame: frame, pageID: frame.PageID(), valid: true}
}

// PageID returns the id of the guarded page.
func (g *BasicPageGuard) PageID() PageID { return g.pageID }

// Data returns the guarded page's bytes.
func (g *BasicPageGuard) Data() *Page { return g.frame.Data() }

// MarkDirty sets the dirty bit that will be applied on unpin.
func (g *BasicPageGuard) MarkDirty() { g.dirty = true }

// Drop unpins the frame, propagating the guard's dirty bit, and makes the
// guard inert. Safe to call more than once.
func (g *BasicPageGuard) Drop() {
	if !g.valid {
		return
	}
	g.valid = false
	g.bp.UnpinPage(g.pageID, g.dirty)
}

// ReadPageGuard holds a pin plus the frame's reader latch.
type ReadPageGuard struct {
	BasicPageGuard
}

// newReadGuard attaches a reader latch on top of an already-pinned basic
// guard.
func newReadGuard(basic BasicPageGuard) ReadPageGuard {
	basic.frame.latch.RLock()
	return ReadPageGuard{BasicPageGuard: basic}
}

// Drop releases the reader latch, then unpins, then makes the guard inert.
func (g *ReadPageGuard) Drop() {
	if !g.valid {
		return
	}
	g.frame.latch.RUnlock()
	g.BasicPageGuard.Drop()
}

// WritePageGuard holds a pin plus the frame's writer latch.
type WritePageGuard struct {
	BasicPageGuard
}

// newWriteGuard attaches a writer latch on top of an already-pinned basic
// guard.
func newWriteGuard(basic BasicPageGuard) WritePageGuard {
	basic.frame.latch.Lock()
	return WritePageGuard{BasicPageGuard: basic}
}

// DataMut returns the guarded page's bytes for mutation and marks it dirty.
func (g *WritePageGuard) DataMut() *Page {
	g.dirty = true
	return g.frame.Data()
}

// Drop releases the writer latch, then unpins, then makes the guard inert.
func (g *WritePageGuard) Drop() {
	if !g.valid {
		return
	}
	g.frame.latch.Unlock()
	g.BasicPageGuard.Drop()
}
