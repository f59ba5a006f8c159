package pagekv

import (
	"context"
	"sync"
)

// BufferPool manages a fixed-capacity set of frames backed by a disk
// manager, admitting and evicting pages under an LRU-K replacement policy.
// All public operations acquire the pool's mutex for their entire duration.
type BufferPool struct {
	mu sync.Mutex

	disk     DiskManager
	replacer *LRUKReplacer
	logger   Logger

	frames    []*Frame
	freeList  []FrameID
	pageTable map[PageID]FrameID
}

// NewBufferPool creates a pool of opts.PoolSize frames over disk.
func NewBufferPool(disk DiskManager, opts ...BufferPoolOption) *BufferPool {
	o := NewBufferPoolOptions(opts...)

	bp := &BufferPool{
		disk:      disk,
		replacer:  NewLRUKReplacer(o.PoolSize, o.ReplacerK),
		logger:    o.Logger,
		frames:    make([]*Frame, o.PoolSize),
		freeList:  make([]FrameID, o.PoolSize),
		pageTable: make(map[PageID]FrameID, o.PoolSize),
	}
	for i := 0; i < o.PoolSize; i++ {
		bp.frames[i] = newFrame(FrameID(i))
		bp.freeList[i] = FrameID(o.PoolSize - 1 - i)
	}
	return bp
}

// PoolSize returns the number of frames managed by the pool.
func (bp *BufferPool) PoolSize() int { return len(bp.frames) }

// obtainFrame returns a frame to house a new tenant, either from the free
// list or by evicting the replacer's top candidate. The returned frame's
// previous page, if dirty, has been flushed and its page-table entry
// erased. Returns (nil, false) if no frame is available, or if the evicted
// page's dirty flush fails: the caller must not hand out a frame whose
// prior contents were not durably written, since the caller about to
// receive it is going to overwrite that frame's bytes. Caller must hold
// bp.mu.
func (bp *BufferPool) obtainFrame(ctx context.Context) (*Frame, bool) {
	if n := len(bp.freeList); n > 0 {
		id := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return bp.frames[id], true
	}

	frameID, ok := bp.replacer.Evict()
	if !ok {
		return nil, false
	}

	frame := bp.frames[frameID]
	if frame.dirty {
		if err := bp.disk.WritePage(ctx, frame.pageID, &frame.data); err != nil {
			bp.logger.Error("buffer pool: evict flush failed", "page_id", frame.pageID, "err", err)
			return nil, false
		}
	}
	delete(bp.pageTable, frame.pageID)
	bp.disk.DeallocatePage(frame.pageID)
	return frame, true
}

// NewPage allocates a fresh page id and pins it in a frame. Returns
// (InvalidPageID, nil, false) if no frame is available.
func (bp *BufferPool) NewPage(ctx context.Context) (PageID, *BasicPageGuard, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, ok := bp.obtainFrame(ctx)
	if !ok {
		return InvalidPageID, nil, false
	}

	id := bp.disk.AllocatePage()
	frame.reset(id)
	frame.pinCnt = 1

	if err := bp.replacer.RecordAccess(frame.id); err != nil {
		bp.logger.Warn("buffer pool: replacer record access failed", "err", err)
	}
	if err := bp.replacer.SetEvictable(frame.id, false); err != nil {
		bp.logger.Warn("buffer pool: replacer set evictable failed", "err", err)
	}
	bp.pageTable[id] = frame.id

	g := newBasicGuard(bp, frame)
	return id, &g, true
}

// FetchPage pins the frame holding pageID, reading it from disk if it is not
// already resident. Returns (nil, false) if all frames are pinned.
func (bp *BufferPool) FetchPage(ctx context.Context, pageID PageID) (*BasicPageGuard, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frameID, ok := bp.pageTable[pageID]; ok {
		frame := bp.frames[frameID]
		frame.pinCnt++
		if err := bp.replacer.RecordAccess(frameID); err != nil {
			bp.logger.Warn("buffer pool: replacer record access failed", "err", err)
		}
		if err := bp.replacer.SetEvictable(frameID, false); err != nil {
			bp.logger.Warn("buffer pool: replacer set evictable failed", "err", err)
		}
		g := newBasicGuard(bp, frame)
		return &g, true
	}

	frame, ok := bp.obtainFrame(ctx)
	if !ok {
		return nil, false
	}

	frame.reset(pageID)
	if err := bp.disk.ReadPage(ctx, pageID, &frame.data); err != nil {
		bp.logger.Error("buffer pool: read page failed", "page_id", pageID, "err", err)
		frame.reset(InvalidPageID)
		bp.freeList = append(bp.freeList, frame.id)
		return nil, false
	}
	frame.pinCnt = 1

	if err := bp.replacer.RecordAccess(frame.id); err != nil {
		bp.logger.Warn("buffer pool: replacer record access failed", "err", err)
	}
	if err := bp.replacer.SetEvictable(frame.id, false); err != nil {
		bp.logger.Warn("buffer pool: replacer set evictable failed", "err", err)
	}
	bp.pageTable[pageID] = frame.id

	g := newBasicGuard(bp, frame)
	return &g, true
}

// UnpinPage decrements pageID's pin count, OR-ing in dirty. When the count
// reaches zero the frame becomes evictable. Returns false if the page is not
// resident or is already unpinned.
func (bp *BufferPool) UnpinPage(pageID PageID, dirty bool) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return false
	}
	frame := bp.frames[frameID]
	if frame.pinCnt <= 0 {
		return false
	}

	frame.pinCnt--
	frame.dirty = frame.dirty || dirty
	if frame.pinCnt == 0 {
		if err := bp.replacer.SetEvictable(frameID, true); err != nil {
			bp.logger.Warn("buffer pool: replacer set evictable failed", "err", err)
		}
	}
	return true
}

// FlushPage writes pageID's bytes to disk and clears its dirty flag,
// regardless of pin state. Returns false if not resident.
func (bp *BufferPool) FlushPage(ctx context.Context, pageID PageID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return false
	}
	frame := bp.frames[frameID]
	if err := bp.disk.WritePage(ctx, pageID, &frame.data); err != nil {
		bp.logger.Error("buffer pool: flush failed", "page_id", pageID, "err", err)
		return false
	}
	frame.dirty = false
	return true
}

// FlushAllPages flushes every resident page.
func (bp *BufferPool) FlushAllPages(ctx context.Context) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for id, frameID := range bp.pageTable {
		frame := bp.frames[frameID]
		if err := bp.disk.WritePage(ctx, id, &frame.data); err != nil {
			bp.logger.Error("buffer pool: flush failed", "page_id", id, "err", err)
			continue
		}
		frame.dirty = false
	}
}

// DeletePage removes pageID from the pool and deallocates it on disk.
// Returns true if the page was absent (nothing to do) or was removed; false
// if it is pinned.
func (bp *BufferPool) DeletePage(pageID PageID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return true
	}
	frame := bp.frames[frameID]
	if frame.pinCnt > 0 {
		return false
	}

	if err := bp.replacer.Remove(frameID); err != nil {
		bp.logger.Warn("buffer pool: replacer remove failed", "err", err)
	}
	delete(bp.pageTable, pageID)
	frame.reset(InvalidPageID)
	bp.freeList = append(bp.freeList, frameID)
	bp.disk.DeallocatePage(pageID)
	return true
}

// FetchPageBasic is an alias of FetchPage kept for parity with the guard
// factory family below.
func (bp *BufferPool) FetchPageBasic(ctx context.Context, pageID PageID) (*BasicPageGuard, bool) {
	return bp.FetchPage(ctx, pageID)
}

// FetchPageRead pins pageID and attaches a reader latch.
func (bp *BufferPool) FetchPageRead(ctx context.Context, pageID PageID) (*ReadPageGuard, bool) {
	basic, ok := bp.FetchPage(ctx, pageID)
	if !ok {
		return nil, false
	}
	g := newReadGuard(*basic)
	return &g, true
}

// FetchPageWrite pins pageID and attaches a writer latch.
func (bp *BufferPool) FetchPageWrite(ctx context.Context, pageID PageID) (*WritePageGuard, bool) {
	basic, ok := bp.FetchPage(ctx, pageID)
	if !ok {
		return nil, false
	}
	g := newWriteGuard(*basic)
	return &g, true
}

// NewPageGuarded allocates a fresh page and attaches a writer latch, since
// the caller is always about to initialize its contents.
func (bp *BufferPool) NewPageGuarded(ctx context.Context) (PageID, *WritePageGuard, bool) {
	id, basic, ok := bp.NewPage(ctx)
	if !ok {
		return InvalidPageID, nil, false
	}
	g := newWriteGuard(*basic)
	return id, &g, true
}
