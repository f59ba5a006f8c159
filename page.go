package pagekv

// PageSize is the fixed size, in bytes, of every page moved between the
// buffer pool and the disk manager.
const PageSize = 4096

// PageID identifies a page on disk. Page ids are allocated monotonically by
// the buffer pool and are never reused.
type PageID int32

// InvalidPageID is the sentinel returned in place of a valid PageID when no
// page exists (an empty tree's root, an unset next-page link, and so on).
const InvalidPageID PageID = -1

// FrameID identifies a frame slot in the buffer pool, in [0, pool_size).
type FrameID int32

// Page is the raw byte content of one page-sized disk block. It carries no
// interpretation of its own; the B+-tree decodes the bytes through its own
// header structs.
type Page [PageSize]byte
