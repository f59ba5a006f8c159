package pagekv

// SyncMode controls when the disk manager forces buffered writes to stable
// storage.
type SyncMode int

const (
	// SyncOff never calls Sync explicitly; the OS decides when dirty pages
	// reach disk.
	SyncOff SyncMode = iota
	// SyncEveryCommit calls Sync after every WritePage.
	SyncEveryCommit
	// SyncBytes calls Sync once DiskManagerOptions.SyncBytes bytes have been
	// written since the last sync.
	SyncBytes
)

// BufferPoolOptions configures a BufferPool. Use NewBufferPoolOptions to
// obtain one with defaults applied, then layer BufferPoolOption values on
// top.
type BufferPoolOptions struct {
	PoolSize  int
	ReplacerK int
	Logger    Logger
}

// BufferPoolOption mutates a BufferPoolOptions in place; used with
// NewBufferPoolOptions.
type BufferPoolOption func(*BufferPoolOptions)

// WithPoolSize sets the number of frames held by the buffer pool.
func WithPoolSize(n int) BufferPoolOption {
	return func(o *BufferPoolOptions) { o.PoolSize = n }
}

// WithReplacerK sets k for the LRU-K replacer backing the pool.
func WithReplacerK(k int) BufferPoolOption {
	return func(o *BufferPoolOptions) { o.ReplacerK = k }
}

// WithLogger overrides the pool's logger; the default is DiscardLogger.
func WithLogger(l Logger) BufferPoolOption {
	return func(o *BufferPoolOptions) { o.Logger = l }
}

// NewBufferPoolOptions builds a BufferPoolOptions with sane defaults, then
// applies opts in order.
func NewBufferPoolOptions(opts ...BufferPoolOption) BufferPoolOptions {
	o := BufferPoolOptions{
		PoolSize:  64,
		ReplacerK: 2,
		Logger:    DiscardLogger{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DiskManagerOptions configures a FileDiskManager.
type DiskManagerOptions struct {
	Sync          SyncMode
	SyncBytes     int64
	ChecksumPages bool
	Logger        Logger
}

// DiskManagerOption mutates a DiskManagerOptions in place.
type DiskManagerOption func(*DiskManagerOptions)

// WithSyncMode selects when the disk manager fsyncs.
func WithSyncMode(m SyncMode) DiskManagerOption {
	return func(o *DiskManagerOptions) { o.Sync = m }
}

// WithSyncBytes sets the byte threshold used by SyncBytes mode.
func WithSyncBytes(n int64) DiskManagerOption {
	return func(o *DiskManagerOptions) { o.SyncBytes = n }
}

// WithChecksums enables an xxhash checksum trailer on every page, verified
// on read.
func WithChecksums(enabled bool) DiskManagerOption {
	return func(o *DiskManagerOptions) { o.ChecksumPages = enabled }
}

// WithDiskLogger overrides the disk manager's logger.
func WithDiskLogger(l Logger) DiskManagerOption {
	return func(o *DiskManagerOptions) { o.Logger = l }
}

// NewDiskManagerOptions builds a DiskManagerOptions with sane defaults, then
// applies opts in order.
func NewDiskManagerOptions(opts ...DiskManagerOption) DiskManagerOptions {
	o := DiskManagerOptions{
		Sync:          SyncEveryCommit,
		SyncBytes:     4 << 20,
		ChecksumPages: true,
		Logger:        DiscardLogger{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
