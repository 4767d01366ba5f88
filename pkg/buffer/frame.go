package buffer

import (
	"sync"
	"sync/atomic"
)

// Frame is one entry of a BufferPool's fixed array: a page-sized buffer
// plus the bookkeeping needed to cache, pin, and evict it.
type Frame struct {
	pageID   int64
	pinCount atomic.Int64
	dirty    atomic.Bool
	rwlock   sync.RWMutex // page latch, independent of the pool's bookkeeping lock
	data     []byte
}

// newFrame wraps a page-sized slice of a caller-provided aligned block.
// Frames never allocate their own backing memory: O_DIRECT requires every
// read/write buffer to be aligned to the OS block size, so all of a
// pool's frames are carved out of one directio.AlignedBlock up front (see
// NewBufferPool).
func newFrame(data []byte) *Frame {
	return &Frame{pageID: InvalidPageID, data: data}
}

// PageID returns the id of the page currently held by this frame.
func (f *Frame) PageID() int64 {
	return f.pageID
}

// PinCount returns the number of outstanding pins on this frame.
func (f *Frame) PinCount() int64 {
	return f.pinCount.Load()
}

// IsDirty reports whether this frame's data differs from what's on disk.
func (f *Frame) IsDirty() bool {
	return f.dirty.Load()
}

// SetDirty marks (or clears) the frame's dirty bit directly. Buffer pool
// callers should prefer passing isDirty to UnpinPage.
func (f *Frame) SetDirty(dirty bool) {
	f.dirty.Store(dirty)
}

// Data returns the frame's backing byte slice. Callers must hold the
// frame's latch (WLock for writes, RLock for reads) while touching it.
func (f *Frame) Data() []byte {
	return f.data
}

// WLock acquires the frame's page latch for writing.
func (f *Frame) WLock() { f.rwlock.Lock() }

// WUnlock releases the frame's write latch.
func (f *Frame) WUnlock() { f.rwlock.Unlock() }

// RLock acquires the frame's page latch for reading.
func (f *Frame) RLock() { f.rwlock.RLock() }

// RUnlock releases the frame's read latch.
func (f *Frame) RUnlock() { f.rwlock.RUnlock() }

func (f *Frame) reset(pageID int64) {
	f.pageID = pageID
	f.pinCount.Store(1)
	f.dirty.Store(false)
}

func (f *Frame) zero() {
	for i := range f.data {
		f.data[i] = 0
	}
}
