// Package buffer implements a fixed-capacity frame cache over disk pages:
// the buffer pool the hash index's directory and bucket pages are fetched
// and pinned through.
package buffer

import (
	"errors"
	"strconv"
	"sync"

	"exhashdb/pkg/config"
	"exhashdb/pkg/disk"
	"exhashdb/pkg/replacer"

	"github.com/ncw/directio"
	"golang.org/x/sync/singleflight"
)

// InvalidPageID denotes the absence of a page, mirroring disk.InvalidPageID.
const InvalidPageID = disk.InvalidPageID

// ErrPoolExhausted is returned when every frame is pinned and no victim
// can be found to satisfy a Fetch or New.
var ErrPoolExhausted = errors.New("buffer: no available frame")

// BufferPool is a fixed-capacity cache of disk pages. It owns an array of
// frames, a page table mapping page ids to frame indices, a free list of
// frames holding no page, a replacer for choosing a victim when the pool is
// full, and the disk manager pages are read from and written to. A single
// instance mutex guards the bookkeeping below; per-frame latches (taken
// by callers via Frame.RLock/WLock) guard page contents separately.
type BufferPool struct {
	mu        sync.Mutex
	frames    []*Frame
	pageTable map[int64]int
	freeList  []int
	replacer  *replacer.LRUReplacer
	disk      *disk.DiskManager
	loadGroup singleflight.Group // collapses concurrent FetchPage misses on the same page id into one disk read
}

// NewBufferPool constructs a BufferPool with poolSize frames, backed by dm.
func NewBufferPool(poolSize int, dm *disk.DiskManager) *BufferPool {
	if poolSize <= 0 {
		poolSize = config.PoolSize
	}
	bp := &BufferPool{
		frames:    make([]*Frame, poolSize),
		pageTable: make(map[int64]int),
		freeList:  make([]int, poolSize),
		replacer:  replacer.NewLRUReplacer(),
		disk:      dm,
	}
	// One aligned block sliced into per-frame pages, rather than one
	// make([]byte, ...) per frame: O_DIRECT requires every buffer handed
	// to ReadAt/WriteAt to be aligned to the OS block size.
	block := directio.AlignedBlock(int(config.PageSize) * poolSize)
	for i := 0; i < poolSize; i++ {
		frame := block[i*int(config.PageSize) : (i+1)*int(config.PageSize)]
		bp.frames[i] = newFrame(frame)
		bp.freeList[i] = i
	}
	return bp
}

// GetPoolSize returns this pool's frame capacity.
func (bp *BufferPool) GetPoolSize() int {
	return len(bp.frames)
}

// GetDiskManager returns the disk manager this pool reads and writes through.
func (bp *BufferPool) GetDiskManager() *disk.DiskManager {
	return bp.disk
}

// findVictimLocked returns a frame index to reuse, preferring the free
// list before asking the replacer for a victim. bp.mu must be held.
func (bp *BufferPool) findVictimLocked() (int, bool) {
	if n := len(bp.freeList); n > 0 {
		idx := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return idx, true
	}
	frameID, ok := bp.replacer.Victim()
	if !ok {
		return 0, false
	}
	return int(frameID), true
}

// evictLocked prepares frame idx for reuse: if it currently holds a dirty
// page, that page is flushed to disk first, and its page table entry is
// removed. bp.mu must be held.
func (bp *BufferPool) evictLocked(idx int) error {
	f := bp.frames[idx]
	if f.pageID == InvalidPageID {
		return nil
	}
	if f.IsDirty() {
		if err := bp.disk.WritePage(f.pageID, f.data); err != nil {
			return err
		}
	}
	delete(bp.pageTable, f.pageID)
	return nil
}

// FetchPage pins and returns the frame holding pageID, reading it from
// disk if it isn't already resident. Concurrent misses on the same
// pageID share a single disk read via loadGroup: only one caller actually
// evicts a victim and calls disk.ReadPage, and every caller (the one that
// did the read and every one that waited on it) pins the loaded frame for
// itself once the read completes, so pin counts stay correct regardless
// of how many callers raced on the same miss. Returns ErrPoolExhausted if
// every frame is pinned.
func (bp *BufferPool) FetchPage(pageID int64) (*Frame, error) {
	bp.mu.Lock()
	if idx, ok := bp.pageTable[pageID]; ok {
		f := bp.frames[idx]
		f.pinCount.Add(1)
		bp.replacer.Pin(int64(idx))
		bp.mu.Unlock()
		return f, nil
	}
	bp.mu.Unlock()

	v, err, _ := bp.loadGroup.Do(strconv.FormatInt(pageID, 10), func() (interface{}, error) {
		bp.mu.Lock()
		defer bp.mu.Unlock()

		if idx, ok := bp.pageTable[pageID]; ok {
			// Loaded by a call that completed between this goroutine's
			// page-table check above and the singleflight key being
			// claimed.
			return bp.frames[idx], nil
		}
		idx, ok := bp.findVictimLocked()
		if !ok {
			return nil, ErrPoolExhausted
		}
		if err := bp.evictLocked(idx); err != nil {
			bp.freeList = append(bp.freeList, idx)
			return nil, err
		}
		f := bp.frames[idx]
		if err := bp.disk.ReadPage(pageID, f.data); err != nil {
			bp.freeList = append(bp.freeList, idx)
			return nil, err
		}
		f.reset(pageID)
		f.pinCount.Store(0) // no specific caller has claimed a pin yet; every Do waiter claims its own below
		bp.pageTable[pageID] = idx
		return f, nil
	})
	if err != nil {
		return nil, err
	}

	f := v.(*Frame)
	bp.mu.Lock()
	idx, ok := bp.pageTable[pageID]
	if ok && bp.frames[idx] == f {
		f.pinCount.Add(1)
		bp.replacer.Pin(int64(idx))
		bp.mu.Unlock()
		return f, nil
	}
	bp.mu.Unlock()
	// The frame was reclaimed before this caller could pin it (only
	// possible if the pool is so starved every frame cycles before every
	// Do waiter gets the lock); retry the fetch from scratch.
	return bp.FetchPage(pageID)
}

// NewPage allocates a fresh page id via the disk manager, pins a zeroed
// frame for it, and returns both. The new page is marked dirty since it
// must eventually be persisted. Returns ErrPoolExhausted if every frame
// is pinned.
func (bp *BufferPool) NewPage() (*Frame, int64, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	idx, ok := bp.findVictimLocked()
	if !ok {
		return nil, InvalidPageID, ErrPoolExhausted
	}
	if err := bp.evictLocked(idx); err != nil {
		bp.freeList = append(bp.freeList, idx)
		return nil, InvalidPageID, err
	}
	pageID := bp.disk.AllocatePage()
	f := bp.frames[idx]
	f.zero()
	f.reset(pageID)
	f.dirty.Store(true)
	bp.pageTable[pageID] = idx
	return f, pageID, nil
}

// UnpinPage decrements pageID's pin count. If isDirty, the frame's dirty
// bit is set (it is never cleared here). When the pin count reaches zero
// the frame becomes eligible for eviction. Returns false if the page
// isn't resident or its pin count was already zero.
func (bp *BufferPool) UnpinPage(pageID int64, isDirty bool) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	idx, ok := bp.pageTable[pageID]
	if !ok {
		return false
	}
	f := bp.frames[idx]
	if f.pinCount.Load() == 0 {
		return false
	}
	if isDirty {
		f.dirty.Store(true)
	}
	if f.pinCount.Add(-1) == 0 {
		bp.replacer.Unpin(int64(idx))
	}
	return true
}

// FlushPage writes pageID's frame to disk if resident, clearing its dirty
// bit. Does not require the page to be unpinned.
func (bp *BufferPool) FlushPage(pageID int64) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	idx, ok := bp.pageTable[pageID]
	if !ok {
		return false
	}
	f := bp.frames[idx]
	if err := bp.disk.WritePage(pageID, f.data); err != nil {
		return false
	}
	f.dirty.Store(false)
	return true
}

// FlushAllPages flushes every resident page.
func (bp *BufferPool) FlushAllPages() {
	bp.mu.Lock()
	pageIDs := make([]int64, 0, len(bp.pageTable))
	for pageID := range bp.pageTable {
		pageIDs = append(pageIDs, pageID)
	}
	bp.mu.Unlock()
	for _, pageID := range pageIDs {
		bp.FlushPage(pageID)
	}
}

// DeletePage removes pageID from the pool and deallocates it on disk. If
// the page isn't resident, deallocation still happens and true is
// returned. If the page is resident but pinned, returns false.
func (bp *BufferPool) DeletePage(pageID int64) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	idx, ok := bp.pageTable[pageID]
	if !ok {
		bp.disk.DeallocatePage(pageID)
		return true
	}
	f := bp.frames[idx]
	if f.pinCount.Load() != 0 {
		return false
	}
	delete(bp.pageTable, pageID)
	bp.replacer.Pin(int64(idx)) // drop from replacer tracking, if present
	f.pageID = InvalidPageID
	f.zero()
	bp.freeList = append(bp.freeList, idx)
	bp.disk.DeallocatePage(pageID)
	return true
}
