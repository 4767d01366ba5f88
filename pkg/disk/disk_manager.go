// Package disk implements the on-disk block allocator the buffer pool reads
// and writes through. It owns exactly one backing file: pages are
// addressed by a non-negative page id and live at offset id*PageSize.
package disk

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"exhashdb/pkg/config"

	"github.com/ncw/directio"
)

// InvalidPageID denotes the absence of a page.
const InvalidPageID int64 = -1

// ErrCorruptFile is returned when a backing file's length isn't a
// multiple of the page size.
var ErrCorruptFile = errors.New("disk: backing file size is not a multiple of the page size")

// DiskManager reads and writes fixed-size pages to a single backing file
// and hands out fresh page ids on allocation. It has no notion of pinning,
// caching, or dirtiness; that bookkeeping belongs to the buffer pool.
type DiskManager struct {
	file     *os.File
	numPages atomic.Int64
	mu       sync.Mutex // serializes allocation/deallocation bookkeeping
	writes   atomic.Uint64
}

// New opens (creating if necessary) the database file at filePath.
func New(filePath string) (*DiskManager, error) {
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err := os.MkdirAll(filePath[:idx], 0775); err != nil {
			return nil, err
		}
	}
	file, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	dm := &DiskManager{file: file}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size()%config.PageSize != 0 {
		file.Close()
		return nil, ErrCorruptFile
	}
	dm.numPages.Store(info.Size() / config.PageSize)
	return dm, nil
}

// GetFileName returns the path of the backing file.
func (dm *DiskManager) GetFileName() string {
	return dm.file.Name()
}

// GetNumPages returns how many page ids have been allocated so far.
func (dm *DiskManager) GetNumPages() int64 {
	return dm.numPages.Load()
}

// AllocatePage reserves and returns the next page id. The page is not
// written to disk until the caller writes it.
func (dm *DiskManager) AllocatePage() int64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	pageID := dm.numPages.Load()
	dm.numPages.Add(1)
	return pageID
}

// DeallocatePage would reclaim a page id for reuse; this implementation
// does not shrink the file or recycle ids (matching the teacher's pager,
// which never truncates either) but the call is accepted so callers can
// treat deallocation as always succeeding.
func (dm *DiskManager) DeallocatePage(pageID int64) {}

// ReadPage fills data (which must be exactly config.PageSize bytes) with
// the contents of the page on disk. Reading a page beyond the end of the
// file (one that was allocated but never written) zero-fills data.
func (dm *DiskManager) ReadPage(pageID int64, data []byte) error {
	if pageID < 0 {
		return errors.New("disk: invalid page id")
	}
	n, err := dm.file.ReadAt(data, pageID*config.PageSize)
	if err != nil && n == 0 {
		// Not yet written: treat as a zeroed page, matching the buffer
		// pool's expectation that NewPage's frame starts zeroed.
		for i := range data {
			data[i] = 0
		}
		return nil
	}
	return nil
}

// WritePage persists data (exactly config.PageSize bytes) at pageID's slot.
func (dm *DiskManager) WritePage(pageID int64, data []byte) error {
	if pageID < 0 {
		return errors.New("disk: invalid page id")
	}
	_, err := dm.file.WriteAt(data, pageID*config.PageSize)
	if err == nil {
		dm.writes.Add(1)
	}
	return err
}

// GetNumWrites reports how many WritePage calls have succeeded, for tests
// and diagnostics.
func (dm *DiskManager) GetNumWrites() uint64 {
	return dm.writes.Load()
}

// Close closes the backing file. The caller is responsible for flushing
// any buffer pool that wraps this manager first.
func (dm *DiskManager) Close() error {
	return dm.file.Close()
}
