package buffer_test

import (
	"path/filepath"
	"testing"

	"exhashdb/pkg/buffer"
	"exhashdb/pkg/disk"
)

func newTestPool(t *testing.T, poolSize int) *buffer.BufferPool {
	t.Helper()
	dm, err := disk.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("disk.New: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	return buffer.NewBufferPool(poolSize, dm)
}

func TestNewPageAndFetch(t *testing.T) {
	bp := newTestPool(t, 4)

	f, pageID, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if pageID != 0 {
		t.Fatalf("pageID = %d, want 0", pageID)
	}
	copy(f.Data(), []byte("hello"))
	f.SetDirty(true)
	if !bp.UnpinPage(pageID, true) {
		t.Fatal("UnpinPage returned false")
	}

	f2, err := bp.FetchPage(pageID)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if string(f2.Data()[:5]) != "hello" {
		t.Fatalf("fetched data = %q, want %q", f2.Data()[:5], "hello")
	}
	bp.UnpinPage(pageID, false)
}

func TestFetchPageSharesFrameOnRepeatedFetch(t *testing.T) {
	bp := newTestPool(t, 4)
	_, pageID, _ := bp.NewPage()
	bp.UnpinPage(pageID, false)

	f1, err := bp.FetchPage(pageID)
	if err != nil {
		t.Fatalf("FetchPage 1: %v", err)
	}
	f2, err := bp.FetchPage(pageID)
	if err != nil {
		t.Fatalf("FetchPage 2: %v", err)
	}
	if f1 != f2 {
		t.Fatal("repeated fetch of same page id returned different frames")
	}
	bp.UnpinPage(pageID, false)
	bp.UnpinPage(pageID, false)
}

func TestPoolExhaustion(t *testing.T) {
	bp := newTestPool(t, 2)
	_, p0, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage 0: %v", err)
	}
	_, p1, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage 1: %v", err)
	}
	if _, _, err := bp.NewPage(); err != buffer.ErrPoolExhausted {
		t.Fatalf("NewPage on full pool = %v, want ErrPoolExhausted", err)
	}
	bp.UnpinPage(p0, false)
	if _, _, err := bp.NewPage(); err != nil {
		t.Fatalf("NewPage after unpin: %v", err)
	}
	bp.UnpinPage(p1, false)
}

func TestUnpinPageOnUnresidentOrAlreadyZero(t *testing.T) {
	bp := newTestPool(t, 2)
	if bp.UnpinPage(999, false) {
		t.Fatal("UnpinPage on non-resident page should return false")
	}
	_, pageID, _ := bp.NewPage()
	if !bp.UnpinPage(pageID, false) {
		t.Fatal("first UnpinPage should succeed")
	}
	if bp.UnpinPage(pageID, false) {
		t.Fatal("UnpinPage past zero pin count should return false")
	}
}

func TestFlushPagePersists(t *testing.T) {
	bp := newTestPool(t, 4)
	f, pageID, _ := bp.NewPage()
	copy(f.Data(), []byte("persisted"))
	bp.UnpinPage(pageID, true)
	if !bp.FlushPage(pageID) {
		t.Fatal("FlushPage returned false")
	}
	if n := bp.GetDiskManager().GetNumWrites(); n == 0 {
		t.Fatal("FlushPage did not write to disk")
	}
}

func TestDeletePageRefusesWhilePinned(t *testing.T) {
	bp := newTestPool(t, 4)
	_, pageID, _ := bp.NewPage()
	if bp.DeletePage(pageID) {
		t.Fatal("DeletePage on a pinned page should return false")
	}
	bp.UnpinPage(pageID, false)
	if !bp.DeletePage(pageID) {
		t.Fatal("DeletePage should succeed once unpinned")
	}
}

func TestEvictionFlushesDirtyVictim(t *testing.T) {
	bp := newTestPool(t, 1)
	f, p0, _ := bp.NewPage()
	copy(f.Data(), []byte("dirty"))
	bp.UnpinPage(p0, true)

	// Only one frame: allocating a second page must evict p0, flushing it.
	_, p1, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	bp.UnpinPage(p1, false)

	if n := bp.GetDiskManager().GetNumWrites(); n == 0 {
		t.Fatal("eviction of dirty frame should have flushed it")
	}
}
