package buffer_test

import (
	"path/filepath"
	"testing"

	"exhashdb/pkg/buffer"
	"exhashdb/pkg/disk"
)

func newTestParallelPool(t *testing.T, numInstances, poolSize int) *buffer.ParallelBufferPool {
	t.Helper()
	dms := make([]*disk.DiskManager, numInstances)
	for i := range dms {
		dm, err := disk.New(filepath.Join(t.TempDir(), "shard.db"))
		if err != nil {
			t.Fatalf("disk.New: %v", err)
		}
		dms[i] = dm
		t.Cleanup(func() { dm.Close() })
	}
	return buffer.NewParallelBufferPool(numInstances, poolSize, dms)
}

func TestParallelBufferPoolGetPoolSizeIsSum(t *testing.T) {
	p := newTestParallelPool(t, 4, 8)
	if got := p.GetPoolSize(); got != 32 {
		t.Fatalf("GetPoolSize() = %d, want 32 (4*8, not a single shard's 8)", got)
	}
}

func TestParallelBufferPoolRoutesByPageIDModulo(t *testing.T) {
	p := newTestParallelPool(t, 4, 8)
	for pageID := int64(0); pageID < 16; pageID++ {
		want := p.PoolFor(pageID)
		got := p.PoolFor(pageID + 4) // same shard, since %4 is equal
		if want != got {
			t.Fatalf("pageID %d and %d should route to the same shard", pageID, pageID+4)
		}
	}
}

func TestParallelBufferPoolNewPageSpreadsAcrossShards(t *testing.T) {
	p := newTestParallelPool(t, 4, 8)
	seen := make(map[*buffer.BufferPool]int)
	for i := 0; i < 8; i++ {
		f, pageID, err := p.NewPage()
		if err != nil {
			t.Fatalf("NewPage: %v", err)
		}
		seen[p.PoolFor(pageID)]++
		p.UnpinPage(pageID, false)
		_ = f
	}
	for shard, count := range seen {
		_ = shard
		if count != 2 {
			t.Fatalf("expected round-robin to spread 8 pages evenly across 4 shards, got counts %v", seen)
		}
	}
}

func TestParallelBufferPoolFlushAllPages(t *testing.T) {
	p := newTestParallelPool(t, 3, 4)
	for i := 0; i < 6; i++ {
		f, pageID, err := p.NewPage()
		if err != nil {
			t.Fatalf("NewPage: %v", err)
		}
		copy(f.Data(), []byte("x"))
		p.UnpinPage(pageID, true)
	}
	if err := p.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages: %v", err)
	}
}
