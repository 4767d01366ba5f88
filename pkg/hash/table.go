package hash

import (
	"sync"
	"sync/atomic"

	"exhashdb/pkg/buffer"
	"exhashdb/pkg/codec"
	"exhashdb/pkg/concurrency"
)

// Pool is the subset of buffer.BufferPool / buffer.ParallelBufferPool the
// table needs. Depending on it as an interface, rather than a concrete
// type, lets the table run over either a single pool or a sharded one
// without caring which.
type Pool interface {
	FetchPage(pageID int64) (*buffer.Frame, error)
	NewPage() (*buffer.Frame, int64, error)
	UnpinPage(pageID int64, isDirty bool) bool
	DeletePage(pageID int64) bool
}

const invalidPageID int64 = -1

// Table is a disk-backed extendible hash multimap from K to V, fetching
// its directory and bucket pages through a Pool. The zero value is not
// usable; construct with NewTable.
type Table[K any, V any] struct {
	tableLatch sync.RWMutex // guards directory structure: shared for reads, exclusive for split/merge
	initLatch  sync.Mutex

	directoryPageID atomic.Int64

	pool    Pool
	kc      codec.KeyCodec[K]
	vc      codec.ValueCodec[V]
	cmp     codec.Comparator[K]
	hashFn  codec.HashFunction[K]
	valueEq func(a, b V) bool
}

// NewTable constructs an empty table. The directory page is not
// allocated until the first operation needs it.
func NewTable[K any, V any](
	pool Pool,
	kc codec.KeyCodec[K],
	vc codec.ValueCodec[V],
	cmp codec.Comparator[K],
	hashFn codec.HashFunction[K],
	valueEq func(a, b V) bool,
) *Table[K, V] {
	t := &Table[K, V]{pool: pool, kc: kc, vc: vc, cmp: cmp, hashFn: hashFn, valueEq: valueEq}
	t.directoryPageID.Store(invalidPageID)
	return t
}

func (t *Table[K, V]) hash32(key K) uint32 { return t.hashFn(key) }

// fetchDirectory pins and returns the directory page and its frame,
// lazily allocating it (plus a first bucket page) on first use.
func (t *Table[K, V]) fetchDirectory() (*buffer.Frame, *DirectoryPage, error) {
	if t.directoryPageID.Load() == invalidPageID {
		t.initLatch.Lock()
		if t.directoryPageID.Load() == invalidPageID {
			if err := t.initDirectory(); err != nil {
				t.initLatch.Unlock()
				return nil, nil, err
			}
		}
		t.initLatch.Unlock()
	}
	frame, err := t.pool.FetchPage(t.directoryPageID.Load())
	if err != nil {
		return nil, nil, err
	}
	return frame, WrapDirectoryPage(frame.Data()), nil
}

func (t *Table[K, V]) initDirectory() error {
	dirFrame, dirPageID, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	bucketFrame, bucketPageID, err := t.pool.NewPage()
	if err != nil {
		t.pool.UnpinPage(dirPageID, false)
		return err
	}
	dir := WrapDirectoryPage(dirFrame.Data())
	dir.Init(dirPageID)
	dir.SetBucketPageID(0, bucketPageID)
	dir.SetLocalDepth(0, 0)
	_ = WrapBucketPage[K, V](bucketFrame.Data(), t.kc, t.vc) // zeroed page is already a valid empty bucket
	t.pool.UnpinPage(bucketPageID, true)
	t.pool.UnpinPage(dirPageID, true)
	t.directoryPageID.Store(dirPageID)
	return nil
}

func (t *Table[K, V]) fetchBucket(pageID int64) (*buffer.Frame, *BucketPage[K, V], error) {
	frame, err := t.pool.FetchPage(pageID)
	if err != nil {
		return nil, nil, err
	}
	return frame, WrapBucketPage[K, V](frame.Data(), t.kc, t.vc), nil
}

// GetValue appends every value stored under key to out and reports
// whether at least one was found.
func (t *Table[K, V]) GetValue(_ *concurrency.Transaction, key K, out []V) ([]V, bool, error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()

	dirFrame, dir, err := t.fetchDirectory()
	if err != nil {
		return out, false, err
	}
	i := int(t.hash32(key) & dir.GetGlobalDepthMask())
	bucketPageID := dir.GetBucketPageID(i)
	t.pool.UnpinPage(dir.GetPageID(), false)
	_ = dirFrame

	bucketFrame, bucket, err := t.fetchBucket(bucketPageID)
	if err != nil {
		return out, false, err
	}
	bucketFrame.RLock()
	out, found := bucket.GetValue(key, t.cmp, out)
	bucketFrame.RUnlock()
	t.pool.UnpinPage(bucketPageID, false)
	return out, found, nil
}

// Insert adds (key,value). Returns false without modifying anything if
// the pair already exists, or if growth would exceed MaxGlobalDepth.
func (t *Table[K, V]) Insert(txn *concurrency.Transaction, key K, value V) (bool, error) {
	t.tableLatch.RLock()
	dirFrame, dir, err := t.fetchDirectory()
	if err != nil {
		t.tableLatch.RUnlock()
		return false, err
	}
	i := int(t.hash32(key) & dir.GetGlobalDepthMask())
	bucketPageID := dir.GetBucketPageID(i)
	t.pool.UnpinPage(dir.GetPageID(), false)
	_ = dirFrame

	bucketFrame, bucket, err := t.fetchBucket(bucketPageID)
	if err != nil {
		t.tableLatch.RUnlock()
		return false, err
	}
	bucketFrame.WLock()
	if !bucket.IsFull() {
		ok := bucket.Insert(key, value, t.cmp, t.valueEq)
		bucketFrame.WUnlock()
		t.pool.UnpinPage(bucketPageID, ok)
		t.tableLatch.RUnlock()
		return ok, nil
	}
	bucketFrame.WUnlock()
	t.pool.UnpinPage(bucketPageID, false)
	t.tableLatch.RUnlock()

	return t.splitInsert(txn, key, value)
}

// splitInsert grows the bucket holding key (and, if necessary, the
// directory) to make room, then retries Insert.
func (t *Table[K, V]) splitInsert(txn *concurrency.Transaction, key K, value V) (bool, error) {
	t.tableLatch.Lock()

	dirFrame, dir, err := t.fetchDirectory()
	if err != nil {
		t.tableLatch.Unlock()
		return false, err
	}
	_ = dirFrame

	i := int(t.hash32(key) & dir.GetGlobalDepthMask())
	ld := dir.GetLocalDepth(i)
	if ld >= MaxGlobalDepth {
		t.pool.UnpinPage(dir.GetPageID(), false)
		t.tableLatch.Unlock()
		return false, nil
	}

	originPageID := dir.GetBucketPageID(i)
	originFrame, origin, err := t.fetchBucket(originPageID)
	if err != nil {
		t.pool.UnpinPage(dir.GetPageID(), false)
		t.tableLatch.Unlock()
		return false, err
	}
	originFrame.WLock()
	if !origin.IsFull() {
		// Raced remove freed up space; fall back to the plain path.
		originFrame.WUnlock()
		t.pool.UnpinPage(originPageID, false)
		t.pool.UnpinPage(dir.GetPageID(), false)
		t.tableLatch.Unlock()
		return t.Insert(txn, key, value)
	}

	if ld == dir.GetGlobalDepth() {
		dir.IncrGlobalDepth()
	}
	dir.IncrLocalDepth(i)
	newLD := dir.GetLocalDepth(i)

	splitFrame, splitPageID, err := t.pool.NewPage()
	if err != nil {
		originFrame.WUnlock()
		t.pool.UnpinPage(originPageID, false)
		t.pool.UnpinPage(dir.GetPageID(), false)
		t.tableLatch.Unlock()
		return false, err
	}
	split := WrapBucketPage[K, V](splitFrame.Data(), t.kc, t.vc)
	s := dir.GetSplitImageIndex(i)

	lowMask := uint32(1<<newLD) - 1
	iBits := uint32(i) & lowMask
	sBits := uint32(s) & lowMask
	size := dir.Size()
	for k := 0; k < size; k++ {
		kb := uint32(k) & lowMask
		switch kb {
		case iBits:
			dir.SetBucketPageID(k, originPageID)
			dir.SetLocalDepth(k, newLD)
		case sBits:
			dir.SetBucketPageID(k, splitPageID)
			dir.SetLocalDepth(k, newLD)
		}
	}

	splitFrame.WLock()
	entries := origin.GetArrayCopy()
	origin.Clear()
	for _, m := range entries {
		idx := int(t.hash32(m.Key) & lowMask)
		switch idx {
		case int(iBits):
			origin.Insert(m.Key, m.Value, t.cmp, t.valueEq)
		case int(sBits):
			split.Insert(m.Key, m.Value, t.cmp, t.valueEq)
		default:
			splitFrame.WUnlock()
			originFrame.WUnlock()
			t.pool.UnpinPage(splitPageID, true)
			t.pool.UnpinPage(originPageID, true)
			t.pool.UnpinPage(dir.GetPageID(), true)
			t.tableLatch.Unlock()
			panic(errRedistributionEscaped)
		}
	}
	splitFrame.WUnlock()
	originFrame.WUnlock()

	t.pool.UnpinPage(splitPageID, true)
	t.pool.UnpinPage(originPageID, true)
	t.pool.UnpinPage(dir.GetPageID(), true)
	t.tableLatch.Unlock()

	return t.Insert(txn, key, value)
}

// Remove deletes one (key,value) mapping. Returns false if no such live
// mapping existed.
func (t *Table[K, V]) Remove(txn *concurrency.Transaction, key K, value V) (bool, error) {
	t.tableLatch.RLock()

	dirFrame, dir, err := t.fetchDirectory()
	if err != nil {
		t.tableLatch.RUnlock()
		return false, err
	}
	i := int(t.hash32(key) & dir.GetGlobalDepthMask())
	bucketPageID := dir.GetBucketPageID(i)
	ld := dir.GetLocalDepth(i)
	s := dir.GetSplitImageIndex(i)
	sld := dir.GetLocalDepth(s)
	t.pool.UnpinPage(dir.GetPageID(), false)
	_ = dirFrame

	bucketFrame, bucket, err := t.fetchBucket(bucketPageID)
	if err != nil {
		t.tableLatch.RUnlock()
		return false, err
	}
	bucketFrame.WLock()
	ok := bucket.Remove(key, value, t.cmp, t.valueEq)
	shouldMerge := ok && bucket.IsEmpty() && ld > 0 && sld == ld
	bucketFrame.WUnlock()
	t.pool.UnpinPage(bucketPageID, ok)
	t.tableLatch.RUnlock()

	if shouldMerge {
		if err := t.merge(key); err != nil {
			return ok, err
		}
	}
	return ok, nil
}

// merge collapses an emptied bucket into its split-image sibling and
// shrinks the directory while it's able to.
func (t *Table[K, V]) merge(key K) error {
	t.tableLatch.Lock()
	defer t.tableLatch.Unlock()

	dirFrame, dir, err := t.fetchDirectory()
	if err != nil {
		return err
	}
	defer func() { t.pool.UnpinPage(dir.GetPageID(), true) }()
	_ = dirFrame

	i := int(t.hash32(key) & dir.GetGlobalDepthMask())
	ld := dir.GetLocalDepth(i)
	if i >= dir.Size() || ld == 0 {
		return nil
	}
	s := dir.GetSplitImageIndex(i)
	ldS := dir.GetLocalDepth(s)
	if ld != ldS {
		return nil
	}

	originPageID := dir.GetBucketPageID(i)
	siblingPageID := dir.GetBucketPageID(s)

	bucketFrame, bucket, err := t.fetchBucket(originPageID)
	if err != nil {
		return err
	}
	bucketFrame.RLock()
	empty := bucket.IsEmpty()
	bucketFrame.RUnlock()
	t.pool.UnpinPage(originPageID, false)
	if !empty {
		return nil
	}

	t.pool.DeletePage(originPageID)

	mask := uint32(1<<ld) - 1
	iBits := uint32(i) & mask
	sBits := uint32(s) & mask
	size := dir.Size()
	for k := 0; k < size; k++ {
		kb := uint32(k) & mask
		if kb == iBits || kb == sBits {
			dir.SetBucketPageID(k, siblingPageID)
			dir.SetLocalDepth(k, ld-1)
		}
	}

	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}
	return nil
}

// GetGlobalDepth returns the directory's current global depth.
func (t *Table[K, V]) GetGlobalDepth() (uint32, error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()
	_, dir, err := t.fetchDirectory()
	if err != nil {
		return 0, err
	}
	defer t.pool.UnpinPage(dir.GetPageID(), false)
	return dir.GetGlobalDepth(), nil
}

// VerifyIntegrity checks the directory invariants plus, for every
// distinct bucket reachable from the directory, that its readable bitmap
// is a subset of its occupied bitmap.
func (t *Table[K, V]) VerifyIntegrity() error {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()
	_, dir, err := t.fetchDirectory()
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(dir.GetPageID(), false)
	if err := dir.VerifyIntegrity(); err != nil {
		return err
	}

	seen := make(map[int64]bool)
	for i := 0; i < dir.Size(); i++ {
		pageID := dir.GetBucketPageID(i)
		if seen[pageID] {
			continue
		}
		seen[pageID] = true
		_, bucket, err := t.fetchBucket(pageID)
		if err != nil {
			return err
		}
		ok := bucket.verifyBucketInvariant()
		t.pool.UnpinPage(pageID, false)
		if !ok {
			return errReadableNotOccupied
		}
	}
	return nil
}

// DebugString fetches the bucket page at the given raw page id (not a
// directory index) and returns its DebugString, for the print_bucket
// diagnostic command. The caller supplies a page id obtained from, e.g.,
// a prior scan or directory dump.
func (t *Table[K, V]) DebugString(pageID int64) (string, error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()
	_, bucket, err := t.fetchBucket(pageID)
	if err != nil {
		return "", err
	}
	defer t.pool.UnpinPage(pageID, false)
	return bucket.DebugString(), nil
}

// Size returns the total number of live mappings across every bucket.
func (t *Table[K, V]) Size() (int, error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()
	_, dir, err := t.fetchDirectory()
	if err != nil {
		return 0, err
	}
	defer t.pool.UnpinPage(dir.GetPageID(), false)

	seen := make(map[int64]bool)
	total := 0
	for i := 0; i < dir.Size(); i++ {
		pageID := dir.GetBucketPageID(i)
		if seen[pageID] {
			continue
		}
		seen[pageID] = true
		_, bucket, err := t.fetchBucket(pageID)
		if err != nil {
			return total, err
		}
		total += bucket.NumReadable()
		t.pool.UnpinPage(pageID, false)
	}
	return total, nil
}
