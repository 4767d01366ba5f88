package hash

// Cursor performs a full scan over every live mapping in a table, one
// bucket page at a time. It exists for diagnostics (the CLI scan
// command): the index itself never needs ordered or partial
// traversal, since every public operation is a point lookup keyed by
// hash.
type Cursor[K any, V any] struct {
	t          *Table[K, V]
	dir        *DirectoryPage
	dirPageID  int64
	slot       int
	bucketPage   *BucketPage[K, V]
	bucketPageID int64
	bucketIdx    int
	seenBucket   map[int64]bool
}

// NewCursor opens a scan over t. The caller must call Close when done
// (or after exhausting Next) to release the pinned directory page.
func NewCursor[K any, V any](t *Table[K, V]) (*Cursor[K, V], error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()
	_, dir, err := t.fetchDirectory()
	if err != nil {
		return nil, err
	}
	return &Cursor[K, V]{t: t, dir: dir, dirPageID: dir.GetPageID(), seenBucket: make(map[int64]bool)}, nil
}

// Next advances to the next live mapping, returning false once the scan
// is exhausted.
func (c *Cursor[K, V]) Next() (Mapping[K, V], bool) {
	for {
		if c.bucketPage == nil {
			if c.slot >= c.dir.Size() {
				return Mapping[K, V]{}, false
			}
			pageID := c.dir.GetBucketPageID(c.slot)
			c.slot++
			if c.seenBucket[pageID] {
				continue
			}
			c.seenBucket[pageID] = true
			_, bucket, err := c.t.fetchBucket(pageID)
			if err != nil {
				return Mapping[K, V]{}, false
			}
			c.bucketPage = bucket
			c.bucketPageID = pageID
			c.bucketIdx = 0
		}
		for c.bucketIdx < c.bucketPage.Capacity() {
			i := c.bucketIdx
			c.bucketIdx++
			if c.bucketPage.IsReadable(i) {
				return Mapping[K, V]{Key: c.bucketPage.KeyAt(i), Value: c.bucketPage.ValueAt(i)}, true
			}
		}
		c.t.pool.UnpinPage(c.bucketPageID, false)
		c.bucketPage = nil
	}
}

// Close releases the cursor's pinned directory page. Safe to call
// multiple times.
func (c *Cursor[K, V]) Close() {
	if c.bucketPage != nil {
		c.t.pool.UnpinPage(c.bucketPageID, false)
		c.bucketPage = nil
	}
	if c.dirPageID != invalidPageID {
		c.t.pool.UnpinPage(c.dirPageID, false)
		c.dirPageID = invalidPageID
	}
}
