package hash

import (
	"fmt"

	"exhashdb/pkg/codec"

	"github.com/bits-and-blooms/bitset"
)

// BucketPage is a view over a bucket page's raw bytes: two MSB-first
// bitmaps (occupied, readable) followed by a dense slot array of
// (key,value) mappings. Like DirectoryPage, it wraps a pinned, latched
// frame's buffer rather than owning a copy.
type BucketPage[K any, V any] struct {
	data        []byte
	kc          codec.KeyCodec[K]
	vc          codec.ValueCodec[V]
	capacity    int
	bitmapBytes int
	arrayOffset int
	mappingSize int
}

// BucketCapacity returns the number of (key,value) slots a bucket page
// can hold given the key and value codecs' encoded sizes, derived from
// the configured page size the same way the source sizes its
// BUCKET_ARRAY_SIZE constant: the largest B such that the two bitmaps
// (ceil(B/8) bytes each) plus B mappings fit in one page.
func BucketCapacity[K any, V any](kc codec.KeyCodec[K], vc codec.ValueCodec[V], pageSize int) int {
	mappingSize := kc.Size() + vc.Size()
	for b := pageSize / mappingSize; b > 0; b-- {
		bitmapBytes := (b + 7) / 8
		if 2*bitmapBytes+b*mappingSize <= pageSize {
			return b
		}
	}
	return 0
}

// WrapBucketPage views data (a frame's page buffer) as a bucket page
// with the given key/value codecs.
func WrapBucketPage[K any, V any](data []byte, kc codec.KeyCodec[K], vc codec.ValueCodec[V]) *BucketPage[K, V] {
	mappingSize := kc.Size() + vc.Size()
	capacity := BucketCapacity(kc, vc, len(data))
	bitmapBytes := (capacity + 7) / 8
	return &BucketPage[K, V]{
		data:        data,
		kc:          kc,
		vc:          vc,
		capacity:    capacity,
		bitmapBytes: bitmapBytes,
		arrayOffset: 2 * bitmapBytes,
		mappingSize: mappingSize,
	}
}

func (b *BucketPage[K, V]) occupiedBuf() []byte { return b.data[:b.bitmapBytes] }
func (b *BucketPage[K, V]) readableBuf() []byte {
	return b.data[b.bitmapBytes : 2*b.bitmapBytes]
}

func (b *BucketPage[K, V]) slotOffset(i int) int {
	return b.arrayOffset + i*b.mappingSize
}

func (b *BucketPage[K, V]) KeyAt(i int) K {
	off := b.slotOffset(i)
	return b.kc.Decode(b.data[off : off+b.kc.Size()])
}

func (b *BucketPage[K, V]) ValueAt(i int) V {
	off := b.slotOffset(i) + b.kc.Size()
	return b.vc.Decode(b.data[off : off+b.vc.Size()])
}

func (b *BucketPage[K, V]) setSlot(i int, key K, value V) {
	off := b.slotOffset(i)
	b.kc.Encode(key, b.data[off:off+b.kc.Size()])
	b.vc.Encode(value, b.data[off+b.kc.Size():off+b.mappingSize])
}

// Capacity returns the number of slots this bucket page can hold.
func (b *BucketPage[K, V]) Capacity() int { return b.capacity }

// IsOccupied reports whether slot i has ever been written.
func (b *BucketPage[K, V]) IsOccupied(i int) bool { return testBit(b.occupiedBuf(), i) }

// IsReadable reports whether slot i currently holds a live mapping.
func (b *BucketPage[K, V]) IsReadable(i int) bool { return testBit(b.readableBuf(), i) }

// RemoveAt clears slot i's readable bit only; the occupied tombstone and
// the slot's stale bytes are left in place.
func (b *BucketPage[K, V]) RemoveAt(i int) { clearBit(b.readableBuf(), i) }

// Insert scans for an existing readable (key,value) duplicate; if found,
// returns false. Otherwise it writes into the first non-readable slot
// (a tombstone or a never-used slot) found during the same scan, or
// returns false if the bucket is full.
// Scanning may stop at the first unoccupied slot since no occupied slot
// can exist past the high-water mark and duplicates can only live among
// occupied slots.
func (b *BucketPage[K, V]) Insert(key K, value V, cmp codec.Comparator[K], valueEq func(a, b V) bool) bool {
	target := -1
	for i := 0; i < b.capacity; i++ {
		occupied := b.IsOccupied(i)
		readable := occupied && b.IsReadable(i)
		if readable {
			if cmp(b.KeyAt(i), key) == 0 && valueEq(b.ValueAt(i), value) {
				return false
			}
		} else if target == -1 {
			target = i
		}
		if !occupied {
			break
		}
	}
	if target == -1 {
		return false
	}
	b.setSlot(target, key, value)
	setBit(b.occupiedBuf(), target)
	setBit(b.readableBuf(), target)
	return true
}

// Remove clears the readable bit of the first readable slot whose key
// and value match. Returns false if no such slot exists.
func (b *BucketPage[K, V]) Remove(key K, value V, cmp codec.Comparator[K], valueEq func(a, b V) bool) bool {
	for i := 0; i < b.capacity; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) && cmp(b.KeyAt(i), key) == 0 && valueEq(b.ValueAt(i), value) {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}

// GetValue appends the value of every readable slot whose key equals
// key to out, returning the (possibly extended) slice and whether at
// least one match was appended.
func (b *BucketPage[K, V]) GetValue(key K, cmp codec.Comparator[K], out []V) ([]V, bool) {
	found := false
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmp(b.KeyAt(i), key) == 0 {
			out = append(out, b.ValueAt(i))
			found = true
		}
	}
	return out, found
}

// IsFull reports whether every slot is readable. Tombstoned slots
// (occupied but not readable, left behind by Remove) count as free:
// Insert can reuse them, so a bucket with a cleared readable bit is not
// full even if its occupied bitmap has never been reset.
func (b *BucketPage[K, V]) IsFull() bool {
	return countSetKernighan(b.readableBuf(), b.bitmapBytes) >= b.capacity
}

// IsEmpty reports whether no slot is readable.
func (b *BucketPage[K, V]) IsEmpty() bool {
	return countSetKernighan(b.readableBuf(), b.bitmapBytes) == 0
}

// NumReadable counts currently-live slots.
func (b *BucketPage[K, V]) NumReadable() int {
	return countSetKernighan(b.readableBuf(), b.bitmapBytes)
}

// Mapping is one live (key,value) pair lifted out of a bucket page by
// GetArrayCopy, used during a split to redistribute entries.
type Mapping[K any, V any] struct {
	Key   K
	Value V
}

// GetArrayCopy returns every live mapping in slot order. Used only
// during splits to redistribute entries between the origin and new
// bucket; ownership of the returned slice belongs to the caller.
func (b *BucketPage[K, V]) GetArrayCopy() []Mapping[K, V] {
	out := make([]Mapping[K, V], 0, b.NumReadable())
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			out = append(out, Mapping[K, V]{Key: b.KeyAt(i), Value: b.ValueAt(i)})
		}
	}
	return out
}

// Clear zeroes both bitmaps, discarding every tombstone and live entry.
func (b *BucketPage[K, V]) Clear() {
	occupied := loadBitmap(b.occupiedBuf(), b.capacity)
	occupied.ClearAll()
	storeBitmap(occupied, b.occupiedBuf(), b.capacity)
	readable := loadBitmap(b.readableBuf(), b.capacity)
	readable.ClearAll()
	storeBitmap(readable, b.readableBuf(), b.capacity)
}

// verifyBucketInvariant checks readable[i] => occupied[i] for the whole
// page, using a BitSet superset check rather than a manual bit loop.
func (b *BucketPage[K, V]) verifyBucketInvariant() bool {
	occupied := loadBitmap(b.occupiedBuf(), b.capacity)
	readable := loadBitmap(b.readableBuf(), b.capacity)
	var bs *bitset.BitSet = occupied
	return bs.IsSuperSet(readable)
}

// DebugString summarizes the bucket for diagnostics: capacity, the
// high-water mark (slots occupied at any point, including tombstones),
// how many of those are currently readable, and how many are free
// tombstones available for reuse. Stops at the first unoccupied slot,
// same as scanning any other method here.
func (b *BucketPage[K, V]) DebugString() string {
	size, taken, free := 0, 0, 0
	for i := 0; i < b.capacity; i++ {
		if !b.IsOccupied(i) {
			break
		}
		size++
		if b.IsReadable(i) {
			taken++
		} else {
			free++
		}
	}
	return fmt.Sprintf("bucket capacity: %d, size: %d, taken: %d, free: %d", b.capacity, size, taken, free)
}
