package hash

import "encoding/binary"

// DirectoryPage is a view over a directory page's raw bytes: a header
// (page id, lsn, global depth) followed by two fixed-length arrays,
// local_depths and bucket_page_ids, indexed by directory slot. Only the
// first 1<<GlobalDepth() slots are logically live; the rest are inert
// until a split grows the directory into them.
//
// A DirectoryPage does not own its backing array; it wraps the byte
// slice of a pinned, latched buffer pool frame. Every mutating method
// writes straight through to that slice.
type DirectoryPage struct {
	data []byte
}

// WrapDirectoryPage views data (a frame's page buffer) as a directory
// page. data must be at least dirPageSize bytes.
func WrapDirectoryPage(data []byte) *DirectoryPage {
	return &DirectoryPage{data: data}
}

// Init zeroes a freshly allocated directory page to global depth 0 with
// no bucket assigned at slot 0.
func (d *DirectoryPage) Init(pageID int64) {
	for i := range d.data[:dirPageSize] {
		d.data[i] = 0
	}
	binary.LittleEndian.PutUint32(d.data[dirPageIDOffset:], uint32(pageID))
	for i := 0; i < directorySlots; i++ {
		d.SetBucketPageID(i, -1)
	}
}

func (d *DirectoryPage) GetPageID() int64 {
	return int64(int32(binary.LittleEndian.Uint32(d.data[dirPageIDOffset:])))
}

func (d *DirectoryPage) GetGlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[dirGlobalDepthOffset:])
}

func (d *DirectoryPage) setGlobalDepth(gd uint32) {
	binary.LittleEndian.PutUint32(d.data[dirGlobalDepthOffset:], gd)
}

// IncrGlobalDepth grows the directory's logical size by one bit, mirroring
// the low half into the newly exposed high half so that every new slot
// inherits its sibling's bucket id and local depth.
func (d *DirectoryPage) IncrGlobalDepth() {
	gd := d.GetGlobalDepth()
	size := uint32(1) << gd
	for i := uint32(0); i < size; i++ {
		d.SetBucketPageID(int(i+size), d.GetBucketPageID(int(i)))
		d.SetLocalDepth(int(i+size), d.GetLocalDepth(int(i)))
	}
	d.setGlobalDepth(gd + 1)
}

// DecrGlobalDepth shrinks the directory's logical size by one bit. The
// caller must have verified CanShrink first; the high half's entries are
// simply no longer addressed, not cleared.
func (d *DirectoryPage) DecrGlobalDepth() {
	gd := d.GetGlobalDepth()
	if gd == 0 {
		return
	}
	d.setGlobalDepth(gd - 1)
}

// Size returns the directory's current logical slot count, 1<<GlobalDepth.
func (d *DirectoryPage) Size() int {
	return 1 << d.GetGlobalDepth()
}

// GetGlobalDepthMask returns (1<<GlobalDepth)-1.
func (d *DirectoryPage) GetGlobalDepthMask() uint32 {
	return uint32(d.Size() - 1)
}

func (d *DirectoryPage) GetLocalDepth(i int) uint32 {
	return uint32(d.data[dirLocalDepthsOffset+i])
}

func (d *DirectoryPage) SetLocalDepth(i int, depth uint32) {
	d.data[dirLocalDepthsOffset+i] = byte(depth)
}

func (d *DirectoryPage) IncrLocalDepth(i int) {
	d.SetLocalDepth(i, d.GetLocalDepth(i)+1)
}

func (d *DirectoryPage) DecrLocalDepth(i int) {
	d.SetLocalDepth(i, d.GetLocalDepth(i)-1)
}

// GetLocalDepthMask returns (1<<local_depths[i])-1.
func (d *DirectoryPage) GetLocalDepthMask(i int) uint32 {
	return uint32(1<<d.GetLocalDepth(i)) - 1
}

// GetLocalHighBit returns 1<<local_depths[i], the bit a split toggles.
func (d *DirectoryPage) GetLocalHighBit(i int) uint32 {
	return uint32(1) << d.GetLocalDepth(i)
}

func (d *DirectoryPage) GetBucketPageID(i int) int64 {
	off := dirBucketIDsOffset + i*dirBucketIDSize
	return int64(int32(binary.LittleEndian.Uint32(d.data[off:])))
}

func (d *DirectoryPage) SetBucketPageID(i int, pageID int64) {
	off := dirBucketIDsOffset + i*dirBucketIDSize
	binary.LittleEndian.PutUint32(d.data[off:], uint32(int32(pageID)))
}

// GetSplitImageIndex toggles the bit at position local_depths[i]-1 in i,
// yielding the directory slot that will hold i's sibling after a split
// at i's current local depth. Requires local_depths[i] >= 1.
func (d *DirectoryPage) GetSplitImageIndex(i int) int {
	ld := d.GetLocalDepth(i)
	if ld == 0 {
		return i
	}
	return i ^ (1 << (ld - 1))
}

// CanShrink reports whether every live slot's local depth is strictly
// less than the global depth, the precondition for DecrGlobalDepth.
func (d *DirectoryPage) CanShrink() bool {
	size := d.Size()
	gd := d.GetGlobalDepth()
	for i := 0; i < size; i++ {
		if d.GetLocalDepth(i) >= gd {
			return false
		}
	}
	return true
}

// VerifyIntegrity checks the three directory invariants: every live
// slot's local depth is at most the global depth, all slots sharing the
// low local-depth bits of a given slot agree on bucket id and local
// depth, and no bucket id appears under two different local depths. It
// returns the first violation found, or nil.
func (d *DirectoryPage) VerifyIntegrity() error {
	size := d.Size()
	gd := d.GetGlobalDepth()
	bucketDepth := make(map[int64]uint32)
	for i := 0; i < size; i++ {
		ld := d.GetLocalDepth(i)
		if ld > gd {
			return errLocalDepthExceedsGlobal
		}
		mask := uint32(1<<ld) - 1
		for j := i + 1; j < size; j++ {
			if uint32(j)&mask != uint32(i)&mask {
				continue
			}
			if d.GetLocalDepth(j) != ld || d.GetBucketPageID(j) != d.GetBucketPageID(i) {
				return errSiblingMismatch
			}
		}
		pid := d.GetBucketPageID(i)
		if prev, ok := bucketDepth[pid]; ok && prev != ld {
			return errBucketDepthConflict
		}
		bucketDepth[pid] = ld
	}
	return nil
}
