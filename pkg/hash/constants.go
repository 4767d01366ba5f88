// Package hash implements the on-disk extendible hash table: a directory
// page of bucket pointers plus local depths, bit-packed bucket pages of
// (key,value) slots, and the split/merge table that ties them together
// through a buffer pool.
package hash

import "exhashdb/pkg/config"

// MaxGlobalDepth bounds the directory: it can never address more than
// 1<<MaxGlobalDepth buckets.
const MaxGlobalDepth = config.MaxGlobalDepth

// directorySlots is the fixed capacity of the local_depths and
// bucket_page_ids arrays on a directory page, regardless of the
// directory's current (logical) size.
const directorySlots = 1 << MaxGlobalDepth

// Directory page field offsets and sizes, per the fixed disk layout.
const (
	dirPageIDOffset      = 0
	dirLSNOffset         = 4
	dirGlobalDepthOffset = 8
	dirLocalDepthsOffset = 12
	dirLocalDepthsSize   = directorySlots // 1 byte each
	dirBucketIDsOffset   = dirLocalDepthsOffset + dirLocalDepthsSize
	dirBucketIDSize      = 4
	dirPageSize          = dirBucketIDsOffset + directorySlots*dirBucketIDSize
)

func init() {
	if int64(dirPageSize) > config.PageSize {
		panic("hash: directory page layout exceeds configured page size")
	}
}
