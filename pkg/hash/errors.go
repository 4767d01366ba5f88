package hash

import "errors"

var (
	errLocalDepthExceedsGlobal = errors.New("hash: local depth exceeds global depth")
	errSiblingMismatch         = errors.New("hash: directory slots sharing low bits disagree on bucket or depth")
	errBucketDepthConflict     = errors.New("hash: bucket page id appears under two different local depths")
	errRedistributionEscaped   = errors.New("hash: split redistribution placed a mapping outside {origin, split}")
	errReadableNotOccupied     = errors.New("hash: a bucket has a readable slot that was never marked occupied")
)

// ErrPoolExhausted names the condition of an operation that cannot obtain
// a frame from the buffer pool. Table does not return it: when the pool
// has no frame, Table operations return the pool's own error unchanged
// (buffer.ErrPoolExhausted).
var ErrPoolExhausted = errors.New("hash: buffer pool exhausted")
