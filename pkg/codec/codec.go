// Package codec provides the fixed-width encode/decode, comparison, and
// hashing traits that let the hash table's directory and bucket pages
// stay opaque byte arrays while still being generic over key and value
// types.
package codec

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// KeyCodec encodes and decodes a fixed-width key representation. Size
// must be constant for a given codec instance: bucket capacity is
// derived from it.
type KeyCodec[K any] interface {
	Size() int
	Encode(key K, buf []byte)
	Decode(buf []byte) K
}

// ValueCodec encodes and decodes a fixed-width value representation.
type ValueCodec[V any] interface {
	Size() int
	Encode(value V, buf []byte)
	Decode(buf []byte) V
}

// Comparator reports the relative order of two keys: negative if a < b,
// zero if equal, positive if a > b. Equality is what bucket lookups and
// removals key off of.
type Comparator[K any] func(a, b K) int

// HashFunction reduces a key to the 32-bit hash the directory indexes
// on. Implementations wrap a 64-bit hash and fold it down, mirroring how
// the source's GetHash truncates a hash_t to uint32_t.
type HashFunction[K any] func(key K) uint32

// Int64Codec is the fixed 8-byte little-endian codec for int64 keys and
// values, the only concrete key/value type the index's seed scenarios
// exercise.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }

func (Int64Codec) Encode(v int64, buf []byte) {
	binary.LittleEndian.PutUint64(buf, uint64(v))
}

func (Int64Codec) Decode(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}

// Int64Comparator orders int64 keys numerically.
func Int64Comparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// XxHash64Of hashes an encoded key with xxHash and folds the 64-bit
// digest down to 32 bits, matching hash_t truncation to uint32_t in the
// source this table is modeled on.
func XxHash64Of[K any](kc KeyCodec[K]) HashFunction[K] {
	size := kc.Size()
	return func(key K) uint32 {
		buf := make([]byte, size)
		kc.Encode(key, buf)
		return uint32(xxhash.Sum64(buf))
	}
}

// Murmur3Of hashes an encoded key with MurmurHash3, folded to 32 bits.
// Offered as an alternate HashFunction for callers who want a different
// bit-mixing than xxHash's.
func Murmur3Of[K any](kc KeyCodec[K]) HashFunction[K] {
	size := kc.Size()
	return func(key K) uint32 {
		buf := make([]byte, size)
		kc.Encode(key, buf)
		return uint32(murmur3.Sum64(buf))
	}
}
