package hash

import "github.com/bits-and-blooms/bitset"

// loadBitmap reads a byte-packed, MSB-first bitmap of n bits out of buf
// into a bitset.BitSet for in-memory manipulation. Bit i lives in byte
// i/8, bit position 7-(i%8), per the fixed on-disk layout.
func loadBitmap(buf []byte, n int) *bitset.BitSet {
	bs := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		if buf[i/8]&(0x01<<(7-uint(i%8))) != 0 {
			bs.Set(uint(i))
		}
	}
	return bs
}

// storeBitmap packs the first n bits of bs back into buf using the same
// MSB-first convention loadBitmap reads.
func storeBitmap(bs *bitset.BitSet, buf []byte, n int) {
	for i := range buf {
		buf[i] = 0
	}
	for i := 0; i < n; i++ {
		if bs.Test(uint(i)) {
			buf[i/8] |= 0x01 << (7 - uint(i%8))
		}
	}
}

// testBit reads a single MSB-first bit directly out of buf, without
// materializing a bitset.BitSet. Used on the hot Insert/Remove/GetValue
// scan path where building a whole bitset per call would be wasteful.
func testBit(buf []byte, i int) bool {
	return buf[i/8]&(0x01<<(7-uint(i%8))) != 0
}

func setBit(buf []byte, i int) {
	buf[i/8] |= 0x01 << (7 - uint(i%8))
}

func clearBit(buf []byte, i int) {
	buf[i/8] &^= 0x01 << (7 - uint(i%8))
}

// countSetKernighan counts set bits across buf's first ceilBytes bytes
// using Brian Kernighan's bit-counting trick, matching NumReadable's
// specified counting method.
func countSetKernighan(buf []byte, ceilBytes int) int {
	count := 0
	for _, b := range buf[:ceilBytes] {
		for b != 0 {
			b &= b - 1
			count++
		}
	}
	return count
}
