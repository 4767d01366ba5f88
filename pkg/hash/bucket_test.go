package hash_test

import (
	"fmt"
	"testing"

	"exhashdb/pkg/codec"
	"exhashdb/pkg/hash"
)

func int64Eq(a, b int64) bool { return a == b }

func newBucket(t *testing.T) *hash.BucketPage[int64, int64] {
	t.Helper()
	buf := make([]byte, 4096)
	return hash.WrapBucketPage[int64, int64](buf, codec.Int64Codec{}, codec.Int64Codec{})
}

func TestBucketInsertAndGetValue(t *testing.T) {
	b := newBucket(t)
	if !b.Insert(1, 100, codec.Int64Comparator, int64Eq) {
		t.Fatal("Insert(1,100) = false, want true")
	}
	out, found := b.GetValue(1, codec.Int64Comparator, nil)
	if !found || len(out) != 1 || out[0] != 100 {
		t.Fatalf("GetValue(1) = %v, %v; want [100], true", out, found)
	}
}

func TestBucketRejectsDuplicatePair(t *testing.T) {
	b := newBucket(t)
	if !b.Insert(1, 100, codec.Int64Comparator, int64Eq) {
		t.Fatal("first insert should succeed")
	}
	if b.Insert(1, 100, codec.Int64Comparator, int64Eq) {
		t.Fatal("duplicate (key,value) insert should return false")
	}
	if !b.Insert(1, 200, codec.Int64Comparator, int64Eq) {
		t.Fatal("same key, different value, should still insert")
	}
}

func TestBucketRemovePreservesOccupiedTombstone(t *testing.T) {
	b := newBucket(t)
	b.Insert(1, 100, codec.Int64Comparator, int64Eq)
	if !b.Remove(1, 100, codec.Int64Comparator, int64Eq) {
		t.Fatal("Remove should succeed")
	}
	if !b.IsOccupied(0) {
		t.Fatal("occupied bit must survive a remove (tombstone)")
	}
	if b.IsReadable(0) {
		t.Fatal("readable bit must be cleared by remove")
	}
	if b.Remove(1, 100, codec.Int64Comparator, int64Eq) {
		t.Fatal("removing an already-removed mapping should return false")
	}
}

func TestBucketIsFullAndCapacity(t *testing.T) {
	b := newBucket(t)
	capacity := b.Capacity()
	if capacity <= 0 {
		t.Fatalf("Capacity() = %d, want > 0", capacity)
	}
	for i := 0; i < capacity; i++ {
		if !b.Insert(int64(i), int64(i), codec.Int64Comparator, int64Eq) {
			t.Fatalf("Insert(%d) failed before reaching capacity", i)
		}
	}
	if !b.IsFull() {
		t.Fatal("IsFull() = false after filling to capacity")
	}
	if b.Insert(int64(capacity), int64(capacity), codec.Int64Comparator, int64Eq) {
		t.Fatal("Insert should fail once bucket is full")
	}
}

func TestBucketIsFullIgnoresTombstonedSlots(t *testing.T) {
	b := newBucket(t)
	capacity := b.Capacity()
	for i := 0; i < capacity; i++ {
		if !b.Insert(int64(i), int64(i), codec.Int64Comparator, int64Eq) {
			t.Fatalf("Insert(%d) failed before reaching capacity", i)
		}
	}
	if !b.IsFull() {
		t.Fatal("IsFull() = false after filling to capacity")
	}
	if !b.Remove(0, 0, codec.Int64Comparator, int64Eq) {
		t.Fatal("Remove(0,0) should succeed")
	}
	if b.IsFull() {
		t.Fatal("IsFull() = true after Remove cleared a readable bit, want false (tombstone is reusable)")
	}
	if !b.Insert(999, 999, codec.Int64Comparator, int64Eq) {
		t.Fatal("Insert should reuse the tombstoned slot left by Remove")
	}
	if !b.IsFull() {
		t.Fatal("IsFull() = false after reusing the tombstoned slot, want true")
	}
}

func TestBucketClearResetsBothBitmaps(t *testing.T) {
	b := newBucket(t)
	b.Insert(1, 1, codec.Int64Comparator, int64Eq)
	b.Clear()
	if !b.IsEmpty() {
		t.Fatal("IsEmpty() = false after Clear")
	}
	if b.IsOccupied(0) {
		t.Fatal("IsOccupied(0) = true after Clear, want false")
	}
}

func TestBucketGetArrayCopy(t *testing.T) {
	b := newBucket(t)
	b.Insert(1, 10, codec.Int64Comparator, int64Eq)
	b.Insert(2, 20, codec.Int64Comparator, int64Eq)
	b.Remove(1, 10, codec.Int64Comparator, int64Eq)
	entries := b.GetArrayCopy()
	if len(entries) != 1 || entries[0].Key != 2 || entries[0].Value != 20 {
		t.Fatalf("GetArrayCopy() = %v, want exactly [{2 20}]", entries)
	}
}

func TestBucketDebugStringReportsTakenAndFree(t *testing.T) {
	b := newBucket(t)
	b.Insert(1, 10, codec.Int64Comparator, int64Eq)
	b.Insert(2, 20, codec.Int64Comparator, int64Eq)
	b.Remove(1, 10, codec.Int64Comparator, int64Eq)
	capacity := b.Capacity()
	want := fmt.Sprintf("bucket capacity: %d, size: 2, taken: 1, free: 1", capacity)
	if got := b.DebugString(); got != want {
		t.Fatalf("DebugString() = %q, want %q", got, want)
	}
}
