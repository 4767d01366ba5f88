package hash_test

import (
	"testing"

	"exhashdb/pkg/hash"
)

func newDirectory(t *testing.T) *hash.DirectoryPage {
	t.Helper()
	buf := make([]byte, 4096)
	dir := hash.WrapDirectoryPage(buf)
	dir.Init(7)
	return dir
}

func TestDirectoryInitAndDepth(t *testing.T) {
	dir := newDirectory(t)
	if dir.GetPageID() != 7 {
		t.Fatalf("GetPageID() = %d, want 7", dir.GetPageID())
	}
	if dir.GetGlobalDepth() != 0 {
		t.Fatalf("GetGlobalDepth() = %d, want 0", dir.GetGlobalDepth())
	}
	if dir.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", dir.Size())
	}
}

func TestDirectoryGrowMirrorsLowHalf(t *testing.T) {
	dir := newDirectory(t)
	dir.SetBucketPageID(0, 42)
	dir.SetLocalDepth(0, 0)
	dir.IncrGlobalDepth()
	if dir.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", dir.Size())
	}
	if dir.GetBucketPageID(1) != 42 {
		t.Fatalf("GetBucketPageID(1) = %d, want 42 (mirrored)", dir.GetBucketPageID(1))
	}
}

func TestDirectorySplitImageIndex(t *testing.T) {
	dir := newDirectory(t)
	dir.IncrGlobalDepth() // depth 1, size 2
	dir.SetLocalDepth(0, 1)
	dir.SetLocalDepth(1, 1)
	if got := dir.GetSplitImageIndex(0); got != 1 {
		t.Fatalf("GetSplitImageIndex(0) = %d, want 1", got)
	}
	if got := dir.GetSplitImageIndex(1); got != 0 {
		t.Fatalf("GetSplitImageIndex(1) = %d, want 0", got)
	}
}

func TestDirectoryCanShrink(t *testing.T) {
	dir := newDirectory(t)
	dir.IncrGlobalDepth() // gd=1, size=2
	dir.SetLocalDepth(0, 0)
	dir.SetLocalDepth(1, 0)
	if !dir.CanShrink() {
		t.Fatal("CanShrink() = false, want true (both local depths < global depth)")
	}
	dir.SetLocalDepth(1, 1)
	if dir.CanShrink() {
		t.Fatal("CanShrink() = true, want false (local depth equals global depth)")
	}
}

func TestDirectoryVerifyIntegrityCatchesMismatch(t *testing.T) {
	dir := newDirectory(t)
	dir.IncrGlobalDepth() // gd=1, size=2, both slots mirror slot 0's bucket (-1) and depth (0)
	dir.SetBucketPageID(1, 99)
	if err := dir.VerifyIntegrity(); err == nil {
		t.Fatal("VerifyIntegrity() = nil, want an error for mismatched siblings")
	}
}
