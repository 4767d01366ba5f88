// Package replacer implements the buffer pool's victim-selection policy:
// an LRU replacer tracking unpinned frames.
package replacer

import (
	"sync"

	"exhashdb/pkg/list"
)

// LRUReplacer tracks unpinned frame ids in least-recently-unpinned order.
// Unpin inserts at the MRU end; Victim evicts from the LRU end. A frame
// already tracked is left in place by a repeat Unpin, matching the
// replacement discipline BufferPool relies on.
type LRUReplacer struct {
	mu    sync.Mutex
	order *list.List[int64]
	links map[int64]*list.Link[int64]
}

// NewLRUReplacer constructs an empty replacer.
func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{
		order: list.NewList[int64](),
		links: make(map[int64]*list.Link[int64]),
	}
}

// Victim evicts and returns the least-recently-unpinned frame id, or
// (0, false) if no frame is currently unpinned.
func (r *LRUReplacer) Victim() (frameID int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tail := r.order.PeekTail()
	if tail == nil {
		return 0, false
	}
	frameID = tail.GetValue()
	tail.PopSelf()
	delete(r.links, frameID)
	return frameID, true
}

// Pin removes a frame id from tracking, if present. Called when the
// buffer pool hands the frame back out to a caller.
func (r *LRUReplacer) Pin(frameID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if link, ok := r.links[frameID]; ok {
		link.PopSelf()
		delete(r.links, frameID)
	}
}

// Unpin marks a frame id as evictable, inserting it at the MRU end. A
// frame already tracked is a no-op: Unpin never moves an already-unpinned
// frame, so repeated unpins of the same frame don't refresh its position.
func (r *LRUReplacer) Unpin(frameID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[frameID]; ok {
		return
	}
	r.links[frameID] = r.order.PushHead(frameID)
}

// Size returns the number of frame ids currently tracked as evictable.
func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}
