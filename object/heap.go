/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package object

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

// Handle is a logical heap address: a position in Heap's live-object
// table rather than a Go pointer value. Every reference-typed frame slot
// and field the interpreter creates holds a Handle, not a raw *Object —
// which is what makes collection-time relocation possible at all. Go's
// own collector owns the actual object payloads and will move them
// around in physical memory however it likes regardless of what Vesper
// does; what Handle buys is a stable, VM-controlled indirection layer
// whose mapping the collector CAN rewrite, the same guarantee a moving
// collector gives an embedder that never sees a raw address survive a
// collection. Handle 0 is reserved for the null reference.
type Handle int32

// Heap is a bump-allocated, compacting table of live objects, addressed
// by Handle. The mmap'd region backing it is never touched byte-for-byte
// — objects are still ordinary Go values — it exists purely to give the
// heap's logical capacity and slop region the same page-granular
// reservation bjvm's untyped-memory arena makes, and to give heap_used
// accounting a real backing allocation to report against (see
// DESIGN.md, gc/heap entry).
type Heap struct {
	mu       sync.Mutex
	region   mmap.MMap
	capacity int // live handles available before OOM, excluding slop
	slop     int // extra handles reserved for constructing OutOfMemoryError
	bump     int // number of slots currently in use (1-based handles)
	slots    []*Object
}

// ErrOutOfMemory is returned by Alloc once the heap's capacity (not
// counting its slop region) is exhausted.
type ErrOutOfMemory struct{}

func (ErrOutOfMemory) Error() string { return "java.lang.OutOfMemoryError: heap space" }

// NewHeap reserves a heap with room for capacity live objects plus a
// slop region of slopSize additional handles set aside so an
// OutOfMemoryError object can still be constructed after Alloc starts
// refusing ordinary requests. The backing region is paged via
// golang.org/x/sys/unix.Getpagesize so its reservation is a whole number
// of pages, matching how a real VM sizes its heap arena.
func NewHeap(capacity, slopSize int) (*Heap, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("object: heap capacity must be positive, got %d", capacity)
	}
	pageSize := unix.Getpagesize()
	bytesPerSlot := 64 // nominal bookkeeping cost per logical slot
	total := (capacity + slopSize) * bytesPerSlot
	total = ((total + pageSize - 1) / pageSize) * pageSize

	region, err := mmap.MapRegion(nil, total, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("object: reserving heap region: %w", err)
	}

	return &Heap{
		region:   region,
		capacity: capacity,
		slop:     slopSize,
		slots:    make([]*Object, 1, capacity+slopSize+1), // index 0 unused: Handle 0 == null
	}, nil
}

// Close releases the heap's backing reservation. Not required for
// correctness (the Go objects it addressed are freed independently by
// the Go runtime once unreferenced) but frees the reservation promptly
// on deliberate VM shutdown.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.region.Unmap()
}

// Alloc bump-allocates a new handle for obj. allowSlop permits dipping
// into the slop region — set only while constructing the
// OutOfMemoryError the collector throws after a failed ordinary Alloc.
func (h *Heap) Alloc(obj *Object, allowSlop bool) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	limit := h.capacity
	if allowSlop {
		limit += h.slop
	}
	if h.bump >= limit {
		return 0, ErrOutOfMemory{}
	}
	handle := Handle(len(h.slots))
	h.slots = append(h.slots, obj)
	h.bump++
	return handle, nil
}

// Get dereferences handle, returning nil for the null handle (0) or any
// handle a compaction has since retired.
func (h *Heap) Get(handle Handle) *Object {
	if handle == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(handle) >= len(h.slots) {
		return nil
	}
	return h.slots[handle]
}

// HeapUsed reports the number of live handles currently allocated.
func (h *Heap) HeapUsed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bump
}

// Capacity reports the heap's ordinary (non-slop) capacity in handles.
func (h *Heap) Capacity() int {
	return h.capacity
}

// Snapshot returns every currently live handle. gc.Run filters it down to
// the handles the mark phase reached and passes those to Compact.
func (h *Heap) Snapshot() []Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Handle, 0, h.bump)
	for i := 1; i < len(h.slots); i++ {
		if h.slots[i] != nil {
			out = append(out, Handle(i))
		}
	}
	return out
}

// Compact is the relocating half of a collection pass: given the set of
// handles the mark phase found reachable, it sorts them (slices.SortFunc,
// by current handle value — Vesper's stand-in for "by address", since a
// Handle is the only address Vesper ever exposes), copies their objects
// down to eliminate the gaps dead handles left, and returns the
// old-handle -> new-handle relocation table the caller must use to patch
// every reference it holds (frame slots, static fields, other objects'
// fields). Relocation lookups for any handle not obtained from this
// table's own keys should use sort.Search against the (already sorted)
// live slice this function builds internally, mirroring the spec's
// documented sorted-array/binary-search bookkeeping exactly.
func (h *Heap) Compact(live []Handle) map[Handle]Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	sorted := append([]Handle(nil), live...)
	slices.SortFunc(sorted, func(a, b Handle) int { return int(a) - int(b) })

	newSlots := make([]*Object, 1, len(sorted)+1)
	relocation := make(map[Handle]Handle, len(sorted))
	for _, old := range sorted {
		rank := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= old })
		newHandle := Handle(rank + 1) // +1: slot 0 stays reserved for null
		if int(old) < len(h.slots) {
			for len(newSlots) <= int(newHandle) {
				newSlots = append(newSlots, nil)
			}
			newSlots[newHandle] = h.slots[old]
		}
		relocation[old] = newHandle
	}
	h.slots = newSlots
	h.bump = len(sorted)
	return relocation
}
