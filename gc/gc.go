/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package gc is the VM's stop-the-world collection pass. Grounded on
// original_source/vm/gc.c's major_gc: enumerate roots, mark everything
// transitively reachable from them, reclaim what wasn't reached, and
// relocate survivors to compact the heap (sort by address, copy forward,
// patch every pointer). The C collector does that last step over its own
// bump-allocated arena; Vesper's object payloads are ordinary Go values
// the Go runtime already owns and compacts on its own terms, but every
// reference the interpreter holds to one is an object.Handle — a logical
// address into object.Heap's live-object table, not a Go pointer — so
// Vesper's Run can still perform a genuine version of major_gc's
// relocating pass: it sorts the reachable handles, compacts Heap's table
// to remove the gaps dead handles left, and hands back the
// old-handle -> new-handle Relocation table every caller holding a
// Handle (frame slots, static fields, other objects' fields) must apply.
package gc

import (
	"fmt"
	"runtime"
	"sync"

	"vesper/monitor"
	"vesper/object"
	"vesper/trace"
)

// RootProvider supplies additional GC roots: thread stacks (registered by
// vesper/jvm, which is the one package that knows how to read a frame's
// verifier-built reference bitmap), the method area's static fields, or
// the interpreter's pending-exception slot.
type RootProvider func() []*object.Object

var (
	providersMu sync.Mutex
	providers   []RootProvider
)

// AddRootProvider registers p to be consulted on every Run.
func AddRootProvider(p RootProvider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers = append(providers, p)
}

// Stats summarizes one completed collection pass.
type Stats struct {
	Marked         int // distinct objects found reachable
	MonitorsReaped int // monitor records dropped for now-unreachable objects
	HeapUsed       int // live handles remaining after compaction
	HeapFreed      int // handles reclaimed by this pass
	Relocated      int // surviving handles, moved or not (len(Relocation))
}

// Relocation maps every surviving handle's old value to its new one.
// Callers that stored a Handle anywhere outside object.Heap itself
// (frame operand-stack/local slots, a field holding a reference) must
// rewrite their copy using this table after Run returns — gc doesn't
// attempt that itself: gc owns reachability and compaction, the package
// that understands a given root's shape owns patching it.
type Relocation map[object.Handle]object.Handle

// Run performs one stop-the-world collection: gather roots from every
// registered RootProvider, mark everything transitively reachable, reap
// monitor-table entries for objects the walk didn't reach, and — if h is
// non-nil — compact h's handle table down to just the reachable objects.
// It then asks the Go runtime to run its own collection, since that's
// what actually reclaims the Go-level memory behind each surviving
// object.
func Run(h *object.Heap) (Stats, Relocation) {
	reachable := mark()
	reaped := reapMonitors(reachable)

	var stats Stats
	var relocation Relocation
	if h != nil {
		before := h.HeapUsed()
		var live []object.Handle
		for _, handle := range h.Snapshot() {
			if obj := h.Get(handle); obj != nil && reachable[obj] {
				live = append(live, handle)
			}
		}
		relocation = h.Compact(live)
		stats.HeapUsed = h.HeapUsed()
		stats.HeapFreed = before - h.HeapUsed()
		stats.Relocated = len(relocation)
	}

	runtime.GC()

	stats.Marked = len(reachable)
	stats.MonitorsReaped = reaped
	_ = trace.Trace(fmt.Sprintf(
		"gc: marked %d reachable objects, reaped %d monitor records, heap_used=%d relocated=%d",
		stats.Marked, stats.MonitorsReaped, stats.HeapUsed, stats.Relocated))
	return stats, relocation
}

// mark gathers roots from every registered provider and returns the set
// of objects transitively reachable from them.
func mark() map[*object.Object]bool {
	reachable := make(map[*object.Object]bool)

	providersMu.Lock()
	ps := append([]RootProvider(nil), providers...)
	providersMu.Unlock()

	var worklist []*object.Object
	for _, p := range ps {
		for _, r := range p() {
			if r == nil || reachable[r] {
				continue
			}
			reachable[r] = true
			worklist = append(worklist, r)
		}
	}

	for len(worklist) > 0 {
		obj := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, child := range children(obj) {
			if child == nil || reachable[child] {
				continue
			}
			reachable[child] = true
			worklist = append(worklist, child)
		}
	}
	return reachable
}

// children returns every *object.Object directly reachable from obj's
// fields — mirrors mark_reachable's instance-field/array-element walk.
func children(obj *object.Object) []*object.Object {
	var out []*object.Object
	for _, fld := range obj.FieldTable {
		out = append(out, refsIn(fld.Fvalue)...)
	}
	for _, fld := range obj.Fields {
		out = append(out, refsIn(fld.Fvalue)...)
	}
	return out
}

func refsIn(v interface{}) []*object.Object {
	switch val := v.(type) {
	case *object.Object:
		return []*object.Object{val}
	case []*object.Object:
		return val
	default:
		return nil
	}
}

// reapMonitors drops monitor records for objects not in reachable. It
// can only see objects that currently have a monitor allocated at all,
// which is exactly the set major_gc's relocate pass also had to patch
// (obj->header_word.expanded_data), so this is a faithful, just
// non-relocating, analogue of that bookkeeping step — the monitor
// record's own address was never Java-visible, so it needs reaping, not
// relocating.
func reapMonitors(reachable map[*object.Object]bool) int {
	reaped := 0
	for obj := range monitorCandidates() {
		if !reachable[obj] {
			monitor.Forget(obj)
			reaped++
		}
	}
	return reaped
}

// monitorCandidates exposes the live monitor table's keys without
// requiring gc to know monitor's internal layout.
func monitorCandidates() map[*object.Object]struct{} {
	return monitor.MonitoredObjects()
}
