/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package gc

import (
	"testing"

	"vesper/monitor"
	"vesper/object"
)

// resetProviders clears package-level root-provider state between tests,
// since AddRootProvider has no matching Remove and providers is global.
func resetProviders() {
	providersMu.Lock()
	providers = nil
	providersMu.Unlock()
}

// Allocating N objects and retaining every 100th via a root provider:
// after Run, only the retained objects survive, heap_used matches, and
// every retained handle still resolves to its original object.
func TestRunCompactsToRetainedObjectsOnly(t *testing.T) {
	resetProviders()
	defer resetProviders()

	h, err := object.NewHeap(20000, 64)
	if err != nil {
		t.Fatalf("NewHeap failed: %v", err)
	}
	defer h.Close()

	const total = 10000
	const keepEvery = 100

	objs := make([]*object.Object, 0, total)
	handles := make([]object.Handle, 0, total)
	var retained []*object.Object

	for i := 0; i < total; i++ {
		o := object.NewObject("java/lang/Object")
		handle, err := h.Alloc(o, false)
		if err != nil {
			t.Fatalf("Alloc #%d failed: %v", i, err)
		}
		objs = append(objs, o)
		handles = append(handles, handle)
		if i%keepEvery == 0 {
			retained = append(retained, o)
		}
	}

	AddRootProvider(func() []*object.Object { return retained })

	stats, relocation := Run(h)

	wantSurvivors := total / keepEvery
	if stats.HeapUsed != wantSurvivors {
		t.Errorf("HeapUsed = %d, want %d", stats.HeapUsed, wantSurvivors)
	}
	if stats.Marked != wantSurvivors {
		t.Errorf("Marked = %d, want %d", stats.Marked, wantSurvivors)
	}

	for i, handle := range handles {
		if i%keepEvery != 0 {
			continue
		}
		newHandle, moved := relocation[handle]
		if !moved {
			newHandle = handle
		}
		if got := h.Get(newHandle); got != objs[i] {
			t.Errorf("retained object %d did not survive at its relocated handle", i)
		}
	}
}

// Run drops monitor records for objects the mark pass didn't reach, so
// a collector pass over a heap with no surviving monitored objects
// leaves the monitor table empty.
func TestRunReapsMonitorsForUnreachableObjects(t *testing.T) {
	resetProviders()
	defer resetProviders()

	obj := object.NewObject("java/lang/Object")
	if err := monitor.Enter(obj, 1, nil); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	if err := monitor.Exit(obj, 1); err != nil {
		t.Fatalf("Exit failed: %v", err)
	}
	defer monitor.Forget(obj)

	before := monitor.Count()
	stats, _ := Run(nil)
	if stats.MonitorsReaped < 1 {
		t.Errorf("expected at least 1 monitor reaped, got %d", stats.MonitorsReaped)
	}
	if monitor.Count() != before-stats.MonitorsReaped {
		t.Errorf("monitor.Count() = %d, want %d", monitor.Count(), before-stats.MonitorsReaped)
	}
}
