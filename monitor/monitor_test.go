/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package monitor

import (
	"testing"

	"vesper/object"
)

// N nested Enter calls from the same thread require N Exit calls before
// another thread can acquire the monitor — the recursion invariant
// synchronized methods/blocks depend on.
func TestEnterIsReentrant(t *testing.T) {
	obj := object.NewObject("java/lang/Object")
	const tid = int32(1)
	const depth = 5

	for i := 0; i < depth; i++ {
		if err := Enter(obj, tid, nil); err != nil {
			t.Fatalf("Enter #%d failed: %v", i, err)
		}
	}
	if !HeldBy(obj, tid) {
		t.Fatal("expected obj to be held by tid after nested Enter calls")
	}

	for i := 0; i < depth-1; i++ {
		if err := Exit(obj, tid); err != nil {
			t.Fatalf("Exit #%d failed: %v", i, err)
		}
		if !HeldBy(obj, tid) {
			t.Fatalf("monitor released early after %d of %d Exit calls", i+1, depth)
		}
	}

	if err := Exit(obj, tid); err != nil {
		t.Fatalf("final Exit failed: %v", err)
	}
	if HeldBy(obj, tid) {
		t.Error("monitor still held by tid after matching Exit count")
	}
}

// A thread that never held the monitor gets IllegalMonitorState on
// Exit, never a silent success.
func TestExitByNonOwnerFails(t *testing.T) {
	obj := object.NewObject("java/lang/Object")
	if err := Enter(obj, 1, nil); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	err := Exit(obj, 2)
	if _, ok := err.(IllegalMonitorState); !ok {
		t.Errorf("expected IllegalMonitorState from non-owner Exit, got %v", err)
	}
}

// Wait() by a thread that doesn't hold the monitor fails the same way
// Exit() by a non-owner does, rather than blocking forever.
func TestWaitByNonOwnerFails(t *testing.T) {
	obj := object.NewObject("java/lang/Object")
	if err := Enter(obj, 1, nil); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	defer Exit(obj, 1)

	err := Wait(obj, 2, 0, nil)
	if _, ok := err.(IllegalMonitorState); !ok {
		t.Errorf("expected IllegalMonitorState from non-owner Wait, got %v", err)
	}
}

// Forget removes obj's monitor from the table, so a later HeldBy/Count
// no longer reflects an object nothing references anymore — what
// vesper/gc's reapMonitors calls once an object is confirmed unreachable.
func TestForgetRemovesMonitor(t *testing.T) {
	obj := object.NewObject("java/lang/Object")
	if err := Enter(obj, 1, nil); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	if err := Exit(obj, 1); err != nil {
		t.Fatalf("Exit failed: %v", err)
	}

	before := Count()
	Forget(obj)
	after := Count()
	if after != before-1 {
		t.Errorf("expected Count to drop by 1 after Forget, got %d -> %d", before, after)
	}
	if HeldBy(obj, 1) {
		t.Error("HeldBy still reports ownership after Forget")
	}
}
