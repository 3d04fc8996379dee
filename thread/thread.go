/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package thread models a single JVM execution thread: its frame stack,
// an identifying name/ID, and the diagnostic flags the interpreter checks
// on every invocation (Trace) and exception (AltLauncher) without needing
// to import the jvm package.
package thread

import (
	"container/list"
	"sync"
	"sync/atomic"
)

var nextID int32

// ExecThread is one Java thread of execution.
type ExecThread struct {
	ID    int32
	Name  string
	Stack *list.List // frames.Frame stack, front = currently executing frame

	Trace bool // per-thread override of globals.TraceInst

	// AltLauncher is true for the thread running the JVM's own bootstrap
	// rather than main() — errors on it are reported differently.
	AltLauncher bool
}

// CreateThread returns a new, ready-to-run ExecThread with an empty frame
// stack and a process-unique ID.
func CreateThread() ExecThread {
	return ExecThread{
		ID:    atomic.AddInt32(&nextID, 1),
		Stack: list.New(),
	}
}

var (
	activeMu sync.Mutex
	active   = make(map[int32]*ExecThread)
)

// Register adds th to the set the garbage collector walks for stack
// roots (mirrors vm->active_threads in original_source/vm/gc.c). The
// caller keeps ownership of th; Register just keeps a pointer to it.
func Register(th *ExecThread) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active[th.ID] = th
}

// Unregister removes th from the active set once it terminates.
func Unregister(th *ExecThread) {
	activeMu.Lock()
	defer activeMu.Unlock()
	delete(active, th.ID)
}

// Active returns every currently registered thread, for root enumeration.
func Active() []*ExecThread {
	activeMu.Lock()
	defer activeMu.Unlock()
	threads := make([]*ExecThread, 0, len(active))
	for _, th := range active {
		threads = append(threads, th)
	}
	return threads
}
