/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package arena implements the bump arena used for every allocation whose
// lifetime is tied to a single class descriptor: constant-pool entries,
// field/method tables, attribute byte slices, the verifier's analysis
// output. A class's arena is released in one shot when the class is
// unloaded (or when parsing fails partway through), instead of the GC
// having to trace every small object individually.
package arena

// Arena is a growable slab allocator. It hands out only zeroed byte
// slices (AllocBytes) — like bjvm's arena it holds raw bytes, but vesper's
// arena exists to batch the *lifetime*, not the representation, since Go's
// GC already owns memory layout.
type Arena struct {
	slabs    [][]byte
	released bool
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{}
}

// AllocBytes returns a zeroed byte slice of length n whose backing array is
// owned by the arena. Use for attribute payloads and raw bytecode arrays
// copied out of a class file.
func (a *Arena) AllocBytes(n int) []byte {
	if a.released {
		panic("arena: alloc after release")
	}
	b := make([]byte, n)
	a.slabs = append(a.slabs, b)
	return b
}

// Release drops the arena's references so the slabs become eligible for
// garbage collection. Called when a class fails to parse/link, or when a
// class is unloaded (custom class loaders only — bootstrap classes live
// for the VM's lifetime).
func (a *Arena) Release() {
	a.slabs = nil
	a.released = true
}

// Released reports whether Release has been called.
func (a *Arena) Released() bool {
	return a.released
}

// Size returns the total bytes currently held by the arena's slabs.
func (a *Arena) Size() int {
	total := 0
	for _, s := range a.slabs {
		total += len(s)
	}
	return total
}
