/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package jvm

import (
	"container/list"
	"errors"
	"fmt"

	"vesper/classloader"
	"vesper/frames"
	"vesper/gfunction"
	"vesper/monitor"
	"vesper/object"
	"vesper/stringPool"
)

// errHandled is unwind's success return: the exception found a handler
// and whichever frame now sits atop fs has already been repositioned to
// its first instruction. It is a distinct sentinel, not nil, so Interpret
// can tell "this opcode completed normally, advance the PC" apart from
// "control already transferred elsewhere, the PC is already right"
// without every throw-capable opcode handler plumbing a second boolean
// back through its own return path.
var errHandled = errors.New("jvm: exception handled")

// UncaughtException is what unwind returns once no frame remaining on fs
// has a handler for the thrown exception — the Go-level signal that a
// thread's execution has ended abnormally, for a caller (the scheduler,
// the CLI's main-thread runner) to report the way java.lang.ThreadGroup's
// uncaughtException would.
type UncaughtException struct {
	ClassName string
	Handle    object.Handle
}

func (e *UncaughtException) Error() string {
	return fmt.Sprintf("uncaught exception: %s", e.ClassName)
}

// throwFromErrBlk converts a native method's reported GErrBlk into a
// thrown Java exception and attempts to unwind fs to a handler — the
// path every gfunction native's error return takes before the
// interpreter resumes.
func throwFromErrBlk(fs *list.List, errBlk *gfunction.GErrBlk) error {
	handle, err := allocException(fs, errBlk.ExceptionType, errBlk.ErrMsg)
	if err != nil {
		return err
	}
	return unwind(fs, handle, errBlk.ExceptionType)
}

// throwNamed raises className (with message) against fs — the path the
// interpreter's own opcode handlers take for VM-originated exceptions
// (NullPointerException, ArrayIndexOutOfBoundsException, ClassCastException,
// and the like) that never pass through a native method at all.
func throwNamed(fs *list.List, className, message string) error {
	handle, err := allocException(fs, className, message)
	if err != nil {
		return err
	}
	return unwind(fs, handle, className)
}

// allocException builds an exception object the same way `new` would
// (instantiateClass, so a Throwable subclass's own declared fields get
// their JVMS default values too) and sets "detailMessage" directly — the
// one java/lang/Throwable field every catch clause and
// Throwable.getMessage() call actually needs — without running the full
// <init> chain a real `new` + `invokespecial <init>` pair would.
func allocException(fs *list.List, className, message string) (object.Handle, error) {
	if globalVM == nil {
		return 0, fmt.Errorf("jvm: no VM heap available to allocate %s", className)
	}
	h, err := instantiateClass(globalVM, fs, className)
	if err != nil {
		return 0, err
	}
	if obj := globalVM.Heap.Get(h); obj != nil {
		obj.FieldTable["detailMessage"] = &object.Field{Ftype: "Ljava/lang/String;", Fvalue: object.StringObjectFromGoString(message)}
	}
	return h, nil
}

// unwind searches fs, starting at its currently executing frame, for an
// exception-table entry whose range covers that frame's current PC and
// whose catch type matches className (or is the catch-all/finally entry,
// catchType 0). The first match wins; every frame above it is discarded
// and the matching frame resumes at the handler PC with the exception
// object as the sole value on its (cleared) operand stack — JVMS 2.10's
// unwind algorithm, applied eagerly across the whole stack rather than
// one frame at a time since Vesper's Frame carries its own exception
// table already resolved.
func unwind(fs *list.List, handle object.Handle, className string) error {
	for e := fs.Front(); e != nil; e = e.Next() {
		f := e.Value.(*frames.Frame)
		if idx, ok := findHandler(f, className); ok {
			for fs.Front() != e {
				discarded := fs.Front().Value.(*frames.Frame)
				releaseFrameLock(discarded)
				fs.Remove(fs.Front())
			}
			f.TOS = -1
			_ = f.Push(int64(handle))
			f.PC = idx
			return errHandled
		}
	}
	for e := fs.Front(); e != nil; e = e.Next() {
		releaseFrameLock(e.Value.(*frames.Frame))
	}
	return &UncaughtException{ClassName: className, Handle: handle}
}

// releaseFrameLock releases f's synchronized-method monitor, if it took
// one out on entry. Used wherever a frame leaves the stack other than by
// a clean, lock-aware RETURN: exception unwinding past it, or the stack
// being torn down after an uncaught exception.
func releaseFrameLock(f *frames.Frame) {
	if f.LockedObject == 0 || globalVM == nil {
		return
	}
	if obj := globalVM.Heap.Get(f.LockedObject); obj != nil && currentThread != nil {
		_ = monitor.Exit(obj, currentThread.ID)
	}
	f.LockedObject = 0
}

// findHandler returns the rewritten instruction index to resume at if
// one of f's exception-table entries covers its current PC and catches
// className, and whether one was found at all.
func findHandler(f *frames.Frame, className string) (int, bool) {
	if f.Code == nil || len(f.ExceptionTable) == 0 {
		return 0, false
	}
	pc := framePC(f)
	for _, ex := range f.ExceptionTable {
		if pc < ex.StartPc || pc >= ex.EndPc {
			continue
		}
		if ex.CatchType == 0 || catches(f.CP, ex.CatchType, className) {
			if idx, ok := f.Code.IndexForPC(ex.HandlerPc); ok {
				return idx, true
			}
		}
	}
	return 0, false
}

// catches reports whether a catch clause's resolved class (catchType, a
// CP ClassRef index) catches an exception of className — className
// itself, or any of its already-loaded ancestors, matches. An ancestor
// not yet in the method area is treated as a non-match rather than
// triggering a class load mid-unwind; a handler this imprecise about is
// exceedingly rare (it would mean the program catches a supertype of an
// exception whose class hasn't otherwise been touched yet).
func catches(cp *classloader.CPool, catchType uint16, className string) bool {
	caught := resolveClassRefName(cp, catchType)
	if caught == "" {
		return false
	}
	for name := className; name != ""; {
		if name == caught {
			return true
		}
		k := classloader.MethAreaFetch(name)
		if k == nil || k.Data == nil || k.Data.Superclass == name {
			break
		}
		name = k.Data.Superclass
	}
	return false
}

func resolveClassRefName(cp *classloader.CPool, index uint16) string {
	if cp == nil || int(index) >= len(cp.CpIndex) {
		return ""
	}
	entry := cp.CpIndex[index]
	if entry.Type != classloader.ClassRef || int(entry.Slot) >= len(cp.ClassRefs) {
		return ""
	}
	idx := cp.ClassRefs[entry.Slot]
	if s := stringPool.GetStringPointer(idx); s != nil {
		return *s
	}
	return ""
}
