/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package jvm

import (
	"container/list"
	"fmt"
	"math"
	"time"

	"vesper/classloader"
	"vesper/frames"
	"vesper/gfunction"
	"vesper/object"
)

// globalVM is the bootstrap/clinit path's handle onto the running VM —
// runFrame and runGmethod are called from initializerBlock.go (carried
// over from the teacher) at a call site that predates VM threading
// through every signature, the same reason jvm.MainThread is a package
// variable rather than a parameter.
var globalVM *VM

// buildFrame resolves className.methodName(methodDesc) to its executable
// form and, for a Java method, constructs a ready-to-run Frame: code
// analyzed (Analyze) and lowered (Rewrite), operand stack sized to
// max_stack, and the first len(args) locals populated from args in
// parameter order. ACC_SYNCHRONIZED (bit 0x0020) is reported back so the
// caller can wrap the call with monitor enter/exit around the frame's
// lifetime, since a synchronized method's monitor must release even if
// the method throws, something the frame itself can't express.
func buildFrame(className, methodName, methodDesc string, args []int64) (*frames.Frame, bool, error) {
	mt, err := classloader.FetchMethodAndCP(className, methodName, methodDesc)
	if err != nil {
		return nil, false, err
	}
	if mt.MType != 'J' {
		return nil, false, fmt.Errorf("jvm: %s.%s%s is a native method, not a Java frame", className, methodName, methodDesc)
	}
	meth := mt.Meth.(classloader.JmEntry)

	smt := classloader.FindAttribute(meth.Cp, meth.CodeAttr.Attributes, "StackMapTable")
	analysis, err := classloader.Analyze(meth.Code, meth.MaxLocals, smt, meth.Cp)
	if err != nil {
		return nil, false, err
	}
	code, err := classloader.Rewrite(meth.Code, meth.Cp, analysis)
	if err != nil {
		return nil, false, err
	}

	f := frames.CreateFrame(meth.MaxStack + 1)
	f.MethName = methodName
	f.ClName = className
	f.MethType = methodDesc
	f.CP = meth.Cp
	f.Meth = meth.Code
	f.Code = code
	f.Analysis = analysis
	f.ExceptionTable = meth.CodeAttr.Exceptions

	f.Locals = make([]int64, meth.MaxLocals)
	copy(f.Locals, args)

	synchronized := meth.AccessFlags&0x0020 != 0
	return f, synchronized, nil
}

// runFrame drives fs (a frame stack some caller already pushed a frame
// onto) to completion: until every frame it held at entry has returned,
// or an exception escapes unhandled. It exists for initializerBlock.go's
// benefit (<clinit> runs on its own isolated stack, outside the
// scheduler's view) — ordinary application execution never calls this
// directly, Interpret drains a thread's whole stack itself.
func runFrame(fs *list.List) error {
	target := fs.Len() - 1
	for fs.Len() > target {
		susp, err := Interpret(globalVM, MainThread, fs, 1<<30, time.Time{})
		if err != nil {
			return err
		}
		if susp != nil {
			continue // unbounded fuel for bootstrap execution; never actually suspends
		}
	}
	return nil
}

// runGmethod invokes a native method entry directly, outside the
// bytecode dispatch loop — used by <clinit> (which may resolve to a
// golang-implemented static initializer) and, from the interpreter's own
// invoke handling, for every call that resolves to a native method.
// pushResult controls whether the native's return value (if any) is
// pushed onto fs's current top frame; <clinit> calls never want this
// since they produce no value by definition.
func runGmethod(mt classloader.MTentry, fs *list.List, className, methodName, methodDesc string, args []interface{}, pushResult bool) (interface{}, error) {
	gm, ok := mt.Meth.(gfunction.GMeth)
	if !ok {
		return nil, fmt.Errorf("jvm: method table entry for %s.%s%s is not native", className, methodName, methodDesc)
	}

	result := gm.GFunction(args)
	if errBlk, ok := result.(*gfunction.GErrBlk); ok {
		return nil, throwFromErrBlk(fs, errBlk)
	}

	if pushResult && fs != nil && fs.Len() > 0 {
		caller := frames.PeekFrame(fs)
		_ = caller.Push(slotFor(result))
	}
	return result, nil
}

// slotFor converts a native method's Go return value into the int64 bit
// pattern a frame slot holds: primitives by their natural width, a
// reference by allocating it a Handle from the running VM's heap (a
// native's own signature has no Heap parameter, unlike every allocation
// site inside the interpreter itself).
func slotFor(v interface{}) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case int64:
		return val
	case int32:
		return int64(val)
	case int:
		return int64(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case float64:
		return int64(math.Float64bits(val))
	case float32:
		return int64(math.Float32bits(val))
	case *object.Object:
		if globalVM == nil {
			return 0
		}
		h, err := globalVM.Heap.Alloc(val, false)
		if err != nil {
			return 0
		}
		return int64(h)
	default:
		return 0
	}
}
