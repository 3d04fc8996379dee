/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package jvm

import (
	"fmt"
	"os"

	"vesper/frames"
	"vesper/globals"
	"vesper/thread"
)

// showFrameStack dumps the JVM call stack (method name + program counter,
// innermost frame first) to stderr, once per fatal error. Called from the
// top-level recover() handler when a panic unwinds out of the interpreter.
func showFrameStack(th *thread.ExecThread) {
	g := globals.GetGlobalRef()
	if g.JvmFrameStackShown {
		return
	}
	g.JvmFrameStackShown = true

	if th.Stack == nil || th.Stack.Len() == 0 {
		fmt.Fprintf(os.Stderr, "no further data available\n")
		return
	}

	for e := th.Stack.Front(); e != nil; e = e.Next() {
		f := e.Value.(*frames.Frame)
		fmt.Fprintf(os.Stderr, "Method: %-41sPC: %03d\n", f.ClName+"."+f.MethName, f.PC)
	}
}

// showGoStackTrace prints the Go-level stack captured at panic time
// (globals.ErrorGoStack), once per fatal error. err is accepted for
// symmetry with showPanicCause but unused: the captured stack already
// carries everything the recover() site knew.
func showGoStackTrace(err error) {
	g := globals.GetGlobalRef()
	if g.GoStackShown {
		return
	}
	g.GoStackShown = true
	fmt.Fprint(os.Stderr, g.ErrorGoStack)
}

// showPanicCause prints the error that caused a Go-level panic, once per
// fatal error. cause is nil when the panic value wasn't an error (a raw
// string or some other type the recover() site couldn't type-assert).
func showPanicCause(cause error) {
	g := globals.GetGlobalRef()
	if g.PanicCauseShown {
		return
	}
	g.PanicCauseShown = true

	if cause == nil {
		fmt.Fprintln(os.Stderr, "error: go panic -- cause unknown")
		return
	}
	fmt.Fprintf(os.Stderr, "error: go panic -- cause: %s\n", cause.Error())
}
