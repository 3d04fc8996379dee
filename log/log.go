/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package log is a thin compatibility shim over vesper/trace. Older call
// sites (carried over from the teacher's jvm package) still spell out
// log.Log(msg, log.FINE); new code should call vesper/trace directly.
package log

import "vesper/trace"

const (
	FINE       = trace.FINE
	TRACE_INST = trace.TRACE_INST
	CLASS      = trace.CLASS
	INFO       = trace.INFO
	WARNING    = trace.WARNING
	SEVERE     = trace.SEVERE
)

// Log forwards to trace.Log, preserving the teacher's (msg, level) call shape.
func Log(msg string, level trace.Level) error { return trace.Log(msg, level) }

// Init forwards to trace.Init.
func Init() { trace.Init() }

// SetLogLevel forwards to trace.SetLogLevel.
func SetLogLevel(level trace.Level) error { return trace.SetLogLevel(level) }
