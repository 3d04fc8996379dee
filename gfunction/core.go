/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package gfunction is the native-method registry: every java.* and jdk.*
// method the VM implements directly in Go rather than executing bytecode
// for lives here, keyed by its fully-qualified class/name/descriptor in
// MethodSignatures. The interpreter consults this table before trying to
// load and run a method's Java bytecode.
package gfunction

import (
	"vesper/excNames"
	"vesper/object"
)

// GMeth is one entry in the native-method table: how many slots the
// caller's operand stack contributes as arguments, and the Go function
// that implements the method body.
type GMeth struct {
	ParamSlots int
	GFunction  func([]interface{}) interface{}
}

// MethodSignatures maps "class.name(desc)" to its native implementation.
// Populated by the package's Load_* functions, each of which registers
// dozens of entries with plain index-assignment literals
// (MethodSignatures["..."] = GMeth{...}) — a plain Go map keeps that
// idiom intact across every Load_* file; swiss.Map's Put/Get API would
// force rewriting every one of those literals for a table that's built
// once at startup and never resized under load, unlike the method
// area's Classes/mTable tables this mirrors in spirit.
var MethodSignatures = make(map[string]GMeth)

// GErrBlk is the error value a native method returns in place of its
// normal result: the interpreter checks for this type after every native
// call and throws excType(errMsg) as a Java exception if it sees one.
type GErrBlk struct {
	ExceptionType string
	ErrMsg        string
}

// getGErrBlk builds the error value a native method returns to signal a
// Java exception should be thrown back in the caller's frame.
func getGErrBlk(excType, errMsg string) *GErrBlk {
	return &GErrBlk{ExceptionType: excType, ErrMsg: errMsg}
}

// justReturn is the native body for methods the VM doesn't need to do
// anything for (registerNatives, most <clinit>s) beyond satisfying the
// linker that a method body exists.
func justReturn([]interface{}) interface{} {
	return nil
}

// trapFunction is the native body for methods that are recognized but not
// yet implemented: it reports the gap as an exception rather than letting
// the interpreter fall through to a missing method body.
func trapFunction(params []interface{}) interface{} {
	return getGErrBlk(excNames.UnsupportedOperationException, "function not yet implemented")
}

// trapDeprecated is the native body for JDK methods marked @Deprecated
// that Vesper declines to implement; same trap as trapFunction, reported
// with a message that names the real reason.
func trapDeprecated(params []interface{}) interface{} {
	return getGErrBlk(excNames.UnsupportedOperationException, "deprecated method not implemented")
}

// populator wraps a raw array value (byte slice, int64 slice, object
// pointer slice) in a fresh heap object the same way the class loader
// would represent a Java array: a single "value" field carrying the
// backing slice and its descriptor type letter.
func populator(_ string, ftype string, value interface{}) interface{} {
	arr := object.MakeEmptyObject()
	arr.FieldTable["value"] = &object.Field{Ftype: ftype, Fvalue: value}
	return arr
}

// eofSet records, in the object's "eof" field, whether an
// InputStream-backed object has hit end of file. No native in this
// package reads the field back.
func eofSet(obj *object.Object, isEOF bool) {
	v := int64(0)
	if isEOF {
		v = 1
	}
	obj.FieldTable["eof"] = &object.Field{Ftype: "Z", Fvalue: v}
}

// FilePath/FileHandle are the FieldTable keys every java.io stream native
// shares to carry the underlying OS path string and open *os.File across
// <init>/read/close calls.
const (
	FilePath   = "FilePath"
	FileHandle = "FileHandle"
)

// MTableLoadNatives registers every native method this package implements
// into MethodSignatures. Called once at VM startup, after InitMethodArea.
func MTableLoadNatives() {
	Load_Io_InputStreamReader()
	Load_Lang_String()
	Load_Lang_StringBuilder()
	Load_Lang_Thread()
	Load_Util_HashMap()
	Load_Jdk_Internal_Misc_ScopedMemoryAccess()
}
