/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package object is the heap model: every Java object, array, and interned
// string the interpreter creates is an *Object. A class's identity is kept
// as a pointer to its fully-qualified name rather than a pointer into the
// method area, so the heap never holds a reference that class unloading
// would have to chase down and null out.
package object

import (
	"fmt"
	"vesper/stringPool"
	"vesper/types"
	"strings"
	"unsafe"
)

// MarkWord is the object header. Hash is lazily derived from the object's
// address the first time identityHashCode is requested; Flags carries the
// monitor/GC bits a real JVM packs into the same word. Inflated mirrors
// the low bit a real mark word uses to distinguish an inline identity
// hash from an inflated-monitor pointer: false means Hash is the
// object's identity hash, true means its monitor has been lazily
// inflated by the first monitor operation on it. The monitor record itself still
// lives in vesper/monitor's process-wide table rather than a pointer
// embedded in this word — Go has no safe way to alias an arbitrary heap
// pointer into a tagged integer field the way bjvm's CAS-based inflation
// does (see DESIGN.md, monitor package entry).
type MarkWord struct {
	Hash     uint32
	Flags    uint8
	Inflated bool
}

// Field is one object or static field: its descriptor type letter plus the
// boxed Go value backing it. Fvalue is nil for an unset reference field,
// an int64 for every integral Java type (byte/char/short/int/long/boolean),
// and a float64 for float/double.
type Field struct {
	Ftype  string
	Fvalue interface{}
}

// Object is the universal heap value. FieldTable is the primary,
// name-indexed store; Fields is a legacy positional slice kept in step with
// it for code that walks fields by declaration order (field resolution
// during instantiation, before a name is known to be unique).
type Object struct {
	Klass     *string // fully-qualified class name, e.g. "java/lang/String"
	KlassName uint32  // stringPool index of Klass, cached for fast identity checks

	Mark MarkWord

	Fields     []Field
	FieldTable map[string]*Field
}

// MakeEmptyObject returns an Object with its FieldTable ready to use and no
// class assigned yet — the caller fills in Klass once it's known.
func MakeEmptyObject() *Object {
	return &Object{
		FieldTable: make(map[string]*Field),
	}
}

// NewObject allocates an Object of the given class with an empty field set.
func NewObject(className string) *Object {
	o := MakeEmptyObject()
	o.Klass = &className
	o.KlassName = stringPool.GetStringIndex(className)
	return o
}

// NewStringObject returns an empty java/lang/String instance; callers set
// the "value" field themselves (CreateCompactStringFromGoString is the
// usual entry point).
func NewStringObject() *Object {
	return NewObject(types.StringClassName)
}

// CreateCompactStringFromGoString builds a java/lang/String object backed
// by a Latin1-compatible byte array, mirroring the JDK's compact-string
// representation (JEP 254): the "value" field holds raw bytes, not a []rune.
func CreateCompactStringFromGoString(s *string) *Object {
	str := NewStringObject()
	UpdateStringObjectFromBytes(str, []byte(*s))
	return str
}

// UpdateStringObjectFromBytes (re)sets a java/lang/String object's "value"
// field from a raw byte slice — the path every String constructor native
// (<init>()V, <init>([B)V, <init>([BII)V, <init>([C)V) funnels through.
func UpdateStringObjectFromBytes(str *Object, bytes []byte) {
	str.FieldTable["value"] = &Field{
		Ftype:  types.ByteArray,
		Fvalue: bytes,
	}
}

// GoStringFromStringObject renders a java/lang/String object's "value"
// field as a Go string, regardless of whether it's backed by a raw []byte
// (the compact-string fast path) or a []types.JavaByte (a decoded array).
func GoStringFromStringObject(str *Object) string {
	if str == nil {
		return ""
	}
	fld, ok := str.FieldTable["value"]
	if !ok {
		return ""
	}
	switch v := fld.Fvalue.(type) {
	case []byte:
		return string(v)
	case []types.JavaByte:
		return GoStringFromJavaByteArray(v)
	default:
		return ""
	}
}

// ByteArrayFromStringObject returns a java/lang/String object's "value"
// field as a raw byte slice, converting from a []types.JavaByte backing
// if that's the representation in use.
func ByteArrayFromStringObject(str *Object) []byte {
	if str == nil {
		return nil
	}
	fld, ok := str.FieldTable["value"]
	if !ok {
		return nil
	}
	switch v := fld.Fvalue.(type) {
	case []byte:
		return v
	case []types.JavaByte:
		return GoByteArrayFromJavaByteArray(v)
	default:
		return nil
	}
}

// StringObjectFromGoString is a convenience wrapper over
// CreateCompactStringFromGoString for callers holding a plain string value.
func StringObjectFromGoString(s string) *Object {
	return CreateCompactStringFromGoString(&s)
}

// FormatField renders the object prefixed with the given string, for use
// in diagnostic output such as java/lang/String.valueOf(Object).
func (o *Object) FormatField(prefix string) string {
	return prefix + o.ToString()
}

// ClassName returns the object's class name, or "" for a nil Klass.
func (o *Object) ClassName() string {
	if o == nil || o.Klass == nil {
		return ""
	}
	return *o.Klass
}

// ToString renders the object for diagnostics and for java/lang/Object's
// default toString(). java/lang/String instances render their byte-array
// payload as text rather than the generic Class@hash form.
func (o *Object) ToString() string {
	if o == nil {
		return "null"
	}
	className := o.ClassName()
	if className == types.StringClassName {
		if fld, ok := o.FieldTable["value"]; ok {
			switch v := fld.Fvalue.(type) {
			case []types.JavaByte:
				return GoStringFromJavaByteArray(v)
			case []byte:
				return string(v)
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s@%08x", className, o.Mark.Hash)
	for name, f := range o.FieldTable {
		fmt.Fprintf(&sb, " %s(%s)=%v", name, f.Ftype, f.Fvalue)
	}
	for i, f := range o.Fields {
		fmt.Fprintf(&sb, " [%d](%s)=%v", i, f.Ftype, f.Fvalue)
	}
	return sb.String()
}

// IdentityHash returns (and, on first call, computes) the object's
// identity hash code, matching Object.hashCode()'s default behavior.
func (o *Object) IdentityHash() uint32 {
	if o.Mark.Hash == 0 {
		o.Mark.Hash = uint32(uintptr(unsafe.Pointer(o)))
	}
	return o.Mark.Hash
}
