/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package types holds the small, dependency-free constants and primitive
// type tags shared by every other package in the VM: string-pool sentinel
// indices, class-descriptor field/array type letters, and the <clinit>
// lifecycle states a class descriptor moves through.
package types

// JavaByte is a distinct type from Go's byte because Java bytes are signed
// and must round-trip through arithmetic (widening, sign-extension) the way
// the JVM spec requires rather than the way Go's unsigned byte would.
type JavaByte int8

// Lifecycle states for class descriptors (spec: LOADED -> LINKED ->
// INITIALIZING -> INITIALIZED, with LINKAGE_ERROR sticky and reachable
// from any of the first three).
const (
	Loaded uint32 = iota
	Linked
	Initializing
	Initialized
	LinkageError
)

// <clinit> progress markers for a class descriptor.
const (
	NoClinit byte = iota
	ClInitNotRun
	ClInitInProgress
	ClInitRun
)

// Field/descriptor type letters (JVMS 4.3). Bool is an alias of Boolean —
// some call sites spell it one way, some the other.
const (
	Byte      = "B"
	Char      = "C"
	Double    = "D"
	Float     = "F"
	Int       = "I"
	Long      = "J"
	Ref       = "L"
	Short     = "S"
	Boolean   = "Z"
	Bool      = "Z"
	Void      = "V"
	Array     = "["
	RefArray  = "[L"
	ByteArray = "byte[]"
	IntArray  = "[I"
)

// JavaBoolTrue/JavaBoolFalse are the int64 encodings gfunction-native
// methods return for a Java boolean, matching how the interpreter stores
// booleans on the operand stack (no distinct bool stack slot).
const (
	JavaBoolFalse int64 = 0
	JavaBoolTrue  int64 = 1
)

// StringPool sentinel indices.
const (
	InvalidStringIndex       uint32 = 0xFFFFFFFF
	ObjectPoolStringIndex    uint32 = 0
	StringPoolStringIndex    uint32 = 1
	StringClassName                = "java/lang/String"
	ObjectClassName                = "java/lang/Object"
	ClassClassName                 = "java/lang/Class"
	CloneableClassName             = "java/lang/Cloneable"
	SerializableClassName           = "java/io/Serializable"
)

// MaxArrayDimensions is the JVMS limit on array nesting; the parser rejects
// field/method descriptors exceeding it.
const MaxArrayDimensions = 255
