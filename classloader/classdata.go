/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import "vesper/types"

// Klass is the method-area entry for one loaded class. Status tracks where
// in the loading pipeline the class currently is; Data is nil until the
// class reaches 'F' (format-checked) or later. Data is a pointer so that
// copies of Klass taken out of the Classes map (unavoidable with Go map
// value semantics) still share the one authoritative ClData — a clinit
// transition recorded through one copy is visible through every other.
type Klass struct {
	Status byte // 'I' initializing load, 'F' format-checked, 'V' verified, 'N' not found
	Loader string
	Data   *ClData
}

// Klass.Status values.
const (
	StatusLoading       = 'I'
	StatusFormatChecked = 'F'
	StatusVerified      = 'V'
	StatusError         = 'N'
)

// ClData is the postable, runtime-shaped description of a class: the form
// convertToPostableClass produces from a ParsedClass once format-checking
// has passed.
type ClData struct {
	Name      string
	NameIndex uint32

	Superclass      string
	SuperclassIndex uint32

	Module string
	Pkg    string

	Interfaces []uint16

	Fields      []Field
	MethodTable map[string]*Method

	SourceFile string
	Bootstraps []BootstrapMethod
	Attributes []Attr

	Access AccessFlags
	ClInit byte

	CP CPool
}

// AccessFlags unpacks a class's (or a code-check's) access_flags bitmask
// into named booleans — used both as ClData.Access and as the parameter
// CheckCodeValidity needs to know whether a missing Code attribute is an
// error (concrete methods) or expected (abstract/native methods).
type AccessFlags struct {
	ClassIsPublic     bool
	ClassIsFinal      bool
	ClassIsSuper      bool
	ClassIsInterface  bool
	ClassIsAbstract   bool
	ClassIsSynthetic  bool
	ClassIsAnnotation bool
	ClassIsEnum       bool
	ClassIsModule     bool
}

// Field is one postable field descriptor: Name/Desc are CP indices of the
// UTF8 entries holding the field's name and descriptor.
type Field struct {
	Name       uint16
	Desc       uint16
	AccessFlags int
	IsStatic   bool
	Attributes []Attr
}

// Method is the postable, non-executable half of a method: everything
// about it except its bytecode, which lives in the JmEntry/MTable entry
// instead (JACOBIN-575: methods are no longer duplicated in the method
// area once the MTable holds the executable form).
type Method struct {
	Name        uint16
	Desc        uint16
	AccessFlags int

	CodeAttr CodeAttrib

	Attributes []Attr
	Exceptions []uint16
	Parameters []ParamAttrib
	Deprecated bool
}

// Attr is a raw, unparsed class-file attribute: its name (a CP UTF8
// index) and its payload bytes, for the many attributes the VM doesn't
// need to interpret structurally (Signature, RuntimeVisibleAnnotations,
// etc.).
type Attr struct {
	AttrName    uint16
	AttrSize    int
	AttrContent []byte
}

// CodeAttrib is a method's Code attribute (JVMS 4.7.3): its bytecode,
// exception table, sub-attributes, and (if present) its line-number map.
type CodeAttrib struct {
	MaxStack  int
	MaxLocals int
	Code      []byte

	Exceptions []CodeException
	Attributes []Attr

	BytecodeSourceMap []BytecodeToSourceLine
}

// CodeException is one entry in a method's exception table.
type CodeException struct {
	StartPc   int
	EndPc     int
	HandlerPc int
	CatchType uint16 // CP index of a ClassRef, or 0 for a catch-all (finally)
}

// BytecodeToSourceLine maps a bytecode offset to a source line number
// (the LineNumberTable attribute, JVMS 4.7.12), used for stack traces.
type BytecodeToSourceLine struct {
	BytecodeOffset int
	SourceLine     int
}

// BootstrapMethod is one entry in the class's BootstrapMethods attribute
// (JVMS 4.7.23), referenced by invokedynamic/Dynamic CP entries.
type BootstrapMethod struct {
	MethodRef uint16 // CP index of a MethodHandle
	Args      []uint16
}

// ParamAttrib is one entry in a method's MethodParameters attribute
// (JVMS 4.7.24).
type ParamAttrib struct {
	Name        string
	AccessFlags int
}

// JmEntry is the executable form of a Java (non-native) method, as stored
// in the JVM-wide MTable. Cp points back at the owning class's constant
// pool so the interpreter never has to thread an extra parameter through
// every opcode handler just to resolve a CP reference.
type JmEntry struct {
	AccessFlags int

	MaxStack  int
	MaxLocals int
	Code      []byte
	CodeAttr  CodeAttrib

	Attribs    []Attr
	Exceptions []uint16
	params     []ParamAttrib
	deprecated bool

	Cp *CPool
}

// MData holds either a JmEntry (Java bytecode method) or a GMeth-shaped
// native method, discriminated by the owning MTentry.MType.
type MData interface{}

// MTentry is one entry in the JVM-wide method table: MType says how to
// interpret Meth ('J' = JmEntry, 'G' = a gfunction-style native method).
type MTentry struct {
	MType byte
	Meth  MData
}

// clinit progress re-exported under the names classloader call sites use
// (types.ClInitNotRun etc. are the canonical definitions).
const (
	NoClinit         = types.NoClinit
	ClInitNotRun     = types.ClInitNotRun
	ClInitInProgress = types.ClInitInProgress
	ClInitRun        = types.ClInitRun
)
