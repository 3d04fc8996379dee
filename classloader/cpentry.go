/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

// Constant-pool entry-type tags. These numbers don't need to match the
// class-file format's own tag values (JVMS table 4.4-A) — the parser
// translates from the file's tags into this space while building
// ParsedClass.cpIndex, and Dummy has no file-format counterpart at all:
// it occupies the index immediately after every 8-byte Long/Double entry,
// per JVMS 4.4.5's "in retrospect, making 8-byte constants take two
// constant pool entries...was a poor choice" footnote.
const (
	Dummy = iota
	UTF8
	IntConst
	FloatConst
	LongConst
	DoubleConst
	StringConst
	ClassRef
	FieldRef
	MethodRef
	Interface
	NameAndType
	MethodHandle
	MethodType
	Dynamic
	InvokeDynamic
	Module
	Package
)

// CPool is the runtime, postable form of a class's constant pool: each
// slot in CpIndex carries a Type tag and a Slot, the index into the
// type-specific slice that actually holds the entry's value. Indirecting
// through CpIndex lets FetchCPentry and friends dispatch on Type without
// the caller needing to know which slice to index.
type CPool struct {
	CpIndex []CpEntry

	ClassRefs      []uint32 // stringPool indices of class names
	Doubles        []float64
	Dynamics       []DynamicEntry
	FieldRefs      []FieldRefEntry
	Floats         []float32
	IntConsts      []int32
	InterfaceRefs  []InterfaceRefEntry
	InvokeDynamics []InvokeDynamicEntry
	LongConsts     []int64
	MethodHandles  []MethodHandleEntry
	MethodRefs     []MethodRefEntry
	MethodTypes    []uint16
	NameAndTypes   []NameAndTypeEntry
	Utf8Refs       []string
}

// CpEntry is one slot in the constant pool index: its type tag and the
// slot in the type-specific slice that holds the actual value.
type CpEntry struct {
	Type uint16
	Slot uint16
}

// DynamicEntry is a CONSTANT_Dynamic_info entry (JVMS 4.4.10): a
// bootstrap method reference plus the name-and-type of the value it
// produces.
type DynamicEntry struct {
	BootstrapIndex uint16
	NameAndType    uint16
}

// FieldRefEntry is a CONSTANT_Fieldref_info entry (JVMS 4.4.2).
type FieldRefEntry struct {
	ClassIndex  uint16
	NameAndType uint16
}

// InterfaceRefEntry is a CONSTANT_InterfaceMethodref_info entry.
type InterfaceRefEntry struct {
	ClassIndex  uint16
	NameAndType uint16
}

// InvokeDynamicEntry is a CONSTANT_InvokeDynamic_info entry (JVMS 4.4.10).
type InvokeDynamicEntry struct {
	BootstrapIndex uint16
	NameAndType    uint16
}

// MethodHandleEntry is a CONSTANT_MethodHandle_info entry (JVMS 4.4.8).
// RefKind is one of the nine REF_ constants (JVMS table 5.4.3.5-A).
type MethodHandleEntry struct {
	RefKind  uint16
	RefIndex uint16
}

// MethodRefEntry is a CONSTANT_Methodref_info entry (JVMS 4.4.2).
type MethodRefEntry struct {
	ClassIndex  uint16
	NameAndType uint16
}

// NameAndTypeEntry is a CONSTANT_NameAndType_info entry (JVMS 4.4.6).
type NameAndTypeEntry struct {
	NameIndex uint16
	DescIndex uint16
}

// Reference-kind constants for MethodHandleEntry.RefKind (JVMS 5.4.3.5).
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// FetchUTF8stringFromCPEntryNumber resolves a CP index that is known to
// point to a UTF8 entry and returns its string, or "" for an out-of-range
// or wrongly-typed index.
func FetchUTF8stringFromCPEntryNumber(cp *CPool, index uint32) string {
	if cp == nil || int(index) >= len(cp.CpIndex) {
		return ""
	}
	entry := cp.CpIndex[index]
	if entry.Type != UTF8 {
		return ""
	}
	if int(entry.Slot) >= len(cp.Utf8Refs) {
		return ""
	}
	return cp.Utf8Refs[entry.Slot]
}
