/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package methodhandle resolves constant-pool MethodHandle/MethodType/
// InvokeDynamic entries into the descriptor-level data an interpreter
// needs to drive java.lang.invoke call sites. Grounded on
// original_source/vm/bjvm.c's bjvm_resolve_method_type,
// compute_mh_type_info/resolve_mh_mt, and method_types_compatible: the
// original builds these as real Class/MethodType Java objects (calling
// back into MethodType.makeImpl); this tree resolves the same
// descriptor-level information (return type, parameter types, owning
// class, reference kind) without a Java object behind it and runs no
// Java code (no <clinit>, no makeImpl). ResolveMethodType and
// ResolveMethodHandle are its entry points; the interpreter does not
// call them.
package methodhandle

import (
	"fmt"
	"strings"

	"vesper/classloader"
	"vesper/stringPool"
)

// Kind mirrors bjvm_method_handle_kind / JVMS table 5.4.3.5-A, reusing
// the RefKind values classloader.MethodHandleEntry already carries.
type Kind = uint16

const (
	KindGetField         Kind = classloader.RefGetField
	KindGetStatic        Kind = classloader.RefGetStatic
	KindPutField         Kind = classloader.RefPutField
	KindPutStatic        Kind = classloader.RefPutStatic
	KindInvokeVirtual    Kind = classloader.RefInvokeVirtual
	KindInvokeStatic     Kind = classloader.RefInvokeStatic
	KindInvokeSpecial    Kind = classloader.RefInvokeSpecial
	KindNewInvokeSpecial Kind = classloader.RefNewInvokeSpecial
	KindInvokeInterface  Kind = classloader.RefInvokeInterface
)

// Supported reports whether kind is one handled by MethodHandle
// resolution — mh_handle_supported's list. REF_getStatic/REF_putField/
// REF_putStatic are valid constant-pool entries but aren't reachable
// from invokedynamic bootstrap resolution in this tree yet.
func Supported(kind Kind) bool {
	switch kind {
	case KindGetField, KindInvokeStatic, KindInvokeVirtual, KindInvokeSpecial,
		KindInvokeInterface, KindNewInvokeSpecial:
		return true
	default:
		return false
	}
}

// MethodType is the descriptor-level shape of a java.lang.invoke.MethodType:
// a return type and an ordered list of parameter types, each a JVMS 4.3.2
// field descriptor (e.g. "I", "[Ljava/lang/String;").
type MethodType struct {
	ReturnType string
	ParamTypes []string
}

// Descriptor reconstructs the "(ARGS)RET" method descriptor string for t.
func (t *MethodType) Descriptor() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range t.ParamTypes {
		b.WriteString(p)
	}
	b.WriteByte(')')
	b.WriteString(t.ReturnType)
	return b.String()
}

// CompatibleWith reports whether t and other have identical parameter
// type lists — method_types_compatible, compared by descriptor string
// instead of resolved classdesc pointer since no Class-mirror identity
// cache is wired up to ptypes here.
func (t *MethodType) CompatibleWith(other *MethodType) bool {
	if t == other {
		return true
	}
	if len(t.ParamTypes) != len(other.ParamTypes) {
		return false
	}
	for i, p := range t.ParamTypes {
		if p != other.ParamTypes[i] {
			return false
		}
	}
	return true
}

// WrongMethodType mirrors bjvm_wrong_method_type_error: invokeExact was
// called with a MethodType that doesn't match the handle's own type.
type WrongMethodType struct {
	Provider *MethodType
	Target   *MethodType
}

func (e WrongMethodType) Error() string {
	return fmt.Sprintf("wrong method type: expected %s but found %s",
		e.Target.Descriptor(), e.Provider.Descriptor())
}

// ParseMethodDescriptor splits a JVMS 4.3.3 method descriptor into its
// parameter and return field-descriptor strings — parse_field_descriptor's
// loop, generalized to consume a whole "(ARGS)RET" string in one pass
// instead of one field at a time.
func ParseMethodDescriptor(desc string) (*MethodType, error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, fmt.Errorf("methodhandle: malformed descriptor %q: missing '('", desc)
	}
	i := 1
	var params []string
	for i < len(desc) && desc[i] != ')' {
		start := i
		n, err := fieldDescriptorLen(desc[i:])
		if err != nil {
			return nil, fmt.Errorf("methodhandle: malformed descriptor %q: %w", desc, err)
		}
		i += n
		params = append(params, desc[start:i])
	}
	if i >= len(desc) {
		return nil, fmt.Errorf("methodhandle: malformed descriptor %q: missing ')'", desc)
	}
	i++ // skip ')'
	ret := desc[i:]
	if _, err := fieldDescriptorLen(ret); err != nil {
		return nil, fmt.Errorf("methodhandle: malformed descriptor %q: bad return type: %w", desc, err)
	}
	return &MethodType{ReturnType: ret, ParamTypes: params}, nil
}

// fieldDescriptorLen returns how many bytes of s (from its start) make up
// one complete field descriptor, including any leading '[' dimensions.
func fieldDescriptorLen(s string) (int, error) {
	dims := 0
	i := 0
	for i < len(s) && s[i] == '[' {
		dims++
		i++
		if dims > 255 {
			return 0, fmt.Errorf("too many array dimensions (max 255)")
		}
	}
	if i >= len(s) {
		return 0, fmt.Errorf("truncated descriptor")
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		return i + 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return 0, fmt.Errorf("missing ';' in reference type")
		}
		return i + end + 1, nil
	default:
		return 0, fmt.Errorf("unrecognized descriptor character %q", s[i])
	}
}

// ResolveMethodType resolves the method descriptor at the given UTF8 CP
// index into a MethodType — bjvm_resolve_method_type, minus the
// MethodType.makeImpl callback; no Java code runs.
func ResolveMethodType(cp *classloader.CPool, descIndex uint32) (*MethodType, error) {
	desc := classloader.FetchUTF8stringFromCPEntryNumber(cp, descIndex)
	if desc == "" {
		return nil, fmt.Errorf("methodhandle: CP index %d is not a UTF8 method descriptor", descIndex)
	}
	return ParseMethodDescriptor(desc)
}

// MethodHandle is the descriptor-level resolution of a
// CONSTANT_MethodHandle_info entry: which class and member it targets,
// by which reference kind, and the MethodType implied by that member —
// resolve_mh_mt/compute_mh_type_info's result, without the MemberName/
// DirectMethodHandle Java objects bjvm_resolve_method_handle builds.
type MethodHandle struct {
	RefKind Kind
	Owner   string // declaring class, internal form (e.g. "java/lang/String")
	Name    string
	Desc    string // field descriptor for GetField/GetStatic/PutField/PutStatic, method descriptor otherwise
	Type    *MethodType
}

// ResolveMethodHandle resolves the MethodHandleEntry at handleIndex in
// cp into a MethodHandle, computing its MethodType the way
// compute_mh_type_info does per reference kind:
//   - GetField/GetStatic: MT is (C)T for get, where C is the field's
//     owner and T its type.
//   - PutField/PutStatic: MT is (C,T)V.
//   - InvokeVirtual/Special/Interface: MT is (C,A*)T — receiver class
//     prepended to the method's own argument list.
//   - InvokeStatic: MT is (A*)T, no receiver.
//   - NewInvokeSpecial: MT is (A*)C — constructor returns the owner type.
//
// Kinds Supported rejects (GetStatic, PutField, PutStatic) return an
// error before any MT is computed, so of the field kinds only GetField
// resolves.
func ResolveMethodHandle(cp *classloader.CPool, handleIndex uint16) (*MethodHandle, error) {
	if int(handleIndex) >= len(cp.MethodHandles) {
		return nil, fmt.Errorf("methodhandle: method handle index %d out of range", handleIndex)
	}
	entry := cp.MethodHandles[handleIndex]
	if !Supported(entry.RefKind) {
		return nil, fmt.Errorf("methodhandle: unsupported reference kind %d", entry.RefKind)
	}

	switch entry.RefKind {
	case KindGetField, KindGetStatic, KindPutField, KindPutStatic:
		return resolveFieldHandle(cp, entry)
	default:
		return resolveMethodRefHandle(cp, entry)
	}
}

func resolveFieldHandle(cp *classloader.CPool, entry classloader.MethodHandleEntry) (*MethodHandle, error) {
	if int(entry.RefIndex) >= len(cp.CpIndex) {
		return nil, fmt.Errorf("methodhandle: field ref index %d out of range", entry.RefIndex)
	}
	refEntry := cp.CpIndex[entry.RefIndex]
	if refEntry.Type != classloader.FieldRef || int(refEntry.Slot) >= len(cp.FieldRefs) {
		return nil, fmt.Errorf("methodhandle: CP index %d is not a field ref", entry.RefIndex)
	}
	fr := cp.FieldRefs[refEntry.Slot]
	owner := classRefName(cp, fr.ClassIndex)
	name, fieldDesc := nameAndType(cp, fr.NameAndType)

	var mt *MethodType
	switch entry.RefKind {
	case KindGetField, KindGetStatic:
		mt = &MethodType{ReturnType: fieldDesc, ParamTypes: nil}
		if entry.RefKind == KindGetField {
			mt.ParamTypes = []string{"L" + owner + ";"}
		}
	default: // PutField, PutStatic
		mt = &MethodType{ReturnType: "V"}
		if entry.RefKind == KindPutField {
			mt.ParamTypes = []string{"L" + owner + ";", fieldDesc}
		} else {
			mt.ParamTypes = []string{fieldDesc}
		}
	}

	return &MethodHandle{RefKind: entry.RefKind, Owner: owner, Name: name, Desc: fieldDesc, Type: mt}, nil
}

func resolveMethodRefHandle(cp *classloader.CPool, entry classloader.MethodHandleEntry) (*MethodHandle, error) {
	classIdx, natIdx, err := methodRefParts(cp, entry.RefIndex, entry.RefKind)
	if err != nil {
		return nil, err
	}
	owner := classRefName(cp, classIdx)
	name, methodDesc := nameAndType(cp, natIdx)

	sig, err := ParseMethodDescriptor(methodDesc)
	if err != nil {
		return nil, fmt.Errorf("methodhandle: %s.%s%s: %w", owner, name, methodDesc, err)
	}

	mt := &MethodType{ReturnType: sig.ReturnType, ParamTypes: append([]string(nil), sig.ParamTypes...)}
	switch entry.RefKind {
	case KindInvokeVirtual, KindInvokeSpecial, KindInvokeInterface:
		mt.ParamTypes = append([]string{"L" + owner + ";"}, mt.ParamTypes...)
	case KindNewInvokeSpecial:
		mt.ReturnType = "L" + owner + ";"
	case KindInvokeStatic:
		// no receiver prepended
	}

	return &MethodHandle{RefKind: entry.RefKind, Owner: owner, Name: name, Desc: methodDesc, Type: mt}, nil
}

// methodRefParts resolves refCPIndex — a constant-pool index pointing at
// a CONSTANT_Methodref_info or CONSTANT_InterfaceMethodref_info entry —
// to its (class, name-and-type) CP index pair. REF_invokeInterface
// handles reference an interface method ref entry, everything else a
// plain method ref entry (JVMS 5.4.3.5).
func methodRefParts(cp *classloader.CPool, refCPIndex uint16, kind Kind) (classIndex, natIndex uint16, err error) {
	if int(refCPIndex) >= len(cp.CpIndex) {
		return 0, 0, fmt.Errorf("methodhandle: method ref index %d out of range", refCPIndex)
	}
	refEntry := cp.CpIndex[refCPIndex]

	if kind == KindInvokeInterface {
		if refEntry.Type != classloader.Interface || int(refEntry.Slot) >= len(cp.InterfaceRefs) {
			return 0, 0, fmt.Errorf("methodhandle: CP index %d is not an interface method ref", refCPIndex)
		}
		ir := cp.InterfaceRefs[refEntry.Slot]
		return ir.ClassIndex, ir.NameAndType, nil
	}
	if refEntry.Type != classloader.MethodRef || int(refEntry.Slot) >= len(cp.MethodRefs) {
		return 0, 0, fmt.Errorf("methodhandle: CP index %d is not a method ref", refCPIndex)
	}
	mr := cp.MethodRefs[refEntry.Slot]
	return mr.ClassIndex, mr.NameAndType, nil
}

// classRefName resolves classCPIndex — a constant-pool index pointing at
// a CONSTANT_Class_info entry — to the class's internal-form name.
// ClassRefs holds a stringPool index directly rather than a further CP
// index (see FetchCPentry's ClassRef case), so this bypasses
// FetchUTF8stringFromCPEntryNumber and goes through stringPool instead.
func classRefName(cp *classloader.CPool, classCPIndex uint16) string {
	if int(classCPIndex) >= len(cp.CpIndex) {
		return ""
	}
	entry := cp.CpIndex[classCPIndex]
	if entry.Type != classloader.ClassRef || int(entry.Slot) >= len(cp.ClassRefs) {
		return ""
	}
	name := stringPool.GetStringPointer(cp.ClassRefs[entry.Slot])
	if name == nil {
		return ""
	}
	return *name
}

// nameAndType resolves natCPIndex — a constant-pool index pointing at a
// CONSTANT_NameAndType_info entry — to its name and descriptor strings.
// Like classRefName, natCPIndex is a CP index into CpIndex, not a direct
// slot into NameAndTypes (see GetMethInfoFromCPmethref's equivalent walk).
func nameAndType(cp *classloader.CPool, natCPIndex uint16) (name, desc string) {
	if int(natCPIndex) >= len(cp.CpIndex) {
		return "", ""
	}
	entry := cp.CpIndex[natCPIndex]
	if entry.Type != classloader.NameAndType || int(entry.Slot) >= len(cp.NameAndTypes) {
		return "", ""
	}
	nat := cp.NameAndTypes[entry.Slot]
	return classloader.FetchUTF8stringFromCPEntryNumber(cp, uint32(nat.NameIndex)),
		classloader.FetchUTF8stringFromCPEntryNumber(cp, uint32(nat.DescIndex))
}
