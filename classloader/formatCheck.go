/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Class-file format checking (JVMS chapter 4): a second pass over a
// freshly parsed class, run after parse() but before the class is posted
// to the method area, that catches structurally well-formed-but-illegal
// class files the byte-level reader has no reason to reject on its own —
// a constant pool entry pointing at the wrong kind of entry, a field name
// containing a character the spec forbids, a method handle whose
// reference kind doesn't match what it points to, and so on.
package classloader

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"vesper/stringPool"
	"vesper/types"
)

// formatCheckClass runs every format check against a freshly parsed
// class, in the order that lets an early failure short-circuit later,
// more expensive checks.
func formatCheckClass(klass *ParsedClass) error {
	if err := formatCheckConstantPool(klass); err != nil {
		return err
	}
	if err := formatCheckStructure(klass); err != nil {
		return err
	}
	if err := formatCheckFields(klass); err != nil {
		return err
	}

	for _, m := range klass.methods {
		if m.name >= len(klass.utf8Refs) {
			return cfe("method has an invalid name index")
		}
		name := klass.utf8Refs[m.name].content
		if !validateUnqualifiedName(name, true) {
			return cfe("method has an invalid name: " + name)
		}
		if m.description >= len(klass.utf8Refs) {
			return cfe("method " + name + " has an invalid description index")
		}
		desc := klass.utf8Refs[m.description].content
		if err := validateMethodDesc(desc); err != nil {
			return cfe("method " + name + " has an invalid descriptor: " + desc + ": " + err.Error())
		}
	}

	return nil
}

// formatCheckConstantPool walks every constant-pool entry and validates
// that it's internally consistent: indices it carries resolve to an
// entry of the expected kind, 8-byte constants are followed by the
// mandatory dummy slot, referenced names and descriptors have legal
// syntax, and so on (JVMS 4.4).
func formatCheckConstantPool(klass *ParsedClass) error {
	if klass.cpCount != len(klass.cpIndex) {
		return cfe("Error in size of constant pool: cpCount does not match the actual number of constant pool entries")
	}

	if len(klass.cpIndex) == 0 || klass.cpIndex[0].entryType != Dummy {
		return cfe("Missing dummy entry in first slot of constant pool")
	}

	for i := 1; i < len(klass.cpIndex); i++ {
		entry := klass.cpIndex[i]
		switch entry.entryType {
		case Dummy:
			// legal only as the slot after a Long/DoubleConst; that's
			// enforced where the Long/DoubleConst itself is checked.

		case UTF8:
			if entry.slot >= len(klass.utf8Refs) {
				return cfe(fmt.Sprintf("CP entry %d points to invalid UTF8 entry", i))
			}
			if !utf8.ValidString(klass.utf8Refs[entry.slot].content) {
				return cfe(fmt.Sprintf("CP entry %d contains an invalid character in its UTF8 string", i))
			}

		case IntConst:
			if entry.slot >= len(klass.intConsts) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP intConsts", i))
			}

		case FloatConst:
			if entry.slot >= len(klass.floats) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP floats", i))
			}

		case LongConst:
			if entry.slot >= len(klass.longConsts) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP longConsts", i))
			}
			if i+1 >= len(klass.cpIndex) || klass.cpIndex[i+1].entryType != Dummy {
				return cfe(fmt.Sprintf("Missing dummy entry after LongConst at CP entry %d", i))
			}

		case DoubleConst:
			if entry.slot >= len(klass.doubles) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP doubles", i))
			}
			if i+1 >= len(klass.cpIndex) || klass.cpIndex[i+1].entryType != Dummy {
				return cfe(fmt.Sprintf("Missing dummy entry after DoubleConst at CP entry %d", i))
			}

		case StringConst:
			if entry.slot >= len(klass.utf8Refs) {
				return cfe(fmt.Sprintf("CP entry %d (StringConst) has an invalid entry in CP utf8Refs", i))
			}

		case ClassRef:
			if entry.slot >= len(klass.classRefs) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP classRefs", i))
			}

		case FieldRef:
			if entry.slot >= len(klass.fieldRefs) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP fieldRefs", i))
			}
			fr := klass.fieldRefs[entry.slot]
			if _, ok := resolveClassRefName(klass, fr.classIndex); !ok {
				return cfe(fmt.Sprintf("FieldRef at CP entry %d points to an invalid entry in ClassRefs", i))
			}
			if _, ok := resolveNameAndType(klass, fr.nameAndTypeIndex); !ok {
				return cfe(fmt.Sprintf("FieldRef at CP entry %d points to an invalid entry in nameAndType", i))
			}

		case MethodRef:
			if entry.slot >= len(klass.methodRefs) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP methodRefs", i))
			}
			mr := klass.methodRefs[entry.slot]
			if _, ok := resolveClassRefName(klass, mr.classIndex); !ok {
				return cfe(fmt.Sprintf("MethodRef at CP entry %d points to an invalid entry in ClassRefs", i))
			}
			nat, ok := resolveNameAndType(klass, mr.nameAndTypeIndex)
			if !ok {
				return cfe(fmt.Sprintf("MethodRef at CP entry %d points to an invalid entry in nameAndType", i))
			}
			if name, ok := resolveUTF8(klass, nat.nameIndex); ok {
				if strings.HasPrefix(name, "<") && name != "<init>" {
					return cfe(fmt.Sprintf("MethodRef at CP entry %d has an entry with an invalid method name: %s", i, name))
				}
			}

		case Interface:
			if entry.slot >= len(klass.interfaceRefs) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP interfaceRefs", i))
			}
			ir := klass.interfaceRefs[entry.slot]
			if _, ok := resolveClassRefName(klass, ir.classIndex); !ok {
				return cfe(fmt.Sprintf("InterfaceRef at CP entry %d points to an invalid entry in ClassRefs", i))
			}
			if _, ok := resolveNameAndType(klass, ir.nameAndTypeIndex); !ok {
				return cfe(fmt.Sprintf("InterfaceRef at CP entry %d points to an invalid entry in nameAndType", i))
			}

		case NameAndType:
			if entry.slot >= len(klass.nameAndTypes) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP nameAndTypes", i))
			}

		case MethodHandle:
			if err := checkMethodHandle(klass, i, entry); err != nil {
				return err
			}

		case MethodType:
			if entry.slot >= len(klass.methodTypes) {
				return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP methodTypes", i))
			}
			typeStr, ok := resolveUTF8(klass, klass.methodTypes[entry.slot])
			if !ok {
				return cfe(fmt.Sprintf("MethodType at CP entry %d does not point to a valid UTF8 entry", i))
			}
			if !strings.HasPrefix(typeStr, "(") {
				return cfe(fmt.Sprintf("MethodType at CP entry %d does not point to a type that starts with an open parenthesis", i))
			}

		case Dynamic:
			if err := checkDynamic(klass, i, entry); err != nil {
				return err
			}

		case InvokeDynamic:
			if err := checkInvokeDynamic(klass, i, entry); err != nil {
				return err
			}

		case Module:
			if klass.classIsModule {
				if err := checkModuleName(klass.moduleName); err != nil {
					return err
				}
			}

		case Package:
			if klass.classIsModule {
				if err := checkPackageName(klass.packageName); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// resolveClassRefName follows a raw CP index to a ClassRef entry and
// returns the class name it names. ClassRefs holds a stringPool index
// directly, not a further CP index — see CPutils.go's FetchCPentry.
func resolveClassRefName(klass *ParsedClass, classCPIndex int) (string, bool) {
	if classCPIndex < 0 || classCPIndex >= len(klass.cpIndex) {
		return "", false
	}
	entry := klass.cpIndex[classCPIndex]
	if entry.entryType != ClassRef || entry.slot >= len(klass.classRefs) {
		return "", false
	}
	s := stringPool.GetStringPointer(klass.classRefs[entry.slot])
	if s == nil {
		return "", false
	}
	return *s, true
}

// resolveNameAndType follows a raw CP index to a NameAndType entry.
func resolveNameAndType(klass *ParsedClass, natCPIndex int) (nameAndTypeEntry, bool) {
	if natCPIndex < 0 || natCPIndex >= len(klass.cpIndex) {
		return nameAndTypeEntry{}, false
	}
	entry := klass.cpIndex[natCPIndex]
	if entry.entryType != NameAndType || entry.slot >= len(klass.nameAndTypes) {
		return nameAndTypeEntry{}, false
	}
	return klass.nameAndTypes[entry.slot], true
}

// resolveUTF8 follows a raw CP index to a UTF8 entry's string content.
func resolveUTF8(klass *ParsedClass, utfCPIndex int) (string, bool) {
	if utfCPIndex < 0 || utfCPIndex >= len(klass.cpIndex) {
		return "", false
	}
	entry := klass.cpIndex[utfCPIndex]
	if entry.entryType != UTF8 || entry.slot >= len(klass.utf8Refs) {
		return "", false
	}
	return klass.utf8Refs[entry.slot].content, true
}

// checkMethodHandle validates that a MethodHandle's referenceIndex points
// to a CP entry of the kind its referenceKind requires (JVMS 5.4.3.5,
// table 5.4.3.5-A).
func checkMethodHandle(klass *ParsedClass, i int, entry cpEntry) error {
	if entry.slot >= len(klass.methodHandles) {
		return cfe(fmt.Sprintf("CP entry %d has an invalid entry in CP methodHandles", i))
	}
	mh := klass.methodHandles[entry.slot]
	if mh.referenceIndex < 0 || mh.referenceIndex >= len(klass.cpIndex) {
		return cfe(fmt.Sprintf("MethodHandle at CP entry %d has an invalid referenceIndex", i))
	}
	target := klass.cpIndex[mh.referenceIndex]

	switch mh.referenceKind {
	case RefGetField, RefGetStatic, RefPutField, RefPutStatic:
		if target.entryType != FieldRef {
			return cfe(fmt.Sprintf("MethodHandle at CP entry %d has reference kind  of %d which does not point to a FieldRef", i, mh.referenceKind))
		}
	case RefInvokeVirtual, RefInvokeSpecial, RefNewInvokeSpecial:
		if target.entryType != MethodRef {
			return cfe(fmt.Sprintf("MethodHandle at CP entry %d has reference kind  of %d which does not point to a MethodRef", i, mh.referenceKind))
		}
	case RefInvokeStatic:
		if target.entryType == Interface {
			if klass.javaVersion < 52 {
				return cfe(fmt.Sprintf("MethodHandle at CP entry %d points to an Interface entry, which is only "+
					"allowed for reference kind 6 or in Java version 52 or later", i))
			}
		} else if target.entryType != MethodRef {
			return cfe(fmt.Sprintf("MethodHandle at CP entry %d has reference kind  of %d which does not point to a MethodRef or Interface", i, mh.referenceKind))
		}
	case RefInvokeInterface:
		if target.entryType != Interface {
			return cfe(fmt.Sprintf("MethodHandle at CP entry %d has reference kind  of 9 which does not point to an interface", i))
		}
	default:
		return cfe(fmt.Sprintf("MethodHandle at CP entry %d has an invalid reference kind: %d", i, mh.referenceKind))
	}
	return nil
}

// checkDynamic validates a CONSTANT_Dynamic entry: its bootstrap method
// must exist and its NameAndType's descriptor must be a field descriptor
// (a Dynamic constant, unlike an InvokeDynamic call site, has a value
// type rather than a method signature — JVMS 4.4.10).
func checkDynamic(klass *ParsedClass, i int, entry cpEntry) error {
	if entry.slot >= len(klass.dynamics) {
		return cfe(fmt.Sprintf("CP entry %d points to a non-existent dynamic slot", i))
	}
	dyn := klass.dynamics[entry.slot]
	if dyn.bootstrapIndex < 0 || dyn.bootstrapIndex >= len(klass.bootstraps) {
		return cfe(fmt.Sprintf("Dynamic at CP entry %d points to a non-existent bootstrap method", i))
	}
	nat, ok := resolveNameAndType(klass, dyn.nameAndType)
	if !ok {
		return cfe(fmt.Sprintf("Dynamic at CP entry %d points to an invalid entry in nameAndType", i))
	}
	desc, ok := resolveUTF8(klass, nat.descriptorIndex)
	if !ok {
		return cfe(fmt.Sprintf("Dynamic at CP entry %d's nameAndType points to an invalid descriptor", i))
	}
	if err := validateFieldDescSyntax(desc); err != nil {
		return cfe(fmt.Sprintf("Dynamic at CP entry %d does not have a valid field-type descriptor (%s): %s", i, desc, err.Error()))
	}
	return nil
}

// checkInvokeDynamic validates a CONSTANT_InvokeDynamic entry: its
// bootstrap method and NameAndType must exist. Unlike Dynamic, its
// descriptor names a call site's method signature, not a value type.
func checkInvokeDynamic(klass *ParsedClass, i int, entry cpEntry) error {
	if entry.slot >= len(klass.invokeDynamics) {
		return cfe(fmt.Sprintf("CP entry %d points to a non-existent invokeDynamic slot", i))
	}
	idyn := klass.invokeDynamics[entry.slot]
	if idyn.bootstrapIndex < 0 || idyn.bootstrapIndex >= len(klass.bootstraps) {
		return cfe(fmt.Sprintf("InvokeDynamic at CP entry %d points to a non-existent bootstrap method", i))
	}
	if _, ok := resolveNameAndType(klass, idyn.nameAndType); !ok {
		return cfe(fmt.Sprintf("InvokeDynamic at CP entry %d points to an invalid entry in nameAndType", i))
	}
	return nil
}

// validateNameEscaping checks the JVMS 4.2.3 binding-name escaping rule
// shared by module and package names: '\' may only escape itself, ':',
// or '@'; a bare ':' or '@' is illegal, as is a trailing '\'.
func validateNameEscaping(name string) error {
	if name == "" {
		return errors.New("name is empty")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '\\' {
			if i+1 >= len(name) {
				return errors.New("name ends with a dangling escape character")
			}
			next := name[i+1]
			if next != '\\' && next != ':' && next != '@' {
				return fmt.Errorf("name contains an invalid escape sequence: \\%c", next)
			}
			i++
			continue
		}
		if c == ':' || c == '@' {
			return fmt.Errorf("name contains an unescaped '%c' character", c)
		}
	}
	return nil
}

// checkModuleName validates a module name (JVMS 4.2.3).
func checkModuleName(name string) error {
	if err := validateNameEscaping(name); err != nil {
		return cfe("invalid module name \"" + name + "\": " + err.Error())
	}
	return nil
}

// checkPackageName validates a package name (JVMS 4.2.3); same grammar as
// a module name, distinct only in its error text.
func checkPackageName(name string) error {
	if err := validateNameEscaping(name); err != nil {
		return cfe("invalid package name \"" + name + "\": " + err.Error())
	}
	return nil
}

// formatCheckFields validates every field's name and descriptor syntax
// (JVMS 4.5). Field name/description indices here are direct indices
// into utf8Refs, not raw CP indices — the one place this package departs
// from the general CP-indirection model, confirmed against this file's
// own test fixtures.
func formatCheckFields(klass *ParsedClass) error {
	for _, f := range klass.fields {
		if f.name >= len(klass.utf8Refs) {
			return cfe("field has an invalid name index")
		}
		name := klass.utf8Refs[f.name].content
		if strings.ContainsAny(name, " \t\n\r") {
			return cfe("field name contains whitespace: " + name)
		}
		if len(name) > 0 && name[0] >= '0' && name[0] <= '9' {
			return cfe("field name cannot start with a digit: " + name)
		}
		if !validateUnqualifiedName(name, false) {
			return cfe("field has an invalid name: " + name)
		}

		if f.description >= len(klass.utf8Refs) {
			return cfe("field " + name + " has an invalid description index")
		}
		desc := klass.utf8Refs[f.description].content
		if err := validateFieldDescSyntax(desc); err != nil {
			return cfe("field " + name + " has an invalid description (" + desc + "): " + err.Error())
		}
	}
	return nil
}

// validateFieldDescSyntax validates desc as a single complete field
// descriptor (JVMS 4.3.2): B/C/D/F/I/J/S/Z, L<classname>;, or an array of
// one of those. Unlike a method descriptor's return type, a field
// descriptor never admits 'V'.
func validateFieldDescSyntax(desc string) error {
	if desc == "" {
		return errors.New("field descriptor is empty")
	}
	end, err := validateFieldTypeAt(desc, 0)
	if err != nil {
		return err
	}
	if end != len(desc) {
		return fmt.Errorf("field descriptor has trailing characters: %s", desc)
	}
	return nil
}

// validateFieldTypeAt validates the single field-type descriptor
// starting at start in desc and returns the index just past it.
func validateFieldTypeAt(desc string, start int) (int, error) {
	if start >= len(desc) {
		return 0, fmt.Errorf("descriptor ended unexpectedly: %s", desc)
	}
	switch desc[start] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return start + 1, nil
	case 'L':
		rel := strings.IndexByte(desc[start:], ';')
		if rel < 0 {
			return 0, fmt.Errorf("descriptor is missing terminating ';': %s", desc)
		}
		return start + rel + 1, nil
	case '[':
		i := start
		dims := 0
		for i < len(desc) && desc[i] == '[' {
			dims++
			i++
		}
		if dims > types.MaxArrayDimensions {
			return 0, fmt.Errorf("descriptor exceeds maximum array dimensions: %s", desc)
		}
		return validateFieldTypeAt(desc, i)
	default:
		return 0, fmt.Errorf("descriptor starts with an invalid character: %s", desc)
	}
}

// validateTypeDescSyntax validates desc as a single type descriptor,
// optionally admitting bare 'V' (void) — legal only as a method's return
// type, never as a field type or a method parameter.
func validateTypeDescSyntax(desc string, allowVoid bool) error {
	if desc == "" {
		return errors.New("type descriptor is empty")
	}
	if allowVoid && desc == "V" {
		return nil
	}
	return validateFieldDescSyntax(desc)
}

// validateMethodDesc validates a method descriptor (JVMS 4.3.3): either
// the full "(ParameterDescriptor*)ReturnDescriptor" form, or — looser,
// matching how this is actually invoked elsewhere in the pipeline — a
// bare return-type descriptor on its own.
func validateMethodDesc(desc string) error {
	if desc == "" {
		return errors.New("method descriptor is empty")
	}
	if desc[0] != '(' {
		return validateTypeDescSyntax(desc, true)
	}

	closeParen := strings.IndexByte(desc, ')')
	if closeParen < 0 {
		return fmt.Errorf("method descriptor is missing closing parenthesis: %s", desc)
	}

	params := desc[1:closeParen]
	for i := 0; i < len(params); {
		end, err := validateFieldTypeAt(params, i)
		if err != nil {
			return err
		}
		i = end
	}

	return validateTypeDescSyntax(desc[closeParen+1:], true)
}

// formatCheckStructure verifies every parsed count field against the
// length of the slice it's supposed to describe — the structural half of
// format checking, distinct from the semantic checks above.
func formatCheckStructure(klass *ParsedClass) error {
	if klass.cpCount != len(klass.cpIndex) {
		return cfe("mismatch between constant pool count and the actual number of constant pool entries")
	}
	if klass.interfaceCount != len(klass.interfaces) {
		return cfe("mismatch between interface count and the actual number of interfaces")
	}
	if klass.methodCount != len(klass.methods) {
		return cfe("mismatch between method count and the actual number of methods")
	}
	if klass.attribCount != len(klass.attributes) {
		return cfe("mismatch between attribute count and the actual number of attributes")
	}
	if klass.bootstrapCount != len(klass.bootstraps) {
		return cfe("mismatch between bootstrap method count and the actual number of bootstrap methods")
	}
	return nil
}

// validateUnqualifiedName checks JVMS 4.2.2's unqualified-name syntax:
// none of '.', ';', '[', '/' may appear; '<' and '>' are reserved for the
// two special method names <init> and <clinit>, which are legal only
// when isMethod is true and the name matches exactly.
func validateUnqualifiedName(name string, isMethod bool) bool {
	if name == "" {
		return false
	}
	if isMethod && (name == "<init>" || name == "<clinit>") {
		return true
	}
	for _, r := range name {
		switch r {
		case '.', ';', '[', '/', '<', '>':
			return false
		}
	}
	return true
}

// validateItemIsLodable reports whether the constant pool entry at index
// is one of the kinds JVMS table 4.4-C permits as an ldc/ldc_w/ldc2_w
// operand.
func validateItemIsLodable(klass *ParsedClass, index int) bool {
	if index < 0 || index >= len(klass.cpIndex) {
		return false
	}
	switch klass.cpIndex[index].entryType {
	case IntConst, FloatConst, LongConst, DoubleConst, StringConst, ClassRef,
		MethodHandle, MethodType, Dynamic:
		return true
	default:
		return false
	}
}
