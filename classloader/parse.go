/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// This file implements the binary class-file parser (JVMS chapter 4): it
// turns a raw .class byte slice into a ParsedClass, the parse-time
// representation convertToPostableClass later turns into a ClData.
package classloader

import (
	"fmt"
	"math"

	"vesper/stringPool"
	"vesper/util"
)

const classMagic = 0xCAFEBABE

// Parse-time constant-pool entry shapes. These mirror the class-file tags
// (JVMS table 4.4-A) closely enough that the reader can switch on the raw
// file tag directly; cpEntry.entryType is then normalized to this
// package's Dummy/UTF8/... constants for the rest of the pipeline.
type cpEntry struct {
	entryType int
	slot      int
}

type utf8Entry struct {
	content string
}

// stringConstantEntry is CONSTANT_String_info: just an index into utf8Refs.
type stringConstantEntry struct {
	index int
}

type fieldRefEntry struct {
	classIndex       int
	nameAndTypeIndex int
}

type methodRefEntry struct {
	classIndex       int
	nameAndTypeIndex int
}

type interfaceRefEntry struct {
	classIndex       int
	nameAndTypeIndex int
}

type nameAndTypeEntry struct {
	nameIndex       int
	descriptorIndex int
}

type methodHandleEntry struct {
	referenceKind  int
	referenceIndex int
}

type dynamic struct {
	bootstrapIndex int
	nameAndType    int
}

type invokeDynamic struct {
	bootstrapIndex int
	nameAndType    int
}

// classfile tags (JVMS table 4.4-A), used only while reading the constant
// pool before each entry is renormalized to this package's entryType space.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// access_flags bits (JVMS table 4.1-A), the subset the VM cares about.
const (
	accPublic     = 0x0001
	accFinal      = 0x0010
	accSuper      = 0x0020
	accInterface  = 0x0200
	accAbstract   = 0x0400
	accSynthetic  = 0x1000
	accAnnotation = 0x2000
	accEnum       = 0x4000
	accModule     = 0x8000
)

// reader is a cursor over the raw class bytes with bounds-checked
// big-endian reads — JVMS class files are entirely big-endian.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) u1() (int, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := int(r.data[r.pos])
	r.pos++
	return v, nil
}

func (r *reader) u2() (int, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := int(util.BytesToUint16(r.data[r.pos : r.pos+2]))
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := util.BytesToUint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// parse reads a full class file into a ParsedClass. It does not
// format-check the result — that's formatCheckClass's job, run
// immediately afterward by ParseAndPostClass.
func parse(rawBytes []byte) (ParsedClass, error) {
	pc := ParsedClass{}
	r := &reader{data: rawBytes}

	magic, err := r.u4()
	if err != nil {
		return pc, err
	}
	if magic != classMagic {
		return pc, fmt.Errorf("invalid magic number: 0x%08X", magic)
	}

	minor, err := r.u2()
	if err != nil {
		return pc, err
	}
	major, err := r.u2()
	if err != nil {
		return pc, err
	}
	pc.javaVersion = major
	_ = minor

	if err := parseConstantPool(r, &pc); err != nil {
		return pc, err
	}

	accessFlags, err := r.u2()
	if err != nil {
		return pc, err
	}
	pc.accessFlags = accessFlags
	pc.classIsPublic = accessFlags&accPublic != 0
	pc.classIsFinal = accessFlags&accFinal != 0
	pc.classIsSuper = accessFlags&accSuper != 0
	pc.classIsInterface = accessFlags&accInterface != 0
	pc.classIsAbstract = accessFlags&accAbstract != 0
	pc.classIsSynthetic = accessFlags&accSynthetic != 0
	pc.classIsAnnotation = accessFlags&accAnnotation != 0
	pc.classIsEnum = accessFlags&accEnum != 0
	pc.classIsModule = accessFlags&accModule != 0

	thisClass, err := r.u2()
	if err != nil {
		return pc, err
	}
	className, err := classNameFromClassIndex(&pc, thisClass)
	if err != nil {
		return pc, err
	}
	pc.className = className
	pc.classNameIndex = stringPool.GetStringIndex(className)

	superClass, err := r.u2()
	if err != nil {
		return pc, err
	}
	if superClass == 0 {
		pc.superClassIndex = stringPool.GetStringIndex("")
	} else {
		superName, err := classNameFromClassIndex(&pc, superClass)
		if err != nil {
			return pc, err
		}
		pc.superClassIndex = stringPool.GetStringIndex(superName)
	}

	ifaceCount, err := r.u2()
	if err != nil {
		return pc, err
	}
	pc.interfaceCount = ifaceCount
	for i := 0; i < ifaceCount; i++ {
		idx, err := r.u2()
		if err != nil {
			return pc, err
		}
		name, err := classNameFromClassIndex(&pc, idx)
		if err != nil {
			return pc, err
		}
		pc.interfaces = append(pc.interfaces, stringPool.GetStringIndex(name))
	}

	fieldCount, err := r.u2()
	if err != nil {
		return pc, err
	}
	pc.fieldCount = fieldCount
	for i := 0; i < fieldCount; i++ {
		f, err := parseField(r, &pc)
		if err != nil {
			return pc, err
		}
		pc.fields = append(pc.fields, f)
	}

	methodCount, err := r.u2()
	if err != nil {
		return pc, err
	}
	pc.methodCount = methodCount
	for i := 0; i < methodCount; i++ {
		m, err := parseMethod(r, &pc)
		if err != nil {
			return pc, err
		}
		pc.methods = append(pc.methods, m)
	}

	attrCount, err := r.u2()
	if err != nil {
		return pc, err
	}
	pc.attribCount = attrCount
	for i := 0; i < attrCount; i++ {
		a, name, err := parseAttr(r, &pc)
		if err != nil {
			return pc, err
		}
		switch name {
		case "SourceFile":
			if len(a.attrContent) >= 2 {
				idx := int(util.BytesToUint16(a.attrContent))
				pc.sourceFile = pc.utf8Refs[idx].content
			}
		case "Deprecated":
			pc.deprecated = true
		case "BootstrapMethods":
			parseBootstrapMethods(a.attrContent, &pc)
		default:
			pc.attributes = append(pc.attributes, a)
		}
	}

	return pc, nil
}

func classNameFromClassIndex(pc *ParsedClass, classIndex int) (string, error) {
	if classIndex == 0 {
		return "", nil
	}
	if classIndex < 1 || classIndex >= len(pc.cpIndex) {
		return "", fmt.Errorf("class index %d out of range", classIndex)
	}
	entry := pc.cpIndex[classIndex]
	if entry.entryType != ClassRef {
		return "", fmt.Errorf("CP entry %d is not a class reference", classIndex)
	}
	// classRefs already hold stringPool indices by the time this runs,
	// since parseConstantPool resolves them before parse() touches
	// this_class/super_class.
	poolIdx := pc.classRefs[entry.slot]
	return *stringPool.GetStringPointer(poolIdx), nil
}

// parseConstantPool reads the constant_pool_count-1 entries (index 0 is
// unused, and every Long/Double entry consumes its own slot plus a dead
// "Dummy" slot immediately after it, per JVMS 4.4.5).
func parseConstantPool(r *reader, pc *ParsedClass) error {
	count, err := r.u2()
	if err != nil {
		return err
	}
	pc.cpCount = count
	pc.cpIndex = make([]cpEntry, count)

	for i := 1; i < count; i++ {
		tag, err := r.u1()
		if err != nil {
			return err
		}
		switch tag {
		case tagUtf8:
			length, err := r.u2()
			if err != nil {
				return err
			}
			raw, err := r.bytes(length)
			if err != nil {
				return err
			}
			pc.utf8Refs = append(pc.utf8Refs, utf8Entry{content: string(raw)})
			pc.cpIndex[i] = cpEntry{entryType: UTF8, slot: len(pc.utf8Refs) - 1}

		case tagInteger:
			v, err := r.u4()
			if err != nil {
				return err
			}
			pc.intConsts = append(pc.intConsts, int(int32(v)))
			pc.cpIndex[i] = cpEntry{entryType: IntConst, slot: len(pc.intConsts) - 1}

		case tagFloat:
			v, err := r.u4()
			if err != nil {
				return err
			}
			pc.floats = append(pc.floats, math.Float32frombits(v))
			pc.cpIndex[i] = cpEntry{entryType: FloatConst, slot: len(pc.floats) - 1}

		case tagLong:
			hi, err := r.u4()
			if err != nil {
				return err
			}
			lo, err := r.u4()
			if err != nil {
				return err
			}
			v := int64(hi)<<32 | int64(lo)
			pc.longConsts = append(pc.longConsts, v)
			pc.cpIndex[i] = cpEntry{entryType: LongConst, slot: len(pc.longConsts) - 1}
			i++ // the following index is an unusable "Dummy" slot
			if i < count {
				pc.cpIndex[i] = cpEntry{entryType: Dummy}
			}

		case tagDouble:
			hi, err := r.u4()
			if err != nil {
				return err
			}
			lo, err := r.u4()
			if err != nil {
				return err
			}
			bits := uint64(hi)<<32 | uint64(lo)
			pc.doubles = append(pc.doubles, math.Float64frombits(bits))
			pc.cpIndex[i] = cpEntry{entryType: DoubleConst, slot: len(pc.doubles) - 1}
			i++
			if i < count {
				pc.cpIndex[i] = cpEntry{entryType: Dummy}
			}

		case tagClass:
			nameIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.classRefs = append(pc.classRefs, uint32(nameIdx)) // resolved to a stringPool idx in a second pass
			pc.cpIndex[i] = cpEntry{entryType: ClassRef, slot: len(pc.classRefs) - 1}

		case tagString:
			utf8Idx, err := r.u2()
			if err != nil {
				return err
			}
			pc.stringRefs = append(pc.stringRefs, stringConstantEntry{index: utf8Idx})
			pc.cpIndex[i] = cpEntry{entryType: StringConst, slot: len(pc.stringRefs) - 1}

		case tagFieldref:
			classIdx, err := r.u2()
			if err != nil {
				return err
			}
			natIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.fieldRefs = append(pc.fieldRefs, fieldRefEntry{classIndex: classIdx, nameAndTypeIndex: natIdx})
			pc.cpIndex[i] = cpEntry{entryType: FieldRef, slot: len(pc.fieldRefs) - 1}

		case tagMethodref:
			classIdx, err := r.u2()
			if err != nil {
				return err
			}
			natIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.methodRefs = append(pc.methodRefs, methodRefEntry{classIndex: classIdx, nameAndTypeIndex: natIdx})
			pc.cpIndex[i] = cpEntry{entryType: MethodRef, slot: len(pc.methodRefs) - 1}

		case tagInterfaceMethodref:
			classIdx, err := r.u2()
			if err != nil {
				return err
			}
			natIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.interfaceRefs = append(pc.interfaceRefs, interfaceRefEntry{classIndex: classIdx, nameAndTypeIndex: natIdx})
			pc.cpIndex[i] = cpEntry{entryType: Interface, slot: len(pc.interfaceRefs) - 1}

		case tagNameAndType:
			nameIdx, err := r.u2()
			if err != nil {
				return err
			}
			descIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.nameAndTypes = append(pc.nameAndTypes, nameAndTypeEntry{nameIndex: nameIdx, descriptorIndex: descIdx})
			pc.cpIndex[i] = cpEntry{entryType: NameAndType, slot: len(pc.nameAndTypes) - 1}

		case tagMethodHandle:
			refKind, err := r.u1()
			if err != nil {
				return err
			}
			refIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.methodHandles = append(pc.methodHandles, methodHandleEntry{referenceKind: refKind, referenceIndex: refIdx})
			pc.cpIndex[i] = cpEntry{entryType: MethodHandle, slot: len(pc.methodHandles) - 1}

		case tagMethodType:
			descIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.methodTypes = append(pc.methodTypes, descIdx)
			pc.cpIndex[i] = cpEntry{entryType: MethodType, slot: len(pc.methodTypes) - 1}

		case tagDynamic:
			bsmIdx, err := r.u2()
			if err != nil {
				return err
			}
			natIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.dynamics = append(pc.dynamics, dynamic{bootstrapIndex: bsmIdx, nameAndType: natIdx})
			pc.cpIndex[i] = cpEntry{entryType: Dynamic, slot: len(pc.dynamics) - 1}

		case tagInvokeDynamic:
			bsmIdx, err := r.u2()
			if err != nil {
				return err
			}
			natIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.invokeDynamics = append(pc.invokeDynamics, invokeDynamic{bootstrapIndex: bsmIdx, nameAndType: natIdx})
			pc.cpIndex[i] = cpEntry{entryType: InvokeDynamic, slot: len(pc.invokeDynamics) - 1}

		case tagModule:
			nameIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.cpIndex[i] = cpEntry{entryType: Module, slot: nameIdx}

		case tagPackage:
			nameIdx, err := r.u2()
			if err != nil {
				return err
			}
			pc.cpIndex[i] = cpEntry{entryType: Package, slot: nameIdx}

		default:
			return fmt.Errorf("invalid constant pool tag %d at entry %d", tag, i)
		}
	}

	// second pass: resolve every ClassRef's UTF8 name_index into a
	// stringPool index, now that every UTF8 entry has been read.
	for i := range pc.classRefs {
		utf8Idx := pc.classRefs[i]
		if int(utf8Idx) >= len(pc.cpIndex) {
			continue
		}
		entry := pc.cpIndex[utf8Idx]
		if entry.entryType != UTF8 || entry.slot >= len(pc.utf8Refs) {
			continue
		}
		name := pc.utf8Refs[entry.slot].content
		pc.classRefs[i] = stringPool.GetStringIndex(name)
	}

	return nil
}

func parseField(r *reader, pc *ParsedClass) (field, error) {
	f := field{}
	flags, err := r.u2()
	if err != nil {
		return f, err
	}
	f.accessFlags = flags
	f.isStatic = flags&0x0008 != 0

	name, err := r.u2()
	if err != nil {
		return f, err
	}
	f.name = name

	desc, err := r.u2()
	if err != nil {
		return f, err
	}
	f.description = desc

	attrCount, err := r.u2()
	if err != nil {
		return f, err
	}
	for i := 0; i < attrCount; i++ {
		a, _, err := parseAttr(r, pc)
		if err != nil {
			return f, err
		}
		f.attributes = append(f.attributes, a)
	}
	return f, nil
}

func parseMethod(r *reader, pc *ParsedClass) (method, error) {
	m := method{}
	flags, err := r.u2()
	if err != nil {
		return m, err
	}
	m.accessFlags = flags

	name, err := r.u2()
	if err != nil {
		return m, err
	}
	m.name = name

	desc, err := r.u2()
	if err != nil {
		return m, err
	}
	m.description = desc

	attrCount, err := r.u2()
	if err != nil {
		return m, err
	}
	for i := 0; i < attrCount; i++ {
		a, attrName, err := parseAttr(r, pc)
		if err != nil {
			return m, err
		}
		switch attrName {
		case "Code":
			ca, err := parseCodeAttribute(a.attrContent, pc)
			if err != nil {
				return m, err
			}
			m.codeAttr = ca
		case "Exceptions":
			rr := &reader{data: a.attrContent}
			n, _ := rr.u2()
			for j := 0; j < n; j++ {
				idx, _ := rr.u2()
				m.exceptions = append(m.exceptions, uint32(idx))
			}
		case "MethodParameters":
			rr := &reader{data: a.attrContent}
			n, _ := rr.u1()
			for j := 0; j < n; j++ {
				nameIdx, _ := rr.u2()
				pflags, _ := rr.u2()
				pname := ""
				if nameIdx != 0 && nameIdx < len(pc.cpIndex) {
					e := pc.cpIndex[nameIdx]
					if e.entryType == UTF8 && e.slot < len(pc.utf8Refs) {
						pname = pc.utf8Refs[e.slot].content
					}
				}
				m.parameters = append(m.parameters, paramAttrib{name: pname, accessFlags: pflags})
			}
		case "Deprecated":
			m.deprecated = true
		default:
			m.attributes = append(m.attributes, a)
		}
	}
	return m, nil
}

// parseCodeAttribute parses the Code attribute's own payload (JVMS
// 4.7.3): it's handed its content bytes already sliced out by parseAttr.
func parseCodeAttribute(content []byte, pc *ParsedClass) (codeAttrib, error) {
	ca := codeAttrib{}
	r := &reader{data: content}

	maxStack, err := r.u2()
	if err != nil {
		return ca, err
	}
	ca.maxStack = maxStack

	maxLocals, err := r.u2()
	if err != nil {
		return ca, err
	}
	ca.maxLocals = maxLocals

	codeLen, err := r.u4()
	if err != nil {
		return ca, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return ca, err
	}
	ca.code = append([]byte(nil), code...)

	excCount, err := r.u2()
	if err != nil {
		return ca, err
	}
	for i := 0; i < excCount; i++ {
		startPc, _ := r.u2()
		endPc, _ := r.u2()
		handlerPc, _ := r.u2()
		catchType, _ := r.u2()
		ca.exceptions = append(ca.exceptions, exception{
			startPc: startPc, endPc: endPc, handlerPc: handlerPc, catchType: catchType,
		})
	}

	attrCount, err := r.u2()
	if err != nil {
		return ca, err
	}
	for i := 0; i < attrCount; i++ {
		a, attrName, err := parseAttr(r, pc)
		if err != nil {
			return ca, err
		}
		if attrName == "LineNumberTable" {
			table := parseLineNumberTable(a.attrContent)
			ca.sourceLineTable = &table
			continue
		}
		ca.attributes = append(ca.attributes, a)
	}
	return ca, nil
}

func parseLineNumberTable(content []byte) []BytecodeToSourceLine {
	r := &reader{data: content}
	n, err := r.u2()
	if err != nil {
		return nil
	}
	table := make([]BytecodeToSourceLine, 0, n)
	for i := 0; i < n; i++ {
		pcOff, _ := r.u2()
		line, _ := r.u2()
		table = append(table, BytecodeToSourceLine{BytecodeOffset: pcOff, SourceLine: line})
	}
	return table
}

func parseBootstrapMethods(content []byte, pc *ParsedClass) {
	r := &reader{data: content}
	n, err := r.u2()
	if err != nil {
		return
	}
	pc.bootstrapCount = n
	for i := 0; i < n; i++ {
		methodRef, _ := r.u2()
		argCount, _ := r.u2()
		bm := bootstrapMethod{methodRef: methodRef}
		for j := 0; j < argCount; j++ {
			argIdx, _ := r.u2()
			bm.args = append(bm.args, argIdx)
		}
		pc.bootstraps = append(pc.bootstraps, bm)
	}
}

// parseAttr reads one generic attribute_info: a name index, its length,
// and exactly that many raw content bytes — callers that recognize the
// name re-parse attrContent structurally; everything else stays opaque.
func parseAttr(r *reader, pc *ParsedClass) (attr, string, error) {
	nameIdx, err := r.u2()
	if err != nil {
		return attr{}, "", err
	}
	length, err := r.u4()
	if err != nil {
		return attr{}, "", err
	}
	content, err := r.bytes(int(length))
	if err != nil {
		return attr{}, "", err
	}

	name := ""
	if nameIdx >= 0 && nameIdx < len(pc.cpIndex) {
		e := pc.cpIndex[nameIdx]
		if e.entryType == UTF8 && e.slot < len(pc.utf8Refs) {
			name = pc.utf8Refs[e.slot].content
		}
	}

	a := attr{
		attrName:    nameIdx,
		attrSize:    int(length),
		attrContent: append([]byte(nil), content...),
	}
	return a, name, nil
}
