/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// The rewriter half of the post-format-check pipeline: it turns raw
// bytecode, already passed by CheckCodeValidity and summarized by
// Analyze, into a []Instruction the interpreter dispatches on directly —
// constant-pool lookups folded away where they can be resolved with no
// class loading (ldc of a numeric literal, a field's descriptor-derived
// width), and the remaining resolution-dependent opcodes (getfield,
// invokevirtual, invokedynamic) left to populate their own
// Instruction.IC1/IC2 inline-cache slots lazily, the first time the
// interpreter actually executes them — real constant-pool resolution
// needs the referenced class loaded, which rewriting ahead of time
// cannot assume (see DESIGN.md, classloader rewriter entry).
package classloader

import (
	"math"

	"vesper/opcodes"
)

// Instruction is one rewritten bytecode in a method's executable form.
// Kind starts as the raw opcode and is narrowed to one of opcodes.go's
// synthetic kinds wherever the rewrite applies; Args carries whatever
// operands that Kind needs (branch targets, local slot numbers, CP
// indices); IC1/IC2 are the interpreter's inline-cache slots, zero until
// first execution populates them.
type Instruction struct {
	PC   int
	Kind int
	Args []int32
	IC1  uint64
	IC2  uint64
}

// Rewrite lowers code into its executable Instruction form, consulting cp
// to fold constant loads and to type-narrow field accesses. ca is accepted
// but not consulted; the collector reads ca directly.
func Rewrite(code []byte, cp *CPool, ca *CodeAnalysis) (*RewrittenCode, error) {
	rc := &RewrittenCode{pcToIndex: make(map[int]int)}

	pc := 0
	for pc < len(code) {
		width, targets, err := instructionShape(code, pc)
		if err != nil {
			return nil, err
		}
		instr := lowerOne(code, pc, width, targets, cp)
		rc.pcToIndex[pc] = len(rc.Instrs)
		rc.Instrs = append(rc.Instrs, instr)
		pc += width
	}

	// retarget every branch's absolute-PC Args[0] (or, for a switch, every
	// target in Args) to an instruction index, so the interpreter's PC is
	// always "index into Instrs" and never needs a second PC->index
	// lookup per branch taken.
	for i := range rc.Instrs {
		retargetBranches(&rc.Instrs[i])
		rc.retargetIndices(&rc.Instrs[i])
	}
	return rc, nil
}

// RewrittenCode is one method's lowered instruction stream, indexable
// directly by the interpreter's program counter.
type RewrittenCode struct {
	Instrs    []Instruction
	pcToIndex map[int]int // original byte PC -> Instrs index
}

// IndexForPC returns the instruction index a raw byte PC (e.g. an
// exception handler's start_pc) lowers to.
func (rc *RewrittenCode) IndexForPC(pc int) (int, bool) {
	i, ok := rc.pcToIndex[pc]
	return i, ok
}

func (rc *RewrittenCode) retargetIndices(instr *Instruction) {
	switch instr.Kind {
	case opcodes.TABLESWITCH:
		// Args = [default, low, target0, target1, ...]: retarget the
		// default and every target, but never Args[1] (low is a key
		// value, not a PC).
		if idx, ok := rc.pcToIndex[int(instr.Args[0])]; ok {
			instr.Args[0] = int32(idx)
		}
		for i := 2; i < len(instr.Args); i++ {
			if idx, ok := rc.pcToIndex[int(instr.Args[i])]; ok {
				instr.Args[i] = int32(idx)
			}
		}
	case opcodes.LOOKUPSWITCH:
		// Args = [default, key0, target0, key1, target1, ...]: retarget
		// the default and every target slot (the even indices Args[2],
		// Args[4], ...), never a key.
		if idx, ok := rc.pcToIndex[int(instr.Args[0])]; ok {
			instr.Args[0] = int32(idx)
		}
		for i := 2; i < len(instr.Args); i += 2 {
			if idx, ok := rc.pcToIndex[int(instr.Args[i])]; ok {
				instr.Args[i] = int32(idx)
			}
		}
	case opcodes.IFEQ, opcodes.IFNE, opcodes.IFLT, opcodes.IFGE, opcodes.IFGT, opcodes.IFLE,
		opcodes.IF_ICMPEQ, opcodes.IF_ICMPNE, opcodes.IF_ICMPLT, opcodes.IF_ICMPGE,
		opcodes.IF_ICMPGT, opcodes.IF_ICMPLE, opcodes.IF_ACMPEQ, opcodes.IF_ACMPNE,
		opcodes.GOTO, opcodes.GOTO_W, opcodes.IFNULL, opcodes.IFNONNULL, opcodes.JSR, opcodes.JSR_W:
		if len(instr.Args) > 0 {
			if idx, ok := rc.pcToIndex[int(instr.Args[0])]; ok {
				instr.Args[0] = int32(idx)
			}
		}
	}
}

func retargetBranches(instr *Instruction) {
	// branch targets are resolved to instruction indices by
	// RewrittenCode.retargetIndices (needs the full pcToIndex table, so
	// it runs as the second pass in Rewrite rather than here).
	_ = instr
}

// lowerOne decodes the single instruction at pc into its Instruction
// form, applying whichever of the five documented rewrites (constant
// fold, dup/pop width specialization, typed field access, branch target
// resolution — all but the fifth, invoke inline-cache population, which
// needs an actual call to seed) applies to this opcode.
func lowerOne(code []byte, pc, width int, targets []int, cp *CPool) Instruction {
	op := code[pc]
	instr := Instruction{PC: pc, Kind: int(op)}

	switch op {
	case opcodes.LDC, opcodes.LDC_W:
		instr = lowerLdc(code, pc, op, cp)
	case opcodes.LDC2_W:
		instr = lowerLdc2w(code, pc, cp)

	case opcodes.DUP2, opcodes.DUP2_X1, opcodes.DUP2_X2:
		instr.Kind = specializeDup2(op, code, pc)
	case opcodes.POP2:
		instr.Kind = specializePop2(code, pc)

	case opcodes.GETFIELD, opcodes.PUTFIELD, opcodes.GETSTATIC, opcodes.PUTSTATIC:
		instr = lowerFieldAccess(code, pc, op, cp)

	case opcodes.IFEQ, opcodes.IFNE, opcodes.IFLT, opcodes.IFGE, opcodes.IFGT, opcodes.IFLE,
		opcodes.IF_ICMPEQ, opcodes.IF_ICMPNE, opcodes.IF_ICMPLT, opcodes.IF_ICMPGE,
		opcodes.IF_ICMPGT, opcodes.IF_ICMPLE, opcodes.IF_ACMPEQ, opcodes.IF_ACMPNE,
		opcodes.GOTO, opcodes.GOTO_W, opcodes.IFNULL, opcodes.IFNONNULL, opcodes.JSR, opcodes.JSR_W:
		instr.Args = []int32{int32(targets[0])}

	case opcodes.TABLESWITCH:
		// Args = [default, low, target(low), target(low+1), ..., target(high)] —
		// low is re-read from the raw bytes here since switchShape only
		// hands lowerOne the already-resolved target PCs, not the table's
		// own low/high bounds.
		low := readSwitchLow(code, pc)
		instr.Args = make([]int32, len(targets)+1)
		instr.Args[0] = int32(targets[0])
		instr.Args[1] = low
		for i, t := range targets[1:] {
			instr.Args[2+i] = int32(t)
		}
	case opcodes.LOOKUPSWITCH:
		// Args = [default, key0, target0, key1, target1, ...], matching
		// the match-offset pairs as they appear in the class file (JVMS
		// 4.10.1.9 requires them sorted ascending by key, so a linear
		// scan at dispatch time is simple and still correct).
		keys := readSwitchKeys(code, pc)
		instr.Args = make([]int32, 1+2*len(keys))
		instr.Args[0] = int32(targets[0])
		for i, k := range keys {
			instr.Args[1+2*i] = k
			instr.Args[2+2*i] = int32(targets[1+i])
		}

	case opcodes.ILOAD, opcodes.LLOAD, opcodes.FLOAD, opcodes.DLOAD, opcodes.ALOAD,
		opcodes.ISTORE, opcodes.LSTORE, opcodes.FSTORE, opcodes.DSTORE, opcodes.ASTORE, opcodes.RET:
		instr.Args = []int32{int32(code[pc+1])}

	case opcodes.IINC:
		instr.Args = []int32{int32(code[pc+1]), int32(int8(code[pc+2]))}

	case opcodes.BIPUSH:
		instr.Args = []int32{int32(int8(code[pc+1]))}
	case opcodes.SIPUSH:
		instr.Args = []int32{int32(int16(uint16(code[pc+1])<<8 | uint16(code[pc+2])))}

	case opcodes.NEWARRAY:
		instr.Args = []int32{int32(code[pc+1])}

	case opcodes.NEW, opcodes.ANEWARRAY, opcodes.CHECKCAST, opcodes.INSTANCEOF,
		opcodes.INVOKEVIRTUAL, opcodes.INVOKESPECIAL, opcodes.INVOKESTATIC:
		instr.Args = []int32{int32(readU16At(code, pc+1))}

	case opcodes.INVOKEINTERFACE:
		instr.Args = []int32{int32(readU16At(code, pc+1)), int32(code[pc+3])}

	case opcodes.INVOKEDYNAMIC:
		instr.Args = []int32{int32(readU16At(code, pc+1))}

	case opcodes.MULTIANEWARRAY:
		instr.Args = []int32{int32(readU16At(code, pc+1)), int32(code[pc+3])}
	}

	_ = width
	return instr
}

func readU16At(code []byte, at int) uint16 {
	return uint16(code[at])<<8 | uint16(code[at+1])
}

func readInt32At(code []byte, at int) int32 {
	return int32(uint32(code[at])<<24 | uint32(code[at+1])<<16 | uint32(code[at+2])<<8 | uint32(code[at+3]))
}

// switchPadding returns the index of the first operand byte following a
// tableswitch/lookupswitch opcode at pc — the 0-3 pad bytes that align the
// operands to a 4-byte boundary, per JVMS 3.10.
func switchPadding(pc int) int {
	p := pc + 1
	for p%4 != 0 {
		p++
	}
	return p
}

// readSwitchLow returns a tableswitch's low bound, re-read from the raw
// operand bytes (switchShape resolves target PCs but doesn't surface low
// itself).
func readSwitchLow(code []byte, pc int) int32 {
	return readInt32At(code, switchPadding(pc)+4)
}

// readSwitchKeys returns a lookupswitch's match keys in class-file order
// (ascending, per JVMS 4.10.1.9), parallel to switchShape's targets[1:].
func readSwitchKeys(code []byte, pc int) []int32 {
	p := switchPadding(pc)
	npairs := int(readInt32At(code, p+4))
	base := p + 8
	keys := make([]int32, npairs)
	for i := 0; i < npairs; i++ {
		keys[i] = readInt32At(code, base+8*i)
	}
	return keys
}

// lowerLdc folds ldc/ldc_w of a numeric constant into an immediate-
// carrying iconst/fconst; a String/Class/MethodHandle/MethodType/Dynamic
// constant needs runtime resolution (string interning, class loading, a
// bootstrap call) so it keeps its original Kind and an Args CP index.
func lowerLdc(code []byte, pc int, op byte, cp *CPool) Instruction {
	var index uint16
	width := 2
	if op == opcodes.LDC {
		index = uint16(code[pc+1])
	} else {
		index = readU16At(code, pc+1)
		width = 3
	}
	_ = width
	entry := cp.CpIndex[index]
	switch entry.Type {
	case IntConst:
		return Instruction{PC: pc, Kind: opcodes.ICONST_IMM, IC1: uint64(uint32(cp.IntConsts[entry.Slot]))}
	case FloatConst:
		return Instruction{PC: pc, Kind: opcodes.FCONST_IMM, IC1: uint64(math.Float32bits(cp.Floats[entry.Slot]))}
	default:
		return Instruction{PC: pc, Kind: int(op), Args: []int32{int32(index)}}
	}
}

// lowerLdc2w folds ldc2_w of a long/double constant the same way lowerLdc
// does for the single-width forms.
func lowerLdc2w(code []byte, pc int, cp *CPool) Instruction {
	index := readU16At(code, pc+1)
	entry := cp.CpIndex[index]
	switch entry.Type {
	case LongConst:
		return Instruction{PC: pc, Kind: opcodes.LCONST_IMM, IC1: uint64(cp.LongConsts[entry.Slot])}
	case DoubleConst:
		return Instruction{PC: pc, Kind: opcodes.DCONST_IMM, IC1: math.Float64bits(cp.Doubles[entry.Slot])}
	default:
		return Instruction{PC: pc, Kind: opcodes.LDC2_W, Args: []int32{int32(index)}}
	}
}

// specializeDup2 narrows a DUP2 family opcode to its 1-word/2-word form
// by checking whether the next instruction produces a category-2 value —
// the same test CheckDup2 already used to decide whether to rewrite the
// byte to a plain DUP outright, reapplied here for the (dup2_x1/dup2_x2)
// cases CheckDup2 leaves alone.
func specializeDup2(op byte, code []byte, pc int) int {
	wide := pc+1 < len(code) && BytecodeIsForLongOrDouble(code[pc+1])
	if wide {
		return opcodes.DUP2_2WORD
	}
	return opcodes.DUP2_1WORD
}

func specializePop2(code []byte, pc int) int {
	if pc+1 < len(code) && BytecodeIsForLongOrDouble(code[pc+1]) {
		return opcodes.POP2_2WORD
	}
	return opcodes.POP2_1WORD
}

// lowerFieldAccess type-narrows a field opcode from its descriptor's
// leading type letter, resolvable from the constant pool alone (no class
// load needed): cp's FieldRefEntry -> NameAndType -> descriptor UTF8.
// IC1 (the field's byte offset once its owning class is loaded) is left
// zero; the interpreter populates it the first time this instruction
// executes, exactly like an invoke's vtable slot.
func lowerFieldAccess(code []byte, pc int, op byte, cp *CPool) Instruction {
	index := readU16At(code, pc+1)
	instr := Instruction{PC: pc, Kind: int(op), Args: []int32{int32(index)}}

	entry := cp.CpIndex[index]
	if entry.Type != FieldRef || int(entry.Slot) >= len(cp.FieldRefs) {
		return instr
	}
	fr := cp.FieldRefs[entry.Slot]
	if int(fr.NameAndType) >= len(cp.CpIndex) {
		return instr
	}
	natEntry := cp.CpIndex[fr.NameAndType]
	if natEntry.Type != NameAndType || int(natEntry.Slot) >= len(cp.NameAndTypes) {
		return instr
	}
	desc := FetchUTF8stringFromCPEntryNumber(cp, uint32(cp.NameAndTypes[natEntry.Slot].DescIndex))
	if desc == "" {
		return instr
	}

	instr.Kind = fieldKindFor(op, desc[0])
	return instr
}

func fieldKindFor(op byte, typeLetter byte) int {
	var table map[byte]int
	switch op {
	case opcodes.GETFIELD:
		table = getfieldKinds
	case opcodes.PUTFIELD:
		table = putfieldKinds
	case opcodes.GETSTATIC:
		table = getstaticKinds
	case opcodes.PUTSTATIC:
		table = putstaticKinds
	}
	if k, ok := table[typeLetter]; ok {
		return k
	}
	return int(op)
}

var getfieldKinds = map[byte]int{
	'B': opcodes.GETFIELD_B, 'C': opcodes.GETFIELD_C, 'S': opcodes.GETFIELD_S,
	'I': opcodes.GETFIELD_I, 'J': opcodes.GETFIELD_J, 'F': opcodes.GETFIELD_F,
	'D': opcodes.GETFIELD_D, 'Z': opcodes.GETFIELD_Z, 'L': opcodes.GETFIELD_L, '[': opcodes.GETFIELD_L,
}
var putfieldKinds = map[byte]int{
	'B': opcodes.PUTFIELD_B, 'C': opcodes.PUTFIELD_C, 'S': opcodes.PUTFIELD_S,
	'I': opcodes.PUTFIELD_I, 'J': opcodes.PUTFIELD_J, 'F': opcodes.PUTFIELD_F,
	'D': opcodes.PUTFIELD_D, 'Z': opcodes.PUTFIELD_Z, 'L': opcodes.PUTFIELD_L, '[': opcodes.PUTFIELD_L,
}
var getstaticKinds = map[byte]int{
	'B': opcodes.GETSTATIC_B, 'C': opcodes.GETSTATIC_C, 'S': opcodes.GETSTATIC_S,
	'I': opcodes.GETSTATIC_I, 'J': opcodes.GETSTATIC_J, 'F': opcodes.GETSTATIC_F,
	'D': opcodes.GETSTATIC_D, 'Z': opcodes.GETSTATIC_Z, 'L': opcodes.GETSTATIC_L, '[': opcodes.GETSTATIC_L,
}
var putstaticKinds = map[byte]int{
	'B': opcodes.PUTSTATIC_B, 'C': opcodes.PUTSTATIC_C, 'S': opcodes.PUTSTATIC_S,
	'I': opcodes.PUTSTATIC_I, 'J': opcodes.PUTSTATIC_J, 'F': opcodes.PUTSTATIC_F,
	'D': opcodes.PUTSTATIC_D, 'Z': opcodes.PUTSTATIC_Z, 'L': opcodes.PUTSTATIC_L, '[': opcodes.PUTSTATIC_L,
}
