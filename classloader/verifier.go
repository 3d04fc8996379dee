/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// The analyzer/verifier half of the post-format-check pipeline: given a
// method already passed by CheckCodeValidity, it trusts the class file's
// own StackMapTable attribute (JVMS 4.7.4) rather than recomputing a
// fixpoint type flow, reconciling it against the bytecode into the
// reference maps the garbage collector needs: which operand-stack slots
// and locals hold a reference at each StackMapTable frame PC. No other file in this tree does any of this; bjvm's
// original_source/vm/verify.c full dataflow verifier does, but this tree
// deliberately narrows scope to what a StackMapTable-trusting verifier
// needs (see DESIGN.md, Open Question: StackMapTable trust vs.
// recomputation).
package classloader

import (
	"fmt"

	"vesper/bitset"
)

// VType is a verification-time value category, coarsened from JVMS's
// full verification-type-info lattice down to what the rewriter and the
// collector's reference bitmap actually need: whether a slot is a
// reference, which primitive width it holds, or padding (the second slot
// of a long/double).
type VType byte

const (
	VTop VType = iota
	VInt
	VFloat
	VLong
	VDouble
	VRef
)

// stackMapFrame is one decoded entry of the StackMapTable attribute,
// expanded to an absolute PC and a full locals/stack snapshot (the
// attribute itself only stores deltas against the previous frame; decode
// resolves those before CodeAnalysis ever sees them).
type stackMapFrame struct {
	PC     int
	Locals []VType
	Stack  []VType
}

// CodeAnalysis is the verifier's output for one method: the basic-block
// graph with its dominator tree, and, at each StackMapTable frame
// boundary, which local/stack slots are references (Bitset, indexed by
// slot number).
type CodeAnalysis struct {
	graph *blockGraph

	// RefLocalsAt/RefStackAt are keyed by the PC a StackMapTable frame
	// describes; the PCs in between inherit the most recent frame
	// (JVMS 4.10.1: a frame describes the type state at that PC and
	// every PC up to the next frame or a control-flow merge).
	RefLocalsAt map[int]bitset.Bitset
	RefStackAt  map[int]bitset.Bitset

	// NPESources maps a PC that dereferences a possibly-null reference
	// (getfield/putfield/arraylength/the array opcodes/invokevirtual
	// receiver) to a human-readable description of what was
	// dereferenced, for JEP 358-style "helpful NPE" messages.
	NPESources map[int]string
}

// Dominates reports whether the block containing pcA dominates the block
// containing pcB. Neither the rewriter nor the interpreter calls it.
func (ca *CodeAnalysis) Dominates(pcA, pcB int) bool {
	if ca == nil || ca.graph == nil {
		return false
	}
	a, okA := ca.blockOf(pcA)
	b, okB := ca.blockOf(pcB)
	if !okA || !okB {
		return false
	}
	return ca.graph.dominates(a, b)
}

func (ca *CodeAnalysis) blockOf(pc int) (int, bool) {
	for i, blk := range ca.graph.Blocks {
		if pc >= blk.Start && pc < blk.End {
			return i, true
		}
	}
	return 0, false
}

// refBitmapAt returns the reference bitmap covering pc: the most recent
// StackMapTable frame at or before pc.
func refBitmapAt(frames map[int]bitset.Bitset, orderedPCs []int, pc int) bitset.Bitset {
	best := -1
	for _, fp := range orderedPCs {
		if fp <= pc && fp > best {
			best = fp
		}
	}
	if best == -1 {
		return bitset.New(0)
	}
	return frames[best]
}

// LocalIsRef reports whether local slot is a reference at pc, per the
// most recent StackMapTable frame at or before pc. Used by the
// collector's thread-root walk to tell a reference local apart from an
// int/float/long/double one sharing the same int64 frame slot.
func (ca *CodeAnalysis) LocalIsRef(pc, slot int) bool {
	if ca == nil {
		return false
	}
	bs := refBitmapAt(ca.RefLocalsAt, ca.framePCs(), pc)
	return bs.Test(slot)
}

// StackIsRef is LocalIsRef's operand-stack analogue.
func (ca *CodeAnalysis) StackIsRef(pc, slot int) bool {
	if ca == nil {
		return false
	}
	bs := refBitmapAt(ca.RefStackAt, ca.framePCs(), pc)
	return bs.Test(slot)
}

func (ca *CodeAnalysis) framePCs() []int {
	pcs := make([]int, 0, len(ca.RefLocalsAt))
	for pc := range ca.RefLocalsAt {
		pcs = append(pcs, pc)
	}
	sortInts(pcs)
	return pcs
}

// Analyze runs the verifier over one method's already structurally-valid
// code: it decodes the StackMapTable (if present; abstract/native methods
// and pre-J2SE-6 class files without one degrade to "no reference info",
// which the collector's RootProvider then simply skips), builds the
// basic-block graph and its dominator tree, and derives the reference
// bitmaps and NPE source tags the rewriter and the collector consume.
func Analyze(code []byte, maxLocals int, smtAttr []byte, cp *CPool) (*CodeAnalysis, error) {
	leaders, nextPC, branchTargets, err := scanControlFlow(code)
	if err != nil {
		return nil, err
	}
	graph := splitBasicBlocks(leaders, nextPC, branchTargets, len(code))
	graph.computeDominators(0)

	frames, err := decodeStackMapTable(smtAttr, maxLocals)
	if err != nil {
		return nil, err
	}

	ca := &CodeAnalysis{
		graph:       graph,
		RefLocalsAt: make(map[int]bitset.Bitset, len(frames)),
		RefStackAt:  make(map[int]bitset.Bitset, len(frames)),
		NPESources:  make(map[int]string),
	}
	for _, f := range frames {
		ca.RefLocalsAt[f.PC] = typesToBitset(f.Locals, true)
		ca.RefStackAt[f.PC] = typesToBitset(f.Stack, false)
	}
	tagNPESources(code, nextPC, ca)
	return ca, nil
}

// typesToBitset marks the reference entries of ts. With wideTakesTwo set
// (locals), a long/double entry advances two slots so bit i is JVM local
// slot i; the operand stack keeps one slot per value.
func typesToBitset(ts []VType, wideTakesTwo bool) bitset.Bitset {
	n := len(ts)
	if wideTakesTwo {
		for _, t := range ts {
			if t == VLong || t == VDouble {
				n++
			}
		}
	}
	bs := bitset.New(n)
	slot := 0
	for _, t := range ts {
		if t == VRef {
			bs.Set(slot)
		}
		slot++
		if wideTakesTwo && (t == VLong || t == VDouble) {
			slot++
		}
	}
	return bs
}

// scanControlFlow walks code once to find every basic-block leader PC
// (targets of branches, plus the instruction after every branch/return),
// a PC->nextPC successor map, and a PC->target-PC list for every
// branching instruction, using the same per-opcode operand widths
// CheckCodeValidity already validated.
func scanControlFlow(code []byte) (leaders []int, nextPC map[int]int, branchTargets map[int][]int, err error) {
	nextPC = make(map[int]int)
	branchTargets = make(map[int][]int)
	leaders = []int{0}

	pc := 0
	for pc < len(code) {
		op := code[pc]
		width, targets, werr := instructionShape(code, pc)
		if werr != nil {
			return nil, nil, nil, werr
		}
		next := pc + width
		nextPC[pc] = next

		if len(targets) > 0 {
			branchTargets[pc] = targets
			leaders = append(leaders, targets...)
			if next < len(code) {
				leaders = append(leaders, next)
			}
		} else if isReturnOrThrow(op) && next < len(code) {
			leaders = append(leaders, next)
		}
		pc = next
	}
	return leaders, nextPC, branchTargets, nil
}

func isReturnOrThrow(op byte) bool {
	switch op {
	case 0xac, 0xad, 0xae, 0xaf, 0xb0, 0xb1, 0xbf: // *RETURN, ATHROW
		return true
	}
	return false
}

// instructionShape returns the byte width of the instruction at pc and,
// for a branch, the absolute PCs it can transfer control to. tableswitch
// and lookupswitch are the only variable-width instructions (padding to
// the next 4-byte boundary), matching CheckCodeValidity's own handling.
func instructionShape(code []byte, pc int) (width int, targets []int, err error) {
	op := code[pc]
	switch op {
	case 0xaa, 0xab: // tableswitch, lookupswitch
		return switchShape(code, pc, op)
	case 0xc4: // wide
		if pc+1 >= len(code) {
			return 0, nil, fmt.Errorf("verifier: truncated wide at pc %d", pc)
		}
		if code[pc+1] == 0x84 { // wide iinc
			return 6, nil, nil
		}
		return 4, nil, nil
	}

	if w, ok := fixedWidths[op]; ok {
		width = w
	} else {
		width = 1
	}
	if pc+width > len(code) {
		return 0, nil, fmt.Errorf("verifier: truncated instruction at pc %d (opcode 0x%02x)", pc, op)
	}

	switch op {
	case 0x99, 0x9a, 0x9b, 0x9c, 0x9d, 0x9e, // ifeq..ifle
		0x9f, 0xa0, 0xa1, 0xa2, 0xa3, 0xa4, // if_icmp*
		0xa5, 0xa6, // if_acmp*
		0xa7, // goto
		0xc6, 0xc7: // ifnull, ifnonnull
		offset := int(int16(uint16(code[pc+1])<<8 | uint16(code[pc+2])))
		targets = []int{pc + offset}
		if op != 0xa7 && pc+width < len(code) { // conditional: falls through when not taken
			targets = append(targets, pc+width)
		}
	case 0xc8: // goto_w
		offset := int(int32(uint32(code[pc+1])<<24 | uint32(code[pc+2])<<16 | uint32(code[pc+3])<<8 | uint32(code[pc+4])))
		targets = []int{pc + offset}
	}
	return width, targets, nil
}

func switchShape(code []byte, pc int, op byte) (int, []int, error) {
	p := pc + 1
	for p%4 != 0 {
		p++
	}
	readInt := func(at int) int32 {
		return int32(uint32(code[at])<<24 | uint32(code[at+1])<<16 | uint32(code[at+2])<<8 | uint32(code[at+3]))
	}
	defaultOff := int(readInt(p))
	targets := []int{pc + defaultOff}

	if op == 0xaa { // tableswitch
		low := readInt(p + 4)
		high := readInt(p + 8)
		n := int(high-low) + 1
		base := p + 12
		for i := 0; i < n; i++ {
			targets = append(targets, pc+int(readInt(base+4*i)))
		}
		return (base + 4*n) - pc, targets, nil
	}
	// lookupswitch
	npairs := int(readInt(p + 4))
	base := p + 8
	for i := 0; i < npairs; i++ {
		targets = append(targets, pc+int(readInt(base+8*i+4)))
	}
	return (base + 8*npairs) - pc, targets, nil
}

// fixedWidths gives the total instruction length (opcode + operands) for
// every opcode whose width doesn't depend on its operands.
var fixedWidths = map[byte]int{
	0x10: 2, 0x11: 3, 0x12: 2, 0x13: 3, 0x14: 3, // bipush, sipush, ldc, ldc_w, ldc2_w
	0x15: 2, 0x16: 2, 0x17: 2, 0x18: 2, 0x19: 2, // iload..aload
	0x36: 2, 0x37: 2, 0x38: 2, 0x39: 2, 0x3a: 2, // istore..astore
	0x84: 3,                   // iinc
	0xa9: 2,                   // ret
	0xb2: 3, 0xb3: 3, 0xb4: 3, 0xb5: 3, // getstatic..putfield
	0xb6: 3, 0xb7: 3, 0xb8: 3, // invokevirtual, invokespecial, invokestatic
	0xb9: 5,       // invokeinterface
	0xba: 5,       // invokedynamic
	0xbb: 3, 0xbd: 3, 0xc0: 3, 0xc1: 3, // new, anewarray, checkcast, instanceof
	0xbc: 2,       // newarray
	0xc5: 4,       // multianewarray
	0xc8: 5, 0xc9: 5, // goto_w, jsr_w
	0x99: 3, 0x9a: 3, 0x9b: 3, 0x9c: 3, 0x9d: 3, 0x9e: 3,
	0x9f: 3, 0xa0: 3, 0xa1: 3, 0xa2: 3, 0xa3: 3, 0xa4: 3,
	0xa5: 3, 0xa6: 3, 0xa7: 3, 0xa8: 3, 0xc6: 3, 0xc7: 3,
}

// tagNPESources records, for every field/array/invoke opcode, a
// human-readable description of the reference it dereferences — the
// information JEP 358's helpful NullPointerException messages report.
// It doesn't attempt the full "reconstruct the expression" logic bjvm's
// npe.c performs; it tags the opcode alone, which is enough for the
// interpreter to build a message like "Cannot read field \"x\" because
// the return value is null" given the resolved field/method name at
// throw time.
func tagNPESources(code []byte, nextPC map[int]int, ca *CodeAnalysis) {
	for pc := 0; pc < len(code); {
		next, ok := nextPC[pc]
		if !ok {
			break
		}
		switch code[pc] {
		case 0xb4, 0xb5: // getfield, putfield
			ca.NPESources[pc] = "field access"
		case 0x32, 0x2e, 0x2f, 0x30, 0x31, 0x33, 0x34, 0x35, // aaload, iaload.. saload
			0x53, 0x4f, 0x50, 0x51, 0x52, 0x54, 0x55, 0x56: // aastore, iastore.. sastore
			ca.NPESources[pc] = "array access"
		case 0xbe: // arraylength
			ca.NPESources[pc] = "array length"
		case 0xb6, 0xb9: // invokevirtual, invokeinterface
			ca.NPESources[pc] = "method invocation"
		case 0xc2, 0xc3: // monitorenter, monitorexit
			ca.NPESources[pc] = "monitor operation"
		}
		pc = next
	}
}

// FindAttribute returns the payload of the first attribute named name
// among attrs, or nil if none matches. Used to locate a method's Code
// attribute's StackMapTable sub-attribute ahead of calling Analyze.
func FindAttribute(cp *CPool, attrs []Attr, name string) []byte {
	for _, a := range attrs {
		if FetchUTF8stringFromCPEntryNumber(cp, uint32(a.AttrName)) == name {
			return a.AttrContent
		}
	}
	return nil
}

// --- StackMapTable decoding (JVMS 4.7.4) ---

type smtReader struct {
	buf []byte
	pos int
}

func (r *smtReader) u1() byte {
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *smtReader) u2() uint16 {
	v := uint16(r.buf[r.pos])<<8 | uint16(r.buf[r.pos+1])
	r.pos += 2
	return v
}

func (r *smtReader) u4() uint32 {
	v := uint32(r.buf[r.pos])<<24 | uint32(r.buf[r.pos+1])<<16 | uint32(r.buf[r.pos+2])<<8 | uint32(r.buf[r.pos+3])
	r.pos += 4
	return v
}

// verificationType reads one verification_type_info entry (a tag byte,
// plus a u2 for the Object/Uninitialized variants) and coarsens it to a
// VType. Object/Null/UninitializedThis/Uninitialized all collapse to
// VRef: the rewriter and the collector only need "is this slot a
// reference", not which class it's statically typed as.
func (r *smtReader) verificationType() VType {
	tag := r.u1()
	switch tag {
	case 0: // Top
		return VTop
	case 1: // Integer
		return VInt
	case 2: // Float
		return VFloat
	case 3: // Double
		return VDouble
	case 4: // Long
		return VLong
	case 5, 6: // Null, UninitializedThis
		return VRef
	case 7: // Object
		r.u2()
		return VRef
	case 8: // Uninitialized
		r.u2()
		return VRef
	}
	return VTop
}

// decodeStackMapTable expands a raw StackMapTable attribute payload
// (attr.AttrContent, sans the 6-byte attribute header already stripped by
// the parser) into absolute-PC'd frames. A nil/empty payload (no
// StackMapTable attribute present — pre-J2SE-6 code, or an
// abstract/native method) yields no frames, which is not an error: it
// just means the collector gets no reference info for that method's
// stack (gc.Run already degrades gracefully when a RootProvider has
// nothing to contribute).
func decodeStackMapTable(payload []byte, maxLocals int) ([]stackMapFrame, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	r := &smtReader{buf: payload}
	count := r.u2()

	var frames []stackMapFrame
	prevPC := -1
	locals := make([]VType, 0, maxLocals)

	for i := 0; i < int(count); i++ {
		frameType := r.u1()
		var offsetDelta int
		var stack []VType

		switch {
		case frameType <= 63: // same_frame
			offsetDelta = int(frameType)
		case frameType <= 127: // same_locals_1_stack_item_frame
			offsetDelta = int(frameType) - 64
			stack = []VType{r.verificationType()}
		case frameType == 247: // same_locals_1_stack_item_frame_extended
			offsetDelta = int(r.u2())
			stack = []VType{r.verificationType()}
		case frameType >= 248 && frameType <= 250: // chop_frame
			offsetDelta = int(r.u2())
			chop := 251 - int(frameType)
			for j := 0; j < chop && len(locals) > 0; j++ {
				locals = locals[:len(locals)-1]
			}
		case frameType == 251: // same_frame_extended
			offsetDelta = int(r.u2())
		case frameType >= 252 && frameType <= 254: // append_frame
			offsetDelta = int(r.u2())
			n := int(frameType) - 251
			for j := 0; j < n; j++ {
				locals = append(locals, r.verificationType())
			}
		case frameType == 255: // full_frame
			offsetDelta = int(r.u2())
			nLocals := int(r.u2())
			locals = make([]VType, 0, nLocals)
			for j := 0; j < nLocals; j++ {
				locals = append(locals, r.verificationType())
			}
			nStack := int(r.u2())
			for j := 0; j < nStack; j++ {
				stack = append(stack, r.verificationType())
			}
		default:
			return nil, fmt.Errorf("verifier: invalid StackMapTable frame type %d", frameType)
		}

		pc := offsetDelta
		if prevPC >= 0 {
			pc = prevPC + offsetDelta + 1
		}
		prevPC = pc

		frames = append(frames, stackMapFrame{
			PC:     pc,
			Locals: append([]VType(nil), locals...),
			Stack:  stack,
		})
	}
	return frames, nil
}
