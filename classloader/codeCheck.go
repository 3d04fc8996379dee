/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Bytecode validity checking: a lightweight, single-pass scan over a
// method's Code attribute that a full stack-map-based verifier doesn't
// replace but precedes — it catches truncated operands, branch targets
// outside the code array, and constant-pool operands pointing at the
// wrong kind of entry, the same class of defect original_source/vm's
// bytecode analyzer rejects before it ever builds a control-flow graph.
// Unlike formatCheck.go, this operates on the already-postable CPool/
// CpEntry shapes (Klass.Data.CP), since it runs once a class has reached
// the format-checked stage and Code attributes have been unpacked into
// their runtime form.
package classloader

import (
	"fmt"

	"vesper/opcodes"
)

// Package-level scan state. CheckCodeValidity resets all of these before
// walking a method's code; the per-opcode Check* functions read and
// mutate them directly rather than threading five parameters through
// every call — mirroring how the original analyzer carries its cursor
// and bytecode buffer in one shared context rather than passing it
// explicitly to every instruction handler.
var (
	Code         []byte
	PC           int
	PrevPC       int
	StackEntries int
	CP           *CPool
)

// Return1 through Return5 are the fixed-length instruction sizes most
// opcodes reduce to (as the consumed byte count of a single-argument
// instruction, itself included) — broken out as named functions because
// several of them are exercised directly by tests independent of any one
// opcode.
func Return1() int { return 1 }
func Return2() int { return 2 }
func Return3() int { return 3 }
func Return4() int { return 4 }
func Return5() int { return 5 }

// BytecodeIsForLongOrDouble reports whether code pushes, produces, or
// operates on a category-2 (long/double) value — used by CheckDup2 to
// decide whether a dup2 is really duplicating one 8-byte value (and so
// behaves like a plain dup) or two 4-byte values.
func BytecodeIsForLongOrDouble(code byte) bool {
	switch code {
	case opcodes.LCONST_0, opcodes.LCONST_1, opcodes.DCONST_0, opcodes.DCONST_1,
		opcodes.LDC2_W,
		opcodes.LLOAD, opcodes.LLOAD_0, opcodes.LLOAD_1, opcodes.LLOAD_2, opcodes.LLOAD_3,
		opcodes.DLOAD, opcodes.DLOAD_0, opcodes.DLOAD_1, opcodes.DLOAD_2, opcodes.DLOAD_3,
		opcodes.LALOAD, opcodes.DALOAD,
		opcodes.LADD, opcodes.LSUB, opcodes.LMUL, opcodes.LDIV, opcodes.LREM, opcodes.LNEG,
		opcodes.LSHL, opcodes.LSHR, opcodes.LUSHR, opcodes.LAND, opcodes.LOR, opcodes.LXOR,
		opcodes.DADD, opcodes.DSUB, opcodes.DMUL, opcodes.DDIV, opcodes.DREM, opcodes.DNEG,
		opcodes.I2L, opcodes.I2D, opcodes.F2L, opcodes.F2D, opcodes.L2D, opcodes.D2L:
		return true
	}
	return false
}

// CheckCodeValidity scans every instruction in *codePtr once, verifying
// each opcode's operands are present, in range, and — where the operand
// is a constant-pool index — resolve to the kind of entry that opcode
// requires. af.ClassIsAbstract lets an abstract/native method legally
// carry no Code attribute at all.
func CheckCodeValidity(codePtr *[]byte, cp *CPool, maxStack int, af AccessFlags) error {
	if codePtr == nil {
		return cfe("ptr to code segment is nil")
	}
	code := *codePtr
	if len(code) == 0 {
		if af.ClassIsAbstract {
			return nil
		}
		return cfe("Empty code segment in non-abstract, non-native method")
	}
	if cp == nil {
		return cfe("ptr to constant pool is nil")
	}
	if len(cp.CpIndex) == 0 {
		return cfe("empty constant pool")
	}

	Code = code
	CP = cp
	PC = 0
	PrevPC = 0
	StackEntries = 0

	for PC < len(Code) {
		op := Code[PC]
		prevPC := PC
		n := dispatchOpcode(op)
		if n <= 0 {
			return cfe(fmt.Sprintf("Invalid bytecode or argument at pc %d (opcode 0x%02X)", PC, op))
		}
		PrevPC = prevPC
		PC += n
	}
	return nil
}

// dispatchOpcode checks and consumes the single instruction at PC,
// returning its total length (opcode byte included) or 0/negative if the
// instruction is truncated or semantically invalid.
func dispatchOpcode(op byte) int {
	switch op {
	case opcodes.NOP, opcodes.RETURN, opcodes.IRETURN, opcodes.LRETURN, opcodes.FRETURN,
		opcodes.DRETURN, opcodes.ARETURN,
		opcodes.ICONST_M1, opcodes.ICONST_0, opcodes.ICONST_1, opcodes.ICONST_2,
		opcodes.ICONST_3, opcodes.ICONST_4, opcodes.ICONST_5,
		opcodes.LCONST_0, opcodes.LCONST_1, opcodes.DCONST_0, opcodes.DCONST_1,
		opcodes.FCONST_0, opcodes.FCONST_1, opcodes.FCONST_2,
		opcodes.ILOAD_0, opcodes.ILOAD_1, opcodes.ILOAD_2, opcodes.ILOAD_3,
		opcodes.LLOAD_0, opcodes.LLOAD_1, opcodes.LLOAD_2, opcodes.LLOAD_3,
		opcodes.FLOAD_0, opcodes.FLOAD_1, opcodes.FLOAD_2, opcodes.FLOAD_3,
		opcodes.DLOAD_0, opcodes.DLOAD_1, opcodes.DLOAD_2, opcodes.DLOAD_3,
		opcodes.ALOAD_0, opcodes.ALOAD_1, opcodes.ALOAD_2, opcodes.ALOAD_3,
		opcodes.ISTORE_0, opcodes.ISTORE_1, opcodes.ISTORE_2, opcodes.ISTORE_3,
		opcodes.LSTORE_0, opcodes.LSTORE_1, opcodes.LSTORE_2, opcodes.LSTORE_3,
		opcodes.FSTORE_0, opcodes.FSTORE_1, opcodes.FSTORE_2, opcodes.FSTORE_3,
		opcodes.DSTORE_0, opcodes.DSTORE_1, opcodes.DSTORE_2, opcodes.DSTORE_3,
		opcodes.ASTORE_0, opcodes.ASTORE_1, opcodes.ASTORE_2, opcodes.ASTORE_3,
		opcodes.IALOAD, opcodes.LALOAD, opcodes.FALOAD, opcodes.DALOAD, opcodes.AALOAD,
		opcodes.BALOAD, opcodes.CALOAD, opcodes.SALOAD,
		opcodes.IASTORE, opcodes.LASTORE, opcodes.FASTORE, opcodes.DASTORE, opcodes.AASTORE,
		opcodes.BASTORE, opcodes.CASTORE, opcodes.SASTORE,
		opcodes.IADD, opcodes.LADD, opcodes.FADD, opcodes.DADD,
		opcodes.ISUB, opcodes.LSUB, opcodes.FSUB, opcodes.DSUB,
		opcodes.IMUL, opcodes.LMUL, opcodes.FMUL, opcodes.DMUL,
		opcodes.IDIV, opcodes.LDIV, opcodes.FDIV, opcodes.DDIV,
		opcodes.IREM, opcodes.LREM, opcodes.FREM, opcodes.DREM,
		opcodes.INEG, opcodes.LNEG, opcodes.FNEG, opcodes.DNEG,
		opcodes.ISHL, opcodes.LSHL, opcodes.ISHR, opcodes.LSHR, opcodes.IUSHR, opcodes.LUSHR,
		opcodes.IAND, opcodes.LAND, opcodes.IOR, opcodes.LOR, opcodes.IXOR, opcodes.LXOR,
		opcodes.I2L, opcodes.I2F, opcodes.I2D, opcodes.L2I, opcodes.L2F, opcodes.L2D,
		opcodes.F2I, opcodes.F2L, opcodes.F2D, opcodes.D2I, opcodes.D2L, opcodes.D2F,
		opcodes.I2B, opcodes.I2C, opcodes.I2S,
		opcodes.LCMP, opcodes.FCMPL, opcodes.FCMPG, opcodes.DCMPL, opcodes.DCMPG,
		opcodes.ARRAYLENGTH, opcodes.ATHROW, opcodes.MONITORENTER, opcodes.MONITOREXIT,
		opcodes.SWAP:
		return Return1()

	case opcodes.ACONST_NULL:
		return CheckAconstnull()

	case opcodes.DUP, opcodes.DUP_X1, opcodes.DUP_X2:
		return CheckDup1()

	case opcodes.DUP2, opcodes.DUP2_X1, opcodes.DUP2_X2:
		return CheckDup2()

	case opcodes.POP:
		return CheckPop()

	case opcodes.POP2:
		return CheckPop2()

	case opcodes.BIPUSH:
		return CheckBipush()

	case opcodes.SIPUSH:
		return CheckSipush()

	case opcodes.ILOAD, opcodes.LLOAD, opcodes.FLOAD, opcodes.DLOAD, opcodes.ALOAD,
		opcodes.ISTORE, opcodes.LSTORE, opcodes.FSTORE, opcodes.DSTORE, opcodes.ASTORE,
		opcodes.RET:
		if PC+1 >= len(Code) {
			return 0
		}
		return Return2()

	case opcodes.LDC:
		return checkLdc()

	case opcodes.LDC_W, opcodes.LDC2_W:
		return checkLdcw()

	case opcodes.IINC:
		if PC+2 >= len(Code) {
			return 0
		}
		return Return3()

	case opcodes.GETFIELD:
		return CheckGetfield()

	case opcodes.PUTFIELD:
		return checkFieldRefOp("PUTFIELD")

	case opcodes.GETSTATIC:
		return checkFieldRefOp("GETSTATIC")

	case opcodes.PUTSTATIC:
		return checkFieldRefOp("PUTSTATIC")

	case opcodes.INVOKEVIRTUAL:
		return checkMethodRefOp("INVOKEVIRTUAL")

	case opcodes.INVOKESPECIAL:
		return checkMethodRefOp("INVOKESPECIAL")

	case opcodes.INVOKESTATIC:
		return checkMethodRefOp("INVOKESTATIC")

	case opcodes.INVOKEINTERFACE:
		return CheckInvokeinterface()

	case opcodes.INVOKEDYNAMIC:
		return checkInvokedynamic()

	case opcodes.NEW, opcodes.ANEWARRAY, opcodes.CHECKCAST, opcodes.INSTANCEOF:
		return checkClassRefOp(opcodeName(op))

	case opcodes.NEWARRAY:
		if PC+1 >= len(Code) {
			return 0
		}
		return Return2()

	case opcodes.MULTIANEWARRAY:
		return CheckMultianewarray()

	case opcodes.GOTO:
		return checkGoto()

	case opcodes.GOTO_W:
		return checkGotow()

	case opcodes.JSR:
		return checkGoto()

	case opcodes.JSR_W:
		return checkGotow()

	case opcodes.IFEQ, opcodes.IFNE, opcodes.IFLT, opcodes.IFGE, opcodes.IFGT, opcodes.IFLE,
		opcodes.IF_ICMPEQ, opcodes.IF_ICMPNE, opcodes.IF_ICMPLT, opcodes.IF_ICMPGE,
		opcodes.IF_ICMPGT, opcodes.IF_ICMPLE, opcodes.IF_ACMPEQ, opcodes.IF_ACMPNE,
		opcodes.IFNULL, opcodes.IFNONNULL:
		return checkGoto()

	case opcodes.TABLESWITCH:
		return checkTableswitch()

	case opcodes.LOOKUPSWITCH:
		return checkLookupswitch()

	case opcodes.WIDE:
		return checkWide()
	}

	return 0
}

func opcodeName(op byte) string {
	switch op {
	case opcodes.NEW:
		return "NEW"
	case opcodes.ANEWARRAY:
		return "ANEWARRAY"
	case opcodes.CHECKCAST:
		return "CHECKCAST"
	case opcodes.INSTANCEOF:
		return "INSTANCEOF"
	}
	return "opcode"
}

// CheckAconstnull pushes a null reference.
func CheckAconstnull() int {
	StackEntries++
	return Return1()
}

// CheckDup1 duplicates the top single-width stack entry.
func CheckDup1() int {
	StackEntries++
	return Return1()
}

// CheckDup2 duplicates either the top two single-width entries or, if
// the instruction immediately following is one that produces a
// category-2 value, rewrites itself to a plain DUP since duplicating a
// single 8-byte value needs no width-2 handling at the interpreter.
func CheckDup2() int {
	if PC+1 < len(Code) && BytecodeIsForLongOrDouble(Code[PC+1]) {
		StackEntries++
		Code[PC] = opcodes.DUP
	} else {
		StackEntries += 2
	}
	return Return1()
}

// CheckPop discards the top single-width stack entry.
func CheckPop() int {
	StackEntries--
	return Return1()
}

// CheckPop2 discards the top two single-width entries (or one
// category-2 entry).
func CheckPop2() int {
	StackEntries -= 2
	return Return1()
}

// CheckBipush validates the one-byte immediate operand is present.
func CheckBipush() int {
	if PC+1 >= len(Code) {
		return 0
	}
	StackEntries++
	return Return2()
}

// CheckSipush validates the two-byte immediate operand is present.
func CheckSipush() int {
	if PC+2 >= len(Code) {
		return 0
	}
	StackEntries++
	return Return3()
}

func checkLdc() int {
	if PC+1 >= len(Code) {
		return 0
	}
	StackEntries++
	return Return2()
}

func checkLdcw() int {
	if PC+2 >= len(Code) {
		return 0
	}
	StackEntries++
	return Return3()
}

// readU16 reads a big-endian two-byte constant-pool index starting at
// pos (the first operand byte of most CP-referencing instructions).
func readU16(b []byte, pos int) int {
	return int(b[pos])<<8 | int(b[pos+1])
}

// requireCPType validates that idx names a CP entry of the given type,
// emitting a java.lang.VerifyError-style diagnostic (via cfe, so it's
// captured the same way every other format/verify error is) when it
// doesn't.
func requireCPType(idx int, want int, whatWrong string) bool {
	if CP == nil || idx < 0 || idx >= len(CP.CpIndex) || CP.CpIndex[idx].Type != uint16(want) {
		_ = cfe("java.lang.VerifyError: " + whatWrong)
		return false
	}
	return true
}

// CheckGetfield validates GETFIELD's operand resolves to a field
// reference.
func CheckGetfield() int {
	if PC+2 >= len(Code) {
		return 0
	}
	idx := readU16(Code, PC+1)
	if !requireCPType(idx, FieldRef, "GETFIELD operand is not a field reference") {
		return 0
	}
	return Return3()
}

func checkFieldRefOp(mnemonic string) int {
	if PC+2 >= len(Code) {
		return 0
	}
	idx := readU16(Code, PC+1)
	if !requireCPType(idx, FieldRef, mnemonic+" operand is not a field reference") {
		return 0
	}
	return Return3()
}

func checkMethodRefOp(mnemonic string) int {
	if PC+2 >= len(Code) {
		return 0
	}
	idx := readU16(Code, PC+1)
	if !requireCPType(idx, MethodRef, mnemonic+" operand is not a method reference") {
		return 0
	}
	return Return3()
}

func checkClassRefOp(mnemonic string) int {
	if PC+2 >= len(Code) {
		return 0
	}
	idx := readU16(Code, PC+1)
	if !requireCPType(idx, ClassRef, mnemonic+" operand is not a class reference") {
		return 0
	}
	return Return3()
}

func checkInvokedynamic() int {
	if PC+4 >= len(Code) {
		return 0
	}
	idx := readU16(Code, PC+1)
	if !requireCPType(idx, InvokeDynamic, "INVOKEDYNAMIC operand is not an invokedynamic reference") {
		return 0
	}
	if Code[PC+3] != 0 || Code[PC+4] != 0 {
		_ = cfe("java.lang.VerifyError: INVOKEDYNAMIC's two reserved bytes must be zero")
		return 0
	}
	return Return5()
}

// CheckInvokeinterface validates the CP operand is an interface method
// reference, the count byte is non-zero, and the trailing reserved byte
// is zero (JVMS 6.5.invokeinterface).
func CheckInvokeinterface() int {
	if PC+4 >= len(Code) {
		return 0
	}
	idx := readU16(Code, PC+1)
	if !requireCPType(idx, Interface, "INVOKEINTERFACE operand is not an interface method reference") {
		return 0
	}
	if Code[PC+3] == 0 {
		_ = cfe("java.lang.VerifyError: INVOKEINTERFACE count byte must not be zero")
		return 0
	}
	if Code[PC+4] != 0 {
		_ = cfe("java.lang.VerifyError: INVOKEINTERFACE fourth operand byte must be zero")
		return 0
	}
	return Return4()
}

// CheckMultianewarray validates the CP operand is a class reference and
// the dimension count is at least 1.
func CheckMultianewarray() int {
	if PC+3 >= len(Code) {
		return 0
	}
	idx := readU16(Code, PC+1)
	if !requireCPType(idx, ClassRef, "MULTIANEWARRAY operand is not a class reference") {
		return 0
	}
	if Code[PC+3] == 0 {
		_ = cfe("java.lang.VerifyError: MULTIANEWARRAY dimensions must be greater than zero")
		return 0
	}
	return Return4()
}

// checkGoto validates a two-byte branch offset (used by GOTO, JSR, and
// every IF* comparison opcode) lands within the code array.
func checkGoto() int {
	if PC+2 >= len(Code) {
		return 0
	}
	offset := int(int16(uint16(Code[PC+1])<<8 | uint16(Code[PC+2])))
	target := PC + offset
	if target < 0 || target >= len(Code) {
		_ = cfe("java.lang.VerifyError: branch target is out of bounds")
		return 0
	}
	return Return3()
}

// checkGotow validates a four-byte branch offset (GOTO_W, JSR_W).
func checkGotow() int {
	if PC+4 >= len(Code) {
		return 0
	}
	offset := int(readInt32(Code, PC+1))
	target := PC + offset
	if target < 0 || target >= len(Code) {
		_ = cfe("java.lang.VerifyError: branch target is out of bounds")
		return 0
	}
	return Return5()
}

func readInt32(b []byte, i int) int32 {
	return int32(uint32(b[i])<<24 | uint32(b[i+1])<<16 | uint32(b[i+2])<<8 | uint32(b[i+3]))
}

// checkTableswitch validates a TABLESWITCH instruction's padding, range,
// and jump-table length, returning the instruction's total size.
func checkTableswitch() int {
	start := PC
	pos := PC + 1
	padding := (4 - pos%4) % 4
	pos += padding
	if pos+12 > len(Code) {
		return 0
	}
	low := readInt32(Code, pos+4)
	high := readInt32(Code, pos+8)
	pos += 12
	if low > high {
		_ = cfe("java.lang.VerifyError: TABLESWITCH low value exceeds high value")
		return 0
	}
	count := int(high-low) + 1
	need := pos + count*4
	if need > len(Code) {
		return 0
	}
	return need - start
}

// checkLookupswitch validates a LOOKUPSWITCH instruction's padding and
// match-offset pair count, returning the instruction's total size.
func checkLookupswitch() int {
	start := PC
	pos := PC + 1
	padding := (4 - pos%4) % 4
	pos += padding
	if pos+8 > len(Code) {
		return 0
	}
	npairs := readInt32(Code, pos+4)
	pos += 8
	if npairs < 0 {
		_ = cfe("java.lang.VerifyError: LOOKUPSWITCH npairs must not be negative")
		return 0
	}
	need := pos + int(npairs)*8
	if need > len(Code) {
		return 0
	}
	return need - start
}

// checkWide handles the WIDE prefix, which widens the following
// instruction's local-variable index (and, for IINC, its constant) from
// one byte to two.
func checkWide() int {
	if PC+1 >= len(Code) {
		return 0
	}
	modified := Code[PC+1]
	if modified == opcodes.IINC {
		if PC+5 >= len(Code) {
			return 0
		}
		return 6
	}
	if PC+3 >= len(Code) {
		return 0
	}
	return 4
}
