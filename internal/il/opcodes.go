package il

import (
	"strconv"
	"strings"
)

// Code identifies an instruction opcode. Values are stable: they are part of
// the module file format and of marker arguments that name opcodes.
type Code uint16

// OperandKind describes the shape of an instruction operand.
type OperandKind uint8

const (
	// OperandNone marks opcodes without an operand.
	OperandNone OperandKind = iota
	// OperandInt32 is a 32-bit integer literal (also used for short forms).
	OperandInt32
	// OperandInt64 is a 64-bit integer literal.
	OperandInt64
	// OperandFloat32 is a 32-bit float literal.
	OperandFloat32
	// OperandFloat64 is a 64-bit float literal.
	OperandFloat64
	// OperandString is a string literal.
	OperandString
	// OperandBranch is a single branch target (*Instr).
	OperandBranch
	// OperandSwitch is a jump table ([]*Instr).
	OperandSwitch
	// OperandMethod is a method reference (Ref).
	OperandMethod
	// OperandField is a field reference (Ref).
	OperandField
	// OperandType is a type token (Ref).
	OperandType
	// OperandVar is a local or argument index.
	OperandVar
)

// FlowControl classifies how an opcode affects control flow.
type FlowControl uint8

const (
	FlowNext FlowControl = iota
	FlowBranch
	FlowCondBranch
	FlowCall
	FlowReturn
	FlowThrow
)

// OpCode describes one opcode: its code, mnemonic, operand shape and flow.
type OpCode struct {
	Code    Code
	Name    string
	Operand OperandKind
	Flow    FlowControl
}

// String returns the opcode mnemonic.
func (op OpCode) String() string {
	return op.Name
}

// IsValid reports whether op is a known opcode.
func (op OpCode) IsValid() bool {
	_, ok := byCode[op.Code]
	return ok && op.Name != ""
}

// Opcode codes.
const (
	CodeNop Code = iota + 1
	CodeBreak
	CodeLdarg0
	CodeLdarg1
	CodeLdarg2
	CodeLdarg3
	CodeLdloc0
	CodeLdloc1
	CodeLdloc2
	CodeLdloc3
	CodeStloc0
	CodeStloc1
	CodeStloc2
	CodeStloc3
	CodeLdarg
	CodeStarg
	CodeLdloc
	CodeStloc
	CodeLdnull
	CodeLdcI4M1
	CodeLdcI40
	CodeLdcI41
	CodeLdcI42
	CodeLdcI43
	CodeLdcI44
	CodeLdcI45
	CodeLdcI46
	CodeLdcI47
	CodeLdcI48
	CodeLdcI4
	CodeLdcI8
	CodeLdcR4
	CodeLdcR8
	CodeDup
	CodePop
	CodeCall
	CodeCallvirt
	CodeRet
	CodeBr
	CodeBrfalse
	CodeBrtrue
	CodeBeq
	CodeBge
	CodeBgt
	CodeBle
	CodeBlt
	CodeBneUn
	CodeSwitch
	CodeAdd
	CodeSub
	CodeMul
	CodeDiv
	CodeRem
	CodeAnd
	CodeOr
	CodeXor
	CodeShl
	CodeShr
	CodeNeg
	CodeNot
	CodeCeq
	CodeCgt
	CodeClt
	CodeLdstr
	CodeNewobj
	CodeLdfld
	CodeStfld
	CodeLdsfld
	CodeStsfld
	CodeBox
	CodeUnbox
	CodeCastclass
	CodeIsinst
	CodeThrow
	CodeRethrow
	CodeLeave
	CodeEndfinally
	CodeLdtoken
)

var table = []OpCode{
	{CodeNop, "nop", OperandNone, FlowNext},
	{CodeBreak, "break", OperandNone, FlowNext},
	{CodeLdarg0, "ldarg.0", OperandNone, FlowNext},
	{CodeLdarg1, "ldarg.1", OperandNone, FlowNext},
	{CodeLdarg2, "ldarg.2", OperandNone, FlowNext},
	{CodeLdarg3, "ldarg.3", OperandNone, FlowNext},
	{CodeLdloc0, "ldloc.0", OperandNone, FlowNext},
	{CodeLdloc1, "ldloc.1", OperandNone, FlowNext},
	{CodeLdloc2, "ldloc.2", OperandNone, FlowNext},
	{CodeLdloc3, "ldloc.3", OperandNone, FlowNext},
	{CodeStloc0, "stloc.0", OperandNone, FlowNext},
	{CodeStloc1, "stloc.1", OperandNone, FlowNext},
	{CodeStloc2, "stloc.2", OperandNone, FlowNext},
	{CodeStloc3, "stloc.3", OperandNone, FlowNext},
	{CodeLdarg, "ldarg", OperandVar, FlowNext},
	{CodeStarg, "starg", OperandVar, FlowNext},
	{CodeLdloc, "ldloc", OperandVar, FlowNext},
	{CodeStloc, "stloc", OperandVar, FlowNext},
	{CodeLdnull, "ldnull", OperandNone, FlowNext},
	{CodeLdcI4M1, "ldc.i4.m1", OperandNone, FlowNext},
	{CodeLdcI40, "ldc.i4.0", OperandNone, FlowNext},
	{CodeLdcI41, "ldc.i4.1", OperandNone, FlowNext},
	{CodeLdcI42, "ldc.i4.2", OperandNone, FlowNext},
	{CodeLdcI43, "ldc.i4.3", OperandNone, FlowNext},
	{CodeLdcI44, "ldc.i4.4", OperandNone, FlowNext},
	{CodeLdcI45, "ldc.i4.5", OperandNone, FlowNext},
	{CodeLdcI46, "ldc.i4.6", OperandNone, FlowNext},
	{CodeLdcI47, "ldc.i4.7", OperandNone, FlowNext},
	{CodeLdcI48, "ldc.i4.8", OperandNone, FlowNext},
	{CodeLdcI4, "ldc.i4", OperandInt32, FlowNext},
	{CodeLdcI8, "ldc.i8", OperandInt64, FlowNext},
	{CodeLdcR4, "ldc.r4", OperandFloat32, FlowNext},
	{CodeLdcR8, "ldc.r8", OperandFloat64, FlowNext},
	{CodeDup, "dup", OperandNone, FlowNext},
	{CodePop, "pop", OperandNone, FlowNext},
	{CodeCall, "call", OperandMethod, FlowCall},
	{CodeCallvirt, "callvirt", OperandMethod, FlowCall},
	{CodeRet, "ret", OperandNone, FlowReturn},
	{CodeBr, "br", OperandBranch, FlowBranch},
	{CodeBrfalse, "brfalse", OperandBranch, FlowCondBranch},
	{CodeBrtrue, "brtrue", OperandBranch, FlowCondBranch},
	{CodeBeq, "beq", OperandBranch, FlowCondBranch},
	{CodeBge, "bge", OperandBranch, FlowCondBranch},
	{CodeBgt, "bgt", OperandBranch, FlowCondBranch},
	{CodeBle, "ble", OperandBranch, FlowCondBranch},
	{CodeBlt, "blt", OperandBranch, FlowCondBranch},
	{CodeBneUn, "bne.un", OperandBranch, FlowCondBranch},
	{CodeSwitch, "switch", OperandSwitch, FlowCondBranch},
	{CodeAdd, "add", OperandNone, FlowNext},
	{CodeSub, "sub", OperandNone, FlowNext},
	{CodeMul, "mul", OperandNone, FlowNext},
	{CodeDiv, "div", OperandNone, FlowNext},
	{CodeRem, "rem", OperandNone, FlowNext},
	{CodeAnd, "and", OperandNone, FlowNext},
	{CodeOr, "or", OperandNone, FlowNext},
	{CodeXor, "xor", OperandNone, FlowNext},
	{CodeShl, "shl", OperandNone, FlowNext},
	{CodeShr, "shr", OperandNone, FlowNext},
	{CodeNeg, "neg", OperandNone, FlowNext},
	{CodeNot, "not", OperandNone, FlowNext},
	{CodeCeq, "ceq", OperandNone, FlowNext},
	{CodeCgt, "cgt", OperandNone, FlowNext},
	{CodeClt, "clt", OperandNone, FlowNext},
	{CodeLdstr, "ldstr", OperandString, FlowNext},
	{CodeNewobj, "newobj", OperandMethod, FlowCall},
	{CodeLdfld, "ldfld", OperandField, FlowNext},
	{CodeStfld, "stfld", OperandField, FlowNext},
	{CodeLdsfld, "ldsfld", OperandField, FlowNext},
	{CodeStsfld, "stsfld", OperandField, FlowNext},
	{CodeBox, "box", OperandType, FlowNext},
	{CodeUnbox, "unbox", OperandType, FlowNext},
	{CodeCastclass, "castclass", OperandType, FlowNext},
	{CodeIsinst, "isinst", OperandType, FlowNext},
	{CodeThrow, "throw", OperandNone, FlowThrow},
	{CodeRethrow, "rethrow", OperandNone, FlowThrow},
	{CodeLeave, "leave", OperandBranch, FlowBranch},
	{CodeEndfinally, "endfinally", OperandNone, FlowReturn},
	{CodeLdtoken, "ldtoken", OperandType, FlowNext},
}

var (
	byCode = make(map[Code]OpCode, len(table))
	byName = make(map[string]OpCode, len(table)*2)
)

func init() {
	for _, op := range table {
		byCode[op.Code] = op
		byName[op.Name] = op
		// Field-style spelling (Ldc_I4_1) used by marker arguments.
		byName[strings.ToLower(strings.ReplaceAll(op.Name, ".", "_"))] = op
	}
}

// Op returns the opcode for code. The second result is false for unknown codes.
func Op(code Code) (OpCode, bool) {
	op, ok := byCode[code]
	return op, ok
}

// MustOp is like Op but panics on unknown codes. Intended for package-level tables.
func MustOp(code Code) OpCode {
	op, ok := byCode[code]
	if !ok {
		panic("il: unknown opcode " + code.String())
	}
	return op
}

// Lookup resolves a mnemonic ("ldc.i4.1") or its field spelling ("Ldc_I4_1").
func Lookup(name string) (OpCode, bool) {
	op, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

// String returns the mnemonic of the code, or a numeric placeholder.
func (c Code) String() string {
	if op, ok := byCode[c]; ok {
		return op.Name
	}
	return "op#" + strconv.Itoa(int(c))
}

// OpCodes returns every known opcode in code order.
func OpCodes() []OpCode {
	return append([]OpCode(nil), table...)
}
