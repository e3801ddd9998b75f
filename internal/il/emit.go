package il

import (
	"fmt"
	"math"
)

// Create builds an instruction from a code and operand. Unknown codes yield an
// instruction that every editing operation rejects with ErrMalformed.
func Create(code Code, operand any) *Instr {
	op, _ := Op(code)
	return &Instr{OpCode: op, Operand: operand}
}

func Nop() *Instr    { return Create(CodeNop, nil) }
func Ret() *Instr    { return Create(CodeRet, nil) }
func Dup() *Instr    { return Create(CodeDup, nil) }
func Pop() *Instr    { return Create(CodePop, nil) }
func Ldnull() *Instr { return Create(CodeLdnull, nil) }
func Throw() *Instr  { return Create(CodeThrow, nil) }

func Ldstr(s string) *Instr { return Create(CodeLdstr, s) }

// LdcI4 loads a 32-bit constant, picking the short form when one exists.
func LdcI4(v int32) *Instr {
	switch {
	case v == -1:
		return Create(CodeLdcI4M1, nil)
	case v >= 0 && v <= 8:
		return Create(CodeLdcI40+Code(v), nil)
	}
	return Create(CodeLdcI4, v)
}

func LdcI8(v int64) *Instr   { return Create(CodeLdcI8, v) }
func LdcR4(v float32) *Instr { return Create(CodeLdcR4, v) }
func LdcR8(v float64) *Instr { return Create(CodeLdcR8, v) }

// Ldarg loads argument n, using ldarg.0-3 when possible.
func Ldarg(n int) *Instr {
	if n >= 0 && n <= 3 {
		return Create(CodeLdarg0+Code(n), nil)
	}
	return Create(CodeLdarg, n)
}

func Call(m Ref) *Instr     { return Create(CodeCall, m) }
func Callvirt(m Ref) *Instr { return Create(CodeCallvirt, m) }
func Newobj(m Ref) *Instr   { return Create(CodeNewobj, m) }

func Br(target *Instr) *Instr      { return Create(CodeBr, target) }
func Brtrue(target *Instr) *Instr  { return Create(CodeBrtrue, target) }
func Brfalse(target *Instr) *Instr { return Create(CodeBrfalse, target) }

// Load returns the instruction that pushes a literal value. Supported values
// are nil, bool, strings, integers and floats; everything else is an error.
func Load(v any) (*Instr, error) {
	switch x := v.(type) {
	case nil:
		return Ldnull(), nil
	case string:
		return Ldstr(x), nil
	case bool:
		if x {
			return LdcI4(1), nil
		}
		return LdcI4(0), nil
	case int8:
		return LdcI4(int32(x)), nil
	case int16:
		return LdcI4(int32(x)), nil
	case int32:
		return LdcI4(x), nil
	case uint8:
		return LdcI4(int32(x)), nil
	case uint16:
		return LdcI4(int32(x)), nil
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return LdcI4(int32(x)), nil
		}
		return LdcI8(int64(x)), nil
	case int64:
		return LdcI8(x), nil
	case uint32:
		return LdcI4(int32(x)), nil
	case float32:
		return LdcR4(x), nil
	case float64:
		return LdcR8(x), nil
	}
	return nil, fmt.Errorf("%w: cannot load %T", ErrMalformed, v)
}
