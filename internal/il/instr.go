package il

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind tells which kind of member a Ref points to.
type RefKind uint8

const (
	RefType RefKind = iota
	RefMethod
	RefField
)

// Ref is a symbolic reference to a type, method or field used as an
// instruction operand. Scope names the module that declares Type; an empty
// scope means the module that owns the instruction.
type Ref struct {
	Kind   RefKind
	Scope  string
	Type   string
	Name   string
	Params []string
	Result string
}

// String renders the reference the way disassemblers print it.
func (r Ref) String() string {
	var b strings.Builder
	if r.Scope != "" {
		b.WriteString("[")
		b.WriteString(r.Scope)
		b.WriteString("]")
	}
	b.WriteString(r.Type)
	if r.Kind == RefType {
		return b.String()
	}
	b.WriteString("::")
	b.WriteString(r.Name)
	if r.Kind == RefMethod {
		b.WriteString("(")
		b.WriteString(strings.Join(r.Params, ","))
		b.WriteString(")")
		if r.Result != "" {
			b.WriteString(" ")
			b.WriteString(r.Result)
		}
	}
	return b.String()
}

// Instr is a single instruction. Branch operands hold the target instruction
// itself so that edits elsewhere in the body do not invalidate them.
type Instr struct {
	OpCode  OpCode
	Operand any
}

// Is reports whether the instruction has the given opcode.
func (in *Instr) Is(code Code) bool {
	return in != nil && in.OpCode.Code == code
}

// String renders the instruction without offsets.
func (in *Instr) String() string {
	if in == nil {
		return "<nil>"
	}
	if in.Operand == nil {
		return in.OpCode.Name
	}
	return in.OpCode.Name + " " + formatOperand(in.Operand, nil)
}

func formatOperand(operand any, index func(*Instr) int) string {
	switch v := operand.(type) {
	case string:
		return strconv.Quote(v)
	case *Instr:
		if index != nil {
			if i := index(v); i >= 0 {
				return label(i)
			}
			return "<dangling>"
		}
		return "-> " + v.OpCode.Name
	case []*Instr:
		parts := make([]string, len(v))
		for i, t := range v {
			parts[i] = formatOperand(t, index)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case Ref:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func label(i int) string {
	return fmt.Sprintf("IL_%04d", i)
}

// validate checks that the instruction is well formed for its opcode.
func (in *Instr) validate() error {
	if in == nil {
		return fmt.Errorf("%w: nil instruction", ErrMalformed)
	}
	if !in.OpCode.IsValid() {
		return fmt.Errorf("%w: unknown opcode %d", ErrMalformed, in.OpCode.Code)
	}
	switch in.OpCode.Operand {
	case OperandNone:
		if in.Operand != nil {
			return fmt.Errorf("%w: %s takes no operand", ErrMalformed, in.OpCode.Name)
		}
	case OperandBranch:
		if t, ok := in.Operand.(*Instr); !ok || t == nil {
			return fmt.Errorf("%w: %s needs a branch target", ErrMalformed, in.OpCode.Name)
		}
	case OperandSwitch:
		if _, ok := in.Operand.([]*Instr); !ok {
			return fmt.Errorf("%w: %s needs a jump table", ErrMalformed, in.OpCode.Name)
		}
	case OperandString:
		if _, ok := in.Operand.(string); !ok {
			return fmt.Errorf("%w: %s needs a string", ErrMalformed, in.OpCode.Name)
		}
	case OperandMethod, OperandField, OperandType:
		if _, ok := in.Operand.(Ref); !ok {
			return fmt.Errorf("%w: %s needs a member reference", ErrMalformed, in.OpCode.Name)
		}
	}
	return nil
}
