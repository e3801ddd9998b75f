package il

import (
	"fmt"
	"io"
	"strings"

	"fortio.org/safecast"
)

// HandlerKind enumerates exception handler kinds.
type HandlerKind uint8

const (
	HandlerCatch HandlerKind = iota
	HandlerFilter
	HandlerFinally
	HandlerFault
)

func (k HandlerKind) String() string {
	switch k {
	case HandlerCatch:
		return "catch"
	case HandlerFilter:
		return "filter"
	case HandlerFinally:
		return "finally"
	case HandlerFault:
		return "fault"
	}
	return "unknown"
}

// Handler is an exception handler record. Boundaries point at instructions;
// a nil end boundary means "to the end of the body".
type Handler struct {
	Kind         HandlerKind
	TryStart     *Instr
	TryEnd       *Instr
	HandlerStart *Instr
	HandlerEnd   *Instr
	CatchType    string
}

// Body is the ordered instruction list of one method.
type Body struct {
	Instrs     []*Instr
	Handlers   []*Handler
	Locals     []string
	MaxStack   int
	InitLocals bool
}

// NewBody returns a body holding instrs in order.
func NewBody(instrs ...*Instr) *Body {
	return &Body{Instrs: append([]*Instr(nil), instrs...)}
}

// Len returns the number of instructions.
func (b *Body) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Instrs)
}

// At returns the instruction at index i, or nil when out of range.
func (b *Body) At(i int) *Instr {
	if b == nil || i < 0 || i >= len(b.Instrs) {
		return nil
	}
	return b.Instrs[i]
}

// IndexOf returns the position of in, or -1.
func (b *Body) IndexOf(in *Instr) int {
	if b == nil || in == nil {
		return -1
	}
	for i, cur := range b.Instrs {
		if cur == in {
			return i
		}
	}
	return -1
}

// Find returns the index of the first instruction with the given opcode at or
// after start, or -1.
func (b *Body) Find(code Code, start int) int {
	if b == nil {
		return -1
	}
	for i := max(start, 0); i < len(b.Instrs); i++ {
		if b.Instrs[i].Is(code) {
			return i
		}
	}
	return -1
}

// Dangling lists branch and handler targets that are no longer part of the
// body, typically left behind by Replace over a range that was a target.
func (b *Body) Dangling() []*Instr {
	if b == nil {
		return nil
	}
	present := make(map[*Instr]struct{}, len(b.Instrs))
	for _, in := range b.Instrs {
		present[in] = struct{}{}
	}
	var out []*Instr
	seen := make(map[*Instr]struct{})
	check := func(t *Instr) {
		if t == nil {
			return
		}
		if _, ok := present[t]; ok {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, in := range b.Instrs {
		switch op := in.Operand.(type) {
		case *Instr:
			check(op)
		case []*Instr:
			for _, t := range op {
				check(t)
			}
		}
	}
	for _, h := range b.Handlers {
		check(h.TryStart)
		check(h.TryEnd)
		check(h.HandlerStart)
		check(h.HandlerEnd)
	}
	return out
}

// Retarget replaces every branch or handler reference to from with to.
func (b *Body) Retarget(from, to *Instr) int {
	if b == nil || from == nil {
		return 0
	}
	n := 0
	for _, in := range b.Instrs {
		switch op := in.Operand.(type) {
		case *Instr:
			if op == from {
				in.Operand = to
				n++
			}
		case []*Instr:
			for i, t := range op {
				if t == from {
					op[i] = to
					n++
				}
			}
		}
	}
	for _, h := range b.Handlers {
		for _, p := range []**Instr{&h.TryStart, &h.TryEnd, &h.HandlerStart, &h.HandlerEnd} {
			if *p == from {
				*p = to
				n++
			}
		}
	}
	return n
}

// Size returns the encoded size of the instruction in bytes.
func (in *Instr) Size() int {
	switch in.OpCode.Operand {
	case OperandNone:
		return 1
	case OperandVar:
		return 3
	case OperandInt64, OperandFloat64:
		return 9
	case OperandSwitch:
		targets, _ := in.Operand.([]*Instr)
		return 5 + 4*len(targets)
	default:
		return 5
	}
}

// Offsets computes the byte offset of every instruction.
func (b *Body) Offsets() ([]uint32, error) {
	if b == nil {
		return nil, nil
	}
	out := make([]uint32, len(b.Instrs))
	var off uint32
	for i, in := range b.Instrs {
		out[i] = off
		sz, err := safecast.Conv[uint32](in.Size())
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		off += sz
	}
	return out, nil
}

// Format writes a listing of the body, one instruction per line.
func (b *Body) Format(w io.Writer, indent string) error {
	if b == nil {
		return nil
	}
	for i, in := range b.Instrs {
		line := label(i) + ": " + in.OpCode.Name
		if in.Operand != nil {
			line += " " + formatOperand(in.Operand, b.IndexOf)
		}
		if _, err := fmt.Fprintln(w, indent+line); err != nil {
			return err
		}
	}
	for _, h := range b.Handlers {
		line := fmt.Sprintf(".try %s to %s %s %s to %s",
			b.boundary(h.TryStart), b.boundary(h.TryEnd), h.Kind,
			b.boundary(h.HandlerStart), b.boundary(h.HandlerEnd))
		if h.CatchType != "" {
			line += " " + h.CatchType
		}
		if _, err := fmt.Fprintln(w, indent+line); err != nil {
			return err
		}
	}
	return nil
}

func (b *Body) boundary(in *Instr) string {
	if in == nil {
		return "end"
	}
	if i := b.IndexOf(in); i >= 0 {
		return label(i)
	}
	return "<dangling>"
}

// String returns the Format listing.
func (b *Body) String() string {
	var sb strings.Builder
	_ = b.Format(&sb, "")
	return sb.String()
}
