package il

import (
	"errors"
	"fmt"
)

var (
	// ErrRange is matched by every *RangeError.
	ErrRange = errors.New("instruction index out of range")
	// ErrMalformed reports an instruction that cannot be emitted.
	ErrMalformed = errors.New("malformed instruction")
	// ErrNoBody is returned when editing a method without a body.
	ErrNoBody = errors.New("method has no body")
)

// RangeError describes a rejected edit. The body is left unchanged.
type RangeError struct {
	Op     string
	Index  int
	Length int
	Len    int
}

func (e *RangeError) Error() string {
	if e.Op == "replace" {
		return fmt.Sprintf("il: %s [%d, %d+%d) out of range for body of %d instructions",
			e.Op, e.Index, e.Index, e.Length, e.Len)
	}
	return fmt.Sprintf("il: %s at %d out of range for body of %d instructions", e.Op, e.Index, e.Len)
}

func (e *RangeError) Unwrap() error { return ErrRange }

func validateAll(instrs []*Instr) error {
	for i, in := range instrs {
		if err := in.validate(); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return nil
}

// Insert places instrs at index, shifting the following instructions up.
// Valid indexes are 0..Len() inclusive.
func (b *Body) Insert(index int, instrs ...*Instr) error {
	if b == nil {
		return ErrNoBody
	}
	if index < 0 || index > len(b.Instrs) {
		return &RangeError{Op: "insert", Index: index, Len: len(b.Instrs)}
	}
	if err := validateAll(instrs); err != nil {
		return err
	}
	b.splice(index, 0, instrs)
	return nil
}

// Append adds instrs at the end of the body.
func (b *Body) Append(instrs ...*Instr) error {
	if b == nil {
		return ErrNoBody
	}
	return b.Insert(len(b.Instrs), instrs...)
}

// Prepend adds instrs at the start of the body.
func (b *Body) Prepend(instrs ...*Instr) error {
	return b.Insert(0, instrs...)
}

// Replace removes length instructions starting at index and inserts instrs in
// their place. Branches and handlers that pointed into the removed range are
// not re-pointed; see Dangling and Retarget.
func (b *Body) Replace(index, length int, instrs ...*Instr) error {
	if b == nil {
		return ErrNoBody
	}
	if index < 0 || length < 0 || index > len(b.Instrs) || length > len(b.Instrs)-index {
		return &RangeError{Op: "replace", Index: index, Length: length, Len: len(b.Instrs)}
	}
	if err := validateAll(instrs); err != nil {
		return err
	}
	b.splice(index, length, instrs)
	return nil
}

// ReplaceAt replaces the single instruction at index.
func (b *Body) ReplaceAt(index int, instrs ...*Instr) error {
	return b.Replace(index, 1, instrs...)
}

// Remove deletes length instructions starting at index.
func (b *Body) Remove(index, length int) error {
	return b.Replace(index, length)
}

// splice rebuilds the slice so callers holding the old backing array never
// observe a half-applied edit.
func (b *Body) splice(index, length int, instrs []*Instr) {
	out := make([]*Instr, 0, len(b.Instrs)-length+len(instrs))
	out = append(out, b.Instrs[:index]...)
	out = append(out, instrs...)
	out = append(out, b.Instrs[index+length:]...)
	b.Instrs = out
}
