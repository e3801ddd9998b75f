package diag

import (
	"fmt"
)

// Bag collects messages in arrival order up to a limit. Error messages are
// always kept.
type Bag struct {
	items   []Message
	max     int
	dropped int
}

// NewBag returns a bag holding at most max non-error messages; max <= 0
// means no limit.
func NewBag(max int) *Bag {
	return &Bag{max: max}
}

// Add appends m. It returns false when the limit dropped it.
func (b *Bag) Add(m Message) bool {
	if b.max > 0 && len(b.items) >= b.max && m.Severity < SevError {
		b.dropped++
		return false
	}
	b.items = append(b.items, m)
	return true
}

// HasErrors reports whether any message is an error or stopped weaving.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevError || b.items[i].StoppedWeaving {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any message is at least a warning.
func (b *Bag) HasWarnings() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

// Stopped returns the message that stopped weaving, if any.
func (b *Bag) Stopped() (Message, bool) {
	for _, m := range b.items {
		if m.StoppedWeaving {
			return m, true
		}
	}
	return Message{}, false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Dropped returns how many messages the limit discarded.
func (b *Bag) Dropped() int {
	return b.dropped
}

// Items returns the messages. Do not modify the returned slice.
func (b *Bag) Items() []Message {
	return b.items
}

// Filter returns the messages at or above min.
func (b *Bag) Filter(min Severity) []Message {
	out := make([]Message, 0, len(b.items))
	for _, m := range b.items {
		if m.Severity >= min {
			out = append(out, m)
		}
	}
	return out
}

// Merge appends every message of other, ignoring the limit.
func (b *Bag) Merge(other *Bag) {
	b.items = append(b.items, other.items...)
	b.dropped += other.dropped
}

// Dedup drops repeated messages (same code, sender, target and text).
func (b *Bag) Dedup() {
	seen := make(map[string]bool)
	newitems := make([]Message, 0, len(b.items))
	for _, m := range b.items {
		key := fmt.Sprintf("%d:%s:%s:%s", m.Code, m.Sender, m.Target, m.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		newitems = append(newitems, m)
	}
	b.items = newitems
}
