package diag

import "strings"

// Message is one entry of the weaving log.
type Message struct {
	Code     Code
	Severity Severity
	Text     string
	// Sender is the full name of the transformer type, or empty for the
	// pipeline itself.
	Sender string
	// Target is the full name of the declaration being processed.
	Target string
	// StoppedWeaving is set when the message aborted the pass.
	StoppedWeaving bool
}

// New builds a message without sender or target.
func New(sev Severity, code Code, text string) Message {
	return Message{Severity: sev, Code: code, Text: text}
}

// From sets the sender.
func (m Message) From(sender string) Message {
	m.Sender = sender
	return m
}

// On sets the target declaration.
func (m Message) On(target string) Message {
	m.Target = target
	return m
}

// Stopping marks the message as the one that aborted the pass.
func (m Message) Stopping() Message {
	m.StoppedWeaving = true
	return m
}

func (m Message) String() string {
	var b strings.Builder
	b.WriteString(m.Severity.String())
	b.WriteString(" ")
	if m.Sender != "" {
		b.WriteString(m.Sender)
		b.WriteString(": ")
	}
	b.WriteString(m.Text)
	if m.Target != "" {
		b.WriteString(" (")
		b.WriteString(m.Target)
		b.WriteString(")")
	}
	return b.String()
}
