package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"insider/internal/diag"
)

var (
	debugColor   = color.New(color.FgHiBlack)
	infoColor    = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// messagePrefix returns the marker printed in front of a message. A message
// that stopped weaving is shown as an error whatever its importance.
func messagePrefix(m diag.Message) (string, *color.Color) {
	if m.StoppedWeaving {
		return "[!]", errorColor
	}
	switch m.Severity {
	case diag.SevDebug:
		return "[*]", debugColor
	case diag.SevInfo:
		return "[+]", infoColor
	case diag.SevWarning:
		return "[-]", warningColor
	default:
		return "[!]", errorColor
	}
}

func formatMessage(m diag.Message) string {
	prefix, c := messagePrefix(m)
	line := m.Text
	if m.Sender != "" {
		line = m.Sender + ": " + line
	}
	if m.Target != "" {
		line += " (" + m.Target + ")"
	}
	if m.Code != diag.UnknownCode {
		line += " [" + m.Code.ID() + "]"
	}
	return c.Sprint(prefix) + " " + line
}

// printMessages writes messages at or above min. Messages that stopped
// weaving are always printed.
func printMessages(out io.Writer, msgs []diag.Message, min diag.Severity) error {
	for _, m := range msgs {
		if m.Severity < min && !m.StoppedWeaving {
			continue
		}
		if _, err := fmt.Fprintln(out, formatMessage(m)); err != nil {
			return err
		}
	}
	return nil
}
