// Package diag defines the message model of a weaving pass.
//
// # Data model
//
// Message is the central record. It contains:
//
//   - Severity – Debug, Info, Warning or Error (severity.go).
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Text – human oriented text; keep it short and actionable.
//   - Sender / Target – the transformer type and the declaration involved.
//   - StoppedWeaving – set on the message that aborted the pass.
//
// # Emitting messages
//
// The pipeline and transformers report through a diag.Reporter. BagReporter
// aggregates messages into a Bag; MultiReporter fans out to several sinks,
// for example a Bag and the CLI printer; MinSeverity filters by level.
//
// Package diag does not format or print anything. Rendering lives in the
// CLI.
package diag
