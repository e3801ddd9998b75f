package diag

// Severity defines the importance of a message.
type Severity uint8

const (
	// SevDebug is for tracing messages hidden by default.
	SevDebug Severity = iota
	// SevInfo is for informational messages.
	SevInfo
	// SevWarning is for warnings; they stop weaving only when warnings are
	// treated as errors.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevDebug:
		return "DEBUG"
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseSeverity maps a name (case-sensitive upper or lower) to a Severity.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "debug", "DEBUG":
		return SevDebug, true
	case "info", "INFO":
		return SevInfo, true
	case "warning", "WARNING", "warn":
		return SevWarning, true
	case "error", "ERROR":
		return SevError, true
	}
	return SevInfo, false
}
