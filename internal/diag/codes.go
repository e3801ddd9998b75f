package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Pipeline progress
	WeaveInfo        Code = 1000
	WeaveProcessing  Code = 1001
	WeaveTransformer Code = 1002
	WeaveModuleHook  Code = 1003
	WeaveCleanUp     Code = 1004
	WeaveEncode      Code = 1005

	// Settings
	SetInfo      Code = 2000
	SetMalformed Code = 2001
	SetConfig    Code = 2002

	// Resolution
	ResInfo           Code = 3000
	ResNoLiveType     Code = 3001
	ResSkippedLibrary Code = 3002

	// Transformer failures
	TrfFailed          Code = 4000
	TrfWarningPromoted Code = 4001
	TrfPanicked        Code = 4002

	// Environment
	EnvWriteFailed    Code = 5000
	EnvLoadFailed     Code = 5001
	EnvSymbolsSkipped Code = 5002

	ObsTimings Code = 6000
)

var (
	codeDescription = map[Code]string{
		UnknownCode:        "Unknown error",
		WeaveInfo:          "Weaving information",
		WeaveProcessing:    "Processing declaration",
		WeaveTransformer:   "Transformer message",
		WeaveModuleHook:    "Module weaver",
		WeaveCleanUp:       "Clean-up",
		WeaveEncode:        "Woven module cannot be encoded",
		SetInfo:            "Settings information",
		SetMalformed:       "Malformed setting marker",
		SetConfig:          "Configuration file settings",
		ResInfo:            "Resolution information",
		ResNoLiveType:      "Weaver type has no live implementation",
		ResSkippedLibrary:  "Reference skipped",
		TrfFailed:          "Transformer failed",
		TrfWarningPromoted: "Warning treated as error",
		TrfPanicked:        "Transformer panicked",
		EnvWriteFailed:     "Cannot access target file",
		EnvLoadFailed:      "Cannot load module",
		EnvSymbolsSkipped:  "Symbols not written",
		ObsTimings:         "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("WV%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SET%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("RES%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("TRF%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("ENV%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
