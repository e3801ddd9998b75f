package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity. Each level includes the ones below it.
type Level uint8

const (
	LevelOff    Level = iota
	LevelPhase        // the pass and its phases
	LevelDetail       // plus per-module work
	LevelDebug        // plus every applied marker
)

var levelNames = [...]string{"off", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel accepts a level name in any case. The empty string is off.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelOff, nil
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level %q (expected %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope are recorded at this level.
// LevelPhase admits the pipeline and phase scopes; every further level
// admits one more scope.
func (l Level) ShouldEmit(scope Scope) bool {
	if l == LevelOff {
		return false
	}
	return uint8(scope) <= uint8(l)+1
}
