package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"insider/internal/ui"
	"insider/internal/weaver"
)

// uiMode is the --ui setting: "auto" shows the progress UI on terminals.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	m := uiMode(strings.ToLower(strings.TrimSpace(value)))
	if m == "" {
		return uiModeAuto, nil
	}
	if m != uiModeAuto && m != uiModeOn && m != uiModeOff {
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
	return m, nil
}

// shouldUseTUI decides whether to show the progress UI. Quiet runs and
// non-terminals get plain output in auto mode.
func shouldUseTUI(mode uiMode, quiet bool) bool {
	if mode == uiModeAuto {
		return !quiet && isTerminal(os.Stdout)
	}
	return mode == uiModeOn
}

type weaveOutcome struct {
	result weaver.Result
	err    error
}

// runWeaveWithUI runs the pass on a goroutine while the progress model
// renders its events.
func runWeaveWithUI(ctx context.Context, title string, modules []string, req *weaver.Request) (weaver.Result, error) {
	if req == nil {
		return weaver.Result{}, fmt.Errorf("missing weave request")
	}
	events := make(chan weaver.Event, 256)
	outcomeCh := make(chan weaveOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = weaver.ChannelSink{Ch: events}
		res, err := weaver.Weave(ctx, &reqCopy)
		outcomeCh <- weaveOutcome{result: res, err: err}
		close(events)
	}()

	program := tea.NewProgram(ui.NewProgressModel(title, modules, events), tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := awaitOutcome(events, outcomeCh)
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}

// awaitOutcome discards the events the UI did not consume, so a program that
// quit early never blocks the weave, and returns its outcome.
func awaitOutcome(events <-chan weaver.Event, outcomeCh <-chan weaveOutcome) weaveOutcome {
	for range events {
	}
	return <-outcomeCh
}
