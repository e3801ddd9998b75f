package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"insider/internal/diag"
	"insider/internal/live"
	"insider/internal/samples"
	"insider/internal/weaver"
)

var weaveCmd = &cobra.Command{
	Use:   "weave [flags] [target] [output] [references]",
	Short: "Weave a compiled module",
	Long: `Weave loads the target module, runs the transformers named by its markers
and writes the result to output (the target itself when output is omitted).
References are module paths separated by ';', as passed by build tools; --ref
may be repeated instead. Without a target the nearest insider.toml is used.`,
	Args: cobra.MaximumNArgs(3),
	RunE: weaveExecution,
}

func init() {
	weaveCmd.Flags().StringArray("ref", nil, "reference module path (repeatable)")
	weaveCmd.Flags().String("config", "", "path to insider.toml (default: search upward)")
	weaveCmd.Flags().Bool("warnings-as-errors", false, "treat transformer warnings as errors")
	weaveCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	weaveCmd.Flags().Bool("timings", false, "print per-phase timings")
	weaveCmd.Flags().Bool("quiet", false, "print warnings and errors only")
	weaveCmd.Flags().String("verbosity", "info", "lowest message importance printed (debug|info|warning|error)")
	weaveCmd.Flags().Int("jobs", 0, "parallel reference decoders (0 = GOMAXPROCS)")
}

type weaveOptions struct {
	target           string
	output           string
	refs             []string
	settings         map[string]any
	warningsAsErrors bool
	jobs             int
	ui               uiMode
	timings          bool
	quiet            bool
	minSeverity      diag.Severity
}

func weaveExecution(cmd *cobra.Command, args []string) error {
	opts, err := readWeaveOptions(cmd, args)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	req := &weaver.Request{
		Target:           opts.target,
		Output:           opts.output,
		References:       opts.refs,
		Catalog:          live.NewCatalog(samples.Library()),
		Settings:         opts.settings,
		WarningsAsErrors: opts.warningsAsErrors,
		Jobs:             opts.jobs,
		DebugHook:        debugHook(cmd.InOrStdin(), cmd.ErrOrStderr()),
	}

	var (
		res      weaver.Result
		weaveErr error
	)
	if shouldUseTUI(opts.ui, opts.quiet) {
		// the progress UI owns the terminal
		req.DebugHook = nil
		modules := append(append([]string{}, opts.refs...), opts.target, opts.output)
		res, weaveErr = runWeaveWithUI(cmd.Context(), "weave "+filepath.Base(opts.target), modules, req)
		if err := printMessages(out, res.Messages, opts.minSeverity); err != nil {
			return err
		}
	} else {
		req.Reporter = diag.MinSeverity{
			Min: opts.minSeverity,
			Next: diag.NewDedupReporter(diag.FuncReporter(func(m diag.Message) {
				fmt.Fprintln(out, formatMessage(m))
			})),
		}
		res, weaveErr = weaver.Weave(cmd.Context(), req)
	}

	if opts.timings {
		printTimings(out, res)
	}
	if weaveErr != nil {
		return weaveErr
	}
	if !opts.quiet {
		fmt.Fprintf(out, "%s %s (%d markers applied)\n", infoColor.Sprint("woven"), res.OutputPath, res.Applied)
	}
	return nil
}

func readWeaveOptions(cmd *cobra.Command, args []string) (weaveOptions, error) {
	var opts weaveOptions
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return opts, err
	}
	manifest, found, err := loadManifest(configPath, ".")
	if err != nil {
		return opts, err
	}
	if found {
		opts.target = manifest.resolve(manifest.Config.Weave.Target)
		opts.output = manifest.resolve(manifest.Config.Weave.Output)
		opts.refs = manifest.references()
		opts.settings = manifest.settings()
		opts.warningsAsErrors = manifest.Config.Weave.WarningsAsErrors
		opts.jobs = manifest.Config.Weave.Jobs
	}

	if len(args) > 0 {
		opts.target = args[0]
		opts.output = ""
	}
	if len(args) > 1 {
		opts.output = args[1]
	}
	if len(args) > 2 {
		opts.refs = append(opts.refs, splitReferences(args[2])...)
	}
	extra, err := flags.GetStringArray("ref")
	if err != nil {
		return opts, err
	}
	opts.refs = append(opts.refs, extra...)

	if opts.target == "" {
		return opts, errors.New("no target module: pass one or add [weave].target to insider.toml")
	}
	if opts.output == "" {
		opts.output = opts.target
	}

	if flags.Changed("warnings-as-errors") {
		if opts.warningsAsErrors, err = flags.GetBool("warnings-as-errors"); err != nil {
			return opts, err
		}
	}
	if flags.Changed("jobs") {
		if opts.jobs, err = flags.GetInt("jobs"); err != nil {
			return opts, err
		}
	}
	if opts.timings, err = flags.GetBool("timings"); err != nil {
		return opts, err
	}
	if opts.quiet, err = flags.GetBool("quiet"); err != nil {
		return opts, err
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return opts, err
	}
	if opts.ui, err = readUIMode(uiValue); err != nil {
		return opts, err
	}
	verbosity, err := flags.GetString("verbosity")
	if err != nil {
		return opts, err
	}
	sev, ok := diag.ParseSeverity(strings.ToLower(strings.TrimSpace(verbosity)))
	if !ok {
		return opts, fmt.Errorf("invalid --verbosity value %q (expected debug|info|warning|error)", verbosity)
	}
	if opts.quiet && sev < diag.SevWarning {
		sev = diag.SevWarning
	}
	opts.minSeverity = sev
	return opts, nil
}

// splitReferences splits a ';'-separated reference list. Empty entries are
// dropped; the pipeline trims the rest.
func splitReferences(list string) []string {
	var out []string
	for _, r := range strings.Split(list, ";") {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}
	return out
}

// debugHook pauses before each transformer when Insider.Debug is on, so a
// debugger can be attached. It does nothing without an interactive stdin.
func debugHook(in io.Reader, out io.Writer) func(string) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	reader := bufio.NewReader(f)
	return func(target string) {
		fmt.Fprintf(out, "insider: about to process %s (pid %d), press Enter to continue", target, os.Getpid())
		_, _ = reader.ReadString('\n')
	}
}

func printTimings(out io.Writer, res weaver.Result) {
	for _, ph := range res.Timings.Phases {
		line := fmt.Sprintf("%-10s %8.1f ms", ph.Name, ph.DurationMS)
		if ph.Note != "" {
			line += "  (" + ph.Note + ")"
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%-10s %8.1f ms\n", "total", res.Timings.TotalMS)
}
