package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"insider/internal/version"
)

// buildField is one optional line of version output.
type buildField struct {
	flag  string
	label string
	value func() string
}

var buildFields = []buildField{
	{"hash", "commit", func() string { return version.GitCommit }},
	{"message", "message", func() string { return version.GitMessage }},
	{"date", "built", func() string { return version.BuildDate }},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show insider build information",
	Args:  cobra.NoArgs,
	RunE:  versionExecution,
}

func init() {
	versionCmd.Flags().Bool("hash", false, "include git commit hash")
	versionCmd.Flags().Bool("message", false, "include git commit message")
	versionCmd.Flags().Bool("date", false, "include build timestamp")
	versionCmd.Flags().Bool("full", false, "show all build metadata")
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func versionExecution(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	full, err := flags.GetBool("full")
	if err != nil {
		return err
	}
	var shown []buildField
	for _, f := range buildFields {
		on, err := flags.GetBool(f.flag)
		if err != nil {
			return err
		}
		if on || full {
			shown = append(shown, f)
		}
	}

	switch strings.ToLower(format) {
	case "pretty":
		return renderVersionPretty(cmd.OutOrStdout(), shown)
	case "json":
		return renderVersionJSON(cmd.OutOrStdout(), shown)
	}
	return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
}

func renderVersionPretty(out io.Writer, fields []buildField) error {
	if _, err := fmt.Fprintf(out, "insider %s\n", version.Pretty()); err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(out, "%-8s %s\n", f.label+":", valueOrUnknown(f.value())); err != nil {
			return err
		}
	}
	return nil
}

func renderVersionJSON(out io.Writer, fields []buildField) error {
	payload := map[string]string{
		"tool":    "insider",
		"version": strings.TrimSpace(version.Version),
	}
	for _, f := range fields {
		payload[f.label] = valueOrUnknown(f.value())
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
