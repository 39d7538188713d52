package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// formatDependenciesText formats CLIDependency results as aligned columns.
func formatDependenciesText(w io.Writer, deps []CLIDependency) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLINE\tPATH\tTARGET")
	for _, d := range deps {
		target := d.Target
		if target == "" {
			target = "! " + d.Error
		}
		fmt.Fprintf(tw, "%s\t%d:%d\t%s\t%s\n", d.File, d.Line, d.Col, d.Path, target)
	}
	tw.Flush()
}

// formatDependentsText formats CLIDependent results as aligned columns.
func formatDependentsText(w io.Writer, deps []CLIDependent) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tFILE")
	for _, d := range deps {
		fmt.Fprintf(tw, "%d\t%s\n", d.Depth, d.File)
	}
	tw.Flush()
}

// formatModulesText formats CLIModuleSummary results as aligned columns.
func formatModulesText(w io.Writer, mods []CLIModuleSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tLANGUAGE\tREQUIRES\tDEPENDENTS")
	for _, m := range mods {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", m.Path, m.Language, m.Requires, m.Dependents)
	}
	tw.Flush()
}

// formatIndexSummaryText formats CLIIndexSummary as readable text.
func formatIndexSummaryText(w io.Writer, s CLIIndexSummary) {
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	fmt.Fprintf(w, "Database: %s\n", s.Database)
	fmt.Fprintf(w, "Modules: %d\n", s.Modules)
	fmt.Fprintf(w, "Requires: %d (%d unresolved)\n", s.Requires, s.Unresolved)
}

// outputResult writes a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if viper.GetString("format") == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIDependency:
		formatDependenciesText(w, v)
	case []CLIDependent:
		formatDependentsText(w, v)
	case []CLIModuleSummary:
		formatModulesText(w, v)
	case CLIIndexSummary:
		formatIndexSummaryText(w, v)
	case CLIModule:
		fmt.Fprintln(w, v.CacheKey)
	case CLIRunResult:
		fmt.Fprintln(w, v.Value)
	case nil:
		// No output for nil results.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return invalidArgument(fmt.Sprintf("invalid format %q: must be %s", format, strings.Join(validFormats, " or ")), nil)
}
