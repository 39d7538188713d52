package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jward/tether/internal/runtime"
)

type runOptions struct {
	Root  string
	Async bool
}

func newRunCommand() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a Risor script that can require other scripts",
		Long:  "Runs a .risor script. Scripts load each other with require(\"./path\") or require(\"@alias/path\"), resolved against the root and its .luaurc files.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Root, "root", ".", "directory modules are resolved against")
	cmd.Flags().BoolVar(&opts.Async, "async", false, "load each required module on its own goroutine")
	return cmd
}

func runRun(cmd *cobra.Command, script string, opts runOptions) error {
	root, err := resolveTargetDir([]string{opts.Root})
	if err != nil {
		return err
	}

	scriptPath, err := filepath.Abs(script)
	if err != nil {
		return invalidArgument(fmt.Sprintf("resolving script %q", script), err)
	}
	rel, err := filepath.Rel(root, scriptPath)
	if err != nil || !filepath.IsLocal(rel) {
		return invalidArgument(fmt.Sprintf("script %s is outside root %s", script, root), err)
	}

	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(log.Logger)}
	if opts.Async {
		rtOpts = append(rtOpts, runtime.WithAsyncLoads())
	}
	rt := runtime.NewRuntime(os.DirFS(root), rtOpts...)

	result, err := rt.RunScript(cmd.Context(), filepath.ToSlash(rel), nil)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(err.Error())
		}
		return failedPrecondition(err)
	}

	out := CLIRunResult{Script: filepath.ToSlash(rel)}
	if result != nil {
		out.Type = string(result.Type())
		out.Value = result.Inspect()
	}
	return outputResult(cmd, CLIResult{Command: "run", Results: out})
}
