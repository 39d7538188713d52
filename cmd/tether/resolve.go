package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jward/tether/internal/fsresolver"
	"github.com/jward/tether/internal/require"
)

type resolveOptions struct {
	Root string
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve <requirer> <path>",
		Short: "Resolve a require path without loading it",
		Long:  "Resolves path as if required from requirer (a chunk name like @src/main.luau or a file path relative to the root) and prints the module it names.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Root, "root", ".", "project root the chunk names are relative to")
	return cmd
}

func runResolve(cmd *cobra.Command, requirer, path string, opts resolveOptions) error {
	root, err := resolveTargetDir([]string{opts.Root})
	if err != nil {
		return err
	}
	loc := fsresolver.New(os.DirFS(root), fsresolver.WithLogger(log.Logger))
	mod, err := require.Resolve(loc, fsresolver.RequirerChunkName(root, requirer), path)
	if err != nil {
		return requireError(err)
	}
	return outputResult(cmd, CLIResult{Command: "resolve", Results: CLIModule{
		ChunkName: mod.ChunkName,
		LoadName:  mod.LoadName,
		CacheKey:  mod.CacheKey,
	}})
}

// requireError classifies a require failure for the exit code.
func requireError(err error) error {
	switch require.KindOf(err) {
	case require.KindPath:
		return invalidArgument(err.Error(), err)
	case require.KindNavigation, require.KindAlias, require.KindContract:
		return failedPrecondition(err)
	default:
		return internal(err.Error(), err)
	}
}
