package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jward/tether"
)

type indexOptions struct {
	Force     bool
	Languages []string
	Parallel  bool
}

func newIndexCommand() *cobra.Command {
	opts := indexOptions{}
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index the require graph of a Lua or Luau project",
		Long:  "Parses source files with tree-sitter, records every require call, resolves it against the project layout and .luaurc aliases, and writes results to the SQLite database.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "delete database and reindex from scratch")
	cmd.Flags().StringSliceVar(&opts.Languages, "languages", nil, "comma-separated language filter (lua,luau)")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", true, "extract requires on a worker pool")
	_ = viper.BindPFlag("languages", cmd.Flags().Lookup("languages"))
	_ = viper.BindPFlag("parallel", cmd.Flags().Lookup("parallel"))
	return cmd
}

func runIndex(cmd *cobra.Command, args []string, opts indexOptions) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return internal(fmt.Sprintf("creating %s", filepath.Dir(dbPath)), err)
	}
	if opts.Force {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return internal("removing database for --force", err)
		}
		log.Info().Str("db", dbPath).Msg("cleared database")
	}

	engineOpts := []tether.Option{
		tether.WithParallel(viper.GetBool("parallel")),
		tether.WithLogger(log.Logger),
	}
	if langs := cleanList(viper.GetStringSlice("languages")); len(langs) > 0 {
		engineOpts = append(engineOpts, tether.WithLanguages(langs...))
	}

	engine, err := tether.New(dbPath, targetDir, engineOpts...)
	if err != nil {
		return internal("creating engine", err)
	}
	defer engine.Close()

	if err := engine.IndexDirectory(cmd.Context()); err != nil {
		return internal("indexing", err)
	}

	q := engine.Query()
	mods, err := q.Modules()
	if err != nil {
		return internal("listing modules", err)
	}
	unresolved, err := q.Unresolved()
	if err != nil {
		return internal("listing unresolved requires", err)
	}

	summary := CLIIndexSummary{
		Root:       targetDir,
		Database:   dbPath,
		Modules:    len(mods),
		Unresolved: len(unresolved),
		DurationMS: time.Since(start).Milliseconds(),
	}
	for _, m := range mods {
		summary.Requires += m.Requires
	}
	log.Info().
		Str("root", targetDir).
		Int("modules", summary.Modules).
		Dur("took", time.Since(start).Round(time.Millisecond)).
		Msg("indexed")

	return outputResult(cmd, CLIResult{Command: "index", Results: summary})
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
