package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/tether"
	"github.com/jward/tether/internal/store"
)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the require graph index",
		Long:  "Run queries against an indexed project. Modules are named by their path relative to the project root; a leading @ is accepted. Line and column numbers are 1-based.",
	}
	cmd.AddCommand(newDepsCommand())
	cmd.AddCommand(newDependentsCommand())
	cmd.AddCommand(newUnresolvedCommand())
	cmd.AddCommand(newModulesCommand())
	return cmd
}

func newDepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <file>",
		Short: "List the requires made by a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQuery(func(q *tether.QueryBuilder) error {
				deps, err := q.Dependencies(args[0])
				if err != nil {
					return internal("querying dependencies", err)
				}
				if deps == nil {
					return notFound(fmt.Sprintf("file not indexed: %s", args[0]))
				}
				return outputResult(cmd, CLIResult{Command: "deps", Results: toCLIDependencies(deps)})
			})
		},
	}
}

func newDependentsCommand() *cobra.Command {
	var transitive bool
	var depth int
	cmd := &cobra.Command{
		Use:   "dependents <module>",
		Short: "List the files that require a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQuery(func(q *tether.QueryBuilder) error {
				if transitive || depth > 0 {
					deps, err := q.TransitiveDependents(args[0], depth)
					if err != nil {
						return internal("querying transitive dependents", err)
					}
					return outputResult(cmd, CLIResult{Command: "dependents", Results: toCLIDependents(deps)})
				}
				deps, err := q.Dependents(args[0])
				if err != nil {
					return internal("querying dependents", err)
				}
				return outputResult(cmd, CLIResult{Command: "dependents", Results: toCLIDependencies(deps)})
			})
		},
	}
	cmd.Flags().BoolVar(&transitive, "transitive", false, "follow require edges backwards through other modules")
	cmd.Flags().IntVar(&depth, "depth", 0, "maximum number of require edges to follow (implies --transitive, 0 = unlimited)")
	return cmd
}

func newUnresolvedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unresolved",
		Short: "List requires that do not resolve, with the reason",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQuery(func(q *tether.QueryBuilder) error {
				deps, err := q.Unresolved()
				if err != nil {
					return internal("querying unresolved requires", err)
				}
				return outputResult(cmd, CLIResult{Command: "unresolved", Results: toCLIDependencies(deps)})
			})
		},
	}
}

func newModulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List indexed modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQuery(func(q *tether.QueryBuilder) error {
				mods, err := q.Modules()
				if err != nil {
					return internal("listing modules", err)
				}
				out := make([]CLIModuleSummary, 0, len(mods))
				for _, m := range mods {
					out = append(out, CLIModuleSummary{
						Path:       m.Path,
						ChunkName:  m.ChunkName,
						Language:   m.Language,
						Requires:   m.Requires,
						Dependents: m.Dependents,
					})
				}
				return outputResult(cmd, CLIResult{Command: "modules", Results: out})
			})
		},
	}
}

// --- Helpers ---

// openStore opens the Store from the --db flag path (or default).
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, internal("getting cwd", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, notFound(fmt.Sprintf("database not found: %s (run 'tether index' first)", dbPath))
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, internal("opening database", err)
	}
	return s, nil
}

// withQuery opens the store, runs fn with a QueryBuilder, and closes it.
func withQuery(fn func(q *tether.QueryBuilder) error) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(tether.NewQueryBuilder(s))
}

func toCLIDependencies(deps []tether.Dependency) []CLIDependency {
	out := make([]CLIDependency, 0, len(deps))
	for _, d := range deps {
		out = append(out, CLIDependency{
			File:   d.File,
			Path:   d.Path,
			Line:   d.Line,
			Col:    d.Col,
			Target: d.Target,
			Error:  d.Error,
		})
	}
	return out
}

func toCLIDependents(deps []*tether.Dependent) []CLIDependent {
	out := make([]CLIDependent, 0, len(deps))
	for _, d := range deps {
		out = append(out, CLIDependent{File: d.File.Path, Depth: d.Depth})
	}
	return out
}
