package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "TETHER"

type rootConfig struct {
	ConfigFile string
	LogLevel   string
	DB         string
	Format     string
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute runs the command line and returns the process exit code.
func execute(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %s\n", errorMessage(err))
		return exitCodeForError(err)
	}
	return 0
}

func newRootCommand() *cobra.Command {
	cfg := rootConfig{}
	cmd := &cobra.Command{
		Use:           "tether",
		Short:         "Luau require-by-string resolution and require graph indexing",
		Long:          "Tether resolves require paths the way Luau does, runs Risor scripts that require each other, and indexes the require graph of Lua and Luau projects into SQLite.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(cmd, viper.GetString("log_level"))
			return validateFormat(viper.GetString("format"))
		},
		// No Run, prints help by default.
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "config file path (default: tether.yaml in . or $HOME/.config/tether)")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&cfg.DB, "db", "", "database path (default: .tether/index.db relative to repo root)")
	cmd.PersistentFlags().StringVar(&cfg.Format, "format", "json", "output format: json|text")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("db", cmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("format", cmd.PersistentFlags().Lookup("format"))

	cmd.AddCommand(newIndexCommand())
	cmd.AddCommand(newResolveCommand())
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newQueryCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("tether")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/tether")
	// A missing default config file is fine.
	_ = viper.ReadInConfig()
	return nil
}

func setupLogging(cmd *cobra.Command, level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// exitCodeForError maps error codes to process exit codes:
// 2 bad usage, 3 a require that does not resolve, 4 missing input,
// 5 internal failure, 1 anything else.
func exitCodeForError(err error) int {
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument:
		return 2
	case errbuilder.CodeFailedPrecondition:
		return 3
	case errbuilder.CodeNotFound:
		return 4
	case errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		if cause := errors.Unwrap(builder); cause != nil && cause.Error() != builder.Msg {
			return builder.Msg + ": " + cause.Error()
		}
		return builder.Msg
	}
	return err.Error()
}

func invalidArgument(msg string, cause error) error {
	b := errbuilder.New().WithCode(errbuilder.CodeInvalidArgument).WithMsg(msg)
	if cause != nil {
		return b.WithCause(cause)
	}
	return b
}

func notFound(msg string) error {
	return errbuilder.New().WithCode(errbuilder.CodeNotFound).WithMsg(msg)
}

func failedPrecondition(cause error) error {
	return errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition).WithMsg(cause.Error()).WithCause(cause)
}

func internal(msg string, cause error) error {
	return errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg(msg).WithCause(cause)
}

// resolveTargetDir returns the absolute path of the directory named by the
// first argument, or of the working directory.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", invalidArgument(fmt.Sprintf("resolving path %q", dir), err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", notFound(fmt.Sprintf("directory not found: %s", abs))
	}
	if !info.IsDir() {
		return "", invalidArgument(fmt.Sprintf("not a directory: %s", abs), nil)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from --db (or config) or the
// default under repoRoot.
func resolveDBPath(repoRoot string) string {
	if db := viper.GetString("db"); db != "" {
		if filepath.IsAbs(db) {
			return db
		}
		return filepath.Join(repoRoot, db)
	}
	return filepath.Join(repoRoot, ".tether", "index.db")
}
