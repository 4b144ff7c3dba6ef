// Package main provides the catalog CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/di"
	"github.com/cpritcha/catalog/internal/di/providers"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	metricsFile string
	creator     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Audited citation catalog",
	Long: `catalog ingests bibliographic records into a SQLite catalog and links
author strings to canonical authors.

Every change runs inside an audit command: one transaction whose row
mutations are logged with their prior values, so the catalog history can
be inspected and exported.

All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail to stderr")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write command counters to this Prometheus textfile")
	rootCmd.PersistentFlags().StringVar(&creator, "creator", "", "Name recorded on audit commands (default: config curator, then $USER)")
	rootCmd.Version = Version
}

// mustFindRepository finds the repository from the working directory,
// falling back to default_repo from the global config. Exits on error.
func mustFindRepository() string {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	if root, err := config.FindRepository(cwd); err == nil {
		return root
	}
	if def := config.GetDefaultRepo(); def != "" && config.IsRepository(def) {
		return def
	}

	fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
	os.Exit(ExitConfigError)
	return ""
}

// mustContainer builds the service container for the repository at root.
// The caller is responsible for calling shutdown on the returned container.
func mustContainer(root string) *do.RootScope {
	injector := di.NewContainer(providers.Options{
		Root:        root,
		Verbose:     verbose,
		MetricsFile: metricsFile,
	})
	active = injector
	if _, err := do.Invoke[*config.GlobalConfig](injector); err != nil {
		exitWithError(ExitConfigError, "loading global config: %v", err)
	}
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return injector
}

// active is the container of the running command. exitWithError shuts it
// down before exiting.
var active *do.RootScope

// shutdown closes the database and flushes metrics.
func shutdown(injector *do.RootScope) {
	if injector == active {
		active = nil
	}
	if errs := injector.Shutdown(); errs != nil {
		fmt.Fprintf(os.Stderr, "warning: shutdown: %v\n", errs)
	}
}

// shutdownActive shuts down the running command's container, if any.
func shutdownActive() {
	if active != nil {
		shutdown(active)
	}
}

// commandCreator returns the creator recorded on audit commands.
func commandCreator(cfg *config.Config) string {
	if creator != "" {
		return creator
	}
	if cfg != nil && cfg.Curator != "" {
		return cfg.Curator
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

// commandContext returns the command's context, or Background when the
// command was run without Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// parseIDs parses positive numeric ids.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id: %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// mustParseIDs parses ids, exits on error.
func mustParseIDs(args []string) []int64 {
	ids, err := parseIDs(args)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return ids
}
