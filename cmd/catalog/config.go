package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set repository configuration values",
	Long: `Get or set repository configuration values.

Usage:
  catalog config                           # Show all config
  catalog config curator                   # Get specific value
  catalog config curator jdoe              # Set value
  catalog config link-after-ingest true    # Link authors after every ingest

Keys:
  db-path            Database file (default .catalog/catalog.db)
  curator            Name recorded on audit commands
  link-after-ingest  Run author linkage right after each ingest`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg, err := config.Load(repoRoot)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	// No args: show all config
	if len(args) == 0 {
		if humanOutput {
			for _, key := range config.Keys {
				value, _ := cfg.Get(key)
				fmt.Printf("%-18s %s\n", key+":", value)
			}
		} else {
			outputJSON(cfg)
		}
		return nil
	}

	key := config.NormalizeKey(args[0])

	// One arg: get specific value
	if len(args) == 1 {
		value, err := cfg.Get(key)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if humanOutput {
			fmt.Println(value)
		} else {
			outputJSON(map[string]string{key: value})
		}
		return nil
	}

	// Two args: set value
	if err := cfg.Set(key, args[1]); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := cfg.Save(repoRoot); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	value, _ := cfg.Get(key)
	if humanOutput {
		fmt.Printf("Set %s to %s\n", key, value)
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
	}
	return nil
}
