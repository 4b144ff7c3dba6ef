package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/storage"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a new catalog repository",
	Long: `Create a new catalog repository in dir (default: the current directory).

Creates .catalog/config.json and an empty database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		exitWithError(ExitError, "resolving path: %v", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		exitWithError(ExitError, "creating %s: %v", root, err)
	}

	cfg, err := config.Init(root)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	db, err := storage.OpenDB(cfg.ResolveDBPath(root))
	if err != nil {
		exitWithError(ExitError, "creating database: %v", err)
	}
	db.Close()

	if humanOutput {
		outputHuman("Initialized catalog in %s\n", config.CatalogPath(root))
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: root})
	}
	return nil
}
