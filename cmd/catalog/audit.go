package main

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/di/providers"
	"github.com/cpritcha/catalog/internal/storage"
)

var (
	auditCommandID     int64
	auditTable         string
	auditRowID         int64
	auditLimit         int
	auditCommandsLimit int
)

func init() {
	for _, c := range []*cobra.Command{auditListCmd, auditExportCmd} {
		c.Flags().Int64Var(&auditCommandID, "command", 0, "Only entries of this command id")
		c.Flags().StringVar(&auditTable, "table", "", "Only entries of this table")
		c.Flags().Int64Var(&auditRowID, "row", 0, "Only entries of this row id (with --table)")
	}
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum entries to list (0 for all)")
	auditCommandsCmd.Flags().IntVar(&auditCommandsLimit, "limit", 20, "Maximum commands to list (0 for all)")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditCommandsCmd)
	auditCmd.AddCommand(auditHistoryCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	rootCmd.AddCommand(auditCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged row mutations",
	Long: `List logged row mutations in log order. Each entry holds the values of
the affected columns before the change: nothing for inserts, the changed
columns for updates and the whole row for deletes.

Example:
  catalog audit list --table publications --row 12`,
	Args: cobra.NoArgs,
	RunE: runAuditList,
}

var auditCommandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the most recent audit commands",
	Args:  cobra.NoArgs,
	RunE:  runAuditCommands,
}

var auditHistoryCmd = &cobra.Command{
	Use:   "history <table> <row-id>",
	Short: "Show the log entries and current state of one row",
	Long: `Show the log entries of one row, oldest first. Each entry carries the
row as it was just before that entry, rebuilt from the current row and the
later entries.`,
	Args: cobra.ExactArgs(2),
	RunE: runAuditHistory,
}

var auditExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the log as JSONL, one command per line",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditExport,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every raw record payload against its stored digest",
	Args:  cobra.NoArgs,
	RunE:  runAuditVerify,
}

func auditFilter() audit.Filter {
	return audit.Filter{CommandID: auditCommandID, Table: auditTable, RowID: auditRowID}
}

func runAuditList(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	f := auditFilter()
	f.Limit = auditLimit
	entries, err := db.AuditEntries(commandContext(cmd), f)
	exitOnError(err, "reading audit log")

	if !humanOutput {
		outputJSON(entries)
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-8d cmd %-6d %-6s %-24s %d\n", e.ID, e.CommandID, e.Action, e.Table, e.RowID)
	}
	return nil
}

func runAuditCommands(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	cmds, err := db.AuditCommands(commandContext(cmd), auditCommandsLimit)
	exitOnError(err, "reading audit commands")

	if !humanOutput {
		outputJSON(cmds)
		return nil
	}
	for _, c := range cmds {
		fmt.Printf("%-6d %s  %-12s %-6s %-12s %s\n", c.ID, c.PublicID, c.Role, c.Action, c.Creator,
			truncateString(c.Message, ListTitleMaxLen))
	}
	return nil
}

// HistoryResponse is the response for audit history.
type HistoryResponse struct {
	Table   string         `json:"table"`
	RowID   int64          `json:"row_id"`
	Current map[string]any `json:"current"`
	Steps   []audit.Step   `json:"steps"`
}

func runAuditHistory(cmd *cobra.Command, args []string) error {
	rowID := mustParseIDs(args[1:])[0]

	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	entries, current, err := db.RowHistory(commandContext(cmd), args[0], rowID)
	exitOnError(err, "reading row history")

	resp := HistoryResponse{Table: args[0], RowID: rowID, Current: current, Steps: audit.Steps(current, entries)}
	if !humanOutput {
		outputJSON(resp)
		return nil
	}
	if current == nil {
		fmt.Printf("%s %d no longer exists\n", args[0], rowID)
	}
	for _, st := range resp.Steps {
		fmt.Printf("%-8d cmd %-6d %-6s %v\n", st.ID, st.CommandID, st.Action, st.Payload)
		if st.Before != nil {
			fmt.Printf("         before %v\n", st.Before)
		}
	}
	return nil
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	logs, err := db.ExportAudit(commandContext(cmd), auditFilter())
	exitOnError(err, "reading audit log")
	if err := storage.WriteJSONLFile(args[0], logs); err != nil {
		exitWithError(ExitError, "writing %s: %v", args[0], err)
	}

	if humanOutput {
		fmt.Printf("Exported %d commands to %s\n", len(logs), args[0])
	} else {
		outputJSON(map[string]any{"status": "exported", "path": args[0], "commands": len(logs)})
	}
	return nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)
	db := do.MustInvoke[*providers.StoreHandle](injector)

	bad, err := db.VerifyRawRecords(commandContext(cmd))
	exitOnError(err, "verifying raw records")

	if humanOutput {
		if len(bad) == 0 {
			fmt.Println("All raw record digests match")
		} else {
			fmt.Printf("%d raw records do not match their digest: %s\n", len(bad), formatIDs(bad))
		}
	} else {
		outputJSON(map[string]any{"ok": len(bad) == 0, "mismatched": bad})
	}
	if len(bad) > 0 {
		shutdown(injector)
		os.Exit(ExitDataError)
	}
	return nil
}
