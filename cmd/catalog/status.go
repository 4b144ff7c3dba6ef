package main

import (
	"fmt"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/cpritcha/catalog/internal/audit"
	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/review"
)

var (
	statusRole    string
	statusMessage string
)

func init() {
	statusCmd.Flags().StringVar(&statusRole, "role", "curator", "Role making the change (curator, author)")
	statusCmd.Flags().StringVarP(&statusMessage, "message", "m", "", "Message recorded on the audit command")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <publication-id> <status>",
	Short: "Move a publication through the review workflow",
	Long: `Change the review status of a publication.

Statuses: UNTAGGED, NEEDS_AUTHOR_REVIEW, FLAGGED, AUTHOR_UPDATED, COMPLETE, INVALID

COMPLETE and INVALID are terminal. Authors may only report AUTHOR_UPDATED;
curators may make any other allowed transition.

Example:
  catalog status 12 flagged -m "venue looks wrong"`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

// StatusChangeResponse is the response for the status command.
type StatusChangeResponse struct {
	Command       string           `json:"command"`
	PublicationID int64            `json:"publication_id"`
	Status        reference.Status `json:"status"`
}

// parseRole maps a --role value to an audit role.
func parseRole(s string) (audit.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "curator":
		return audit.RoleCuratorEdit, nil
	case "author":
		return audit.RoleAuthorEdit, nil
	}
	return "", fmt.Errorf("unknown role: %q (valid: curator, author)", s)
}

func runStatus(cmd *cobra.Command, args []string) error {
	id := mustParseIDs(args[:1])[0]
	to, ok := reference.ParseStatus(args[1])
	if !ok {
		exitWithError(ExitError, "unknown status: %q", args[1])
	}
	role, err := parseRole(statusRole)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	repoRoot := mustFindRepository()
	injector := mustContainer(repoRoot)
	defer shutdown(injector)

	cfg := do.MustInvoke[*config.Config](injector)
	svc := do.MustInvoke[*review.Service](injector)

	saved, err := svc.SetStatus(commandContext(cmd), id, to, role, commandCreator(cfg), statusMessage)
	exitOnError(err, fmt.Sprintf("setting status of %d", id))

	if humanOutput {
		fmt.Printf("%d is now %s (command %s)\n", id, to, saved.PublicID)
	} else {
		outputJSON(StatusChangeResponse{Command: saved.PublicID, PublicationID: id, Status: to})
	}
	return nil
}
