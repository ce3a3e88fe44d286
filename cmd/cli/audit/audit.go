package audit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/aquamarine/cmd/cli/client"
	"github.com/crucial707/aquamarine/cmd/cli/output"
	"github.com/crucial707/aquamarine/internal/models"
)

// InitAudit registers the audit command on the root command.
func InitAudit(rootCmd *cobra.Command) {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent device and schedule activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			var entries []models.AuditEntry
			path := fmt.Sprintf("/audit?limit=%d&offset=%d", limit, offset)
			if err := c.Do(http.MethodGet, path, nil, &entries); err != nil {
				return fmt.Errorf("failed to list audit log: %w", err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), entries)
			}

			rows := make([][]interface{}, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []interface{}{e.CreatedAt.Local().Format(time.DateTime), e.Action, e.ResourceType, e.ResourceID, e.Details})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"When", "Action", "Type", "Resource", "Details"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "entries to show (max 200)")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	rootCmd.AddCommand(cmd)
}
