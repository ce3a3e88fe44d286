package schedules

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/aquamarine/cmd/cli/client"
	"github.com/crucial707/aquamarine/cmd/cli/output"
	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/scheduler"
)

// InitSchedules registers the schedules command tree on the root command.
func InitSchedules(rootCmd *cobra.Command) {
	schedulesCmd := &cobra.Command{
		Use:     "schedules",
		Aliases: []string{"schedule"},
		Short:   "Manage daily on/off schedules",
	}

	schedulesCmd.AddCommand(listCmd(), createCmd(), deleteCmd(), triggersCmd())
	rootCmd.AddCommand(schedulesCmd)
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <device_id>",
		Short: "List a device's schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			var resp struct {
				Schedules []models.Schedule `json:"schedules"`
			}
			if err := c.Do(http.MethodGet, "/device/"+url.PathEscape(args[0])+"/schedule", nil, &resp); err != nil {
				return fmt.Errorf("failed to list schedules: %w", err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), resp.Schedules)
			}

			rows := make([][]interface{}, 0, len(resp.Schedules))
			for _, s := range resp.Schedules {
				rows = append(rows, []interface{}{s.ScheduleID, s.Schedule, output.OnOff(s.IsOn)})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"ID", "Time", "Action"}, rows)
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var (
		at  string
		off bool
	)

	cmd := &cobra.Command{
		Use:   "create <device_id>",
		Short: "Add a daily schedule to a device",
		Example: `  aqua schedules create 3f2a... --at 07:30
  aqua schedules create 3f2a... --at 22:00 --off`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := scheduler.ParseTime(at); err != nil {
				return fmt.Errorf("--at %q: %w", at, err)
			}

			c, err := client.New()
			if err != nil {
				return err
			}
			payload := map[string]interface{}{"schedule": at, "is_on": !off}
			var s models.Schedule
			if err := c.Do(http.MethodPost, "/device/"+url.PathEscape(args[0])+"/schedule", payload, &s); err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s: turn %s at %s daily\n", s.ScheduleID, output.OnOff(s.IsOn), s.Schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "time of day, HH:MM (24h, server time zone)")
	cmd.Flags().BoolVar(&off, "off", false, "turn the device off instead of on")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <schedule_id>",
		Short: "Delete a schedule and disarm its trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			if err := c.Do(http.MethodDelete, "/schedule/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return fmt.Errorf("failed to delete schedule: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s deleted\n", args[0])
			return nil
		},
	}
}

func triggersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "triggers",
		Short: "Show armed triggers and their next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			var resp struct {
				Triggers []scheduler.Trigger `json:"triggers"`
			}
			if err := c.Do(http.MethodGet, "/schedule/triggers", nil, &resp); err != nil {
				return fmt.Errorf("failed to list triggers: %w", err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), resp.Triggers)
			}

			rows := make([][]interface{}, 0, len(resp.Triggers))
			for _, t := range resp.Triggers {
				rows = append(rows, []interface{}{t.ScheduleID, t.DeviceID, t.GPIONumber, t.Time(), output.OnOff(t.IsOn), t.NextRun.Format(time.RFC3339)})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"Schedule", "Device", "GPIO", "Time", "Action", "Next run"}, rows)
			return nil
		},
	}
}
