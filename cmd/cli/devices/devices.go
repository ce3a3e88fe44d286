package devices

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/aquamarine/cmd/cli/client"
	"github.com/crucial707/aquamarine/cmd/cli/output"
	"github.com/crucial707/aquamarine/internal/models"
)

// InitDevices registers the devices command tree on the root command.
func InitDevices(rootCmd *cobra.Command) {
	devicesCmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"device"},
		Short:   "Manage devices",
	}

	devicesCmd.AddCommand(listCmd(), registerCmd(), statusCmd(), switchCmd(true), switchCmd(false), updateCmd(), deleteCmd())
	rootCmd.AddCommand(devicesCmd)
}

func devicePath(id string, parts ...string) string {
	p := "/device/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List devices with their current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			var resp struct {
				Devices []models.DeviceStatus `json:"devices"`
			}
			if err := c.Do(http.MethodGet, "/device/list", nil, &resp); err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), resp.Devices)
			}

			rows := make([][]interface{}, 0, len(resp.Devices))
			for _, d := range resp.Devices {
				rows = append(rows, []interface{}{d.DeviceID, d.DeviceName, d.GPIONumber, output.OnOff(d.IsOn), d.UpdatedAt.Format(time.DateTime)})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"ID", "Name", "GPIO", "State", "Updated"}, rows)
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	var (
		name string
		pin  int
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a device on a GPIO pin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			payload := map[string]interface{}{"device_name": name, "gpio_number": pin}
			var d models.Device
			if err := c.Do(http.MethodPost, "/device/register", payload, &d); err != nil {
				return fmt.Errorf("failed to register device: %w", err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) on GPIO %d\n", d.DeviceName, d.DeviceID, d.GPIONumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "device name")
	cmd.Flags().IntVar(&pin, "gpio", -1, "GPIO pin number")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("gpio")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <device_id>",
		Short: "Show a device and the live state of its pin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			var st models.DeviceStatus
			if err := c.Do(http.MethodGet, devicePath(args[0], "status"), nil, &st); err != nil {
				return fmt.Errorf("failed to get device status: %w", err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd, st)
			return nil
		},
	}
}

func switchCmd(on bool) *cobra.Command {
	use, short := "off <device_id>", "Turn a device off"
	path := "off"
	if on {
		use, short, path = "on <device_id>", "Turn a device on", "on"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			var resp struct {
				Message string `json:"message"`
				models.DeviceStatus
			}
			if err := c.Do(http.MethodPost, devicePath(args[0], path), nil, &resp); err != nil {
				return fmt.Errorf("failed to switch device %s: %w", path, err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			printStatus(cmd, resp.DeviceStatus)
			return nil
		},
	}
}

func updateCmd() *cobra.Command {
	var (
		name string
		pin  int
	)

	cmd := &cobra.Command{
		Use:   "update <device_id>",
		Short: "Rename a device or move it to another pin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{}
			if cmd.Flags().Changed("name") {
				payload["device_name"] = name
			}
			if cmd.Flags().Changed("gpio") {
				payload["gpio_number"] = pin
			}
			if len(payload) == 0 {
				return fmt.Errorf("nothing to update: pass --name and/or --gpio")
			}

			c, err := client.New()
			if err != nil {
				return err
			}
			var d models.Device
			if err := c.Do(http.MethodPut, devicePath(args[0]), payload, &d); err != nil {
				return fmt.Errorf("failed to update device: %w", err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s on GPIO %d\n", d.DeviceID, d.DeviceName, d.GPIONumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new device name")
	cmd.Flags().IntVar(&pin, "gpio", 0, "new GPIO pin number")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <device_id>",
		Short: "Delete a device and its schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			if err := c.Do(http.MethodDelete, devicePath(args[0]), nil, nil); err != nil {
				return fmt.Errorf("failed to delete device: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Device %s deleted\n", args[0])
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, st models.DeviceStatus) {
	output.RenderTable(cmd.OutOrStdout(), []string{"ID", "Name", "GPIO", "State"}, [][]interface{}{
		{st.DeviceID, st.DeviceName, strconv.Itoa(st.GPIONumber), output.OnOff(st.IsOn)},
	})
}
