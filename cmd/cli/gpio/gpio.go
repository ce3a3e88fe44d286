package gpio

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crucial707/aquamarine/cmd/cli/client"
	"github.com/crucial707/aquamarine/cmd/cli/output"
)

type pinResponse struct {
	Message    string `json:"message,omitempty"`
	GPIONumber int    `json:"gpio_number"`
	IsOn       bool   `json:"is_on"`
}

// InitGPIO registers raw pin commands on the root command.
func InitGPIO(rootCmd *cobra.Command) {
	gpioCmd := &cobra.Command{
		Use:   "gpio",
		Short: "Drive GPIO pins directly, bypassing devices",
	}

	gpioCmd.AddCommand(
		pinCmd("on <gpio_number>", "Drive a pin high", http.MethodPost, "on"),
		pinCmd("off <gpio_number>", "Drive a pin low", http.MethodPost, "off"),
		pinCmd("status <gpio_number>", "Read a pin", http.MethodGet, "status"),
	)
	rootCmd.AddCommand(gpioCmd)
}

func pinCmd(use, short, method, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := strconv.Atoi(args[0])
			if err != nil || pin < 0 {
				return fmt.Errorf("invalid gpio number %q", args[0])
			}

			c, err := client.New()
			if err != nil {
				return err
			}
			var resp pinResponse
			if err := c.Do(method, fmt.Sprintf("/GPIO/%d/%s", pin, action), nil, &resp); err != nil {
				return fmt.Errorf("gpio %s failed: %w", action, err)
			}
			if output.WantJSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), resp)
			}
			if resp.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "GPIO %d is %s\n", resp.GPIONumber, output.OnOff(resp.IsOn))
			return nil
		},
	}
}
