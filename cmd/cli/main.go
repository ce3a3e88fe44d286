package main

import (
	"fmt"
	"os"

	"github.com/crucial707/aquamarine/cmd/cli/audit"
	"github.com/crucial707/aquamarine/cmd/cli/auth"
	"github.com/crucial707/aquamarine/cmd/cli/devices"
	"github.com/crucial707/aquamarine/cmd/cli/gpio"
	"github.com/crucial707/aquamarine/cmd/cli/root"
	"github.com/crucial707/aquamarine/cmd/cli/schedules"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	devices.InitDevices(rootCmd)
	schedules.InitSchedules(rootCmd)
	gpio.InitGPIO(rootCmd)
	audit.InitAudit(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
