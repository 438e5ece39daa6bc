// Package cli wires the diagctl commands.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/starhyc/problem-diagnosis-assistant/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"      _ _                  _   _\n" +
		"   __| (_) __ _  __ _  ___| |_| |\n" +
		"  / _` | |/ _` |/ _` |/ __| __| |\n" +
		" | (_| | | (_| | (_| | (__| |_| |\n" +
		"  \\__,_|_|\\__,_|\\__, |\\___|\\__|_|\n" +
		"                |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "diagctl",
	Short: "diagctl - multi-agent incident diagnosis console",
	Long:  color.CyanString(logo) + "\nOperator console for the multi-agent problem diagnosis platform.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
