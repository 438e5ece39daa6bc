package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/starhyc/problem-diagnosis-assistant/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ diagctl Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show client and backend status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 diagctl Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		client, cfg, err := loadClient()
		if err != nil {
			fmt.Println("Backend: ? Unable to load config:", err)
			return
		}
		fmt.Println("Server:  " + cfg.Server.BaseURL)
		fmt.Println("Stream:  " + cfg.Server.EventStreamURL)

		tokens, err := loadTokenStore()
		if err == nil {
			if _, tokErr := tokens.Load(); tokErr == nil {
				fmt.Println("Token:   ✓ Found")
			} else {
				fmt.Println("Token:   ✗ Not found (run 'diagctl login' first)")
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if user, err := client.CurrentUser(ctx); err == nil {
			fmt.Printf("Backend: ✓ Reachable (logged in as %s, role %s)\n", user.Username, user.Role)
		} else {
			fmt.Println("Backend: ✗ Unreachable or unauthenticated:", err)
		}
	},
}
