package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show platform activity, recent cases and system health",
	RunE:  runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	client, _, err := loadClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	data, err := client.Dashboard(ctx)
	if err != nil {
		return err
	}

	printHeader("📈 Dashboard")
	fmt.Printf("Active tasks:    %d\n", data.Stats.ActiveTasks)
	fmt.Printf("Success rate:    %.1f%%\n", data.Stats.SuccessRate)
	fmt.Printf("Avg resolution:  %s\n", data.Stats.AvgResolutionTime)
	fmt.Printf("Total cases:     %d\n", data.Stats.TotalCases)

	if len(data.RecentCases) > 0 {
		fmt.Println("\nRecent cases")
		for _, c := range data.RecentCases {
			fmt.Printf("  %s %-28s %-14s %s\n", caseGlyph(c.Status), c.ID, c.Status, c.Symptom)
		}
	}

	if len(data.SystemHealth) > 0 {
		fmt.Println("\nSystem health")
		for _, h := range data.SystemHealth {
			fmt.Printf("  %s %-20s %s\n", healthGlyph(h.Status), h.Name, h.Latency)
		}
	}

	if len(data.Agents) > 0 {
		fmt.Println("\nAgents")
		for _, a := range data.Agents {
			fmt.Printf("  %-16s %s\n", a.Name, a.Role)
		}
	}
	return nil
}

func caseGlyph(status string) string {
	switch status {
	case "resolved", "completed":
		return color.GreenString("✔")
	case "failed":
		return color.RedString("✘")
	case "investigating", "running":
		return color.YellowString("▸")
	default:
		return "·"
	}
}

func healthGlyph(status string) string {
	switch status {
	case "healthy", "ok":
		return color.GreenString("●")
	case "degraded":
		return color.YellowString("●")
	default:
		return color.RedString("●")
	}
}
