package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var settingsJSON bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and adjust backend admin settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show providers, tools, masking rules and redlines",
	RunE:  runSettingsShow,
}

var settingsTestToolCmd = &cobra.Command{
	Use:   "test-tool <tool-id>",
	Short: "Probe one diagnostic tool's connectivity",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsTestTool,
}

var settingsRedlineCmd = &cobra.Command{
	Use:   "redline <redline-id> <on|off>",
	Short: "Toggle one redline rule",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsRedline,
}

var settingsMaskCmd = &cobra.Command{
	Use:   "mask <sample-text>",
	Short: "Preview the masking rules over a sample text",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsMask,
}

func init() {
	settingsCmd.PersistentFlags().BoolVar(&settingsJSON, "json", false, "Output machine-readable JSON")
	settingsCmd.AddCommand(settingsShowCmd, settingsTestToolCmd, settingsRedlineCmd, settingsMaskCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	client, _, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	data, err := client.Settings(ctx)
	if err != nil {
		return err
	}
	if settingsJSON {
		return json.NewEncoder(os.Stdout).Encode(data)
	}

	printHeader("⚙️ Settings")
	fmt.Println("Providers")
	for _, p := range data.Providers {
		fmt.Printf("  %s %-20s %s/%s\n", enabledGlyph(p.Enabled), p.Name, p.Provider, p.Model)
	}
	fmt.Println("\nTools")
	for _, t := range data.Tools {
		fmt.Printf("  %s %-20s tier %d  %s\n", enabledGlyph(t.Enabled), t.Name, t.RiskTier, t.Description)
	}
	fmt.Println("\nMasking rules")
	for _, r := range data.MaskingRules {
		fmt.Printf("  %s %-14s %s -> %s\n", enabledGlyph(r.Enabled), r.ID, r.Pattern, r.Replace)
	}
	fmt.Println("\nRedlines")
	for _, r := range data.Redlines {
		fmt.Printf("  %s %-14s %s\n", enabledGlyph(r.Enabled), r.ID, r.Description)
	}
	return nil
}

func runSettingsTestTool(cmd *cobra.Command, args []string) error {
	client, _, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := client.TestTool(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Tool %s: ✓ reachable\n", args[0])
	return nil
}

func runSettingsRedline(cmd *cobra.Command, args []string) error {
	enabled, err := parseOnOff(args[1])
	if err != nil {
		return err
	}
	client, _, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	if err := client.UpdateRedline(ctx, args[0], enabled); err != nil {
		return err
	}
	fmt.Printf("Redline %s set to %v\n", args[0], enabled)
	return nil
}

func runSettingsMask(cmd *cobra.Command, args []string) error {
	client, _, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	masked, err := client.PreviewMasking(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(masked)
	return nil
}

func enabledGlyph(on bool) string {
	if on {
		return "✓"
	}
	return "✗"
}

// parseOnOff accepts on/off plus the usual boolean spellings.
func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return v, nil
}
