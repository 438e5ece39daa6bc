package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/starhyc/problem-diagnosis-assistant/internal/archive"
	"github.com/starhyc/problem-diagnosis-assistant/internal/config"
)

var (
	knowledgeJSON  bool
	knowledgeLocal bool
	knowledgeLimit int
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Browse the knowledge base of resolved cases",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var knowledgeCasesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List resolved historical cases",
	RunE:  runKnowledgeCases,
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search cases by symptom or root cause",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeSearch,
}

var knowledgeGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the knowledge graph relations",
	RunE:  runKnowledgeGraph,
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show <case-id>",
	Short: "Show one historical case in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeShow,
}

func init() {
	knowledgeCmd.PersistentFlags().BoolVar(&knowledgeJSON, "json", false, "Output machine-readable JSON")
	knowledgeCmd.PersistentFlags().IntVar(&knowledgeLimit, "limit", 20, "Maximum rows to return")
	knowledgeCasesCmd.Flags().BoolVar(&knowledgeLocal, "local", false, "Read the local case archive instead of the backend")
	knowledgeSearchCmd.Flags().BoolVar(&knowledgeLocal, "local", false, "Read the local case archive instead of the backend")

	knowledgeCmd.AddCommand(knowledgeCasesCmd, knowledgeSearchCmd, knowledgeGraphCmd, knowledgeShowCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

func runKnowledgeCases(cmd *cobra.Command, args []string) error {
	if knowledgeLocal {
		return listLocalCases("")
	}

	client, _, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	cases, err := client.HistoricalCases(ctx)
	if err != nil {
		return err
	}
	if len(cases) > knowledgeLimit {
		cases = cases[:knowledgeLimit]
	}
	if knowledgeJSON {
		return json.NewEncoder(os.Stdout).Encode(cases)
	}
	printHeader("📚 Historical Cases")
	for _, c := range cases {
		fmt.Printf("  %-24s %s\n", c.ID, c.Title)
	}
	return nil
}

func runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	if knowledgeLocal {
		return listLocalCases(args[0])
	}

	client, _, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	cases, err := client.SearchKnowledge(ctx, args[0])
	if err != nil {
		return err
	}
	if knowledgeJSON {
		return json.NewEncoder(os.Stdout).Encode(cases)
	}
	printHeader("🔎 Knowledge Search")
	if len(cases) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, c := range cases {
		fmt.Printf("  %-24s %s\n", c.ID, c.Title)
		if c.RootCause != "" {
			fmt.Printf("    root cause: %s\n", c.RootCause)
		}
	}
	return nil
}

func runKnowledgeGraph(cmd *cobra.Command, args []string) error {
	client, _, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	graph, err := client.KnowledgeGraph(ctx)
	if err != nil {
		return err
	}
	if knowledgeJSON {
		return json.NewEncoder(os.Stdout).Encode(graph)
	}
	printHeader("🕸 Knowledge Graph")
	labels := make(map[string]string, len(graph.Nodes))
	for _, n := range graph.Nodes {
		labels[n.ID] = n.Label
	}
	for _, e := range graph.Edges {
		src, dst := labels[e.Source], labels[e.Target]
		if src == "" {
			src = e.Source
		}
		if dst == "" {
			dst = e.Target
		}
		fmt.Printf("  %s --%s--> %s\n", src, e.Label, dst)
	}
	return nil
}

func runKnowledgeShow(cmd *cobra.Command, args []string) error {
	client, _, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	c, err := client.HistoricalCase(ctx, args[0])
	if err != nil {
		return err
	}
	if knowledgeJSON {
		return json.NewEncoder(os.Stdout).Encode(c)
	}
	printHeader("📄 " + c.ID)
	fmt.Println("Title:      " + c.Title)
	fmt.Println("Symptom:    " + c.Symptom)
	fmt.Println("Root cause: " + c.RootCause)
	fmt.Println("Resolution: " + c.Resolution)
	if len(c.Tags) > 0 {
		fmt.Print("Tags:      ")
		for _, t := range c.Tags {
			fmt.Print(" " + t)
		}
		fmt.Println()
	}
	if c.ResolvedAt != "" {
		fmt.Println("Resolved:   " + c.ResolvedAt)
	}
	return nil
}

// listLocalCases prints rows from the offline sqlite archive. An empty term
// lists the most recent cases.
func listLocalCases(term string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path, err := config.ArchivePath(cfg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no local archive at %s (enable archive.enabled in config)", path)
	}
	arch, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer arch.Close()

	var cases []archive.CaseRecord
	if term == "" {
		cases, err = arch.RecentCases(knowledgeLimit)
	} else {
		cases, err = arch.SearchCases(term, knowledgeLimit)
	}
	if err != nil {
		return err
	}
	if knowledgeJSON {
		return json.NewEncoder(os.Stdout).Encode(cases)
	}
	printHeader("🗃 Local Case Archive")
	if len(cases) == 0 {
		fmt.Println("No archived cases.")
		return nil
	}
	for _, c := range cases {
		fmt.Printf("  %s %-32s %-13s %s\n", caseGlyph(c.Status), c.CaseID, c.Status, c.Symptom)
	}
	return nil
}
