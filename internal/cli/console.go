package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/starhyc/problem-diagnosis-assistant/internal/archive"
	"github.com/starhyc/problem-diagnosis-assistant/internal/auth"
	"github.com/starhyc/problem-diagnosis-assistant/internal/command"
	"github.com/starhyc/problem-diagnosis-assistant/internal/config"
	"github.com/starhyc/problem-diagnosis-assistant/internal/diagnosis"
	"github.com/starhyc/problem-diagnosis-assistant/internal/transport"
	"github.com/starhyc/problem-diagnosis-assistant/internal/ui"
)

var consoleAgentType string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the interactive diagnosis console",
	RunE:  runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&consoleAgentType, "agent", "", "Agent type to lead the diagnosis (diagnosis|qa|log_analysis)")
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	// The terminal owns stdout; logs go to a file next to the config.
	logFile, err := os.OpenFile(filepath.Join(dir, "console.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err == nil {
		defer logFile.Close()
		slog.SetDefault(slog.New(slog.NewTextHandler(logFile, nil)))
	}

	agentType := consoleAgentType
	if agentType == "" {
		agentType = cfg.Console.DefaultAgentType
	}
	if !diagnosis.ValidAgentType(agentType) {
		return fmt.Errorf("unknown agent type %q", agentType)
	}

	tokens := auth.NewStore(dir)
	backend := newBackendClient(cfg, tokens)

	channel := transport.NewChannel(transport.Options{
		URL:                  cfg.Server.EventStreamURL,
		ReconnectDelay:       cfg.Transport.ReconnectDelay(),
		MaxReconnectAttempts: cfg.Transport.MaxReconnectAttempts,
	})
	defer channel.Disconnect()

	var recorder diagnosis.Recorder
	if cfg.Archive.Enabled {
		path, err := config.ArchivePath(cfg)
		if err != nil {
			return err
		}
		arch, err := archive.Open(path)
		if err != nil {
			return fmt.Errorf("open case archive: %w", err)
		}
		defer arch.Close()
		recorder = arch
	}

	store := diagnosis.NewStore(command.NewEmitter(channel), backend, recorder)
	store.SetAgentType(agentType)
	channel.OnMessage(store.HandleEnvelope)

	if err := channel.Connect(); err != nil {
		// Reconnection is already scheduled; the console shows the state.
		slog.Warn("Initial connect failed", "error", err)
	}

	refresh := time.Duration(cfg.Console.RefreshMS) * time.Millisecond
	p := tea.NewProgram(ui.New(cmd.Context(), store, channel, refresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
