package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/starhyc/problem-diagnosis-assistant/internal/diagnosis"
	"github.com/starhyc/problem-diagnosis-assistant/internal/trace"
	"github.com/starhyc/problem-diagnosis-assistant/internal/transport"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("11")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

func (m Model) View() string {
	header := titleStyle.Render("Diagnosis Console") + "  " + connectionBadge(m.status)

	var errorView string
	if m.err != nil {
		errorView = errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	if m.state == stateConfirmQuit {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			"A diagnosis is still running. Stop it and quit? (y/n)",
			errorView,
		)
	}

	if m.state == stateCompose {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			m.viewport.View(),
			"",
			m.textarea.View(),
			dimStyle.Render("Enter start · Esc quit"),
			errorView,
		)
	}

	footer := dimStyle.Render("s stop · a approve · r reject · tab next trace · n new case · q quit")
	if _, ok := m.store.Confirmation(); ok {
		footer = dimStyle.Render("y confirm default · 1-9 pick option · s stop · q quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		m.viewport.View(),
		"",
		footer,
		errorView,
	)
}

func connectionBadge(s transport.Status) string {
	switch s {
	case transport.StatusConnected:
		return okStyle.Render("● connected")
	case transport.StatusConnecting:
		return warnStyle.Render("◌ connecting")
	case transport.StatusError:
		return failStyle.Render("● error")
	default:
		return dimStyle.Render("○ disconnected")
	}
}

// sessionContent renders the full scrollback body for the current snapshot.
func (m *Model) sessionContent(now time.Time) string {
	var sb strings.Builder

	c, ok := m.store.Current()
	if !ok {
		return "No active case. Describe a symptom and press Enter to start."
	}

	sb.WriteString(renderCaseHeader(c, m.store.IsRunning()))
	sb.WriteString("\n")

	if len(c.Messages) > 0 {
		sb.WriteString("\n")
		for _, msg := range c.Messages {
			sb.WriteString(renderMessage(msg))
		}
	}

	if len(c.Timeline) > 0 {
		sb.WriteString("\n" + dimStyle.Render("Timeline") + "\n")
		for _, step := range c.Timeline {
			sb.WriteString(renderTimelineStep(step))
		}
	}

	rec := m.store.Traces()
	roots := rec.Roots()
	if len(roots) > 0 {
		total := rec.TotalTokens()
		sb.WriteString("\n" + dimStyle.Render(fmt.Sprintf("Agents (tokens %d in / %d out)", total.Input, total.Output)) + "\n")
		selected := rec.Selected()
		for _, id := range roots {
			if t, ok := rec.Get(id); ok {
				sb.WriteString(renderTrace(t, now, 0, id == selected))
				for _, child := range rec.Children(id) {
					sb.WriteString(renderTrace(child, now, 1, false))
				}
			}
		}
		if t, ok := rec.Get(selected); ok && len(t.Steps) > 0 {
			sb.WriteString("\n" + dimStyle.Render(fmt.Sprintf("Steps of %s", t.Name)) + "\n")
			for _, s := range t.Steps {
				sb.WriteString(renderStep(s))
			}
		}
	}

	if p, ok := m.store.Proposal(); ok {
		sb.WriteString("\n" + bannerStyle.Render(
			fmt.Sprintf("Proposed action: %s (confidence %d%%) — [a]pprove / [r]eject", p.Title, p.Confidence)) + "\n")
	}
	if conf, ok := m.store.Confirmation(); ok {
		sb.WriteString("\n" + bannerStyle.Render("Confirmation required: "+conf.Message) + "\n")
		for i, opt := range conf.Options {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, opt.Label))
		}
	}

	return sb.String()
}

func renderCaseHeader(c diagnosis.Case, running bool) string {
	status := string(c.Status)
	switch c.Status {
	case diagnosis.StatusResolved:
		status = okStyle.Render(status)
	case diagnosis.StatusFailed:
		status = failStyle.Render(status)
	default:
		if running {
			status = warnStyle.Render(status)
		}
	}
	return fmt.Sprintf("%s  %s  confidence %d%%\n%s",
		selectedStyle.Render(c.ID), status, c.Confidence, c.Symptom)
}

func renderMessage(m diagnosis.Message) string {
	label := agentStyle.Render(m.Agent)
	if m.Category != "" {
		label += dimStyle.Render(" [" + m.Category + "]")
	}
	return fmt.Sprintf("%s %s\n", label, m.Content)
}

func renderTimelineStep(s diagnosis.TimelineStep) string {
	glyph := stepGlyph(s.Status)
	line := fmt.Sprintf("  %s %s", glyph, s.Step)
	if s.Duration != "" {
		line += dimStyle.Render(" (" + s.Duration + ")")
	}
	return line + "\n"
}

func renderTrace(t trace.Trace, now time.Time, depth int, selected bool) string {
	indent := strings.Repeat("  ", depth+1)
	tok := t.LiveTokens()
	name := t.Name
	if name == "" {
		name = t.ID
	}
	if selected {
		name = selectedStyle.Render(name)
	}
	line := fmt.Sprintf("%s%s %s %s %s",
		indent, traceGlyph(t.Status), name,
		dimStyle.Render(formatElapsed(t.ElapsedAt(now))),
		dimStyle.Render(fmt.Sprintf("%d/%d tok", tok.Input, tok.Output)))
	if t.Subtasks != nil {
		line += dimStyle.Render(fmt.Sprintf(" [%d/%d]", t.Subtasks.Completed, t.Subtasks.Total))
	}
	if t.Err != "" {
		line += " " + failStyle.Render(t.Err)
	}
	return line + "\n"
}

func renderStep(s trace.Step) string {
	var detail string
	switch s.Kind {
	case "task_received":
		detail = s.Input
	case "llm_thinking":
		detail = firstLine(s.Content)
	case "tool_call":
		detail = s.ToolName
		if s.Status == "failed" {
			detail += " " + failStyle.Render("failed")
		}
	case "agent_dispatch":
		detail = "→ " + s.TargetAgentName
	default:
		detail = s.Kind
	}
	return fmt.Sprintf("    %s %s %s\n", dimStyle.Render("·"), s.Kind, detail)
}

func traceGlyph(s trace.Status) string {
	switch s {
	case trace.StatusSuccess:
		return okStyle.Render("✔")
	case trace.StatusFailed:
		return failStyle.Render("✘")
	case trace.StatusRunning:
		return warnStyle.Render("▸")
	default:
		return dimStyle.Render("·")
	}
}

func stepGlyph(status string) string {
	switch status {
	case "completed", "success":
		return okStyle.Render("✔")
	case "failed":
		return failStyle.Render("✘")
	case "running", "active":
		return warnStyle.Render("▸")
	default:
		return dimStyle.Render("·")
	}
}

// formatElapsed renders a duration compactly: 42s, 3m05s, 1h12m.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}
