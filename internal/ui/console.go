// Package ui renders the interactive diagnosis console on top of the
// session store and the event channel.
package ui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starhyc/problem-diagnosis-assistant/internal/diagnosis"
	"github.com/starhyc/problem-diagnosis-assistant/internal/protocol"
	"github.com/starhyc/problem-diagnosis-assistant/internal/transport"
)

type state int

const (
	stateCompose state = iota
	stateSession
	stateConfirmQuit
)

type storeChangedMsg struct{}
type channelStatusMsg transport.Status
type tickMsg time.Time
type errMsg struct{ err error }

// Model is the bubbletea model of the diagnosis console.
type Model struct {
	ctx     context.Context
	store   *diagnosis.Store
	channel *transport.Channel
	refresh time.Duration

	state    state
	status   transport.Status
	statusCh chan transport.Status
	width    int
	height   int
	err      error

	viewport viewport.Model
	textarea textarea.Model
}

// New builds the console model. The channel's status transitions are fed into
// the update loop; the caller is expected to have registered the store via
// channel.OnMessage before starting the program.
func New(ctx context.Context, store *diagnosis.Store, channel *transport.Channel, refresh time.Duration) Model {
	ta := textarea.New()
	ta.Placeholder = "Describe the symptom, e.g. orders service returning 504s..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 500
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent("No active case. Describe a symptom and press Enter to start.")

	if refresh <= 0 {
		refresh = time.Second
	}

	m := Model{
		ctx:      ctx,
		store:    store,
		channel:  channel,
		refresh:  refresh,
		state:    stateCompose,
		status:   channel.Status(),
		statusCh: make(chan transport.Status, 8),
		viewport: vp,
		textarea: ta,
	}
	channel.OnStatus(func(s transport.Status) {
		select {
		case m.statusCh <- s:
		default:
		}
	})
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForChange(m.store.Changes()),
		waitForStatus(m.statusCh),
		tick(m.refresh),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// Keystrokes reach the textarea only while composing; in session view
	// they are commands.
	switch msg.(type) {
	case tea.KeyMsg:
		if m.state == stateCompose {
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	default:
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 4
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}

	case tea.KeyMsg:
		return m.handleKey(msg, cmds)

	case storeChangedMsg:
		m.refreshContent()
		cmds = append(cmds, waitForChange(m.store.Changes()))

	case channelStatusMsg:
		m.status = transport.Status(msg)
		cmds = append(cmds, waitForStatus(m.statusCh))

	case tickMsg:
		// Elapsed times advance even when no event arrives.
		if m.state == stateSession {
			m.refreshContent()
		}
		cmds = append(cmds, tick(m.refresh))

	case errMsg:
		m.err = msg.err
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.store.IsRunning() {
			m.state = stateConfirmQuit
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEsc:
		switch m.state {
		case stateConfirmQuit:
			m.state = stateSession
			return m, nil
		case stateSession:
			if m.store.IsRunning() {
				m.state = stateConfirmQuit
				return m, nil
			}
			return m, tea.Quit
		default:
			return m, tea.Quit
		}

	case tea.KeyEnter:
		if m.state == stateCompose {
			return m.startDiagnosis(cmds)
		}

	case tea.KeyTab:
		if m.state == stateSession {
			m.cycleSelection(1)
			m.refreshContent()
		}

	case tea.KeyShiftTab:
		if m.state == stateSession {
			m.cycleSelection(-1)
			m.refreshContent()
		}
	}

	if m.state == stateConfirmQuit {
		switch msg.String() {
		case "y", "Y":
			m.store.Stop()
			return m, tea.Quit
		case "n", "N":
			m.state = stateSession
		}
		return m, tea.Batch(cmds...)
	}

	if m.state != stateSession {
		return m, tea.Batch(cmds...)
	}

	switch msg.String() {
	case "q":
		if m.store.IsRunning() {
			m.state = stateConfirmQuit
			return m, nil
		}
		return m, tea.Quit

	case "s":
		m.store.Stop()
		m.refreshContent()

	case "a":
		if err := m.store.Approve(); err != nil {
			m.err = err
		} else {
			m.err = nil
		}
		m.refreshContent()

	case "r":
		if err := m.store.Reject(); err != nil {
			m.err = err
		} else {
			m.err = nil
		}
		m.refreshContent()

	case "n":
		if !m.store.IsRunning() {
			m.state = stateCompose
			m.err = nil
			m.textarea.Reset()
			m.textarea.Focus()
			return m, textarea.Blink
		}

	case "y":
		if conf, ok := m.store.Confirmation(); ok {
			m.store.RespondToConfirmation(conf.ID, confirmationAnswer(conf, -1))
			m.refreshContent()
		}

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		if conf, ok := m.store.Confirmation(); ok {
			idx, _ := strconv.Atoi(msg.String())
			if idx >= 1 && idx <= len(conf.Options) {
				m.store.RespondToConfirmation(conf.ID, confirmationAnswer(conf, idx-1))
				m.refreshContent()
			}
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) startDiagnosis(cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	symptom := strings.TrimSpace(m.textarea.Value())
	if symptom == "" {
		return m, tea.Batch(cmds...)
	}
	m.textarea.Reset()
	m.textarea.Blur()
	m.state = stateSession
	m.err = nil

	store := m.store
	ctx := m.ctx
	agentType := store.AgentType()
	cmds = append(cmds, func() tea.Msg {
		if err := store.Start(ctx, agentType, symptom, ""); err != nil {
			return errMsg{err}
		}
		return storeChangedMsg{}
	})
	m.refreshContent()
	return m, tea.Batch(cmds...)
}

// cycleSelection moves the trace selection across roots in arrival order.
func (m *Model) cycleSelection(dir int) {
	roots := m.store.Traces().Roots()
	if len(roots) == 0 {
		return
	}
	cur := m.store.Traces().Selected()
	idx := 0
	for i, id := range roots {
		if id == cur {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(roots)) % len(roots)
	m.store.Traces().Select(roots[idx])
}

func (m *Model) refreshContent() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.sessionContent(time.Now()))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// confirmationAnswer resolves the wire response for a confirmation: the
// option value at idx, the default (or first) option when idx is -1, plain
// true when the request carries no options.
func confirmationAnswer(conf protocol.Confirmation, idx int) any {
	if len(conf.Options) == 0 {
		return true
	}
	if idx >= 0 && idx < len(conf.Options) {
		return conf.Options[idx].Value
	}
	if conf.DefaultOption != "" {
		return conf.DefaultOption
	}
	return conf.Options[0].Value
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}

func waitForStatus(ch <-chan transport.Status) tea.Cmd {
	return func() tea.Msg {
		return channelStatusMsg(<-ch)
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
