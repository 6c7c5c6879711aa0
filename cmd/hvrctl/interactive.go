package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/hvr-interface/config"
	"github.com/wippyai/hvr-interface/interop"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const logLines = 8

// logSink keeps the most recent log lines for display; the TUI owns the
// terminal, so logs cannot go to stderr.
type logSink struct {
	lines []string
	mu    sync.Mutex
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		s.lines = append(s.lines, line)
	}
	if over := len(s.lines) - logLines; over > 0 {
		s.lines = s.lines[over:]
	}
	return len(p), nil
}

func (s *logSink) Sync() error { return nil }

func (s *logSink) Tail() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func newSinkLogger(sink *logSink, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, level)
	return zap.New(core)
}

type modelState int

const (
	stateLoading modelState = iota
	stateRunning
	stateQuery
)

type interactiveModel struct {
	err      error
	ctx      context.Context
	session  *session
	cfg      *config.Config
	logs     *logSink
	logger   *zap.Logger
	memory   *interop.MemoryStats
	network  *interop.NetworkStats
	def      string
	answer   string
	types    []string
	spinner  spinner.Model
	query    textinput.Model
	tick     time.Duration
	ticks    int
	selected int
	state    modelState
	demo     bool
	paused   bool
}

func newInteractiveModel(cfg *config.Config, o options) *interactiveModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = labelStyle

	q := textinput.New()
	q.Placeholder = "version"
	q.Prompt = "info key: "
	q.Width = 32

	logs := &logSink{}
	return &interactiveModel{
		ctx:     context.Background(),
		cfg:     cfg,
		logs:    logs,
		logger:  newSinkLogger(logs, cfg.Verbose),
		spinner: sp,
		query:   q,
		tick:    o.tick,
		demo:    o.demo,
		state:   stateLoading,
	}
}

type loadedMsg struct {
	err     error
	session *session
}

type tickMsg time.Time

type capabilitiesMsg struct {
	def   string
	types []string
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load)
}

func (m *interactiveModel) load() tea.Msg {
	s, err := openSession(m.ctx, m.cfg, m.demo, m.logger)
	if err != nil {
		return loadedMsg{err: err}
	}
	if !s.rt.Initialize(m.ctx) {
		err := s.rt.LastAttempt().Err
		s.Close(m.ctx)
		return loadedMsg{err: fmt.Errorf("engine did not initialise: %w", err)}
	}
	return loadedMsg{session: s}
}

func (m *interactiveModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *interactiveModel) loadCapabilities() tea.Msg {
	caps := m.session.rt.Capabilities()
	def, err := caps.DefaultType(m.ctx)
	if err != nil {
		m.logger.Error("no default render method", zap.Error(err))
	}
	return capabilitiesMsg{types: caps.SupportedTypes(m.ctx), def: def}
}

func (m *interactiveModel) refreshCapabilities() tea.Msg {
	if err := m.session.rt.Capabilities().Refresh(m.ctx); err != nil {
		m.logger.Warn("capability refresh failed", zap.Error(err))
	}
	return m.loadCapabilities()
}

func (m *interactiveModel) close() {
	if m.session != nil {
		m.session.Close(m.ctx)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateQuery {
			return m.updateQuery(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.types)-1 {
				m.selected++
			}

		case "p":
			if m.state == stateRunning {
				m.paused = !m.paused
				if !m.paused {
					return m, m.scheduleTick()
				}
			}

		case "r":
			if m.state == stateRunning {
				return m, m.refreshCapabilities
			}

		case "/":
			if m.state == stateRunning {
				m.state = stateQuery
				m.query.SetValue("")
				return m, m.query.Focus()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.state = stateRunning
		return m, tea.Batch(m.loadCapabilities, m.scheduleTick())

	case capabilitiesMsg:
		m.types = msg.types
		m.def = msg.def
		if m.selected >= len(m.types) {
			m.selected = max(len(m.types)-1, 0)
		}

	case tickMsg:
		if m.session == nil || m.paused {
			return m, nil
		}
		m.session.rt.Update(m.ctx)
		m.ticks++
		if mem, err := m.session.rt.MemoryStats(m.ctx); err == nil {
			m.memory = &mem
		}
		if net, err := m.session.rt.NetworkStats(m.ctx); err == nil {
			m.network = &net
		}
		return m, m.scheduleTick()

	case spinner.TickMsg:
		if m.state != stateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) updateQuery(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.close()
		return m, tea.Quit
	case "esc":
		m.query.Blur()
		m.state = stateRunning
		return m, nil
	case "enter":
		key := strings.TrimSpace(m.query.Value())
		if key == "" {
			key = m.query.Placeholder
		}
		value := m.session.rt.Info(m.ctx, key)
		if value == "" {
			m.answer = fmt.Sprintf("%s: <no value>", key)
		} else {
			m.answer = fmt.Sprintf("%s = %s", key, value)
		}
		m.query.Blur()
		m.state = stateRunning
		return m, nil
	}
	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.state == stateLoading {
		return m.spinner.View() + " Initialising engine..."
	}

	var b strings.Builder
	rt := m.session.rt

	b.WriteString(titleStyle.Render("HVR Engine"))
	b.WriteString(" ")
	b.WriteString(m.session.source)
	b.WriteString("\n\n")

	status := fmt.Sprintf("%s  ticks %d", rt.State(), m.ticks)
	if m.paused {
		status += "  (paused)"
	}
	b.WriteString(labelStyle.Render("state     ") + status + "\n")
	b.WriteString(labelStyle.Render("platform  ") + rt.Platform().Name + "\n")
	if lc := rt.Monitor().LastCheck(); !lc.IsZero() {
		b.WriteString(labelStyle.Render("reconnect ") + lc.Format(time.TimeOnly) + "\n")
	}
	if m.memory != nil {
		b.WriteString(labelStyle.Render("memory    ") +
			fmt.Sprintf("used %d / alloc %d bytes", m.memory.UsedBytes, m.memory.AllocBytes) + "\n")
	}
	if m.network != nil {
		b.WriteString(labelStyle.Render("network   ") +
			fmt.Sprintf("%d bps", m.network.BitsPerSecond) + "\n")
	}

	b.WriteString("\nRender methods:\n\n")
	for i, t := range m.types {
		line := t
		if t == m.def {
			line += " (default)"
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + typeStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.types) == 0 {
		b.WriteString(errorStyle.Render("  none published on this platform") + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.state == stateQuery:
		b.WriteString(m.query.View() + "\n")
	case m.answer != "":
		b.WriteString(resultStyle.Render(m.answer) + "\n")
	}

	if tail := m.logs.Tail(); len(tail) > 0 {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(strings.Join(tail, "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.state == stateQuery {
		b.WriteString(helpStyle.Render("enter query • esc back"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ select • / info • r refresh • p pause • q quit"))
	}
	return b.String()
}

func runInteractive(cfg *config.Config, o options) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newInteractiveModel(cfg, o), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
