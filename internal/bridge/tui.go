// ABOUTME: Bridge TUI showing stream state, levels, and connected sessions
// ABOUTME: Real-time status display using bubbletea
package bridge

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// BridgeTUI manages the status display.
type BridgeTUI struct {
	program  *tea.Program
	updates  chan BridgeStatus
	quitChan chan struct{}
}

// BridgeStatus holds bridge state for the TUI.
type BridgeStatus struct {
	Name        string
	Port        int
	StreamState string
	SampleRate  int
	BlockSize   int
	LatencyMs   float64
	InputLevel  float32
	OutputLevel float32
	Underruns   uint64
	Overruns    uint64
	Slots       int
	Sessions    []SessionInfo
}

// SessionInfo holds session information for display.
type SessionInfo struct {
	ID         string
	RemoteAddr string
	Connected  time.Time
}

type tuiModel struct {
	status    BridgeStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg BridgeStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = BridgeStatus(msg)
		return m, nil
	}

	return m, nil
}

// levelMeter renders a level in [0,1] as a fixed-width bar.
func levelMeter(level float32, width int) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level * float32(width))

	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			b.WriteString("█")
		} else {
			b.WriteString("░")
		}
	}
	return b.String()
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down bridge...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	sessionHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("NovaBridge"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Bridge: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s (port %d)", m.status.Name, m.status.Port)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	uptime := time.Since(m.startTime).Round(time.Second)
	b.WriteString(valueStyle.Render(uptime.String()))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Stream: "))
	if m.status.StreamState == "running" {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s  %d Hz / %d frames  %.1f ms",
			m.status.StreamState, m.status.SampleRate, m.status.BlockSize, m.status.LatencyMs)))
	} else {
		b.WriteString(valueStyle.Render(m.status.StreamState))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("In:  "))
	b.WriteString(valueStyle.Render(levelMeter(m.status.InputLevel, 24)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Out: "))
	b.WriteString(valueStyle.Render(levelMeter(m.status.OutputLevel, 24)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Drops: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d underruns / %d overruns",
		m.status.Underruns, m.status.Overruns)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Plugin slots: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Slots)))
	b.WriteString("\n\n")

	b.WriteString(sessionHeaderStyle.Render(fmt.Sprintf("Connected Sessions (%d)", len(m.status.Sessions))))
	b.WriteString("\n\n")

	if len(m.status.Sessions) == 0 {
		b.WriteString(valueStyle.Render("  No sessions connected"))
		b.WriteString("\n")
	} else {
		for _, session := range m.status.Sessions {
			b.WriteString(fmt.Sprintf("  • %s", session.RemoteAddr))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, up %s)",
				shortID(session.ID), time.Since(session.Connected).Round(time.Second))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NewBridgeTUI creates the TUI shell. Start runs it.
func NewBridgeTUI() *BridgeTUI {
	return &BridgeTUI{
		updates:  make(chan BridgeStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until quit.
func (t *BridgeTUI) Start(name string, port int) error {
	m := tuiModel{
		status: BridgeStatus{
			Name:        name,
			Port:        port,
			StreamState: "stopped",
			Sessions:    []SessionInfo{},
		},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range t.updates {
			if t.program != nil {
				t.program.Send(statusMsg(status))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status snapshot to the TUI without blocking.
func (t *BridgeTUI) Update(status BridgeStatus) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop shuts the TUI down.
func (t *BridgeTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan signals when the user asked to quit from the TUI.
func (t *BridgeTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
