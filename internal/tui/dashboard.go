// Terminal dashboard rendering shared-state snapshots
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"sentinelx/internal/state"
)

// refreshInterval paces snapshot reads; every read is a full copy, so the
// dashboard can never observe a torn write or block a monitor loop beyond
// the state's own critical section.
const refreshInterval = 250 * time.Millisecond

type tickMsg time.Time

var (
	headerOnlineStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("2")).Padding(0, 1)
	headerDegradedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")).Padding(0, 1)
	headerLockdownStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Padding(0, 1)
	hostPanelStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("6")).Padding(0, 1)
	streamPanelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("2")).Padding(0, 1)
	analysisPanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("3")).Padding(0, 1)
	analysisAlertStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("1")).Foreground(lipgloss.Color("1")).Bold(true).Padding(0, 1)
	titleStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	streamLineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Model renders read-only snapshots of the shared state.
type Model struct {
	st     *state.State
	target string // controller endpoint shown in the host panel
	snap   state.Snapshot
	vp     viewport.Model
	width  int
	height int
	ready  bool
}

// NewModel builds the dashboard model over st.
func NewModel(st *state.State, target string) Model {
	return Model{st: st, target: target, snap: st.Snapshot(), vp: viewport.New(0, 0)}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return tick() }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = max(msg.Width/2-4, 10)
		m.vp.Height = max(msg.Height-12, 3)
		m.ready = true
		m.refreshStream()
	case tickMsg:
		m.snap = m.st.Snapshot()
		m.refreshStream()
		return m, tick()
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *Model) refreshStream() {
	lines := make([]string, len(m.snap.Logs))
	for i, l := range m.snap.Logs {
		lines[i] = streamLineStyle.Render(l)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	m.vp.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "initializing..."
	}
	header := renderHeader(m.snap, m.width)

	host := hostPanelStyle.Width(m.width/2 - 2).Render(
		titleStyle.Render("Kernel Telemetry") + "\n" +
			fmt.Sprintf("CPU:     %5.1f%%\n", m.snap.Host.CPUPercent) +
			fmt.Sprintf("RAM:     %5.1f%%\n", m.snap.Host.RAMPercent) +
			fmt.Sprintf("NETWORK: %s", m.target))

	stream := streamPanelStyle.Width(m.width/2 - 2).Render(
		titleStyle.Render("Industrial Register Stream") + "\n" + m.vp.View())

	style := analysisPanelStyle
	if m.snap.Lockdown {
		style = analysisAlertStyle
	}
	analysisBody := wordwrap.String(m.snap.Analysis.Text, max(m.width/2-6, 10))
	analysis := style.Width(m.width/2 - 2).Height(m.vp.Height + 6).Render(
		titleStyle.Render("Visual Reasoning Cortex") + "\n" +
			"VERDICT: " + string(m.snap.Analysis.Verdict) + "\n\n" + analysisBody)

	left := lipgloss.JoinVertical(lipgloss.Left, host, stream)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, analysis)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, "  q: quit")
}

// renderHeader picks the banner for the current link and lockdown state.
func renderHeader(snap state.Snapshot, width int) string {
	if snap.Lockdown {
		return headerLockdownStyle.Width(max(width-2, 0)).Align(lipgloss.Center).
			Render("CRITICAL DISCREPANCY: PHYSICAL ATTACK DETECTED | LINK: " + string(snap.LinkStatus))
	}
	style := headerDegradedStyle
	if snap.LinkStatus == state.LinkOnline {
		style = headerOnlineStyle
	}
	return style.Width(max(width-2, 0)).Align(lipgloss.Center).
		Render("SENTINEL-X | LINK: " + string(snap.LinkStatus))
}

// Run blocks rendering the dashboard until the user quits.
func Run(st *state.State, target string) error {
	p := tea.NewProgram(NewModel(st, target), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
