package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grouplock/internal/app"
	"grouplock/internal/runstate"
	"grouplock/internal/store"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogWindow is how many log entries each pane shows.
const LogWindow = 50

// RefreshInterval is how often the dashboard polls the loops.
const RefreshInterval = time.Second

// Controller is the part of the application service the dashboard drives.
type Controller interface {
	StartAutomation(ctx context.Context, id int64) (bool, error)
	StopAutomation(id int64) bool
	StartLock(ctx context.Context, id int64) (bool, error)
	StopLock(ctx context.Context, id int64) (bool, error)
	Status(id int64, tail int) app.Status
}

// Pane selects which loop's log is shown.
type Pane int

const (
	PaneAutomation Pane = iota
	PaneLock
)

func (p Pane) String() string {
	if p == PaneLock {
		return "Group Lock"
	}
	return "Automation"
}

type tickMsg time.Time

type statusMsg app.Status

// noticeMsg reports the outcome of a start or stop key.
type noticeMsg struct {
	text string
	err  error
}

// Model is the dashboard.
type Model struct {
	ctl     Controller
	account store.Account
	styles  Styles

	pane     Pane
	status   app.Status
	notice   noticeMsg
	viewport viewport.Model

	width  int
	height int
}

// New returns a dashboard for acct.
func New(ctl Controller, acct store.Account, styles Styles) Model {
	m := Model{
		ctl:      ctl,
		account:  acct,
		styles:   styles,
		viewport: viewport.New(80, 16),
	}
	m.updateContent()
	return m
}

// Pane returns the selected pane.
func (m Model) Pane() Pane { return m.pane }

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	ctl, id := m.ctl, m.account.ID
	return func() tea.Msg {
		return statusMsg(ctl.Status(id, LogWindow))
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		// header, two status lines, tabs, two dividers, footer
		m.viewport.Height = max(msg.Height-7, 3)
		m.updateContent()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())

	case statusMsg:
		m.status = app.Status(msg)
		m.updateContent()
		return m, nil

	case noticeMsg:
		m.notice = msg
		return m, m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.pane = (m.pane + 1) % 2
			m.updateContent()
			return m, nil
		case "s":
			return m, m.startAutomation()
		case "x":
			return m, m.stopAutomation()
		case "l":
			return m, m.startLock()
		case "k":
			return m, m.stopLock()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) startAutomation() tea.Cmd {
	ctl, id := m.ctl, m.account.ID
	return func() tea.Msg {
		started, err := ctl.StartAutomation(context.Background(), id)
		switch {
		case err != nil:
			return noticeMsg{err: err}
		case !started:
			return noticeMsg{text: "Automation is already running"}
		}
		return noticeMsg{text: "Automation started"}
	}
}

func (m Model) stopAutomation() tea.Cmd {
	ctl, id := m.ctl, m.account.ID
	return func() tea.Msg {
		if !ctl.StopAutomation(id) {
			return noticeMsg{text: "Automation is not running"}
		}
		return noticeMsg{text: "Stopping automation..."}
	}
}

func (m Model) startLock() tea.Cmd {
	ctl, id := m.ctl, m.account.ID
	return func() tea.Msg {
		started, err := ctl.StartLock(context.Background(), id)
		switch {
		case err != nil:
			return noticeMsg{err: err}
		case !started:
			return noticeMsg{text: "Group lock is already running"}
		}
		return noticeMsg{text: "Group lock started"}
	}
}

func (m Model) stopLock() tea.Cmd {
	ctl, id := m.ctl, m.account.ID
	return func() tea.Msg {
		stopped, err := ctl.StopLock(context.Background(), id)
		switch {
		case err != nil:
			return noticeMsg{err: err}
		case !stopped:
			return noticeMsg{text: "Group lock disabled"}
		}
		return noticeMsg{text: "Stopping group lock..."}
	}
}

func (m Model) snapshot(p Pane) *runstate.Snapshot {
	if p == PaneLock {
		return m.status.Lock
	}
	return m.status.Automation
}

// updateContent refreshes the viewport from the last status, following the
// tail unless the user scrolled up.
func (m *Model) updateContent() {
	follow := m.viewport.AtBottom()
	snap := m.snapshot(m.pane)
	if snap == nil || len(snap.Tail) == 0 {
		m.viewport.SetContent(m.styles.Muted.Render("No activity yet."))
		return
	}
	lines := make([]string, len(snap.Tail))
	for i, e := range snap.Tail {
		lines[i] = e.String()
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) phase(snap *runstate.Snapshot) string {
	if snap == nil {
		return m.styles.Muted.Render("idle")
	}
	switch snap.Phase {
	case runstate.Running:
		if !snap.Running {
			return m.styles.Warning.Render("stopping")
		}
		return m.styles.Success.Render("running")
	case runstate.Failed:
		return m.styles.Error.Render("failed")
	default:
		return m.styles.Muted.Render(snap.Phase.String())
	}
}

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	var sb strings.Builder

	sb.WriteString(m.styles.Header.Render("grouplock  " + m.account.Username))
	sb.WriteString("\n")

	auto := m.status.Automation
	var sent, rotation uint64
	if auto != nil {
		sent, rotation = auto.Messages, auto.Rotation
	}
	sb.WriteString(fmt.Sprintf("%s %s  messages sent: %d  rotation: %d\n",
		m.styles.Bold.Render("Automation:"), m.phase(auto), sent, rotation))

	lock := m.status.Lock
	var checks, reverts uint64
	if lock != nil {
		checks, reverts = lock.Checks, lock.Reverts
	}
	sb.WriteString(fmt.Sprintf("%s %s  checks: %d  reverts: %d\n",
		m.styles.Bold.Render("Group Lock:"), m.phase(lock), checks, reverts))

	tabs := make([]string, 0, 2)
	for _, p := range []Pane{PaneAutomation, PaneLock} {
		if p == m.pane {
			tabs = append(tabs, m.styles.TabActive.Render(p.String()))
		} else {
			tabs = append(tabs, m.styles.TabInactive.Render(p.String()))
		}
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	sb.WriteString("\n")
	sb.WriteString(m.styles.RenderDivider(width))
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.styles.RenderDivider(width))
	sb.WriteString("\n")

	footer := "s/x start/stop sending  l/k start/stop lock  tab switch  q quit"
	switch {
	case m.notice.err != nil:
		footer = m.styles.Error.Render(m.notice.err.Error()) + "  " + footer
	case m.notice.text != "":
		footer = m.styles.Info.Render(m.notice.text) + "  " + footer
	}
	sb.WriteString(m.styles.Footer.Render(footer))
	return sb.String()
}
