package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/oscward/oscward/pkg/engine"
	"github.com/oscward/oscward/pkg/logrouter"
)

// maxLines caps the scrollback kept per tab.
const maxLines = 2000

// tabs lists the viewer tabs in display order.
var tabs = []string{logrouter.TargetAll, logrouter.TargetLua, logrouter.TargetOSC, logrouter.TargetDefs}

// controller is the part of the engine the viewer drives.
type controller interface {
	Reload()
	Exit()
}

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Reload key.Binding
	Quit   key.Binding
	Force  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Force:  key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// Messages sent into the program by the bridge.
type (
	logLineMsg struct {
		target string
		event  logrouter.Event
	}
	engineEventMsg struct{ ev engine.Event }
	engineDoneMsg  struct{ err error }
)

// viewerModel is the log viewer: a tab bar, a viewport over the active
// tab's lines and a status line.
type viewerModel struct {
	ctl      controller
	keys     keyMap
	lines    map[string][]string
	active   int
	viewport viewport.Model
	width    int
	ready    bool

	inbound  int
	outbound int
	defsAt   time.Time
	status   string
	quitting bool
	err      error
}

func newViewer(ctl controller) viewerModel {
	return viewerModel{
		ctl:    ctl,
		keys:   newKeyMap(),
		lines:  make(map[string][]string, len(tabs)),
		status: "starting",
	}
}

func (m viewerModel) Init() tea.Cmd { return nil }

func (m viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-2, 1) // tab bar + status line
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case logLineMsg:
		m.appendLine(msg.target, msg.event)
		return m, nil

	case engineEventMsg:
		m.applyEvent(msg.ev)
		return m, nil

	case engineDoneMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m viewerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Force):
		if m.quitting {
			return m, tea.Quit
		}
		m.quitting = true
		m.status = "exiting"
		m.ctl.Exit()
		return m, nil
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.status = "exiting"
		m.ctl.Exit()
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		m.ctl.Reload()
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.active = (m.active + 1) % len(tabs)
		m.refresh(true)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.active = (m.active + len(tabs) - 1) % len(tabs)
		m.refresh(true)
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *viewerModel) appendLine(target string, e logrouter.Event) {
	if e.Kind == logrouter.EventFinished || e.Line == "" {
		return
	}

	line := e.Line
	if e.Kind == logrouter.EventPrint {
		line = "> " + line
	}

	buf := append(m.lines[target], line)
	if len(buf) > maxLines {
		buf = buf[len(buf)-maxLines:]
	}
	m.lines[target] = buf

	if target == tabs[m.active] {
		m.refresh(false)
	}
}

func (m *viewerModel) applyEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventStarted:
		m.status = "running"
	case engine.EventInbound:
		m.inbound++
	case engine.EventOutbound:
		m.outbound++
	case engine.EventDefinitionUpdated:
		m.defsAt = ev.Timestamp
	case engine.EventReload:
		m.status = "reloading"
	case engine.EventExit:
		m.status = "stopped"
	case engine.EventError:
		m.status = fmt.Sprintf("error: %v", ev.Data)
	}
}

// refresh re-renders the active tab. The view follows the tail unless the
// user has scrolled up; force always jumps to the bottom.
func (m *viewerModel) refresh(force bool) {
	if !m.ready {
		return
	}

	follow := force || m.viewport.AtBottom()

	lines := m.lines[tabs[m.active]]
	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = styleLine(truncate(l, m.width))
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))

	if follow {
		m.viewport.GotoBottom()
	}
}

func (m viewerModel) View() string {
	if !m.ready {
		return "starting...\n"
	}

	var sb strings.Builder
	sb.WriteString(m.tabBar())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())

	return sb.String()
}

func (m viewerModel) tabBar() string {
	parts := make([]string, len(tabs))
	for i, t := range tabs {
		label := fmt.Sprintf("%s (%d)", t, len(m.lines[t]))
		if i == m.active {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = inactiveTabStyle.Render(label)
		}
	}
	return strings.Join(parts, tabGap)
}

func (m viewerModel) statusLine() string {
	defs := "never"
	if !m.defsAt.IsZero() {
		defs = m.defsAt.Format("15:04:05")
	}

	status := m.status
	if m.err != nil {
		status = errorStyle.Render(m.err.Error())
	}

	line := fmt.Sprintf(" %s · in %d · out %d · defs %s", status, m.inbound, m.outbound, defs)
	help := fmt.Sprintf("  %s %s · %s %s · %s %s",
		m.keys.Next.Help().Key, m.keys.Next.Help().Desc,
		m.keys.Reload.Help().Key, m.keys.Reload.Help().Desc,
		m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc,
	)

	return statusStyle.Render(line) + helpStyle.Render(help)
}

// truncate cuts s to width display cells. A non-positive width disables it.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// styleLine colours a log line by the level in its bracketed prefix.
func styleLine(line string) string {
	switch {
	case strings.HasPrefix(line, "> "):
		return printLineStyle.Render(line)
	case strings.Contains(line, "][ERROR]"):
		return errorLineStyle.Render(line)
	case strings.Contains(line, "][WARN]"):
		return warnLineStyle.Render(line)
	case strings.Contains(line, "][DEBUG]"):
		return debugLineStyle.Render(line)
	default:
		return line
	}
}
