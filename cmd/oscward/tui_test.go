package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscward/oscward/pkg/engine"
	"github.com/oscward/oscward/pkg/logrouter"
)

type fakeController struct {
	reloads int
	exits   int
}

func (f *fakeController) Reload() { f.reloads++ }
func (f *fakeController) Exit()   { f.exits++ }

func sized(t *testing.T, ctl controller) viewerModel {
	t.Helper()

	m, _ := newViewer(ctl).Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	vm, ok := m.(viewerModel)
	require.True(t, ok)
	return vm
}

func update(t *testing.T, m viewerModel, msg tea.Msg) (viewerModel, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)
	vm, ok := next.(viewerModel)
	require.True(t, ok)
	return vm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewer_TabSwitching(t *testing.T) {
	m := sized(t, &fakeController{})
	assert.Equal(t, 0, m.active)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.active)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, len(tabs)-1, m.active, "wraps around")
}

func TestViewer_ReloadAndQuitKeys(t *testing.T) {
	ctl := &fakeController{}
	m := sized(t, ctl)

	m, _ = update(t, m, runes("r"))
	assert.Equal(t, 1, ctl.reloads)

	m, cmd := update(t, m, runes("q"))
	assert.Equal(t, 1, ctl.exits)
	assert.True(t, m.quitting)
	assert.Nil(t, cmd, "waits for the engine to stop")

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewer_LinesPerTab(t *testing.T) {
	m := sized(t, &fakeController{})

	m, _ = update(t, m, logLineMsg{target: logrouter.TargetAll, event: logrouter.Event{Kind: logrouter.EventLog, Line: "one"}})
	m, _ = update(t, m, logLineMsg{target: logrouter.TargetLua, event: logrouter.Event{Kind: logrouter.EventPrint, Line: "hi"}})
	m, _ = update(t, m, logLineMsg{target: logrouter.TargetLua, event: logrouter.Event{Kind: logrouter.EventFinished}})

	assert.Equal(t, []string{"one"}, m.lines[logrouter.TargetAll])
	assert.Equal(t, []string{"> hi"}, m.lines[logrouter.TargetLua])
	assert.Contains(t, m.View(), "one")
	assert.NotContains(t, m.View(), "> hi")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Contains(t, m.View(), "> hi")
}

func TestViewer_ScrollbackCapped(t *testing.T) {
	m := sized(t, &fakeController{})

	for i := range maxLines + 5 {
		m.appendLine(logrouter.TargetOSC, logrouter.Event{Kind: logrouter.EventLog, Line: strings.Repeat("x", i%7+1)})
	}

	assert.Len(t, m.lines[logrouter.TargetOSC], maxLines)
}

func TestViewer_EngineEvents(t *testing.T) {
	m := sized(t, &fakeController{})
	at := time.Date(2024, 1, 1, 12, 30, 0, 0, time.Local)

	m, _ = update(t, m, engineEventMsg{ev: engine.Event{Kind: engine.EventStarted}})
	m, _ = update(t, m, engineEventMsg{ev: engine.Event{Kind: engine.EventInbound}})
	m, _ = update(t, m, engineEventMsg{ev: engine.Event{Kind: engine.EventInbound}})
	m, _ = update(t, m, engineEventMsg{ev: engine.Event{Kind: engine.EventOutbound}})
	m, _ = update(t, m, engineEventMsg{ev: engine.Event{Kind: engine.EventDefinitionUpdated, Timestamp: at}})

	assert.Equal(t, "running", m.status)
	assert.Equal(t, 2, m.inbound)
	assert.Equal(t, 1, m.outbound)
	assert.Contains(t, m.statusLine(), "defs 12:30:00")
}

func TestViewer_EngineDoneQuits(t *testing.T) {
	m := sized(t, &fakeController{})

	m, cmd := update(t, m, engineDoneMsg{err: errors.New("boom")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, m.statusLine(), "boom")
}

func TestViewer_NotReady(t *testing.T) {
	assert.Equal(t, "starting...\n", newViewer(&fakeController{}).View())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hello", truncate("hello", 0))
	assert.Equal(t, "hel…", truncate("hello", 4))
}
