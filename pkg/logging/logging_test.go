package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedHandler(buf *bytes.Buffer, level slog.Leveler) *Handler {
	h := NewHandler(buf, level)
	h.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return h
}

func TestHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(fixedHandler(&buf, slog.LevelDebug)).With(ModuleKey, ModuleOSC)

	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "osc received", 0)
	r.AddAttrs(slog.String("addr", "/a b"), slog.Int("n", 2))
	require.NoError(t, l.Handler().Handle(t.Context(), r))

	assert.Equal(t, "[2024-01-02][03:04:05][oscward::osc][INFO] osc received addr=\"/a b\" n=2\n", buf.String())
}

func TestHandler_ModuleDefault(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(fixedHandler(&buf, nil))

	l.Info("hello")

	assert.Contains(t, buf.String(), "[oscward][INFO] hello")
}

func TestHandler_ModuleFromRecordAttr(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(fixedHandler(&buf, nil))

	l.Info("hello", ModuleKey, ModuleLua)

	assert.Contains(t, buf.String(), "[oscward::lua][INFO] hello")
	assert.NotContains(t, buf.String(), "module=")
}

func TestHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(fixedHandler(&buf, slog.LevelWarn))

	l.Info("quiet")
	l.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "[WARN] loud")
}

func TestHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(fixedHandler(&buf, nil)).WithGroup("req").With("id", 7)

	l.Info("x", slog.Group("peer", slog.String("host", "h")))

	assert.True(t, strings.HasSuffix(buf.String(), " x req.id=7 req.peer.host=h\n"), buf.String())
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("Warning")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, ok = ParseLevel("")
	assert.False(t, ok)

	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}

func TestResolveLevel_EnvWins(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	assert.Equal(t, slog.LevelError, ResolveLevel("debug"))

	t.Setenv(EnvLogLevel, "")
	assert.Equal(t, slog.LevelDebug, ResolveLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ResolveLevel(""))
}
