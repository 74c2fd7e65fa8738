package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscward/oscward/pkg/appdir"
	"github.com/oscward/oscward/pkg/engine"
	"github.com/oscward/oscward/pkg/logrouter"
)

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnv_Sets(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OSCWARD_TEST_DOTENV=yes\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("OSCWARD_TEST_DOTENV") })

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "yes", os.Getenv("OSCWARD_TEST_DOTENV"))
}

func TestLoadConfig_WritesDefaults(t *testing.T) {
	d := appdir.New(t.TempDir())

	cfg, err := loadConfig("", d)
	require.NoError(t, err)

	assert.FileExists(t, d.ConfigPath())
	assert.Equal(t, d.Root(), cfg.Dir)
	assert.Equal(t, d.ScriptsDir(), cfg.ScriptsPath())
	assert.Equal(t, engine.DefaultConfig().OSC, cfg.OSC)
}

func TestLoadConfig_Explicit(t *testing.T) {
	d := appdir.New(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("osc:\n  send: 10.0.0.2:9000\n"), 0o600))

	cfg, err := loadConfig(path, d)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2:9000", cfg.OSC.Send)
	assert.NoFileExists(t, d.ConfigPath(), "explicit path does not seed the directory")
}

func TestLoadConfig_Invalid(t *testing.T) {
	d := appdir.New(t.TempDir())
	require.NoError(t, os.WriteFile(d.ConfigPath(), []byte("osc:\n  listen: nope\n"), 0o600))

	_, err := loadConfig("", d)
	assert.ErrorContains(t, err, "osc.listen")
}

func TestPrintSink_OnlyPrints(t *testing.T) {
	var buf bytes.Buffer
	sink := printSink(&buf)

	sink.Deliver(logrouter.Event{Kind: logrouter.EventLog, Line: "[2024-01-01][00:00:00][oscward::lua][INFO] started"})
	sink.Deliver(logrouter.Event{Kind: logrouter.EventPrint, Line: "hello"})
	sink.Deliver(logrouter.Event{Kind: logrouter.EventFinished})

	assert.Equal(t, "hello\n", buf.String())
}

func TestRun_Help(t *testing.T) {
	assert.NoError(t, run([]string{"--help"}))
}

func TestRun_UnknownFlag(t *testing.T) {
	assert.Error(t, run([]string{"--nope"}))
}
