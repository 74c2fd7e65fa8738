package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/oscward/oscward/pkg/appdir"
	"github.com/oscward/oscward/pkg/engine"
	"github.com/oscward/oscward/pkg/logrouter"
)

// defaultDir returns the per-user application directory, falling back to a
// dot directory in the working directory.
func defaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".oscward"
	}
	return filepath.Join(base, "oscward")
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// loadConfig reads the config file. When no explicit path is given and the
// directory has no config yet, the defaults are written there first.
func loadConfig(explicit string, d appdir.Dir) (engine.Config, error) {
	path := explicit
	if path == "" {
		path = d.ConfigPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := engine.SaveConfig(path, engine.DefaultConfig()); err != nil {
				return engine.Config{}, err
			}
		}
	}

	cfg, err := engine.LoadConfig(path)
	if err != nil {
		return engine.Config{}, err
	}
	cfg.Dir = d.Root()

	if err := cfg.Validate(); err != nil {
		return engine.Config{}, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// printSink writes script print output to w, one line per call. Log lines
// routed to the same target are skipped since they already reach stderr.
func printSink(w io.Writer) logrouter.Sink {
	return logrouter.SinkFunc(func(e logrouter.Event) {
		if e.Kind != logrouter.EventPrint {
			return
		}
		_, _ = io.WriteString(w, strings.TrimRight(e.Line, "\n")+"\n")
	})
}
