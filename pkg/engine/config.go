package engine

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oscward/oscward/pkg/logging"
)

// Config is the top-level engine configuration.
type Config struct {
	Dir            string            `yaml:"-"`               // Set by CLI, not from YAML.
	ScriptsDir     string            `yaml:"scripts_dir"`     // Relative to Dir unless absolute.
	DefinitionsDir string            `yaml:"definitions_dir"` // Relative to Dir unless absolute.
	IODir          string            `yaml:"io_dir"`          // Relative to Dir unless absolute.
	OSC            OSCConfig         `yaml:"osc"`
	Definitions    DefinitionsConfig `yaml:"definitions"`
	Log            LogConfig         `yaml:"log"`
	Logs           LogsConfig        `yaml:"logs"`
}

// OSCConfig holds transport settings.
type OSCConfig struct {
	Listen      string `yaml:"listen"`
	Send        string `yaml:"send"`
	Advertise   bool   `yaml:"advertise"`
	ServiceName string `yaml:"service_name"`
	Greeting    bool   `yaml:"greeting"`
}

// DefinitionsConfig holds definition watcher settings.
type DefinitionsConfig struct {
	Debounce string `yaml:"debounce"` // Duration string, e.g. "2s".
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// LogsConfig controls the log streaming endpoint. An empty Listen disables it.
type LogsConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() Config {
	return Config{
		ScriptsDir:     "lua",
		DefinitionsDir: "defs",
		IODir:          "io",
		OSC: OSCConfig{
			Listen:      "127.0.0.1:9001",
			Send:        "127.0.0.1:9000",
			Advertise:   true,
			ServiceName: "oscward",
			Greeting:    true,
		},
		Definitions: DefinitionsConfig{Debounce: "2s"},
		Log:         LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and returns the result.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("engine: marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("engine: save config: %w", err)
	}

	return nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.ScriptsDir == "" {
		return errors.New("engine: config: scripts_dir is required")
	}
	if c.DefinitionsDir == "" {
		return errors.New("engine: config: definitions_dir is required")
	}

	if _, _, err := net.SplitHostPort(c.OSC.Listen); err != nil {
		return fmt.Errorf("engine: config: osc.listen %q: %w", c.OSC.Listen, err)
	}
	if _, _, err := net.SplitHostPort(c.OSC.Send); err != nil {
		return fmt.Errorf("engine: config: osc.send %q: %w", c.OSC.Send, err)
	}
	if c.OSC.Advertise && c.OSC.ServiceName == "" {
		return errors.New("engine: config: osc.service_name is required when advertising")
	}

	if _, err := c.debounce(); err != nil {
		return fmt.Errorf("engine: config: definitions.debounce: %w", err)
	}

	if c.Log.Level != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			return fmt.Errorf("engine: config: unknown log level %q", c.Log.Level)
		}
	}

	if c.Logs.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Logs.Listen); err != nil {
			return fmt.Errorf("engine: config: logs.listen %q: %w", c.Logs.Listen, err)
		}
	}

	return nil
}

func (c Config) debounce() (time.Duration, error) {
	if c.Definitions.Debounce == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.Definitions.Debounce)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}

	return d, nil
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// ScriptsPath returns the resolved script root.
func (c Config) ScriptsPath() string { return c.resolve(c.ScriptsDir) }

// DefinitionsPath returns the resolved definition root.
func (c Config) DefinitionsPath() string { return c.resolve(c.DefinitionsDir) }

// IOPath returns the resolved scratch directory, or "" if unset.
func (c Config) IOPath() string {
	if c.IODir == "" {
		return ""
	}
	return c.resolve(c.IODir)
}
