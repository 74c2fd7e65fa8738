// oscward runs Lua scripts against an OSC endpoint. It watches a directory
// of JSON definition fragments, hands every received OSC message to the
// script's receive function, and sends whatever the script asks it to send.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/oscward/oscward/pkg/appdir"
	"github.com/oscward/oscward/pkg/engine"
	"github.com/oscward/oscward/pkg/logging"
	"github.com/oscward/oscward/pkg/logrouter"
)

type options struct {
	dir          string
	configPath   string
	envFile      string
	logLevel     string
	overwriteLua bool
	tui          bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options

	flagSet := pflag.NewFlagSet("oscward", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.dir, "dir", "d", defaultDir(), "application directory")
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to config file (default: <dir>/config.yaml)")
	flagSet.StringVar(&opts.envFile, "env", "", "path to .env file (default: <dir>/.env, ignored if missing)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config and "+logging.EnvLogLevel+")")
	flagSet.BoolVar(&opts.overwriteLua, "overwrite-all-lua", false, "replace the script directory with the bundled default scripts")
	flagSet.BoolVar(&opts.tui, "tui", false, "show the terminal log viewer")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	d := appdir.New(opts.dir)

	envFile := opts.envFile
	if envFile == "" {
		envFile = d.EnvPath()
	}
	if err := loadDotEnv(envFile); err != nil {
		return err
	}

	if err := appdir.EnsureStructure(d); err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configPath, d)
	if err != nil {
		return err
	}

	level := logging.ResolveLevel(cfg.Log.Level)
	if opts.logLevel != "" {
		l, ok := logging.ParseLevel(opts.logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", opts.logLevel)
		}
		level = l
	}

	logs := logrouter.New()
	var out io.Writer = io.MultiWriter(os.Stderr, logs)
	if opts.tui {
		out = logs
	}
	log := logging.Setup(out, level).With(logging.ModuleKey, logging.ModuleEngine)

	if cfg.ScriptsPath() == d.ScriptsDir() {
		wrote, err := appdir.ExtractScripts(d, opts.overwriteLua)
		if err != nil {
			return err
		}
		if wrote {
			log.Info("default scripts extracted", "dir", d.ScriptsDir())
		}
	}

	eng, err := engine.New(cfg, logs)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopSignals := handleSignals(eng, cancel)
	defer stopSignals()

	if opts.tui {
		return runTUI(ctx, eng)
	}

	logs.Register(logrouter.TargetPrint, printSink(os.Stdout))

	return eng.Run(ctx)
}

// handleSignals maps SIGHUP to a script reload and SIGINT/SIGTERM to an
// orderly exit. A second interrupt cancels immediately.
func handleSignals(eng *engine.Engine, cancel context.CancelFunc) func() {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		exiting := false
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				if sig == syscall.SIGHUP {
					eng.Reload()
					continue
				}
				if exiting {
					cancel()
					continue
				}
				exiting = true
				eng.Exit()
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
