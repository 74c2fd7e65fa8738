package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oscward/oscward/pkg/defs"
	"github.com/oscward/oscward/pkg/events"
	"github.com/oscward/oscward/pkg/logging"
	"github.com/oscward/oscward/pkg/logrouter"
	"github.com/oscward/oscward/pkg/osc"
	"github.com/oscward/oscward/pkg/queue"
	"github.com/oscward/oscward/pkg/script"
)

// Engine owns every runtime task and the queues between them.
type Engine struct {
	cfg    Config
	log    *slog.Logger
	events *EventBus
	logs   *logrouter.Router

	app   *queue.Queue[events.Application]
	hostq *queue.Queue[events.Host]

	host      *script.Host
	watcher   *defs.Watcher
	transport *osc.Transport
	router    *Router

	mu       sync.Mutex
	logsAddr net.Addr
	logsUp   chan struct{}
}

// New creates an Engine from the given configuration. It validates the
// config and builds every component; nothing runs until Run. logs may be
// nil, in which case the engine creates its own router. Loggers are taken
// from slog.Default, so install the logging handler before calling New.
func New(cfg Config, logs *logrouter.Router) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = logrouter.New()
	}

	e := &Engine{
		cfg:    cfg,
		log:    logging.For(logging.ModuleEngine),
		events: NewEventBus(),
		logs:   logs,
		app:    queue.New[events.Application](),
		hostq:  queue.New[events.Host](),
		logsUp: make(chan struct{}),
	}

	host, err := script.New(script.Options{
		BaseDir: cfg.ScriptsPath(),
		IODir:   cfg.IOPath(),
		Events:  e.hostq,
		App:     e.app,
		Print:   logs.Print,
		Log:     logging.For(logging.ModuleLua),
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.host = host

	e.watcher = defs.NewWatcher(cfg.DefinitionsPath(), e.publishDefinition, logging.For(logging.ModuleDefs))
	if d, _ := cfg.debounce(); d > 0 {
		e.watcher.Debounce = d
	}

	transport, err := osc.NewTransport(osc.Config{
		Listen:      cfg.OSC.Listen,
		Target:      cfg.OSC.Send,
		Advertise:   cfg.OSC.Advertise,
		ServiceName: cfg.OSC.ServiceName,
		Greeting:    cfg.OSC.Greeting,
	}, logging.For(logging.ModuleOSC))
	if err != nil {
		host.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.transport = transport

	e.router = &Router{
		App:     e.app,
		Host:    e.hostq,
		Inbound: transport.Inbound(),
		Out:     transport,
		Bus:     e.events,
		Log:     e.log,
	}

	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Logs returns the log router.
func (e *Engine) Logs() *logrouter.Router { return e.logs }

// OSCReady is closed once the OSC listener is bound.
func (e *Engine) OSCReady() <-chan struct{} { return e.transport.Ready() }

// OSCAddr returns the bound OSC listener address, or nil before OSCReady.
func (e *Engine) OSCAddr() net.Addr { return e.transport.LocalAddr() }

// LogsReady is closed once the log stream listener is bound. It never closes
// when logs.listen is empty.
func (e *Engine) LogsReady() <-chan struct{} { return e.logsUp }

// LogsAddr returns the bound log stream address, or nil.
func (e *Engine) LogsAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.logsAddr
}

// Reload asks the router to rebuild the script sandbox.
func (e *Engine) Reload() { e.app.Push(events.ReloadScript{}) }

// Exit asks the router to stop the engine.
func (e *Engine) Exit() { e.app.Push(events.Exit{}) }

// Send queues an outbound OSC message. args are generic values as a script
// would pass them.
func (e *Engine) Send(address string, args ...any) {
	if args == nil {
		args = []any{}
	}
	e.app.Push(events.SendOutbound{Address: address, Args: args})
}

// Run starts every task and blocks until an Exit event, ctx cancellation,
// or a fatal script startup failure. Exit and cancellation return nil.
// Transport, watcher and log stream failures are logged and do not stop
// the engine.
func (e *Engine) Run(ctx context.Context) error {
	logsCtx, stopLogs := context.WithCancel(context.WithoutCancel(ctx))
	logsDone := make(chan struct{})
	go func() {
		defer close(logsDone)
		_ = e.logs.Run(logsCtx)
	}()
	defer func() {
		stopLogs()
		<-logsDone
	}()

	e.host.SetDefinition(e.watcher.Aggregate())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.transport.Run(gctx); err != nil {
			e.log.Error("osc transport stopped", "error", err)
			e.events.Publish(Event{Kind: EventError, Data: err.Error()})
		}
		return nil
	})

	g.Go(func() error {
		if err := e.watcher.Run(gctx); err != nil {
			e.log.Error("definition watcher stopped", "error", err)
			e.events.Publish(Event{Kind: EventError, Data: err.Error()})
		}
		return nil
	})

	g.Go(func() error {
		if err := e.host.Run(gctx); err != nil {
			e.log.Error("script host failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error { return e.router.Run(gctx) })

	if addr := e.cfg.Logs.Listen; addr != "" {
		g.Go(func() error {
			err := serveLogs(gctx, addr, e.logs.Handler(logging.For(logging.ModuleLogs)), e.log, e.setLogsAddr)
			if err != nil {
				e.log.Error("log stream stopped", "error", err)
			}
			return nil
		})
	}

	e.log.Info("engine started",
		"scripts", e.cfg.ScriptsPath(),
		"definitions", e.cfg.DefinitionsPath(),
		"listen", e.cfg.OSC.Listen,
		"send", e.cfg.OSC.Send,
	)
	e.events.Publish(Event{Kind: EventStarted, Timestamp: time.Now()})

	err := g.Wait()
	if errors.Is(err, ErrExit) {
		e.events.Publish(Event{Kind: EventExit})
		e.log.Info("engine stopped")
		return nil
	}

	return err
}

func (e *Engine) publishDefinition(tree any) {
	e.hostq.Push(events.ConfigUpdated{Tree: tree})
	e.events.Publish(Event{Kind: EventDefinitionUpdated, Data: tree})
}

func (e *Engine) setLogsAddr(addr net.Addr) {
	e.mu.Lock()
	e.logsAddr = addr
	e.mu.Unlock()

	close(e.logsUp)
}
