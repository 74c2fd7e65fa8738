// Package script hosts a single Lua sandbox. The host binds capabilities
// into the sandbox (osc.send, wardrobe.exit, sleep, print), runs the entry
// script, and dispatches queued events to script callbacks. All access to
// the sandbox goes through one mutex, so at most one script invocation runs
// at a time.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/oscward/oscward/pkg/events"
	"github.com/oscward/oscward/pkg/queue"
)

const (
	// EntryName is the entry script file name inside the script root.
	EntryName = "main.lua"
	// Namespace is the global table holding host state visible to scripts.
	Namespace = "wardrobe"
	// DefinitionKey is the field of Namespace holding the definition tree.
	DefinitionKey = "definition"

	mainFunc    = "main"
	receiveFunc = "receive"
)

// State is the lifecycle state of the sandbox.
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateReloading
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateReloading:
		return "reloading"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Host.
type Options struct {
	BaseDir string // Script root; EntryName is loaded from here.
	IODir   string // Scratch directory exposed as wardrobe.io_dir.

	Events *queue.Queue[events.Host]        // Inbound events for the host.
	App    *queue.Queue[events.Application] // Events the host emits.

	Print func(line string) // Receives print output. Nil logs it instead.
	Log   *slog.Logger
}

// Host owns one sandbox at a time.
type Host struct {
	opts Options
	log  *slog.Logger

	mu            sync.Mutex
	L             *lua.LState
	definition    any
	hasDefinition bool

	state atomic.Int32
}

// New validates opts and creates a Host with a fresh sandbox. The entry
// script is not run until Start.
func New(opts Options) (*Host, error) {
	if opts.BaseDir == "" {
		return nil, errors.New("script: base dir is required")
	}
	if opts.Events == nil || opts.App == nil {
		return nil, errors.New("script: event queues are required")
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	h := &Host{opts: opts, log: opts.Log}
	h.L = h.newSandbox()

	return h, nil
}

// State returns the current lifecycle state.
func (h *Host) State() State { return State(h.state.Load()) }

// EntryPath returns the path of the entry script.
func (h *Host) EntryPath() string { return filepath.Join(h.opts.BaseDir, EntryName) }

// SetDefinition stores tree as the current definition and writes it into
// the sandbox. It is re-applied to every fresh sandbox before its entry
// script runs.
func (h *Host) SetDefinition(tree any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.applyDefinition(tree)
}

// Start runs the entry script and then its main function, if defined.
// Failure to read, parse or run either is returned.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.start(ctx)
}

// Run starts the host and then drains events until ctx is cancelled. A
// startup failure is returned; cancellation returns nil.
func (h *Host) Run(ctx context.Context) error {
	defer h.Close()

	if err := h.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		h.Drain(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-h.opts.Events.Wait():
		}
	}
}

// Drain dispatches every pending event in order and returns once the queue
// is empty. It never blocks waiting for new events.
func (h *Host) Drain(ctx context.Context) {
	for {
		ev, ok := h.opts.Events.TryPop()
		if !ok {
			return
		}
		h.dispatch(ctx, ev)
	}
}

// Close releases the sandbox.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.L != nil {
		h.L.Close()
		h.L = nil
	}
}

func (h *Host) dispatch(ctx context.Context, ev events.Host) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.L == nil {
		h.log.Warn("event dropped, sandbox closed", "event", fmt.Sprintf("%T", ev))
		return
	}

	switch ev := ev.(type) {
	case events.InboundReceived:
		h.receive(ctx, ev)
	case events.ConfigUpdated:
		h.log.Debug("definition updated")
		h.applyDefinition(ev.Tree)
	case events.Reload:
		h.reload(ctx)
	default:
		h.log.Warn("unknown host event", "event", fmt.Sprintf("%T", ev))
	}
}

func (h *Host) receive(ctx context.Context, ev events.InboundReceived) {
	fn, ok := h.lookup(receiveFunc)
	if !ok {
		h.log.Warn("no receive function defined", "address", ev.Address)
		return
	}

	h.L.SetContext(ctx)
	err := h.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true},
		lua.LString(ev.Address), ToLua(h.L, ev.Args))
	if err != nil {
		h.log.Warn("receive failed", "address", ev.Address, "error", err)
	}
}

// reload replaces the sandbox and starts it again. A failed start is logged;
// the fresh sandbox stays in place so a later reload can recover.
func (h *Host) reload(ctx context.Context) {
	h.log.Info("reloading")
	h.state.Store(int32(StateReloading))

	h.L.Close()
	h.L = h.newSandbox()

	if err := h.start(ctx); err != nil {
		h.log.Error("reload failed", "error", err)
	}

	h.state.Store(int32(StateRunning))
}

func (h *Host) start(ctx context.Context) error {
	h.L.SetContext(ctx)

	if h.hasDefinition {
		h.setNamespaced(DefinitionKey, ToLua(h.L, h.definition))
	}

	path := h.EntryPath()
	src, err := os.ReadFile(path) //nolint:gosec // entry path is derived from the configured script root
	if err != nil {
		return fmt.Errorf("script: read entry: %w", err)
	}

	fn, err := h.L.Load(bytes.NewReader(src), EntryName)
	if err != nil {
		return fmt.Errorf("script: parse entry: %w", err)
	}

	h.L.Push(fn)
	if err := h.L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("script: run entry: %w", err)
	}
	h.L.SetTop(0)

	if main, ok := h.lookup(mainFunc); ok {
		if err := h.L.CallByParam(lua.P{Fn: main, NRet: lua.MultRet, Protect: true}); err != nil {
			return fmt.Errorf("script: main: %w", err)
		}
		h.log.Debug("main returned", "values", h.L.GetTop())
		h.L.SetTop(0)
	}

	h.state.Store(int32(StateRunning))
	h.log.Info("script started", "entry", path)

	return nil
}

// lookup returns the global function name, if the script defines one.
func (h *Host) lookup(name string) (*lua.LFunction, bool) {
	fn, ok := h.L.GetGlobal(name).(*lua.LFunction)
	return fn, ok
}

func (h *Host) applyDefinition(tree any) {
	h.definition = tree
	h.hasDefinition = true

	if h.L != nil {
		h.setNamespaced(DefinitionKey, ToLua(h.L, tree))
	}
}

// setNamespaced sets Namespace.key, creating the namespace table if the
// script removed or replaced it.
func (h *Host) setNamespaced(key string, v lua.LValue) {
	setPath(h.L, h.L.G.Global, []string{Namespace, key}, v)
}

// setPath assigns v at keys below tbl, replacing non-table intermediates.
func setPath(L *lua.LState, tbl *lua.LTable, keys []string, v lua.LValue) {
	if len(keys) == 0 {
		return
	}

	for _, k := range keys[:len(keys)-1] {
		next, ok := tbl.RawGetString(k).(*lua.LTable)
		if !ok {
			next = L.NewTable()
			tbl.RawSetString(k, next)
		}
		tbl = next
	}

	tbl.RawSetString(keys[len(keys)-1], v)
}
