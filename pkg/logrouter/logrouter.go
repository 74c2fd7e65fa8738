// Package logrouter demultiplexes a single ordered stream of formatted log
// lines to per-target sinks. The target is derived from the module in the
// line's bracketed prefix; every line also goes to the "all" target.
// Script print output bypasses prefix parsing and goes straight to the "lua"
// target.
package logrouter

import (
	"bytes"
	"context"
	"regexp"
	"sync"

	"github.com/oscward/oscward/pkg/queue"
)

// Well-known targets.
const (
	TargetAll  = "all"
	TargetLua  = "lua"
	TargetOSC  = "osc"
	TargetDefs = "defs"

	// TargetPrint receives script print output.
	TargetPrint = TargetLua
)

// moduleTargets maps a log module to its target.
var moduleTargets = map[string]string{
	"oscward::lua":  TargetLua,
	"oscward::osc":  TargetOSC,
	"oscward::defs": TargetDefs,
}

var prefixRE = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}\]\[\d{2}:\d{2}:\d{2}\]\[(?P<module>[\w:]+?)\]`)

// EventKind identifies the type of log event.
type EventKind string

const (
	EventLog      EventKind = "log"
	EventPrint    EventKind = "print"
	EventFinished EventKind = "finished"
)

// Event is delivered to sinks.
type Event struct {
	Kind EventKind `json:"event"`
	Line string    `json:"line,omitempty"`
}

// Sink receives routed events. Deliver must not block for long; it is called
// from the router's publish loop.
type Sink interface {
	Deliver(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Deliver calls f(e).
func (f SinkFunc) Deliver(e Event) { f(e) }

// ChanSink delivers events to a buffered channel, dropping events when the
// buffer is full so a slow reader cannot stall the router.
type ChanSink struct {
	C  <-chan Event
	ch chan Event
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(bufSize int) *ChanSink {
	ch := make(chan Event, bufSize)
	return &ChanSink{C: ch, ch: ch}
}

// Deliver enqueues e, or drops it if the buffer is full.
func (s *ChanSink) Deliver(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// TargetOf extracts the module from line's prefix and maps it to a target.
// It reports false for lines without a prefix or with an unmapped module.
func TargetOf(line string) (string, bool) {
	m := prefixRE.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	target, ok := moduleTargets[m[prefixRE.SubexpIndex("module")]]
	return target, ok
}

// Router owns the target → sink table and the pending line queue.
type Router struct {
	mu    sync.RWMutex
	sinks map[string]Sink
	lines *queue.Queue[string]

	partialMu sync.Mutex
	partial   []byte
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		sinks: make(map[string]Sink),
		lines: queue.New[string](),
	}
}

// Register installs s as the sink for target, replacing any previous sink.
func (r *Router) Register(target string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[target] = s
}

// Unregister removes s from target if it is still the registered sink. Sinks
// passed to Unregister must be comparable (ChanSink pointers are).
func (r *Router) Unregister(target string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sinks[target]; ok && cur == s {
		delete(r.sinks, target)
	}
}

func (r *Router) sink(target string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sinks[target]
	return s, ok
}

// Publish routes line synchronously: to its mapped target if any, then to
// "all".
func (r *Router) Publish(line string) {
	if target, ok := TargetOf(line); ok {
		if s, ok := r.sink(target); ok {
			s.Deliver(Event{Kind: EventLog, Line: line})
		}
	}

	if s, ok := r.sink(TargetAll); ok {
		s.Deliver(Event{Kind: EventLog, Line: line})
	}
}

// Print delivers a preformatted line to the print target only.
func (r *Router) Print(line string) {
	if s, ok := r.sink(TargetPrint); ok {
		s.Deliver(Event{Kind: EventPrint, Line: line})
	}
}

// Enqueue appends line to the pending queue for Run to publish.
func (r *Router) Enqueue(line string) {
	r.lines.Push(line)
}

// Write splits p into lines and enqueues each complete line. A trailing
// partial line is held until the next Write. It never fails, which makes the
// router safe to use as a log writer.
func (r *Router) Write(p []byte) (int, error) {
	r.partialMu.Lock()
	defer r.partialMu.Unlock()

	buf := append(r.partial, p...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		r.lines.Push(string(buf[:i]))
		buf = buf[i+1:]
	}
	r.partial = append(r.partial[:0], buf...)

	return len(p), nil
}

// Run publishes queued lines in order until ctx is cancelled. Lines still
// queued at cancellation are flushed, then every sink receives a finished
// event.
func (r *Router) Run(ctx context.Context) error {
	for {
		r.drain()

		select {
		case <-ctx.Done():
			r.drain()
			r.finish()
			return nil
		case <-r.lines.Wait():
		}
	}
}

func (r *Router) drain() {
	for {
		line, ok := r.lines.TryPop()
		if !ok {
			return
		}
		r.Publish(line)
	}
}

func (r *Router) finish() {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		sinks = append(sinks, s)
	}
	r.mu.RUnlock()

	for _, s := range sinks {
		s.Deliver(Event{Kind: EventFinished})
	}
}
