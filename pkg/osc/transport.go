package osc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"
	gosc "github.com/hypebeast/go-osc/osc"
)

// ErrClosed is returned by Send once the transport has shut down.
var ErrClosed = errors.New("osc: transport closed")

// InboundBuffer is the capacity of the inbound message channel.
const InboundBuffer = 1000

// ServiceType is the DNS-SD service type used for advertisement.
const ServiceType = "_osc._udp"

// GreetingAddress receives a "Connected" string once the transport is up and
// greetings are enabled.
const GreetingAddress = "/avatar/parameters/VRChatOSC"

// Config configures a Transport.
type Config struct {
	Listen      string // UDP address to receive on, e.g. "127.0.0.1:9001".
	Target      string // UDP address to send to, e.g. "127.0.0.1:9000".
	Advertise   bool   // Advertise the listener over mDNS.
	ServiceName string // mDNS instance name.
	Greeting    bool   // Send a greeting message to Target on startup.
}

// Transport receives OSC packets on a UDP socket and sends messages to a
// fixed target. Inbound messages are delivered in arrival order; bundles are
// flattened depth-first.
type Transport struct {
	cfg     Config
	log     *slog.Logger
	inbound chan Message
	ready   chan struct{}

	mu     sync.RWMutex
	closed bool
	client *gosc.Client
	addr   net.Addr
}

// NewTransport validates cfg and creates a Transport. No sockets are opened
// until Run is called.
func NewTransport(cfg Config, log *slog.Logger) (*Transport, error) {
	host, port, err := splitHostPort(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("osc: target: %w", err)
	}

	if cfg.Listen == "" {
		return nil, errors.New("osc: listen address is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Transport{
		cfg:     cfg,
		log:     log,
		inbound: make(chan Message, InboundBuffer),
		ready:   make(chan struct{}),
		client:  gosc.NewClient(host, port),
	}, nil
}

// Inbound returns the channel of received messages. It is closed when Run
// returns.
func (t *Transport) Inbound() <-chan Message { return t.inbound }

// Ready is closed once the listener is bound.
func (t *Transport) Ready() <-chan struct{} { return t.ready }

// LocalAddr returns the bound listener address, or nil before Ready.
func (t *Transport) LocalAddr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.addr
}

// Send encodes m and sends it to the configured target.
func (t *Transport) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrClosed
	}

	if err := t.client.Send(t.encode(m)); err != nil {
		return fmt.Errorf("osc: send %s: %w", m.Address, err)
	}

	return nil
}

// Run binds the listener and pumps packets into Inbound until ctx is
// cancelled. It returns nil on cancellation.
func (t *Transport) Run(ctx context.Context) error {
	defer t.shutdown()

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", t.cfg.Listen)
	if err != nil {
		return fmt.Errorf("osc: listen %s: %w", t.cfg.Listen, err)
	}

	t.mu.Lock()
	t.addr = conn.LocalAddr()
	t.mu.Unlock()
	close(t.ready)

	t.log.Info("listening", "addr", conn.LocalAddr().String(), "target", t.cfg.Target)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if t.cfg.Advertise {
		if srv := t.advertise(conn.LocalAddr()); srv != nil {
			defer srv.Shutdown()
		}
	}

	if t.cfg.Greeting {
		if err := t.Send(ctx, NewMessage(GreetingAddress, String("Connected"))); err != nil {
			t.log.Warn("greeting failed", "error", err)
		}
	}

	buf := make([]byte, 65535)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("osc: read: %w", err)
		}

		packet, err := gosc.ParsePacket(string(buf[:n]))
		if err != nil {
			t.log.Warn("dropping malformed packet", "from", from.String(), "error", err)
			continue
		}

		for _, m := range t.decode(packet) {
			select {
			case t.inbound <- m:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (t *Transport) shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.closed = true
	close(t.inbound)

	select {
	case <-t.ready:
	default:
		close(t.ready)
	}
}

func (t *Transport) advertise(addr net.Addr) *zeroconf.Server {
	udp, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil
	}

	name := t.cfg.ServiceName
	if name == "" {
		name = "oscward"
	}

	srv, err := zeroconf.Register(name, ServiceType, "local.", udp.Port, []string{"txtvers=1"}, nil)
	if err != nil {
		t.log.Warn("mdns register failed", "error", err)
		return nil
	}

	t.log.Info("advertised service", "name", name, "type", ServiceType, "port", udp.Port)

	return srv
}

// decode flattens a parsed packet into messages.
func (t *Transport) decode(p gosc.Packet) []Message {
	switch p := p.(type) {
	case *gosc.Message:
		return []Message{t.fromGo(p)}
	case *gosc.Bundle:
		var out []Message
		for _, m := range p.Messages {
			out = append(out, t.fromGo(m))
		}
		for _, b := range p.Bundles {
			out = append(out, t.decode(b)...)
		}
		return out
	default:
		t.log.Debug("ignoring packet", "type", fmt.Sprintf("%T", p))
		return nil
	}
}

func (t *Transport) fromGo(m *gosc.Message) Message {
	args := make([]Value, 0, len(m.Arguments))
	for _, a := range m.Arguments {
		args = append(args, t.fromGoArg(a))
	}

	return Message{Address: m.Address, Args: args}
}

func (t *Transport) fromGoArg(a any) Value {
	switch a := a.(type) {
	case int32:
		return Int(a)
	case float32:
		return Float(a)
	case string:
		return String(a)
	case []byte:
		return Blob(a)
	case int64:
		return Long(a)
	case float64:
		return Double(a)
	case bool:
		return Bool(a)
	case nil:
		return Nil{}
	case gosc.Timetag:
		return Time(a.TimeTag())
	case *gosc.Timetag:
		return Time(a.TimeTag())
	default:
		t.log.Debug("unsupported inbound argument", "type", fmt.Sprintf("%T", a))
		return Nil{}
	}
}

// encode converts m to a go-osc message. Types the codec cannot carry are
// sent as nil.
func (t *Transport) encode(m Message) *gosc.Message {
	msg := gosc.NewMessage(m.Address)
	for _, v := range m.Args {
		msg.Append(t.toGoArg(v))
	}

	return msg
}

func (t *Transport) toGoArg(v Value) any {
	switch v := v.(type) {
	case Int:
		return int32(v)
	case Float:
		return float32(v)
	case String:
		return string(v)
	case Blob:
		return []byte(v)
	case Long:
		return int64(v)
	case Double:
		return float64(v)
	case Bool:
		return bool(v)
	case Time:
		return *gosc.NewTimetagFromTimetag(uint64(v))
	case Nil:
		return nil
	default:
		t.log.Warn("argument type not encodable, sending nil", "tag", string(v.Tag()))
		return nil
	}
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	return host, port, nil
}
