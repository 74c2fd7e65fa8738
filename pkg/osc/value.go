// Package osc models Open Sound Control messages as a sealed union of typed
// argument values and moves them over UDP. Encoding and decoding of the
// binary format is delegated to go-osc; this package owns the value model,
// the inbound/outbound plumbing and optional mDNS advertisement.
package osc

import "fmt"

// Value is one OSC argument. The set of implementations is closed.
type Value interface {
	// Tag returns the OSC type tag character for the value.
	Tag() byte
}

type (
	// Int is a 32-bit integer ('i').
	Int int32
	// Float is a 32-bit float ('f').
	Float float32
	// String is an OSC string ('s').
	String string
	// Blob is an opaque byte payload ('b').
	Blob []byte
	// Time is a 64-bit NTP time tag ('t').
	Time uint64
	// Long is a 64-bit integer ('h').
	Long int64
	// Double is a 64-bit float ('d').
	Double float64
	// Char is a single ASCII character ('c').
	Char rune
	// Bool is true ('T') or false ('F').
	Bool bool
	// Array is a bracketed list of values ('[' ... ']').
	Array []Value
	// Nil is the OSC nil value ('N').
	Nil struct{}
	// Inf is the OSC infinitum ('I').
	Inf struct{}
)

// Color is a 32-bit RGBA color ('r').
type Color struct {
	R, G, B, A uint8
}

// Midi is a 4-byte MIDI message ('m'): port id, status, data1, data2.
type Midi [4]byte

func (Int) Tag() byte    { return 'i' }
func (Float) Tag() byte  { return 'f' }
func (String) Tag() byte { return 's' }
func (Blob) Tag() byte   { return 'b' }
func (Time) Tag() byte   { return 't' }
func (Long) Tag() byte   { return 'h' }
func (Double) Tag() byte { return 'd' }
func (Char) Tag() byte   { return 'c' }
func (Color) Tag() byte  { return 'r' }
func (Midi) Tag() byte   { return 'm' }
func (Nil) Tag() byte    { return 'N' }
func (Inf) Tag() byte    { return 'I' }
func (Array) Tag() byte  { return '[' }

// Tag returns 'T' or 'F'.
func (b Bool) Tag() byte {
	if b {
		return 'T'
	}
	return 'F'
}

// Message is an OSC message: an address pattern plus ordered arguments.
type Message struct {
	Address string
	Args    []Value
}

// NewMessage creates a Message with the given address and arguments.
func NewMessage(address string, args ...Value) Message {
	return Message{Address: address, Args: args}
}

// String renders the message for logs, e.g. `/a/b ,fs 1 "x"`.
func (m Message) String() string {
	tags := make([]byte, 0, len(m.Args)+1)
	tags = append(tags, ',')
	for _, a := range m.Args {
		tags = append(tags, a.Tag())
	}

	s := m.Address + " " + string(tags)
	for _, a := range m.Args {
		s += " " + formatValue(a)
	}

	return s
}

func formatValue(v Value) string {
	switch v := v.(type) {
	case String:
		return fmt.Sprintf("%q", string(v))
	case Char:
		return fmt.Sprintf("%q", rune(v))
	case Blob:
		return fmt.Sprintf("<blob %d>", len(v))
	case Nil:
		return "nil"
	case Inf:
		return "inf"
	case Color:
		return fmt.Sprintf("rgba(%d,%d,%d,%d)", v.R, v.G, v.B, v.A)
	case Array:
		s := "["
		for i, e := range v {
			if i > 0 {
				s += " "
			}
			s += formatValue(e)
		}
		return s + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
