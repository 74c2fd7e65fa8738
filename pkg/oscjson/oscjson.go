// Package oscjson converts between OSC argument values and generic JSON-like
// values (nil, bool, float64, string, []any, map[string]any).
//
// The conversion is lossy on purpose and FromJSON(ToJSON(v)) is not the
// identity: Long becomes a decimal string, Color becomes a four element
// array, Inf becomes +Inf, Char becomes a one-character string, and every
// number comes back as a single-precision Float. Unsupported values degrade
// to nil and are logged at debug level; no function here returns an error.
package oscjson

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/oscward/oscward/pkg/logging"
	"github.com/oscward/oscward/pkg/osc"
)

func logger() *slog.Logger { return logging.For(logging.ModuleOSC) }

// ToJSON converts an OSC value to its generic representation.
func ToJSON(v osc.Value) any {
	switch v := v.(type) {
	case osc.Int:
		return float64(v)
	case osc.Float:
		return float64(v)
	case osc.Double:
		return float64(v)
	case osc.String:
		return string(v)
	case osc.Long:
		return strconv.FormatInt(int64(v), 10)
	case osc.Char:
		return string(rune(v))
	case osc.Color:
		return []any{float64(v.R), float64(v.G), float64(v.B), float64(v.A)}
	case osc.Bool:
		return bool(v)
	case osc.Array:
		return ArgsToJSON(v)
	case osc.Nil:
		return nil
	case osc.Inf:
		return math.Inf(1)
	default:
		logger().Debug("no generic representation", "type", fmt.Sprintf("%T", v))
		return nil
	}
}

// ArgsToJSON converts an argument list element-wise. The result is never nil.
func ArgsToJSON(args []osc.Value) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = ToJSON(a)
	}

	return out
}

// FromJSON converts a generic value to an OSC value. Numbers are narrowed to
// single precision. Objects have no wire form and become Nil.
func FromJSON(v any) osc.Value {
	switch v := v.(type) {
	case nil:
		return osc.Nil{}
	case bool:
		return osc.Bool(v)
	case float64:
		return osc.Float(float32(v))
	case float32:
		return osc.Float(v)
	case int:
		return osc.Float(float32(v))
	case int64:
		return osc.Float(float32(v))
	case string:
		return osc.String(v)
	case []any:
		return osc.Array(ArgsFromJSON(v))
	default:
		logger().Debug("no wire representation", "type", fmt.Sprintf("%T", v))
		return osc.Nil{}
	}
}

// ArgsFromJSON converts a generic argument list element-wise.
func ArgsFromJSON(args []any) []osc.Value {
	out := make([]osc.Value, len(args))
	for i, a := range args {
		out[i] = FromJSON(a)
	}

	return out
}
