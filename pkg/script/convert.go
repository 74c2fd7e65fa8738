package script

import (
	"math"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// ToLua converts a generic value (nil, bool, numbers, string, []any,
// map[string]any) to a Lua value. Arrays become 1-based sequence tables.
// Unknown types become nil.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		t := L.CreateTable(len(v), 0)
		for i, e := range v {
			t.RawSetInt(i+1, ToLua(L, e))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(v))
		for k, e := range v {
			t.RawSetString(k, ToLua(L, e))
		}
		return t
	default:
		return lua.LNil
	}
}

// FromLua converts a Lua value to a generic value. A table whose keys are
// exactly 1..n becomes []any; any other non-empty table becomes
// map[string]any with string and number keys; an empty table becomes an
// empty map. Functions, userdata, threads and cyclic references become nil.
func FromLua(v lua.LValue) any {
	return fromLua(v, map[*lua.LTable]bool{})
}

func fromLua(v lua.LValue, visiting map[*lua.LTable]bool) any {
	switch v := v.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visiting[v] {
			return nil
		}
		visiting[v] = true
		defer delete(visiting, v)
		return tableFromLua(v, visiting)
	default:
		return nil
	}
}

func tableFromLua(t *lua.LTable, visiting map[*lua.LTable]bool) any {
	n := t.MaxN()
	count := 0
	sequence := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		num, ok := k.(lua.LNumber)
		if !ok {
			sequence = false
			return
		}
		f := float64(num)
		if f != math.Trunc(f) || f < 1 || f > float64(n) {
			sequence = false
		}
	})

	if count > 0 && sequence && count == n {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			out[i-1] = fromLua(t.RawGetInt(i), visiting)
		}
		return out
	}

	out := make(map[string]any, count)
	t.ForEach(func(k, e lua.LValue) {
		var key string
		switch k := k.(type) {
		case lua.LString:
			key = string(k)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(k), 'f', -1, 64)
		default:
			return
		}
		out[key] = fromLua(e, visiting)
	})

	return out
}
