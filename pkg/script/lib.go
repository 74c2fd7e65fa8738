package script

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"

	"github.com/oscward/oscward/pkg/events"
)

// Error messages returned to scripts by osc.send.
const (
	errNoAddressAndArgs = "no address and args"
	errAddressNotString = "address is not string"
)

// newSandbox creates a Lua state with host capabilities bound:
//
//	osc.send(address, ...) -> true, nil | nil, message
//	wardrobe.exit()
//	wardrobe.io_dir, wardrobe.script_dir
//	sleep(seconds)
//	print(...)
//	require("json"), require("<module>") from the script root
func (h *Host) newSandbox() *lua.LState {
	L := lua.NewState()

	L.PreloadModule("json", luajson.Loader)
	h.setPackagePath(L)

	L.RegisterModule("osc", map[string]lua.LGFunction{
		"send": h.luaSend,
	})

	wardrobe := L.RegisterModule(Namespace, map[string]lua.LGFunction{
		"exit": h.luaExit,
	})
	L.SetField(wardrobe, "io_dir", lua.LString(h.opts.IODir))
	L.SetField(wardrobe, "script_dir", lua.LString(h.opts.BaseDir))

	L.SetGlobal("sleep", L.NewFunction(h.luaSleep))
	L.SetGlobal("print", L.NewFunction(h.luaPrint))

	return L
}

// setPackagePath lets require find modules in the script root.
func (h *Host) setPackagePath(L *lua.LState) {
	pkg, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return
	}

	paths := []string{
		filepath.Join(h.opts.BaseDir, "?.lua"),
		filepath.Join(h.opts.BaseDir, "?", "init.lua"),
	}
	if cur, ok := L.GetField(pkg, "path").(lua.LString); ok && cur != "" {
		paths = append(paths, string(cur))
	}

	L.SetField(pkg, "path", lua.LString(strings.Join(paths, ";")))
}

func (h *Host) luaSend(L *lua.LState) int {
	n := L.GetTop()
	if n < 2 {
		L.Push(lua.LNil)
		L.Push(lua.LString(errNoAddressAndArgs))
		return 2
	}

	addr, ok := L.Get(1).(lua.LString)
	if !ok {
		L.Push(lua.LNil)
		L.Push(lua.LString(errAddressNotString))
		return 2
	}

	args := make([]any, 0, n-1)
	for i := 2; i <= n; i++ {
		args = append(args, FromLua(L.Get(i)))
	}

	h.opts.App.Push(events.SendOutbound{Address: string(addr), Args: args})

	L.Push(lua.LTrue)
	L.Push(lua.LNil)
	return 2
}

func (h *Host) luaExit(_ *lua.LState) int {
	h.log.Info("exit requested by script")
	h.opts.App.Push(events.Exit{})
	return 0
}

// luaSleep blocks only the host goroutine. Cancelling the sandbox context
// interrupts it with a Lua error.
func (h *Host) luaSleep(L *lua.LState) int {
	secs := float64(L.CheckNumber(1))
	h.log.Debug("sleep", "seconds", secs)

	d := sleepDuration(secs)
	if d <= 0 {
		return 0
	}

	t := time.NewTimer(d)
	defer t.Stop()

	var done <-chan struct{}
	if ctx := L.Context(); ctx != nil {
		done = ctx.Done()
	}

	select {
	case <-t.C:
	case <-done:
		L.RaiseError("sleep interrupted: %v", L.Context().Err())
	}

	return 0
}

// sleepDuration converts seconds to a Duration, saturating at the largest
// representable value. NaN and non-positive input yield zero.
func sleepDuration(secs float64) time.Duration {
	ns := secs * float64(time.Second)
	switch {
	case math.IsNaN(ns) || ns <= 0:
		return 0
	case ns >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	default:
		return time.Duration(ns)
	}
}

func (h *Host) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	line := strings.Join(parts, "\t")

	if h.opts.Print != nil {
		h.opts.Print(line)
	} else {
		h.log.Info(line)
	}

	return 0
}
