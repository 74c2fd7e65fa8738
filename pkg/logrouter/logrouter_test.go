package logrouter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects delivered events.
type recorder struct {
	events []Event
}

func (r *recorder) Deliver(e Event) { r.events = append(r.events, e) }

func (r *recorder) lines() []string {
	var out []string
	for _, e := range r.events {
		out = append(out, e.Line)
	}
	return out
}

func TestTargetOf(t *testing.T) {
	tests := []struct {
		line   string
		target string
		ok     bool
	}{
		{"[2024-01-01][00:00:00][oscward::osc] hello", TargetOSC, true},
		{"[2024-01-01][00:00:00][oscward::lua][INFO] x", TargetLua, true},
		{"[2024-01-01][00:00:00][oscward::defs][WARN] y", TargetDefs, true},
		{"[2024-01-01][00:00:00][oscward::engine][INFO] z", "", false},
		{"hello", "", false},
		{"[2024-01-01] [00:00:00][oscward::osc] spaced", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			target, ok := TargetOf(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.target, target)
		})
	}
}

func TestPublish_MappedAndAll(t *testing.T) {
	r := New()
	osc, all, lua := &recorder{}, &recorder{}, &recorder{}
	r.Register(TargetOSC, osc)
	r.Register(TargetAll, all)
	r.Register(TargetLua, lua)

	line := "[2024-01-01][00:00:00][oscward::osc] hello"
	r.Publish(line)

	assert.Equal(t, []Event{{Kind: EventLog, Line: line}}, osc.events)
	assert.Equal(t, []Event{{Kind: EventLog, Line: line}}, all.events)
	assert.Empty(t, lua.events)
}

func TestPublish_UnmatchedOnlyAll(t *testing.T) {
	r := New()
	osc, all := &recorder{}, &recorder{}
	r.Register(TargetOSC, osc)
	r.Register(TargetAll, all)

	r.Publish("no prefix here")

	assert.Empty(t, osc.events)
	assert.Equal(t, []string{"no prefix here"}, all.lines())
}

func TestPublish_NoAllRegistered(t *testing.T) {
	r := New()
	osc := &recorder{}
	r.Register(TargetOSC, osc)

	assert.NotPanics(t, func() {
		r.Publish("[2024-01-01][00:00:00][oscward::osc] hello")
		r.Publish("plain")
	})
	assert.Len(t, osc.events, 1)
}

func TestRegister_Replaces(t *testing.T) {
	r := New()
	first, second := &recorder{}, &recorder{}
	r.Register(TargetAll, first)
	r.Register(TargetAll, second)

	r.Publish("x")

	assert.Empty(t, first.events)
	assert.Len(t, second.events, 1)
}

func TestUnregister_OnlyCurrent(t *testing.T) {
	r := New()
	first, second := NewChanSink(1), NewChanSink(1)
	r.Register(TargetAll, first)
	r.Register(TargetAll, second)

	r.Unregister(TargetAll, first)
	r.Publish("x")

	select {
	case ev := <-second.C:
		assert.Equal(t, "x", ev.Line)
	default:
		t.Fatal("second sink should still be registered")
	}

	r.Unregister(TargetAll, second)
	r.Publish("y")

	select {
	case <-second.C:
		t.Fatal("second sink should be unregistered")
	default:
	}
}

func TestPrint_BypassesPrefix(t *testing.T) {
	r := New()
	lua, all := &recorder{}, &recorder{}
	r.Register(TargetLua, lua)
	r.Register(TargetAll, all)

	r.Print("[2024-01-01][00:00:00][oscward::osc] looks like a log")

	assert.Equal(t, []Event{{Kind: EventPrint, Line: "[2024-01-01][00:00:00][oscward::osc] looks like a log"}}, lua.events)
	assert.Empty(t, all.events)
}

func TestChanSink_DropsWhenFull(t *testing.T) {
	s := NewChanSink(1)
	s.Deliver(Event{Kind: EventLog, Line: "1"})
	s.Deliver(Event{Kind: EventLog, Line: "2"})

	assert.Equal(t, "1", (<-s.C).Line)

	select {
	case <-s.C:
		t.Fatal("expected second event to be dropped")
	default:
	}
}

func TestWrite_SplitsLines(t *testing.T) {
	r := New()
	all := NewChanSink(8)
	r.Register(TargetAll, all)

	n, err := r.Write([]byte("one\ntw"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = r.Write([]byte("o\n"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for _, want := range []string{"one", "two"} {
		select {
		case ev := <-all.C:
			assert.Equal(t, want, ev.Line)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	cancel()
	require.NoError(t, <-done)

	select {
	case ev := <-all.C:
		assert.Equal(t, EventFinished, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected finished event")
	}
}

func TestRun_PreservesOrder(t *testing.T) {
	r := New()
	all := NewChanSink(64)
	r.Register(TargetAll, all)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	for i := range 20 {
		r.Enqueue(string(rune('a' + i)))
	}

	for i := range 20 {
		select {
		case ev := <-all.C:
			assert.Equal(t, string(rune('a'+i)), ev.Line)
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}
