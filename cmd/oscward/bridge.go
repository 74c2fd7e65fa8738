package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oscward/oscward/pkg/engine"
	"github.com/oscward/oscward/pkg/logrouter"
)

// sinkBuffer is the per-tab log event buffer.
const sinkBuffer = 512

// startBridge registers one log sink per tab and subscribes to engine events.
// The goroutines only call p.Send(); they never touch model state directly.
// The returned function unregisters everything and waits for them to exit.
func startBridge(ctx context.Context, p *tea.Program, eng *engine.Engine) func() {
	bridgeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	logs := eng.Logs()

	for _, target := range tabs {
		sink := logrouter.NewChanSink(sinkBuffer)
		logs.Register(target, sink)

		wg.Go(func() {
			defer logs.Unregister(target, sink)
			for {
				select {
				case <-bridgeCtx.Done():
					return
				case e := <-sink.C:
					if e.Kind == logrouter.EventFinished {
						return
					}
					p.Send(logLineMsg{target: target, event: e})
				}
			}
		})
	}

	events := eng.Events()
	sub := events.Subscribe(64)

	wg.Go(func() {
		defer events.Unsubscribe(sub)
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				p.Send(engineEventMsg{ev: ev})
			}
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}

// runTUI runs the engine behind the log viewer. The viewer quits when the
// engine stops; closing the viewer first stops the engine.
func runTUI(ctx context.Context, eng *engine.Engine) error {
	engCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()

	p := tea.NewProgram(newViewer(eng), tea.WithAltScreen(), tea.WithContext(ctx))

	stopBridge := startBridge(ctx, p, eng)

	engDone := make(chan error, 1)
	go func() {
		err := eng.Run(engCtx)
		engDone <- err
		p.Send(engineDoneMsg{err: err})
	}()

	_, tuiErr := p.Run()

	stopEngine()
	err := <-engDone
	stopBridge()

	if err != nil {
		return err
	}
	if tuiErr != nil && ctx.Err() == nil {
		return tuiErr
	}
	return nil
}
