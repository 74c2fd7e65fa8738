package logrouter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// wsBuffer is the per-connection event buffer.
const wsBuffer = 256

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

// Handler serves GET /logs?target=<name> as a WebSocket stream of JSON
// events. The connection becomes the target's sink, replacing whichever
// sink was registered before. The stream ends after a finished event or when
// the client goes away.
func (r *Router) Handler(log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /logs", func(w http.ResponseWriter, req *http.Request) {
		target := req.URL.Query().Get("target")
		if target == "" {
			target = TargetAll
		}

		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			log.Warn("websocket accept failed", "error", err)
			return
		}
		defer func() { _ = conn.CloseNow() }()

		sink := NewChanSink(wsBuffer)
		r.Register(target, sink)
		defer r.Unregister(target, sink)

		log.Debug("log subscriber connected", "target", target, "remote", req.RemoteAddr)

		ctx := conn.CloseRead(req.Context())
		if err := stream(ctx, conn, sink); err != nil {
			log.Debug("log subscriber disconnected", "target", target, "error", err)
			return
		}

		_ = conn.Close(websocket.StatusNormalClosure, "finished")
	})

	return mux
}

func stream(ctx context.Context, conn *websocket.Conn, sink *ChanSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-sink.C:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return err
			}
			if ev.Kind == EventFinished {
				return nil
			}
		}
	}
}
