package logrouter

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_StreamsTarget(t *testing.T) {
	r := New()
	srv := httptest.NewServer(r.Handler(nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/logs?target=osc"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	// The handler registers asynchronously after the upgrade.
	require.Eventually(t, func() bool {
		_, ok := r.sink(TargetOSC)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	line := "[2024-01-01][00:00:00][oscward::osc] hello"
	r.Publish(line)

	var ev Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, Event{Kind: EventLog, Line: line}, ev)

	r.finish()

	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, EventFinished, ev.Kind)
}
