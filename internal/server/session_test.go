package server

import (
	"encoding/json"
	"image"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/testutil"
)

func dialSession(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/session"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvent reads one session event, skipping nothing.
func readEvent(t *testing.T, conn *websocket.Conn) SessionEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event SessionEvent
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

// waitDetected reads result events until one reports a detection.
func waitDetected(t *testing.T, conn *websocket.Conn) SessionEvent {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		event := readEvent(t, conn)
		if event.Type == "result" && event.Result != nil && event.Result.Detected {
			return event
		}
	}
	t.Fatal("no detected result before deadline")
	return SessionEvent{}
}

func TestSessionStreamsResults(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialSession(t, ts)

	frame := testutil.SurfaceFrame(640, 480, image.Rect(120, 140, 520, 340))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, testutil.EncodePNG(t, frame)))

	event := waitDetected(t, conn)
	require.NotNil(t, event.Result)
	assert.Equal(t, classify.Landscape, event.Result.Orientation)
	assert.Equal(t, "fallback", string(event.Result.Source))
	require.NotNil(t, event.State)
	assert.Equal(t, classify.Landscape, event.State.Active)
	assert.True(t, event.State.Landscape.Detected)

	// An active landscape detection hides the portrait guide.
	assert.True(t, event.HidePortrait)
	assert.False(t, event.HideLandscape)
}

func TestSessionStateCommand(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialSession(t, ts)

	frame := testutil.SurfaceFrame(480, 640, image.Rect(140, 120, 340, 520))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, testutil.EncodePNG(t, frame)))
	waitDetected(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"state"}`)))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		event := readEvent(t, conn)
		if event.Type != "state" {
			continue
		}
		require.NotNil(t, event.State)
		assert.Equal(t, classify.Portrait, event.State.Active)
		assert.True(t, event.State.Portrait.Detected)
		return
	}
	t.Fatal("no state event before deadline")
}

func TestSessionRejectsBadFrame(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialSession(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("garbage")))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		event := readEvent(t, conn)
		if event.Type == "error" {
			assert.Contains(t, event.Error, "decoding frame")
			return
		}
	}
	t.Fatal("no error event before deadline")
}

func TestSessionUnknownCommand(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialSession(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		event := readEvent(t, conn)
		if event.Type == "error" {
			assert.Contains(t, event.Error, "unsupported command")
			return
		}
	}
	t.Fatal("no error event before deadline")
}

func TestSessionStopCommand(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialSession(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)))

	// The server tears the session down; reads fail once the close
	// completes.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestSessionEmitsNeutralWithoutFrames(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialSession(t, ts)

	// No frames pushed: the loop still ticks and reports neutral
	// results from the empty sampler.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		event := readEvent(t, conn)
		if event.Type != "result" || event.Result == nil {
			continue
		}
		assert.False(t, event.Result.Detected)
		assert.Equal(t, "none", string(event.Result.Source))
		return
	}
	t.Fatal("no result event before deadline")
}
