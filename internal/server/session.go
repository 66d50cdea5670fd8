package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/guidealign/internal/boundary"
	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/control"
	"github.com/MeKo-Tech/guidealign/internal/frame"
	"github.com/MeKo-Tech/guidealign/internal/guidestate"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

const (
	sessionReadDeadline  = 60 * time.Second
	sessionPingInterval  = 30 * time.Second
	sessionWriteDeadline = 10 * time.Second
	sessionSendBuffer    = 16
)

// SessionEvent is a server-to-client message on a live session. Every
// detection tick produces a "result" event carrying the per-tick
// Result plus the current guide state.
type SessionEvent struct {
	Type          string            `json:"type"` // "result", "state", "error"
	Result        *control.Result   `json:"result,omitempty"`
	State         *guidestate.State `json:"state,omitempty"`
	HidePortrait  bool              `json:"hide_portrait"`
	HideLandscape bool              `json:"hide_landscape"`
	Error         string            `json:"error,omitempty"`
}

// SessionCommand is a client-to-server control message. Camera frames
// travel as binary messages, not commands.
type SessionCommand struct {
	Type string `json:"type"` // "state", "stop"
}

// session owns one live detection run: its own detector, sampler and
// controller, isolated from every other connection.
type session struct {
	conn       *websocket.Conn
	push       *frame.Push
	controller *control.Controller
	send       chan SessionEvent
	done       chan struct{}
}

// sessionHandler upgrades the connection and runs a detection session
// until the client disconnects or sends a stop command.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	sessionsActive.Inc()
	defer sessionsActive.Dec()

	slog.Info("Live session established", "remote_addr", r.RemoteAddr)

	sess, err := s.newSession(conn)
	if err != nil {
		slog.Error("Failed to start live session", "error", err)
		s.writeSessionError(conn, fmt.Sprintf("starting session: %v", err))
		return
	}
	defer sess.close()

	go sess.writePump()
	sess.readLoop()

	slog.Info("Live session ended", "remote_addr", r.RemoteAddr)
}

// newSession wires a fresh detector and controller for one connection.
func (s *Server) newSession(conn *websocket.Conn) (*session, error) {
	detector := boundary.New(detectorConfig(s.cfg.Boundary))

	push := frame.NewPush()
	ctrl := control.New(detector, push, control.Config{
		Interval: s.cfg.Detection.Interval(),
		Classifier: classify.Config{
			LandscapeRatio:      s.cfg.Detection.LandscapeRatio,
			PortraitRatio:       s.cfg.Detection.PortraitRatio,
			AmbiguousConfidence: s.cfg.Detection.AmbiguousConfidence,
		},
		State: guidestate.Config{
			Timeout:        s.cfg.Detection.Timeout(),
			HideConfidence: s.cfg.Detection.HideConfidence,
		},
		UseOverlapMatch: s.cfg.Detection.UseOverlapMatch,
	})

	sess := &session{
		conn:       conn,
		push:       push,
		controller: ctrl,
		send:       make(chan SessionEvent, sessionSendBuffer),
		done:       make(chan struct{}),
	}

	if err := ctrl.Start(s.guides.Portrait.Corners, s.guides.Landscape.Corners, sess.onResult); err != nil {
		return nil, fmt.Errorf("starting detection loop: %w", err)
	}
	return sess, nil
}

// onResult runs on the controller's dispatch goroutine; it must never
// block, so a full send buffer drops the event.
func (sess *session) onResult(result control.Result) {
	state := sess.controller.State()
	event := SessionEvent{
		Type:          "result",
		Result:        &result,
		State:         &state,
		HidePortrait:  sess.controller.ShouldHideGuide(classify.Portrait),
		HideLandscape: sess.controller.ShouldHideGuide(classify.Landscape),
	}
	detectionsTotal.WithLabelValues(result.Orientation.String(), string(result.Source)).Inc()
	detectDuration.WithLabelValues("session").Observe(float64(result.Metrics.ProcessingTimeMs) / 1000)

	select {
	case sess.send <- event:
	default:
		slog.Debug("Session send buffer full, dropping result")
	}
}

// readLoop consumes client messages until the connection dies. Binary
// messages are camera frames; text messages are commands.
func (sess *session) readLoop() {
	_ = sess.conn.SetReadDeadline(time.Now().Add(sessionReadDeadline))
	sess.conn.SetPongHandler(func(string) error {
		_ = sess.conn.SetReadDeadline(time.Now().Add(sessionReadDeadline))
		return nil
	})

	for {
		messageType, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = sess.conn.SetReadDeadline(time.Now().Add(sessionReadDeadline))
		sessionMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.BinaryMessage:
			sess.handleFrame(data)
		case websocket.TextMessage:
			if stop := sess.handleCommand(data); stop {
				return
			}
		}
	}
}

// handleFrame decodes one camera frame and offers it to the sampler.
// The newest frame always wins; the loop samples at its own cadence.
func (sess *session) handleFrame(data []byte) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		sessionFramesTotal.WithLabelValues("rejected").Inc()
		sess.enqueue(SessionEvent{Type: "error", Error: fmt.Sprintf("decoding frame: %v", err)})
		return
	}
	sess.push.Offer(img)
	sessionFramesTotal.WithLabelValues("accepted").Inc()
}

// handleCommand processes a control message. Returns true when the
// session should end.
func (sess *session) handleCommand(data []byte) bool {
	var cmd SessionCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		sess.enqueue(SessionEvent{Type: "error", Error: fmt.Sprintf("parsing command: %v", err)})
		return false
	}

	switch cmd.Type {
	case "state":
		state := sess.controller.State()
		sess.enqueue(SessionEvent{
			Type:          "state",
			State:         &state,
			HidePortrait:  sess.controller.ShouldHideGuide(classify.Portrait),
			HideLandscape: sess.controller.ShouldHideGuide(classify.Landscape),
		})
		return false
	case "stop":
		return true
	default:
		sess.enqueue(SessionEvent{Type: "error", Error: "unsupported command: " + cmd.Type})
		return false
	}
}

func (sess *session) enqueue(event SessionEvent) {
	select {
	case sess.send <- event:
	default:
		slog.Debug("Session send buffer full, dropping event", "type", event.Type)
	}
}

// writePump is the single writer on the connection. It streams queued
// events and keeps the connection alive with pings.
func (sess *session) writePump() {
	ticker := time.NewTicker(sessionPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done:
			return
		case event := <-sess.send:
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("Failed to marshal session event", "error", err)
				continue
			}
			_ = sess.conn.SetWriteDeadline(time.Now().Add(sessionWriteDeadline))
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Session write failed", "error", err)
				return
			}
			sessionMessagesTotal.WithLabelValues("sent").Inc()
		case <-ticker.C:
			deadline := time.Now().Add(sessionWriteDeadline)
			if err := sess.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				return
			}
		}
	}
}

// close stops the detection loop and the write pump. The controller
// guarantees no result callback fires after Stop returns visible state.
func (sess *session) close() {
	sess.controller.Stop()
	close(sess.done)
	_ = sess.push.Close()
}

// writeSessionError reports a setup failure before the session loop
// exists.
func (s *Server) writeSessionError(conn *websocket.Conn, message string) {
	event := SessionEvent{Type: "error", Error: message}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(sessionWriteDeadline))
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
