package logstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Signal tells what a Message carries
type Signal int

const (
	Line Signal = iota
	Error
	Close
)

// BuildErrorType marks an error signal caused by a failed build step
const BuildErrorType = "BUILD_ERROR"

// Message is one item of the log feed
type Message struct {
	Signal Signal
	Text   string
	// Type qualifies Error signals, e.g. BuildErrorType
	Type string
}

// Transport delivers the log feed of a deployment. The channel ends with an
// Error or Close message, or is closed if the connection drops.
type Transport interface {
	Open(ctx context.Context) (<-chan Message, error)
}

// wireMessage is what the log websocket sends
type wireMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	State string `json:"state,omitempty"`
}

// WebSocket reads deployment logs from the platform's websocket endpoint
type WebSocket struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

func (w *WebSocket) Open(ctx context.Context) (<-chan Message, error) {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, w.URL, w.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("log stream connection failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("log stream connection failed: %w", err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer conn.Close()

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		for {
			var wm wireMessage
			if err := conn.ReadJSON(&wm); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, context.Canceled) {
					select {
					case out <- Message{Signal: Error, Text: err.Error()}:
					case <-ctx.Done():
					}
				}
				return
			}

			msg, terminal := decode(wm)
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
			if terminal {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}()

	return out, nil
}

func decode(wm wireMessage) (Message, bool) {
	switch wm.Type {
	case "state":
		switch wm.State {
		case "READY":
			return Message{Signal: Close}, true
		case BuildErrorType:
			return Message{Signal: Error, Type: BuildErrorType, Text: wm.Text}, true
		case "ERROR", "DEPLOYMENT_ERROR":
			return Message{Signal: Error, Type: wm.State, Text: wm.Text}, true
		default:
			return Message{Signal: Line, Text: fmt.Sprintf("state: %s", wm.State)}, false
		}
	default:
		return Message{Signal: Line, Text: wm.Text}, false
	}
}
