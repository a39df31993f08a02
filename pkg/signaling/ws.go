package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// WSSignaler exchanges envelopes with a signaling server over a websocket.
// The server routes each envelope to the participant named in To and stamps
// From on delivery.
type WSSignaler struct {
	conn    *websocket.Conn
	events  chan Envelope
	writeMu sync.Mutex
	closed  sync.Once
	done    chan struct{}
}

// Dial connects to the signaling server and registers under selfID. The read
// pump starts immediately; envelopes arrive on Events until Close.
func Dial(ctx context.Context, serverURL, selfID string) (*WSSignaler, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid signaling server url: %w", err)
	}
	q := u.Query()
	q.Set("id", selfID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signaling server: %w", err)
	}

	s := &WSSignaler{
		conn:   conn,
		events: make(chan Envelope, 16),
		done:   make(chan struct{}),
	}
	go s.readPump()
	return s, nil
}

// Send writes one envelope to the server. Gorilla connections allow a single
// concurrent writer, so sends are serialized here.
func (s *WSSignaler) Send(ctx context.Context, env Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	if err := s.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Type, err)
	}
	return nil
}

// Events returns the inbound envelope stream. The channel is closed when the
// connection drops or Close is called.
func (s *WSSignaler) Events() <-chan Envelope {
	return s.events
}

func (s *WSSignaler) readPump() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				slog.Warn("signaling connection closed", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// A malformed frame is a server bug, not a reason to drop the call.
			slog.Warn("dropping malformed signaling frame", "error", err)
			continue
		}
		if env.Type == "" {
			slog.Warn("dropping signaling frame without a type")
			continue
		}
		s.events <- env
	}
}

// Close tears the connection down. Safe to call more than once.
func (s *WSSignaler) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
