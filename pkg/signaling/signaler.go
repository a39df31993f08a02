package signaling

import "context"

// Signaler decouples the call logic from the signaling transport. Delivery is
// at-least-once: consumers must tolerate duplicated and reordered envelopes.
// The application layer provides a concrete implementation (websocket in
// production, an in-memory fake in tests).
type Signaler interface {
	Send(ctx context.Context, env Envelope) error
	Events() <-chan Envelope
	Close() error
}
