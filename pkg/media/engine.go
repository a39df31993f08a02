package media

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Engine is the media side of one call session: it produces and consumes
// session descriptions and ICE candidates. Exactly one engine exists per
// session and is owned by it; Close releases the local media resources.
type Engine interface {
	// CreateOffer acquires local media and produces the local offer.
	CreateOffer(ctx context.Context) (webrtc.SessionDescription, error)
	// AcceptOffer applies the remote offer, acquires local media and produces
	// the local answer.
	AcceptOffer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// AcceptAnswer applies the remote answer to a previously-created offer.
	AcceptAnswer(answer webrtc.SessionDescription) error
	// AddCandidate applies one remote ICE candidate.
	AddCandidate(candidate webrtc.ICECandidateInit) error
	// SignalingState reports where the offer/answer exchange stands.
	SignalingState() webrtc.SignalingState

	// OnCandidate registers the callback for locally-gathered candidates.
	OnCandidate(func(webrtc.ICECandidateInit))
	// OnConnectionState registers the callback for connection-state changes.
	OnConnectionState(func(webrtc.PeerConnectionState))

	Close() error
}

// Factory creates one Engine per call session.
type Factory interface {
	NewEngine(config Config) (Engine, error)
}

// Config holds per-session media configuration.
type Config struct {
	ICEServers []webrtc.ICEServer
}
