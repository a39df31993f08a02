package media

import (
	"context"
	"fmt"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"
)

const mtu uint = 1400

// WebrtcAPI wraps a shared pion API instance so that every session's peer
// connection is created from the same setting engine.
type WebrtcAPI struct {
	api *webrtc.API
}

func NewWebrtcAPI() *WebrtcAPI {
	settings := webrtc.SettingEngine{}
	settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	settings.SetReceiveMTU(mtu)

	return &WebrtcAPI{
		api: webrtc.NewAPI(webrtc.WithSettingEngine(settings)),
	}
}

// NewEngine creates the media engine for a single call session.
func (a *WebrtcAPI) NewEngine(config Config) (Engine, error) {
	if len(config.ICEServers) == 0 {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs: []string{"stun:stun.l.google.com:19302"},
		})
	}
	pc, err := a.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return &pionEngine{pc: pc}, nil
}

type pionEngine struct {
	pc *webrtc.PeerConnection
}

func (e *pionEngine) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if _, err := e.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to add audio transceiver: %w", err)
	}
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}
	return offer, nil
}

func (e *pionEngine) AcceptOffer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := e.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description for answer: %w", err)
	}
	return answer, nil
}

func (e *pionEngine) AcceptAnswer(answer webrtc.SessionDescription) error {
	if err := e.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

func (e *pionEngine) AddCandidate(candidate webrtc.ICECandidateInit) error {
	if err := e.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add ice candidate: %w", err)
	}
	return nil
}

func (e *pionEngine) SignalingState() webrtc.SignalingState {
	return e.pc.SignalingState()
}

func (e *pionEngine) OnCandidate(f func(webrtc.ICECandidateInit)) {
	e.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			f(c.ToJSON())
		}
	})
}

func (e *pionEngine) OnConnectionState(f func(webrtc.PeerConnectionState)) {
	e.pc.OnConnectionStateChange(f)
}

func (e *pionEngine) Close() error {
	if e.pc != nil {
		return e.pc.Close()
	}
	return nil
}
