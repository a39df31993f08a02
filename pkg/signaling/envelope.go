package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// EventType names a signaling event on the wire.
type EventType string

const (
	EventOffer     EventType = "call-offer"
	EventAnswer    EventType = "call-answer"
	EventCandidate EventType = "ice-candidate"
	EventEnd       EventType = "call-end"
	EventDeclined  EventType = "call-declined"
	EventBusy      EventType = "call-busy"
	EventCancel    EventType = "call-cancel"
)

// ParticipantInfo identifies a call participant to the remote side.
type ParticipantInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role,omitempty"`
}

// OfferPayload carries the SDP offer plus enough caller identity for the
// callee to render an incoming-call prompt before answering.
type OfferPayload struct {
	Offer      webrtc.SessionDescription `json:"offer"`
	CallerInfo ParticipantInfo           `json:"callerInfo"`
}

type AnswerPayload struct {
	Answer webrtc.SessionDescription `json:"answer"`
}

type CandidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// Envelope is the wire format for every signaling event. Payload stays raw
// until the receiver knows from Type how to decode it; the terminal events
// (end, declined, busy, cancel) carry no payload at all.
type Envelope struct {
	Type    EventType       `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope for the given event, marshaling payload if
// one is provided.
func NewEnvelope(t EventType, to string, payload any) (Envelope, error) {
	env := Envelope{Type: t, To: to}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	env.Payload = raw
	return env, nil
}

// DecodeOffer extracts the offer payload from a call-offer envelope.
func DecodeOffer(env Envelope) (OfferPayload, error) {
	var p OfferPayload
	if env.Type != EventOffer {
		return p, fmt.Errorf("expected %s envelope, got %s", EventOffer, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal offer payload: %w", err)
	}
	return p, nil
}

// DecodeAnswer extracts the answer payload from a call-answer envelope.
func DecodeAnswer(env Envelope) (AnswerPayload, error) {
	var p AnswerPayload
	if env.Type != EventAnswer {
		return p, fmt.Errorf("expected %s envelope, got %s", EventAnswer, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal answer payload: %w", err)
	}
	return p, nil
}

// DecodeCandidate extracts the candidate payload from an ice-candidate envelope.
func DecodeCandidate(env Envelope) (CandidatePayload, error) {
	var p CandidatePayload
	if env.Type != EventCandidate {
		return p, fmt.Errorf("expected %s envelope, got %s", EventCandidate, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal candidate payload: %w", err)
	}
	return p, nil
}
