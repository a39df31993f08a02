package signaling

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_OfferRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventOffer, "bob", OfferPayload{
		Offer:      webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "sdp"},
		CallerInfo: ParticipantInfo{ID: "alice", DisplayName: "Alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, EventOffer, env.Type)
	assert.Equal(t, "bob", env.To)

	// Through the wire and back.
	data, err := json.Marshal(env)
	require.NoError(t, err)
	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	payload, err := DecodeOffer(decoded)
	require.NoError(t, err)
	assert.Equal(t, "alice", payload.CallerInfo.ID)
	assert.Equal(t, "sdp", payload.Offer.SDP)
}

func TestEnvelope_TerminalEventsCarryNoPayload(t *testing.T) {
	env, err := NewEnvelope(EventBusy, "alice", nil)
	require.NoError(t, err)
	assert.Nil(t, env.Payload)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "payload")
}

func TestDecode_RejectsWrongEventType(t *testing.T) {
	env, err := NewEnvelope(EventAnswer, "bob", AnswerPayload{
		Answer: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "sdp"},
	})
	require.NoError(t, err)

	_, err = DecodeOffer(env)
	assert.Error(t, err)
	_, err = DecodeCandidate(env)
	assert.Error(t, err)

	payload, err := DecodeAnswer(env)
	require.NoError(t, err)
	assert.Equal(t, "sdp", payload.Answer.SDP)
}

func TestDecode_MalformedPayload(t *testing.T) {
	env := Envelope{Type: EventCandidate, Payload: json.RawMessage(`{"candidate": 42}`)}
	_, err := DecodeCandidate(env)
	assert.Error(t, err)
}
