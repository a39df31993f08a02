package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corv87/lanCaller/pkg/signaling"
)

func startRelay(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer())
	t.Cleanup(server.Close)
	return server
}

func connect(t *testing.T, server *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "?id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) signaling.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env signaling.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestRelay_RoutesByRecipient(t *testing.T) {
	server := startRelay(t)
	alice := connect(t, server, "alice")
	bob := connect(t, server, "bob")

	env, err := signaling.NewEnvelope(signaling.EventEnd, "bob", nil)
	require.NoError(t, err)
	require.NoError(t, alice.WriteJSON(env))

	got := readEnvelope(t, bob)
	assert.Equal(t, signaling.EventEnd, got.Type)
	assert.Equal(t, "alice", got.From, "relay must stamp the sender id")
	assert.Equal(t, "bob", got.To)
}

func TestRelay_OverridesSpoofedSender(t *testing.T) {
	server := startRelay(t)
	alice := connect(t, server, "alice")
	bob := connect(t, server, "bob")

	env, err := signaling.NewEnvelope(signaling.EventEnd, "bob", nil)
	require.NoError(t, err)
	env.From = "mallory"
	require.NoError(t, alice.WriteJSON(env))

	got := readEnvelope(t, bob)
	assert.Equal(t, "alice", got.From)
}

func TestRelay_UnknownRecipientDoesNotKillSender(t *testing.T) {
	server := startRelay(t)
	alice := connect(t, server, "alice")
	bob := connect(t, server, "bob")

	gone, err := signaling.NewEnvelope(signaling.EventOffer, "nobody", nil)
	require.NoError(t, err)
	require.NoError(t, alice.WriteJSON(gone))

	// Alice's connection survives and keeps routing.
	env, err := signaling.NewEnvelope(signaling.EventEnd, "bob", nil)
	require.NoError(t, err)
	require.NoError(t, alice.WriteJSON(env))

	got := readEnvelope(t, bob)
	assert.Equal(t, signaling.EventEnd, got.Type)
}

func TestRelay_MalformedFrameIsDropped(t *testing.T) {
	server := startRelay(t)
	alice := connect(t, server, "alice")
	bob := connect(t, server, "bob")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not-json")))

	env, err := signaling.NewEnvelope(signaling.EventEnd, "bob", nil)
	require.NoError(t, err)
	require.NoError(t, alice.WriteJSON(env))

	got := readEnvelope(t, bob)
	assert.Equal(t, signaling.EventEnd, got.Type)
}

func TestRelay_ReconnectSupersedesOldConnection(t *testing.T) {
	server := startRelay(t)
	alice := connect(t, server, "alice")
	bobOld := connect(t, server, "bob")
	bobNew := connect(t, server, "bob")

	env, err := signaling.NewEnvelope(signaling.EventEnd, "bob", nil)
	require.NoError(t, err)
	require.NoError(t, alice.WriteJSON(env))

	got := readEnvelope(t, bobNew)
	assert.Equal(t, signaling.EventEnd, got.Type)

	// The superseded connection was closed by the relay.
	require.NoError(t, bobOld.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = bobOld.ReadMessage()
	assert.Error(t, err)
}

func TestRelay_RejectsMissingID(t *testing.T) {
	server := startRelay(t)
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
