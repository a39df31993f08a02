package client

import (
	appevents "github.com/corv87/lanCaller/internal/app_events"
	"github.com/corv87/lanCaller/pkg/call"
	"github.com/corv87/lanCaller/pkg/discovery"
)

// --- App events (from TUI to app) ---

// CallPeerMsg asks the app to place a call to the selected peer.
type CallPeerMsg struct {
	appevents.Event
	Peer discovery.PeerInfo
}

// AnswerCallMsg accepts the ringing incoming call.
type AnswerCallMsg struct {
	appevents.Event
}

// DeclineCallMsg rejects the ringing incoming call.
type DeclineCallMsg struct {
	appevents.Event
}

// HangUpMsg ends whatever call is active.
type HangUpMsg struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = (*CallPeerMsg)(nil)
	_ appevents.AppEvent = (*AnswerCallMsg)(nil)
	_ appevents.AppEvent = (*DeclineCallMsg)(nil)
	_ appevents.AppEvent = (*HangUpMsg)(nil)
)

// --- UI messages (from app to TUI) ---

// PeersFoundMsg carries the current set of callable peers.
type PeersFoundMsg struct {
	Peers []discovery.PeerInfo
}

// CallStatusMsg carries a session snapshot whenever the call state changes.
type CallStatusMsg struct {
	Snapshot call.Snapshot
}
