package call

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/corv87/lanCaller/pkg/media"
	"github.com/corv87/lanCaller/pkg/signaling"
)

// Role says which side of the call this process is on.
type Role int

const (
	RoleCaller Role = iota
	RoleCallee
)

func (r Role) String() string {
	switch r {
	case RoleCaller:
		return "caller"
	case RoleCallee:
		return "callee"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of the call session.
type Status int

const (
	StatusIdle Status = iota
	StatusCalling
	StatusRinging
	StatusConnecting
	StatusConnected
	StatusDeclined
	StatusBusy
	StatusUnreachable
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusCalling:
		return "calling"
	case StatusRinging:
		return "ringing"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDeclined:
		return "declined"
	case StatusBusy:
		return "busy"
	case StatusUnreachable:
		return "unreachable"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can only be left through teardown.
func (s Status) Terminal() bool {
	switch s {
	case StatusDeclined, StatusBusy, StatusUnreachable, StatusEnded:
		return true
	default:
		return false
	}
}

// Participant identifies the remote party of a call.
type Participant struct {
	ID          string
	DisplayName string
	Role        string
}

// Snapshot is the read-only view of the session handed to observers.
type Snapshot struct {
	SessionID string
	Status    Status
	Role      Role
	Remote    Participant
	// Reason is a human-readable note for terminal outcomes ("call declined",
	// "no answer", ...). Empty on ordinary transitions.
	Reason string
}

// session holds all mutable call state. It is owned exclusively by the
// manager's event loop; nothing outside the loop may touch it.
type session struct {
	id     string
	gen    uint64
	role   Role
	remote Participant
	status Status

	// engine owns the acquired local media for this session and is closed,
	// exactly once, by teardown.
	engine media.Engine

	remoteDescriptionSet bool
	iceQueue             candidateQueue
	pendingRemoteOffer   *webrtc.SessionDescription

	deadline *time.Timer
	grace    *time.Timer
}

// fromRemote reports whether env was sent by this session's remote party.
// Every session-scoped signal must pass this check: a caller that was
// rejected with busy may still cancel or end its own losing attempt, and
// those envelopes must not touch the session that won the slot.
func (s *session) fromRemote(env signaling.Envelope) bool {
	return env.From == s.remote.ID
}

func (s *session) stopDeadline() {
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}
}

func (s *session) stopGrace() {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
}
