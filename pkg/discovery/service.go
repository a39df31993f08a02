package discovery

import (
	"context"
	"net"
)

const (
	DefaultServiceType = "_lan-caller._tcp"
	DefaultDomain      = "local"
)

// PeerInfo describes a callable peer found on the network. ID and DisplayName
// come from the announced TXT record and feed straight into call signaling.
type PeerInfo struct {
	ID          string
	DisplayName string
	Type        string
	Domain      string
	Addr        net.IP
	Port        int
}

// Result carries either the current peer set or a browse error.
type Result struct {
	Peers []PeerInfo
	Error error
}

type Adapter interface {
	Announce(ctx context.Context, peer PeerInfo) error
	Discover(ctx context.Context, service string) <-chan Result
}
