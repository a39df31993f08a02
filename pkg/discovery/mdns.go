package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/brutella/dnssd"
)

const (
	txtID   = "id"
	txtName = "name"
)

type MDNSAdapter struct{}

// Announce publishes this peer until ctx is canceled.
func (m *MDNSAdapter) Announce(ctx context.Context, peer PeerInfo) error {
	cfg := dnssd.Config{
		Name:   peer.DisplayName,
		Type:   peer.Type,
		Domain: peer.Domain,
		// mDNS multicasts to the local segment; leaving IPs nil lets the
		// responder pick the right interfaces.
		IPs:  nil,
		Text: map[string]string{txtID: peer.ID, txtName: peer.DisplayName},
		Port: peer.Port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}
	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	if err = rp.Respond(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("failed to respond to mDNS queries: %w", err)
	}
	return nil
}

// Discover browses for callable peers and emits a fresh snapshot of the peer
// set whenever it changes.
func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan Result {
	var (
		mu      sync.Mutex
		entries = make(map[string]PeerInfo)
		outCh   = make(chan Result, 10)
	)

	sendSnapshot := func() {
		mu.Lock()
		snapshot := make([]PeerInfo, 0, len(entries))
		for _, entry := range entries {
			snapshot = append(snapshot, entry)
		}
		mu.Unlock()
		select {
		case outCh <- Result{Peers: snapshot}:
		default:
		}
	}

	addFn := func(e dnssd.BrowseEntry) {
		peer := peerFromEntry(e)
		if peer.ID == "" {
			// Not one of ours; a TXT id is required to address signaling.
			return
		}
		mu.Lock()
		entries[browseKey(e)] = peer
		mu.Unlock()
		sendSnapshot()
	}

	rmvFn := func(e dnssd.BrowseEntry) {
		mu.Lock()
		delete(entries, browseKey(e))
		mu.Unlock()
		sendSnapshot()
	}

	go func() {
		defer close(outCh)
		if err := dnssd.LookupType(ctx, service, addFn, rmvFn); err != nil && err != context.Canceled {
			select {
			case outCh <- Result{Error: fmt.Errorf("mDNS lookup failed: %w", err)}:
			default:
			}
		}
	}()

	return outCh
}

func browseKey(e dnssd.BrowseEntry) string {
	return fmt.Sprintf("%s:%s:%s", e.Name, e.Type, e.Domain)
}

func peerFromEntry(e dnssd.BrowseEntry) PeerInfo {
	peer := PeerInfo{
		ID:          e.Text[txtID],
		DisplayName: e.Text[txtName],
		Type:        e.Type,
		Domain:      e.Domain,
		Port:        e.Port,
	}
	if peer.DisplayName == "" {
		peer.DisplayName = e.Name
	}
	if len(e.IPs) > 0 {
		peer.Addr = e.IPs[0]
	}
	return peer
}
