package client

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	appevents "github.com/corv87/lanCaller/internal/app_events"
	clientevents "github.com/corv87/lanCaller/internal/app_events/client"
	"github.com/corv87/lanCaller/pkg/call"
	"github.com/corv87/lanCaller/pkg/discovery"
	"github.com/corv87/lanCaller/pkg/media"
	"github.com/corv87/lanCaller/pkg/reconcile"
	"github.com/corv87/lanCaller/pkg/ringer"
	"github.com/corv87/lanCaller/pkg/signaling"
)

// Config carries everything the client needs to join the network.
type Config struct {
	SelfID      string
	DisplayName string
	ServerURL   string
	Port        int
	StateDir    string
}

// App is the application logic controller: it wires discovery, signaling, the
// media engine factory and the session manager together and routes events
// between them and the TUI.
type App struct {
	cfg        Config
	manager    *call.Manager
	signaler   signaling.Signaler
	discoverer discovery.Adapter
	reconciler *reconcile.Reconciler

	uiMessages chan tea.Msg
	appEvents  chan appevents.AppEvent
}

// NewApp dials the signaling server and assembles the call stack.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	signaler, err := signaling.Dial(ctx, cfg.ServerURL, cfg.SelfID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signaling server: %w", err)
	}

	manager := call.NewManager(call.Config{
		SelfID:      cfg.SelfID,
		DisplayName: cfg.DisplayName,
	}, signaler, media.NewWebrtcAPI(), ringer.Terminal{})

	store := reconcile.NewMarkerStore(cfg.StateDir)

	return &App{
		cfg:        cfg,
		manager:    manager,
		signaler:   signaler,
		discoverer: &discovery.MDNSAdapter{},
		reconciler: reconcile.NewReconciler(store, signaler, manager),
		uiMessages: make(chan tea.Msg, 10),
		appEvents:  make(chan appevents.AppEvent),
	}, nil
}

// UIMessages returns the channel the TUI listens on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run starts the application's goroutines and blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.manager.Run(ctx)
	})

	g.Go(func() error {
		return a.discoverer.Announce(ctx, discovery.PeerInfo{
			ID:          a.cfg.SelfID,
			DisplayName: a.cfg.DisplayName,
			Type:        discovery.DefaultServiceType,
			Domain:      discovery.DefaultDomain,
			Port:        a.cfg.Port,
		})
	})

	g.Go(func() error {
		return a.runDiscovery(ctx)
	})

	g.Go(func() error {
		return a.pumpUpdates(ctx)
	})

	g.Go(func() error {
		return a.runEventLoop(ctx)
	})

	// A decline may have been recorded by the notification handler while this
	// process was not running; converge before the first call.
	if err := a.reconciler.Resume(ctx); err != nil {
		a.sendAndLogError(ctx, "Failed to reconcile call state", err)
	}

	err := g.Wait()
	if closeErr := a.signaler.Close(); closeErr != nil {
		slog.Warn("failed to close signaler", "error", closeErr)
	}
	return err
}

func (a *App) runDiscovery(ctx context.Context) error {
	service := fmt.Sprintf("%s.%s.", discovery.DefaultServiceType, discovery.DefaultDomain)
	results := a.discoverer.Discover(ctx, service)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return nil
			}
			if result.Error != nil {
				a.sendAndLogError(ctx, "Peer discovery failed", result.Error)
				continue
			}
			peers := make([]discovery.PeerInfo, 0, len(result.Peers))
			for _, p := range result.Peers {
				if p.ID != a.cfg.SelfID {
					peers = append(peers, p)
				}
			}
			a.sendUI(ctx, clientevents.PeersFoundMsg{Peers: peers})
		}
	}
}

func (a *App) pumpUpdates(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-a.manager.Updates():
			a.sendUI(ctx, clientevents.CallStatusMsg{Snapshot: snap})
		}
	}
}

func (a *App) runEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-a.appEvents:
			a.handleAppEvent(ctx, event)
		}
	}
}

func (a *App) handleAppEvent(ctx context.Context, event appevents.AppEvent) {
	switch e := event.(type) {
	case clientevents.CallPeerMsg:
		if err := a.manager.StartCall(call.Participant{
			ID:          e.Peer.ID,
			DisplayName: e.Peer.DisplayName,
		}); err != nil {
			a.sendAndLogError(ctx, "Failed to start call", err)
		}
	case clientevents.AnswerCallMsg:
		if err := a.manager.AnswerCall(); err != nil {
			a.sendAndLogError(ctx, "Failed to answer call", err)
		}
	case clientevents.DeclineCallMsg:
		if err := a.manager.DeclineCall(); err != nil {
			a.sendAndLogError(ctx, "Failed to decline call", err)
		}
	case clientevents.HangUpMsg:
		if err := a.manager.EndCall(); err != nil {
			a.sendAndLogError(ctx, "Failed to end call", err)
		}
	default:
		slog.Warn("received unhandled app event", "event", event)
	}
}

// sendUI delivers a message to the TUI. Once the TUI has quit nobody drains
// uiMessages, so every send must also watch ctx or the errgroup never exits.
func (a *App) sendUI(ctx context.Context, msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	case <-ctx.Done():
	}
}

func (a *App) sendAndLogError(ctx context.Context, baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.sendUI(ctx, appevents.ErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}
