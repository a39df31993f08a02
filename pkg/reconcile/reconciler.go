package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corv87/lanCaller/pkg/signaling"
)

// SessionConverger is the slice of the session manager the reconciler needs:
// force whatever session state lingers back to idle.
type SessionConverger interface {
	ForceTeardown() error
}

// Reconciler converges in-process call state with terminal decisions recorded
// by another execution context while this process was suspended.
type Reconciler struct {
	store    *MarkerStore
	signaler signaling.Signaler
	manager  SessionConverger
}

func NewReconciler(store *MarkerStore, signaler signaling.Signaler, manager SessionConverger) *Reconciler {
	return &Reconciler{store: store, signaler: signaler, manager: manager}
}

// Resume runs once per process resume. If a decline was recorded out of
// process it re-sends the decline signal — a duplicate is harmless at the
// protocol level — and forces the session manager to idle so the two
// execution contexts agree the call is over.
func (r *Reconciler) Resume(ctx context.Context) error {
	marker, ok, err := r.store.ReadAndClear()
	if err != nil {
		return fmt.Errorf("failed to read decline marker: %w", err)
	}
	if !ok {
		return nil
	}

	slog.Info("reconciling out-of-process decline", "remote", marker.RemoteParticipantID)

	env, err := signaling.NewEnvelope(signaling.EventDeclined, marker.RemoteParticipantID, nil)
	if err == nil {
		err = r.signaler.Send(ctx, env)
	}
	if err != nil {
		// The out-of-process handler may already have delivered the decline;
		// converging local state matters more than this send.
		slog.Warn("failed to send reconciled decline", "error", err)
	}

	if err := r.manager.ForceTeardown(); err != nil {
		return fmt.Errorf("failed to converge session state: %w", err)
	}
	return nil
}
