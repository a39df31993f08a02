package ringer

import (
	"fmt"
	"log/slog"
	"os"
)

// Remote describes who is calling, for display purposes.
type Remote struct {
	ID          string
	DisplayName string
}

// Ringer is the local attention surface for incoming calls. StartRinging is
// used when the process is foregrounded; ShowIncoming when it is not (the
// system-notification path). The session manager calls the matching stop on
// every exit from Ringing, so both stops must tolerate never having started.
type Ringer interface {
	StartRinging(remote Remote)
	StopRinging()
	ShowIncoming(remote Remote)
	DismissIncoming()
}

// Terminal rings by writing the bell character and a log line. It stands in
// for platform ringtone/notification integration.
type Terminal struct{}

func (Terminal) StartRinging(remote Remote) {
	fmt.Fprint(os.Stderr, "\a")
	slog.Info("ringing", "from", remote.DisplayName, "id", remote.ID)
}

func (Terminal) StopRinging() {
	slog.Debug("ringer stopped")
}

func (Terminal) ShowIncoming(remote Remote) {
	fmt.Fprint(os.Stderr, "\a")
	slog.Info("incoming call notification", "from", remote.DisplayName, "id", remote.ID)
}

func (Terminal) DismissIncoming() {
	slog.Debug("incoming call notification dismissed")
}

// Noop is for tests and headless use.
type Noop struct{}

func (Noop) StartRinging(Remote) {}
func (Noop) StopRinging()        {}
func (Noop) ShowIncoming(Remote) {}
func (Noop) DismissIncoming()    {}
