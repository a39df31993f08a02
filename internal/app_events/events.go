package appevents

// AppEvent is a marker interface for events sent from the TUI to the app's
// logic controller. The unexported method means only types embedding Event
// can satisfy it, which keeps the event set closed at compile time.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded by concrete event types to satisfy AppEvent.
type Event struct{}

func (Event) isAppEvent() {}

// ErrorMsg is sent from the app to the TUI when something user-visible fails.
type ErrorMsg struct {
	Err error
}
