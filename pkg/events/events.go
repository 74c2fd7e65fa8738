// Package events defines the two event families that flow through the
// runtime: Application events, consumed by the engine's router, and Host
// events, consumed by the script host. Events are immutable values.
package events

// Application is an event addressed to the router. It is produced by the
// script host or by the shell.
type Application interface {
	applicationEvent()
}

// Exit asks the process to terminate.
type Exit struct{}

// SendOutbound asks the router to forward a message to the wire transport.
// Args holds generic (JSON-like) values.
type SendOutbound struct {
	Address string
	Args    []any
}

// ReloadScript asks the router to reload the script host.
type ReloadScript struct{}

func (Exit) applicationEvent()         {}
func (SendOutbound) applicationEvent() {}
func (ReloadScript) applicationEvent() {}

// Host is an event addressed to the script host. It is produced by the
// router and the definition watcher.
type Host interface {
	hostEvent()
}

// InboundReceived carries a message received from the wire transport. Args is
// the generic rendering of the message arguments (a []any).
type InboundReceived struct {
	Address string
	Args    any
}

// ConfigUpdated carries a freshly aggregated definition tree.
type ConfigUpdated struct {
	Tree any
}

// Reload asks the host to discard its sandbox and start over.
type Reload struct{}

func (InboundReceived) hostEvent() {}
func (ConfigUpdated) hostEvent()   {}
func (Reload) hostEvent()          {}
