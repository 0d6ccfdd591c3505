// Package hook lets external code observe and veto broker lifecycle events
// — client connect/disconnect, publish, subscribe — without the broker
// itself knowing anything about the hook's purpose.
package hook

// Event identifies one of the lifecycle points a Hook can provide behavior
// for. Keeping this as a bitmask-friendly enum (rather than calling every
// method on every hook) lets Manager skip hooks that don't care about a
// given event.
type Event byte

const (
	OnConnect Event = iota
	OnDisconnect
	OnPublish
	OnSubscribe
)

// String returns the event's name.
func (e Event) String() string {
	switch e {
	case OnConnect:
		return "OnConnect"
	case OnDisconnect:
		return "OnDisconnect"
	case OnPublish:
		return "OnPublish"
	case OnSubscribe:
		return "OnSubscribe"
	default:
		return "Unknown"
	}
}

// Client is the minimal view of a connection a hook is allowed to see.
type Client struct {
	ID         string
	RemoteAddr string
}

// PublishPacket is the subset of a PUBLISH a hook may inspect or reject.
type PublishPacket struct {
	Topic   string
	QoS     byte
	Payload []byte
	Retain  bool
}

// Subscription is one topic filter within a SUBSCRIBE a hook may inspect.
type Subscription struct {
	ClientID     string
	Topic        string
	RequestedQoS byte
}

// Hook is implemented by anything that wants to observe or veto broker
// lifecycle events. Embed Base to get no-op defaults for events you don't
// care about.
type Hook interface {
	// ID uniquely identifies this hook within a Manager.
	ID() string
	// Provides reports whether this hook wants to be invoked for event.
	Provides(event Event) bool
	// Stop releases any resources the hook holds (timers, connections).
	Stop() error

	OnConnect(client *Client) error
	OnDisconnect(client *Client, err error)
	OnPublish(client *Client, packet *PublishPacket) error
	OnSubscribe(client *Client, sub *Subscription) error
}
