// Package broker holds the shared, connection-independent state of a
// running MQTT server: which clients are connected, who is subscribed to
// what, and which QoS 1/2 exchanges are still in flight. Every session
// goroutine calls into the same *Broker; all of its state is guarded by one
// mutex, and the mutex is never held across a socket write — callers get a
// snapshot back and do the I/O themselves.
package broker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/axmq/broker/hook"
	"github.com/axmq/broker/packet"
	"github.com/axmq/broker/pkg/logger"
)

// Writer is the minimum a session must expose to receive broker-initiated
// writes (fan-out PUBLISH, retransmits). Implementations must serialize
// concurrent calls themselves — the broker calls Write from whichever
// session's goroutine is currently publishing, and from the retransmit
// loop, without coordinating between them.
type Writer interface {
	Write(b []byte) (int, error)
}

// Config tunes the broker's runtime behavior.
type Config struct {
	// RetransmitInterval is the cadence of the retransmit loop: every tick,
	// every surviving in-flight QoS 1/2 entry is resent to its still-pending
	// subscribers, unconditionally. There is no backoff or retry cap — a
	// fixed, blind cadence, as specified.
	RetransmitInterval time.Duration
	// MaxInFlightPerClient caps how many QoS 1/2 exchanges a single client
	// may have outstanding at once as a pending subscriber, counted across
	// the QoS 1 and QoS 2 delivery registries. Zero means unbounded.
	MaxInFlightPerClient int
	// Overflow, if non-nil, is consulted once a client would exceed
	// MaxInFlightPerClient — entries are spilled there instead of rejected.
	Overflow Overflow
	Logger   *slog.Logger
}

// DefaultConfig returns the broker's out-of-the-box tuning.
func DefaultConfig() Config {
	return Config{
		RetransmitInterval:   2 * time.Second,
		MaxInFlightPerClient: 0,
		Logger:               logger.NewSlogLogger(slog.LevelInfo, nil).Slog(),
	}
}

// qos1Entry is one InFlightQoS1 record: the original on-the-wire PUBLISH
// bytes, and the set of subscribers still to PUBACK.
type qos1Entry struct {
	bytes   []byte
	pending map[string]struct{}
}

// qos2PendingEntry is one InFlightQoS2Pending record: a QoS 2 PUBLISH
// received from a publisher, buffered until its PUBREL arrives.
type qos2PendingEntry struct {
	bytes []byte
	topic string
}

// qos2DeliveryEntry is one element of an InFlightQoS2Delivery list: a
// released QoS 2 message and the subscribers still to PUBCOMP it.
type qos2DeliveryEntry struct {
	bytes   []byte
	pending map[string]struct{}
}

// Broker is the shared state of one running server instance.
type Broker struct {
	cfg Config

	mu      sync.Mutex
	clients map[string]Writer
	subs    map[string]map[string]struct{} // topic -> set of subscriber client IDs

	qos1     map[packet.PacketID]*qos1Entry
	qos2Pend map[packet.PacketID]*qos2PendingEntry
	qos2Del  map[packet.PacketID][]*qos2DeliveryEntry

	Hooks *hook.Manager
}

// New creates a broker with the given config. Call RetransmitLoop to start
// its periodic resend worker.
func New(cfg Config) *Broker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Broker{
		cfg:      cfg,
		clients:  make(map[string]Writer),
		subs:     make(map[string]map[string]struct{}),
		qos1:     make(map[packet.PacketID]*qos1Entry),
		qos2Pend: make(map[packet.PacketID]*qos2PendingEntry),
		qos2Del:  make(map[packet.PacketID][]*qos2DeliveryEntry),
		Hooks:    hook.NewManager(),
	}
}

// RegisterClient records clientID as connected with w as its outbound sink.
// A second registration under the same ID replaces the first, mirroring
// the MQTT 3.1.1 rule that a new CONNECT with a duplicate client ID takes
// over the existing session.
func (b *Broker) RegisterClient(clientID string, w Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[clientID] = w
}

// UnregisterClient removes clientID from the registry and from every
// subscription set. It does not touch in-flight QoS state directly —
// pending subscriber sets are pruned lazily by the retransmit loop, which
// intersects them against the live client registry on every tick. Removing
// a client that was never registered is a no-op.
func (b *Broker) UnregisterClient(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.clients, clientID)
	for topic, set := range b.subs {
		delete(set, clientID)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
}

// IsConnected reports whether clientID currently has a registered writer.
func (b *Broker) IsConnected(clientID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.clients[clientID]
	return ok
}

// Subscribe adds clientID to topic's subscriber set, creating the set if
// this is the topic's first subscriber. Wildcard matching is out of scope:
// topic is matched for exact equality only.
func (b *Broker) Subscribe(clientID, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[topic]
	if !ok {
		set = make(map[string]struct{})
		b.subs[topic] = set
	}
	set[clientID] = struct{}{}
}

// ClearSubscriptionsOf removes clientID from every topic it was subscribed
// to. Idempotent: clearing a client with no subscriptions is a no-op.
func (b *Broker) ClearSubscriptionsOf(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, set := range b.subs {
		delete(set, clientID)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
}

// SubscribersOf returns a snapshot of client IDs subscribed to topic. The
// snapshot is a copy precisely so that a concurrent Subscribe/disconnect
// cannot mutate the slice a caller is about to forward a message to.
func (b *Broker) SubscribersOf(topic string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.subs[topic]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// writerFor returns the registered writer for clientID, or nil if it is not
// (or no longer) connected. Caller must not hold b.mu.
func (b *Broker) writerFor(clientID string) Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clients[clientID]
}

// DeliverTo writes raw bytes directly to clientID's registered writer, the
// primitive every fan-out and retransmit ultimately goes through. Returns
// false if clientID has no registered writer (disconnected or unknown);
// this is not an error, just nothing to do.
func (b *Broker) DeliverTo(clientID string, raw []byte) (delivered bool, err error) {
	w := b.writerFor(clientID)
	if w == nil {
		return false, nil
	}
	_, err = w.Write(raw)
	return true, err
}
