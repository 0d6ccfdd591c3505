package broker

import "github.com/axmq/broker/packet"

// Overflow is consulted when a client's in-flight QoS registries are at
// MaxInFlightPerClient capacity. A configured Overflow gets first refusal
// at spilling the entry somewhere durable instead of the broker rejecting
// it outright; PebbleOverflow is the bundled implementation.
type Overflow interface {
	Spill(clientID, topic string, id packet.PacketID, payload []byte) error
}

// inFlightCount returns how many distinct QoS 1/2 exchanges clientID is
// currently a pending subscriber of, across the QoS 1 and QoS 2 delivery
// registries (QoS 2 entries still awaiting PUBREL have no subscribers and
// are not counted). Caller must hold b.mu.
func (b *Broker) inFlightCount(clientID string) int {
	n := 0
	for _, e := range b.qos1 {
		if _, ok := e.pending[clientID]; ok {
			n++
		}
	}
	for _, list := range b.qos2Del {
		for _, e := range list {
			if _, ok := e.pending[clientID]; ok {
				n++
			}
		}
	}
	return n
}

func (b *Broker) admit(clientID, topic string, id packet.PacketID, payload []byte) error {
	if b.cfg.MaxInFlightPerClient <= 0 {
		return nil
	}
	if b.inFlightCount(clientID) < b.cfg.MaxInFlightPerClient {
		return nil
	}
	if b.cfg.Overflow != nil {
		return b.cfg.Overflow.Spill(clientID, topic, id, payload)
	}
	return ErrInFlightFull
}

// RecordQoS1 registers a QoS 1 PUBLISH, keyed by its packet id, as
// outstanding against every client in subscribers. subscribers must
// already be an independent snapshot — the broker does not copy it again.
// A subscriber already at MaxInFlightPerClient capacity is spilled to
// Overflow and still added to the pending set; with no Overflow configured,
// or if the spill fails, it is left out of the pending set. No entry is
// recorded when no subscriber ends up pending.
func (b *Broker) RecordQoS1(id packet.PacketID, raw []byte, topic string, subscribers []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending := make(map[string]struct{}, len(subscribers))
	for _, s := range subscribers {
		if err := b.admit(s, topic, id, raw); err != nil {
			b.cfg.Logger.Warn("qos1 admission failed, dropping subscriber", "client", s, "err", err)
			continue
		}
		pending[s] = struct{}{}
	}
	if len(pending) == 0 {
		return
	}
	b.qos1[id] = &qos1Entry{bytes: raw, pending: pending}
}

// AckQoS1 removes subscriber from id's pending set on receipt of its
// PUBACK, deleting the entry once the set empties. A missing id (an
// unknown or duplicate ack) is silently absorbed, per the broker's
// duplicate-tolerant ack handling — callers must not treat the returned
// bool as an error.
func (b *Broker) AckQoS1(id packet.PacketID, subscriber string) (existed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.qos1[id]
	if !ok {
		return false
	}
	delete(entry.pending, subscriber)
	if len(entry.pending) == 0 {
		delete(b.qos1, id)
	}
	return true
}

// RecordQoS2Pending buffers a QoS 2 PUBLISH received from its publisher,
// keyed by packet id, until the matching PUBREL arrives. A second PUBLISH
// under the same id before that PUBREL (a publisher retry) overwrites the
// buffered bytes idempotently.
func (b *Broker) RecordQoS2Pending(id packet.PacketID, raw []byte, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.qos2Pend[id] = &qos2PendingEntry{bytes: raw, topic: topic}
}

// ReleaseQoS2 removes and returns the pending QoS 2 entry for id on receipt
// of its PUBREL. ok is false for an unknown id (a duplicate PUBREL), which
// callers must silently ignore rather than treat as an error.
func (b *Broker) ReleaseQoS2(id packet.PacketID) (raw []byte, topic string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, exists := b.qos2Pend[id]
	if !exists {
		return nil, "", false
	}
	delete(b.qos2Pend, id)
	return entry.bytes, entry.topic, true
}

// RecordQoS2Delivery appends a new InFlightQoS2Delivery list entry for id —
// a released QoS 2 message and the subscribers still to PUBCOMP it. A
// publisher that retries PUBREL for the same id produces a second,
// independent list entry rather than replacing the first.
func (b *Broker) RecordQoS2Delivery(id packet.PacketID, raw []byte, topic string, subscribers []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending := make(map[string]struct{}, len(subscribers))
	for _, s := range subscribers {
		if err := b.admit(s, topic, id, raw); err != nil {
			b.cfg.Logger.Warn("qos2 admission failed, dropping subscriber", "client", s, "err", err)
			continue
		}
		pending[s] = struct{}{}
	}
	b.qos2Del[id] = append(b.qos2Del[id], &qos2DeliveryEntry{bytes: raw, pending: pending})
}

// AckQoS2 removes subscriber from the first (oldest) InFlightQoS2Delivery
// list entry for id on receipt of its PUBCOMP. Once that entry's pending
// set empties it is dropped from the list; once the list empties, id is
// removed entirely. A missing id or subscriber is silently absorbed.
func (b *Broker) AckQoS2(id packet.PacketID, subscriber string) (existed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.qos2Del[id]
	if len(list) == 0 {
		return false
	}

	front := list[0]
	if _, ok := front.pending[subscriber]; !ok {
		return false
	}
	delete(front.pending, subscriber)

	if len(front.pending) == 0 {
		list = list[1:]
	}
	if len(list) == 0 {
		delete(b.qos2Del, id)
	} else {
		b.qos2Del[id] = list
	}
	return true
}
