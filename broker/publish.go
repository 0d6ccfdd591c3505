package broker

import (
	"github.com/axmq/broker/hook"
	"github.com/axmq/broker/packet"
)

// runOnPublish invokes the OnPublish hook chain; a veto here aborts the
// whole fan-out before any subscriber sees the message.
func (b *Broker) runOnPublish(publisherID, topic string, qos byte, raw []byte, retain bool) error {
	return b.Hooks.OnPublish(&hook.Client{ID: publisherID}, &hook.PublishPacket{
		Topic: topic, QoS: qos, Payload: raw, Retain: retain,
	})
}

// PublishQoS0 forwards raw — the original on-the-wire PUBLISH bytes,
// unmodified — to every current subscriber of topic. No acknowledgment is
// tracked; a subscriber that is not connected simply misses the message.
func (b *Broker) PublishQoS0(publisherID, topic string, raw []byte, retain bool) error {
	if err := b.runOnPublish(publisherID, topic, byte(packet.QoS0), raw, retain); err != nil {
		return err
	}
	for _, subscriber := range b.SubscribersOf(topic) {
		if _, err := b.DeliverTo(subscriber, raw); err != nil {
			b.cfg.Logger.Warn("publish qos0 write failed", "client", subscriber, "err", err)
		}
	}
	return nil
}

// PublishQoS1 forwards raw to every current subscriber of topic and
// records the packet as InFlightQoS1 against that subscriber snapshot, so
// the retransmit loop can resend to whoever hasn't PUBACKed yet. The
// caller (the session handling the publisher's connection) is responsible
// for sending the PUBACK back to the publisher itself.
func (b *Broker) PublishQoS1(publisherID string, id packet.PacketID, topic string, raw []byte, retain bool) error {
	if err := b.runOnPublish(publisherID, topic, byte(packet.QoS1), raw, retain); err != nil {
		return err
	}

	subscribers := b.SubscribersOf(topic)
	for _, subscriber := range subscribers {
		if _, err := b.DeliverTo(subscriber, raw); err != nil {
			b.cfg.Logger.Warn("publish qos1 write failed", "client", subscriber, "err", err)
		}
	}
	b.RecordQoS1(id, raw, topic, subscribers)
	return nil
}

// ReceiveQoS2 buffers a QoS 2 PUBLISH from its publisher pending the
// matching PUBREL; nothing is delivered to subscribers yet. The caller is
// responsible for sending the PUBREC back to the publisher.
func (b *Broker) ReceiveQoS2(publisherID string, id packet.PacketID, topic string, raw []byte, retain bool) error {
	if err := b.runOnPublish(publisherID, topic, byte(packet.QoS2), raw, retain); err != nil {
		return err
	}
	b.RecordQoS2Pending(id, raw, topic)
	return nil
}

// ReleaseAndDeliverQoS2 pops the buffered QoS 2 entry for id (on receipt of
// its PUBREL), forwards it to the topic's current subscriber snapshot, and
// appends an InFlightQoS2Delivery entry for that snapshot. released is
// false if id was not pending — a duplicate PUBREL, which the caller must
// silently ignore rather than treat as an error.
func (b *Broker) ReleaseAndDeliverQoS2(id packet.PacketID) (released bool) {
	raw, topic, ok := b.ReleaseQoS2(id)
	if !ok {
		return false
	}

	subscribers := b.SubscribersOf(topic)
	for _, subscriber := range subscribers {
		if _, err := b.DeliverTo(subscriber, raw); err != nil {
			b.cfg.Logger.Warn("publish qos2 write failed", "client", subscriber, "err", err)
		}
	}
	b.RecordQoS2Delivery(id, raw, topic, subscribers)
	return true
}
