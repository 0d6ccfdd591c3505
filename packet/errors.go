package packet

import "errors"

var (
	// ErrInvalidType is returned for a fixed-header type nibble outside 1..15.
	ErrInvalidType = errors.New("packet: invalid packet type")

	// ErrInvalidFlags is returned when a fixed-header flags nibble does not
	// match the value MQTT 3.1.1 mandates for that packet type.
	ErrInvalidFlags = errors.New("packet: invalid flags for packet type")

	// ErrInvalidQoS is returned for a PUBLISH QoS bit pair of 0b11.
	ErrInvalidQoS = errors.New("packet: invalid QoS level")

	// ErrMalformedPacket is returned when a packet's declared remaining
	// length does not match the bytes actually consumed while parsing its
	// variable header and payload.
	ErrMalformedPacket = errors.New("packet: malformed packet")

	// ErrUnsupportedType is returned for packet types this broker recognizes
	// on the wire but never decodes into a Packet value: CONNACK and
	// PINGRESP, which the broker only encodes, and UNSUBSCRIBE, UNSUBACK,
	// AUTH — out of scope per spec non-goals.
	ErrUnsupportedType = errors.New("packet: unsupported packet type")

	// ErrInvalidConnectFlags is returned when CONNECT's fixed-header flags
	// nibble is non-zero.
	ErrInvalidConnectFlags = errors.New("packet: CONNECT flags nibble must be 0")
)
