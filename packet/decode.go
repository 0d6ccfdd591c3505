package packet

import "github.com/axmq/broker/codec"

// Decode parses one whole control packet from buf — exactly the slice a
// frame.Reader hands back, fixed header through the last payload byte — and
// returns the parsed Packet plus the number of bytes consumed. Callers that
// need to detect partial frames should rely on frame.Reader, not this
// function: Decode assumes buf already holds a complete packet.
func Decode(buf []byte) (Packet, int, error) {
	r := codec.NewReader(buf)

	first, err := r.ReadByte()
	if err != nil {
		return nil, 0, err
	}

	t := Type(first >> 4)
	flags := first & 0x0F

	if t == Reserved || t > AUTH {
		return nil, 0, ErrInvalidType
	}

	var dup bool
	var qos QoS
	var retain bool
	if t == PUBLISH {
		dup = flags&0x08 != 0
		qos = QoS((flags & 0x06) >> 1)
		retain = flags&0x01 != 0
		if !qos.IsValid() {
			return nil, 0, ErrInvalidQoS
		}
	} else if t == CONNECT && flags != 0 {
		return nil, 0, ErrInvalidConnectFlags
	} else if err := validateFlags(t, flags); err != nil {
		return nil, 0, err
	}

	remaining, err := r.ReadVarint()
	if err != nil {
		return nil, 0, err
	}

	bodyStart := r.Pos()
	if r.Remaining() < int(remaining) {
		return nil, 0, codec.ErrShortBuffer
	}
	body := codec.NewReader(buf[bodyStart : bodyStart+int(remaining)])

	var pkt Packet
	switch t {
	case CONNECT:
		if flags != 0 {
			return nil, 0, ErrInvalidConnectFlags
		}
		pkt, err = decodeConnect(body)
	case PUBLISH:
		pkt, err = decodePublish(body, dup, qos, retain)
	case PUBACK:
		pkt, err = decodePuback(body)
	case PUBREC:
		pkt, err = decodePubrec(body)
	case PUBREL:
		pkt, err = decodePubrel(body)
	case PUBCOMP:
		pkt, err = decodePubcomp(body)
	case SUBSCRIBE:
		pkt, err = decodeSubscribe(body)
	case PINGREQ:
		pkt, err = decodePingreq(body)
	case DISCONNECT:
		pkt, err = decodeDisconnect(body)
	case SUBACK:
		pkt, err = decodeSuback(body)
	case CONNACK, PINGRESP:
		// The broker only ever encodes these; it never needs to decode one
		// off a client connection, but the codec still recognizes the type
		// byte so framing of any well-formed stream never fails outright.
		return nil, 0, ErrUnsupportedType
	case UNSUBSCRIBE, UNSUBACK, AUTH:
		return nil, 0, ErrUnsupportedType
	default:
		return nil, 0, ErrInvalidType
	}
	if err != nil {
		return nil, 0, err
	}

	if body.Pos() != int(remaining) {
		return nil, 0, ErrMalformedPacket
	}

	return pkt, bodyStart + int(remaining), nil
}

func decodeConnect(r *codec.Reader) (Packet, error) {
	name, err := r.ReadUTF8String()
	if err != nil {
		return nil, err
	}
	level, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	keepAlive, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	clientID, err := r.ReadUTF8String()
	if err != nil {
		return nil, err
	}

	return Connect{
		ProtocolName:  name,
		ProtocolLevel: level,
		ConnectFlags:  flags,
		KeepAlive:     keepAlive,
		ClientID:      clientID,
	}, nil
}

func decodePublish(r *codec.Reader, dup bool, qos QoS, retain bool) (Packet, error) {
	topic, err := r.ReadUTF8String()
	if err != nil {
		return nil, err
	}

	var id PacketID
	if qos == QoS1 || qos == QoS2 {
		hi, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		lo, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		id = PacketID{hi, lo}
	}

	payload, err := r.ReadExact(r.Remaining())
	if err != nil {
		return nil, err
	}

	return Publish{
		DUP: dup, QoS: qos, Retain: retain,
		Topic: topic, PacketID: id, Payload: payload,
	}, nil
}

func readPacketID(r *codec.Reader) (PacketID, error) {
	hi, err := r.ReadByte()
	if err != nil {
		return PacketID{}, err
	}
	lo, err := r.ReadByte()
	if err != nil {
		return PacketID{}, err
	}
	return PacketID{hi, lo}, nil
}

func decodePuback(r *codec.Reader) (Packet, error) {
	id, err := readPacketID(r)
	if err != nil {
		return nil, err
	}
	return Puback{PacketID: id}, nil
}

func decodePubrec(r *codec.Reader) (Packet, error) {
	id, err := readPacketID(r)
	if err != nil {
		return nil, err
	}
	return Pubrec{PacketID: id}, nil
}

func decodePubrel(r *codec.Reader) (Packet, error) {
	id, err := readPacketID(r)
	if err != nil {
		return nil, err
	}
	return Pubrel{PacketID: id}, nil
}

func decodePubcomp(r *codec.Reader) (Packet, error) {
	id, err := readPacketID(r)
	if err != nil {
		return nil, err
	}
	return Pubcomp{PacketID: id}, nil
}

func decodeSubscribe(r *codec.Reader) (Packet, error) {
	id, err := readPacketID(r)
	if err != nil {
		return nil, err
	}

	var topics []TopicFilter
	for r.Remaining() > 0 {
		topic, err := r.ReadUTF8String()
		if err != nil {
			return nil, err
		}
		qosByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		qos := QoS(qosByte & 0x03)
		if !qos.IsValid() {
			return nil, ErrInvalidQoS
		}
		topics = append(topics, TopicFilter{Topic: topic, RequestedQoS: qos})
	}

	if len(topics) == 0 {
		return nil, ErrMalformedPacket
	}

	return Subscribe{PacketID: id, Topics: topics}, nil
}

func decodeSuback(r *codec.Reader) (Packet, error) {
	id, err := readPacketID(r)
	if err != nil {
		return nil, err
	}
	codes, err := r.ReadExact(r.Remaining())
	if err != nil {
		return nil, err
	}
	return Suback{PacketID: id, ReturnCodes: codes}, nil
}

func decodePingreq(r *codec.Reader) (Packet, error) {
	if r.Remaining() != 0 {
		return nil, ErrMalformedPacket
	}
	return Pingreq{}, nil
}

func decodeDisconnect(r *codec.Reader) (Packet, error) {
	if r.Remaining() != 0 {
		return nil, ErrMalformedPacket
	}
	return Disconnect{}, nil
}
