package packet

import "github.com/axmq/broker/codec"

// Encode serializes p into its on-the-wire MQTT 3.1.1 representation,
// fixed header through payload.
func Encode(p Packet) ([]byte, error) {
	switch v := p.(type) {
	case Connect:
		return encodeConnect(v)
	case Connack:
		return encodeConnack(v), nil
	case Publish:
		return encodePublish(v)
	case Puback:
		return encodeIDOnly(PUBACK, 0x00, v.PacketID), nil
	case Pubrec:
		return encodeIDOnly(PUBREC, 0x00, v.PacketID), nil
	case Pubrel:
		return encodeIDOnly(PUBREL, 0x02, v.PacketID), nil
	case Pubcomp:
		return encodeIDOnly(PUBCOMP, 0x00, v.PacketID), nil
	case Subscribe:
		return encodeSubscribe(v)
	case Suback:
		return encodeSuback(v)
	case Pingreq:
		return []byte{byte(PINGREQ) << 4, 0x00}, nil
	case Pingresp:
		return []byte{byte(PINGRESP) << 4, 0x00}, nil
	case Disconnect:
		return []byte{byte(DISCONNECT) << 4, 0x00}, nil
	default:
		return nil, ErrInvalidType
	}
}

func fixedHeader(t Type, flags byte, remaining int) ([]byte, error) {
	w := codec.NewWriter()
	w.WriteByte(byte(t)<<4 | flags)
	if err := w.WriteVarint(uint32(remaining)); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeConnect(c Connect) ([]byte, error) {
	body := codec.NewWriter()
	if err := body.WriteUTF8String(c.ProtocolName); err != nil {
		return nil, err
	}
	body.WriteByte(c.ProtocolLevel)
	body.WriteByte(c.ConnectFlags)
	body.WriteUint16(c.KeepAlive)
	if err := body.WriteUTF8String(c.ClientID); err != nil {
		return nil, err
	}

	header, err := fixedHeader(CONNECT, 0x00, body.Len())
	if err != nil {
		return nil, err
	}
	return append(header, body.Bytes()...), nil
}

func encodeConnack(c Connack) []byte {
	return []byte{byte(CONNACK) << 4, 0x02, 0x00, c.ReturnCode}
}

func encodePublish(p Publish) ([]byte, error) {
	body := codec.NewWriter()
	if err := body.WriteUTF8String(p.Topic); err != nil {
		return nil, err
	}
	if p.QoS == QoS1 || p.QoS == QoS2 {
		body.WriteByte(p.PacketID[0])
		body.WriteByte(p.PacketID[1])
	}
	body.WriteRaw(p.Payload)

	flags := byte(p.QoS) << 1
	if p.DUP {
		flags |= 0x08
	}
	if p.Retain {
		flags |= 0x01
	}

	header, err := fixedHeader(PUBLISH, flags, body.Len())
	if err != nil {
		return nil, err
	}
	return append(header, body.Bytes()...), nil
}

func encodeIDOnly(t Type, flags byte, id PacketID) []byte {
	return []byte{byte(t)<<4 | flags, 0x02, id[0], id[1]}
}

func encodeSubscribe(s Subscribe) ([]byte, error) {
	body := codec.NewWriter()
	body.WriteByte(s.PacketID[0])
	body.WriteByte(s.PacketID[1])
	for _, tf := range s.Topics {
		if err := body.WriteUTF8String(tf.Topic); err != nil {
			return nil, err
		}
		body.WriteByte(byte(tf.RequestedQoS))
	}

	header, err := fixedHeader(SUBSCRIBE, 0x02, body.Len())
	if err != nil {
		return nil, err
	}
	return append(header, body.Bytes()...), nil
}

func encodeSuback(s Suback) ([]byte, error) {
	header, err := fixedHeader(SUBACK, 0x00, 2+len(s.ReturnCodes))
	if err != nil {
		return nil, err
	}
	out := append(header, s.PacketID[0], s.PacketID[1])
	return append(out, s.ReturnCodes...), nil
}
