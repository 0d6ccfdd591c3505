// Package session implements the per-connection MQTT state machine: read a
// frame, decode it, dispatch it against the shared broker, write back
// whatever the protocol requires. One Session runs per accepted TCP
// connection, in its own goroutine.
package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/axmq/broker/broker"
	"github.com/axmq/broker/frame"
	"github.com/axmq/broker/hook"
	"github.com/axmq/broker/packet"
)

// state is where in the CONNECT handshake this session currently sits.
type state int

const (
	awaitingConnect state = iota
	connected
)

// Session owns one accepted connection's read loop and write end. The
// write end is shared with the broker (PUBLISH fan-out and retransmits
// land on it from other goroutines), so every write goes through writeMu.
type Session struct {
	conn   io.ReadWriteCloser
	broker *broker.Broker
	logger *slog.Logger
	reader *frame.Reader

	writeMu sync.Mutex

	state    state
	clientID string
}

// New wraps conn as a not-yet-connected session against b.
func New(conn io.ReadWriteCloser, b *broker.Broker, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:   conn,
		broker: b,
		logger: logger,
		reader: frame.NewReader(conn),
		state:  awaitingConnect,
	}
}

// Write implements broker.Writer, serializing this session's outbound
// bytes against whichever goroutine (its own read loop, or the broker
// fanning out a publish or a retransmit) is writing at the moment.
func (s *Session) Write(b []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(b)
}

// Run drives the session's read loop until the connection closes, a
// protocol violation occurs, or ctx-equivalent cancellation isn't
// applicable — per the concurrency model, sessions terminate on socket
// close, not on an external cancel signal.
func (s *Session) Run() {
	defer s.cleanup()

	for {
		raw, err := s.reader.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("session read failed", "client", s.clientID, "err", err)
			}
			return
		}

		if err := s.handleFrame(raw); err != nil {
			s.logger.Warn("session protocol error", "client", s.clientID, "err", err)
			return
		}
	}
}

func (s *Session) handleFrame(raw []byte) error {
	pkt, n, err := packet.Decode(raw)
	if err != nil {
		return err
	}
	if n != len(raw) {
		return packet.ErrMalformedPacket
	}

	if s.state == awaitingConnect {
		return s.handleConnect(pkt)
	}
	return s.dispatch(pkt, raw)
}

func (s *Session) handleConnect(pkt packet.Packet) error {
	c, ok := pkt.(packet.Connect)
	if !ok {
		return ErrProtocolViolation
	}

	clientID := c.ClientID
	if clientID == "" {
		id, err := generateClientID()
		if err != nil {
			return err
		}
		clientID = id
	}

	s.clientID = clientID
	s.broker.RegisterClient(clientID, s)

	if err := s.broker.Hooks.OnConnect(&hook.Client{ID: clientID}); err != nil {
		s.broker.UnregisterClient(clientID)
		return err
	}

	s.state = connected
	return s.reply(packet.Connack{ReturnCode: 0})
}

func (s *Session) dispatch(pkt packet.Packet, raw []byte) error {
	switch p := pkt.(type) {
	case packet.Publish:
		return s.handlePublish(p, raw)
	case packet.Puback:
		s.broker.AckQoS1(p.PacketID, s.clientID)
		return nil
	case packet.Pubrec:
		return s.reply(packet.Pubrel{PacketID: p.PacketID})
	case packet.Pubrel:
		if released := s.broker.ReleaseAndDeliverQoS2(p.PacketID); released {
			return s.reply(packet.Pubcomp{PacketID: p.PacketID})
		}
		return nil
	case packet.Pubcomp:
		s.broker.AckQoS2(p.PacketID, s.clientID)
		return nil
	case packet.Subscribe:
		return s.handleSubscribe(p)
	case packet.Pingreq:
		return s.reply(packet.Pingresp{})
	case packet.Disconnect:
		return io.EOF
	default:
		return ErrProtocolViolation
	}
}

func (s *Session) handlePublish(p packet.Publish, raw []byte) error {
	switch p.QoS {
	case packet.QoS0:
		return s.broker.PublishQoS0(s.clientID, p.Topic, raw, p.Retain)
	case packet.QoS1:
		if err := s.broker.PublishQoS1(s.clientID, p.PacketID, p.Topic, raw, p.Retain); err != nil {
			return err
		}
		return s.reply(packet.Puback{PacketID: p.PacketID})
	case packet.QoS2:
		if err := s.broker.ReceiveQoS2(s.clientID, p.PacketID, p.Topic, raw, p.Retain); err != nil {
			return err
		}
		return s.reply(packet.Pubrec{PacketID: p.PacketID})
	default:
		return ErrUnsupportedQoS
	}
}

func (s *Session) handleSubscribe(p packet.Subscribe) error {
	returnCodes := make([]byte, 0, len(p.Topics))
	for _, tf := range p.Topics {
		s.broker.Subscribe(s.clientID, tf.Topic)
		_ = s.broker.Hooks.OnSubscribe(&hook.Client{ID: s.clientID}, &hook.Subscription{
			ClientID: s.clientID, Topic: tf.Topic, RequestedQoS: byte(tf.RequestedQoS),
		})
		// Always grants QoS 0, regardless of what was requested — see the
		// broker's documented subscribe-grant policy.
		returnCodes = append(returnCodes, 0x00)
	}
	return s.reply(packet.Suback{PacketID: p.PacketID, ReturnCodes: returnCodes})
}

func (s *Session) reply(pkt packet.Packet) error {
	encoded, err := packet.Encode(pkt)
	if err != nil {
		return err
	}
	_, err = s.Write(encoded)
	return err
}

func (s *Session) cleanup() {
	if s.clientID == "" {
		_ = s.conn.Close()
		return
	}
	s.broker.UnregisterClient(s.clientID)
	s.broker.Hooks.OnDisconnect(&hook.Client{ID: s.clientID}, nil)
	_ = s.conn.Close()
}
