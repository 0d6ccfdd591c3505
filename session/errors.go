package session

import "errors"

var (
	ErrProtocolViolation = errors.New("session: packet not valid in current state")
	ErrUnsupportedQoS    = errors.New("session: PUBLISH QoS outside {0,1,2}")
)
