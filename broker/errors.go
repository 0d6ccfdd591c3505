package broker

import "errors"

var (
	// ErrInFlightFull is returned by admit when a client is already at
	// Config.MaxInFlightPerClient and no Overflow collaborator is configured
	// to absorb the excess.
	ErrInFlightFull = errors.New("broker: in-flight registry at capacity")
)
