package codec

import "errors"

var (
	// ErrVarintTooLarge indicates a write value exceeds the maximum encodable
	// remaining-length value (268,435,455). WriteUTF8String also returns it
	// for a string longer than its 2-byte length prefix can hold (65,535
	// bytes).
	ErrVarintTooLarge = errors.New("codec: variable byte integer exceeds maximum (268,435,455)")

	// ErrMalformedVarint indicates a 5th continuation byte would be required to
	// decode a variable byte integer.
	ErrMalformedVarint = errors.New("codec: malformed variable byte integer")

	// ErrInvalidUTF8 indicates a UTF-8 string field failed validation.
	ErrInvalidUTF8 = errors.New("codec: invalid UTF-8 string")

	// ErrShortBuffer indicates a read ran past the end of the underlying buffer.
	ErrShortBuffer = errors.New("codec: short buffer")
)
