package frame

import "errors"

// ErrFrameTooLarge guards against a remaining-length large enough to make the
// internal buffer grow without bound before a full frame ever arrives.
var ErrFrameTooLarge = errors.New("frame: declared remaining length exceeds maximum frame size")
