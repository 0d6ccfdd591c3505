// Package frame segments a raw MQTT byte stream into whole control packets.
// A single underlying Read may return less than one frame, exactly one
// frame, many frames, or a frame plus the start of the next one — Reader
// buffers across calls so ReadFrame always hands back exactly one complete
// frame (fixed header, remaining-length varint, and payload) per call.
package frame

import (
	"io"
)

// readChunkSize matches the distilled spec's note that the source reads
// 1024 bytes at a time and re-parses.
const readChunkSize = 1024

// maxFrameSize bounds how large a single frame's buffer is allowed to grow,
// independent of the 4-byte varint's own 268,435,455 ceiling — a guard
// against a malicious remaining-length forcing unbounded buffering before
// the frame is known to be malformed.
const maxFrameSize = 16 * 1024 * 1024

// Reader turns a byte stream into a sequence of whole-packet byte slices.
type Reader struct {
	r   io.Reader
	buf []byte
	eof bool
}

// NewReader wraps r (typically a net.Conn) for frame-at-a-time reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, 0, readChunkSize)}
}

// ReadFrame returns the next whole control packet's bytes: fixed header
// through the last payload byte. It returns io.EOF if the stream ended
// cleanly between frames, or io.ErrUnexpectedEOF if it ended mid-frame.
func (fr *Reader) ReadFrame() ([]byte, error) {
	for {
		total, ok, err := fr.tryExtract()
		if err != nil {
			return nil, err
		}
		if ok {
			frame := make([]byte, total)
			copy(frame, fr.buf[:total])
			fr.buf = fr.buf[:copy(fr.buf, fr.buf[total:])]
			return frame, nil
		}

		if err := fr.fill(); err != nil {
			return nil, err
		}
	}
}

// tryExtract reports whether fr.buf currently holds one whole frame, and if
// so, its total length (fixed header + varint + remaining length).
func (fr *Reader) tryExtract() (total int, ok bool, err error) {
	if len(fr.buf) < 2 {
		return 0, false, nil
	}

	remaining, varintSize, complete := peekVarint(fr.buf[1:])
	if !complete {
		if len(fr.buf)-1 >= 4 {
			return 0, false, ErrFrameTooLarge
		}
		return 0, false, nil
	}

	total = 1 + varintSize + int(remaining)
	if total > maxFrameSize {
		return 0, false, ErrFrameTooLarge
	}
	if len(fr.buf) < total {
		return 0, false, nil
	}
	return total, true, nil
}

// peekVarint decodes a variable byte integer from the start of b without
// consuming it from any shared cursor, for use while b may still be an
// incomplete prefix of the real value.
func peekVarint(b []byte) (value uint32, size int, complete bool) {
	var multiplier uint32 = 1
	for i := 0; i < 4 && i < len(b); i++ {
		value += uint32(b[i]&0x7F) * multiplier
		if b[i]&0x80 == 0 {
			return value, i + 1, true
		}
		multiplier *= 128
	}
	return 0, 0, false
}

// fill reads up to readChunkSize more bytes from the underlying stream and
// appends them to fr.buf. A stream that hits EOF while still yielding bytes
// is not reported as an error until the next fill call finds no more bytes
// to give tryExtract a chance to complete the frame from what was already
// read.
func (fr *Reader) fill() error {
	if fr.eof {
		if len(fr.buf) > 0 {
			return io.ErrUnexpectedEOF
		}
		return io.EOF
	}

	chunk := make([]byte, readChunkSize)
	n, err := fr.r.Read(chunk)
	if n > 0 {
		fr.buf = append(fr.buf, chunk[:n]...)
	}
	if err != nil {
		if err != io.EOF {
			return err
		}
		fr.eof = true
	}
	return nil
}
