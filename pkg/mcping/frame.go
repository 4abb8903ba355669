package mcping

import (
	"errors"
	"fmt"
	"io"
)

// MaxFrameLen is the largest frame length the protocol allows (a 3-byte VarInt).
const MaxFrameLen = 1<<21 - 1

// FrameReader is the source ReadFrame consumes. *bufio.Reader satisfies it.
type FrameReader interface {
	io.Reader
	io.ByteReader
}

// Frame is one packet on the wire.
//
// Wire format:
//
//	VarInt length (of ID bytes + body) | VarInt packet ID | body
type Frame struct {
	ID   uint32
	Body []byte
}

// AppendFrame appends the wire encoding of f to dst.
func AppendFrame(dst []byte, f Frame) []byte {
	n := VarIntLen(f.ID) + len(f.Body)
	dst = AppendVarInt(dst, uint32(n))
	dst = AppendVarInt(dst, f.ID)
	return append(dst, f.Body...)
}

// Marshal returns the wire encoding of f.
func (f Frame) Marshal() []byte {
	n := VarIntLen(f.ID) + len(f.Body)
	return AppendFrame(make([]byte, 0, VarIntLen(uint32(n))+n), f)
}

// WriteFrame writes the wire encoding of f to w in a single Write call.
func WriteFrame(w io.Writer, f Frame) error {
	_, err := w.Write(f.Marshal())
	return err
}

// ReadFrame reads exactly one frame from r. It blocks until the whole
// declared length has arrived, the stream ends or the reader fails.
func ReadFrame(r FrameReader) (Frame, error) {
	length, _, err := ReadVarInt(r)
	if err != nil {
		return Frame{}, err
	}

	if length > MaxFrameLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	window := make([]byte, length)
	if _, err := io.ReadFull(r, window); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: frame declared %d bytes", ErrTruncatedStream, length)
		}
		return Frame{}, err
	}

	id, n, err := DecodeVarInt(window)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: packet id", ErrMalformedVarInt)
	}

	return Frame{ID: id, Body: window[n:]}, nil
}
