package mcping

import (
	"errors"
	"io"
)

// MaxVarIntLen is the protocol ceiling for an encoded VarInt.
const MaxVarIntLen = 5

// overflowBits are the payload bits of a fifth byte that fall past bit 31.
const overflowBits = 0x70

// AppendVarInt appends the minimal VarInt encoding of v to dst.
// 7 bits of data per byte, least significant group first, MSB set on every byte but the last.
func AppendVarInt(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}

	return append(dst, byte(v))
}

// EncodeVarInt returns the minimal VarInt encoding of v.
func EncodeVarInt(v uint32) []byte {
	return AppendVarInt(make([]byte, 0, VarIntLen(v)), v)
}

// VarIntLen returns the number of bytes needed to encode v.
func VarIntLen(v uint32) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}

	return n
}

// ReadVarInt decodes one VarInt from r, one byte at a time.
// It returns the value and the number of bytes consumed.
func ReadVarInt(r io.ByteReader) (uint32, int, error) {
	var v uint32

	for i := 0; i < MaxVarIntLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, i, ErrTruncatedStream
			}
			return 0, i, err
		}

		if i == MaxVarIntLen-1 && b&overflowBits != 0 {
			return 0, i + 1, ErrMalformedVarInt
		}

		v |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}

	return 0, MaxVarIntLen, ErrMalformedVarInt
}

// DecodeVarInt decodes one VarInt from the start of buf.
func DecodeVarInt(buf []byte) (uint32, int, error) {
	var v uint32

	for i, b := range buf {
		if i >= MaxVarIntLen {
			return 0, i, ErrMalformedVarInt
		}
		if i == MaxVarIntLen-1 && b&overflowBits != 0 {
			return 0, i + 1, ErrMalformedVarInt
		}

		v |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}

	if len(buf) >= MaxVarIntLen {
		return 0, MaxVarIntLen, ErrMalformedVarInt
	}

	return 0, len(buf), ErrTruncatedStream
}
