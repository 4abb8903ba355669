package mcping

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/Tnze/go-mc/net/packet"
)

func TestEncodeDecodeVarInt(t *testing.T) {
	tests := []struct {
		name  string
		value uint32
		bytes int // expected encoded length
	}{
		{"zero", 0, 1},
		{"one", 1, 1},
		{"max_1byte", 127, 1},
		{"min_2byte", 128, 2},
		{"max_2byte", 16383, 2},
		{"min_3byte", 16384, 3},
		{"max_3byte", 2097151, 3},
		{"min_4byte", 2097152, 4},
		{"max_4byte", 268435455, 4},
		{"min_5byte", 268435456, 5},
		{"max_int32", math.MaxInt32, 5},
		{"max_uint32", math.MaxUint32, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := EncodeVarInt(tc.value)
			if len(buf) != tc.bytes {
				t.Errorf("EncodeVarInt(%d) = %d bytes, want %d", tc.value, len(buf), tc.bytes)
			}
			if VarIntLen(tc.value) != tc.bytes {
				t.Errorf("VarIntLen(%d) = %d, want %d", tc.value, VarIntLen(tc.value), tc.bytes)
			}

			decoded, n, err := DecodeVarInt(buf)
			if err != nil {
				t.Fatalf("DecodeVarInt: %v", err)
			}
			if n != len(buf) || decoded != tc.value {
				t.Errorf("DecodeVarInt = (%d, %d), want (%d, %d)", decoded, n, tc.value, len(buf))
			}

			decoded, n, err = ReadVarInt(bytes.NewReader(buf))
			if err != nil {
				t.Fatalf("ReadVarInt: %v", err)
			}
			if n != len(buf) || decoded != tc.value {
				t.Errorf("ReadVarInt = (%d, %d), want (%d, %d)", decoded, n, tc.value, len(buf))
			}
		})
	}
}

func TestVarIntMatchesReferenceEncoding(t *testing.T) {
	values := []uint32{0, 1, 2, 127, 128, 255, 25565, 2097151, 1 << 28, math.MaxInt32, math.MaxUint32}
	for _, v := range values {
		want := packet.VarInt(int32(v)).Encode()
		if got := EncodeVarInt(v); !bytes.Equal(got, want) {
			t.Errorf("EncodeVarInt(%d) = % x, want % x", v, got, want)
		}
	}
}

func TestVarIntRoundTripSweep(t *testing.T) {
	// walk the range with a prime stride plus every power-of-two boundary
	check := func(v uint32) {
		got, n, err := DecodeVarInt(EncodeVarInt(v))
		if err != nil || got != v || n != VarIntLen(v) {
			t.Fatalf("round trip %d: got (%d, %d, %v)", v, got, n, err)
		}
	}

	for v := uint64(0); v <= math.MaxUint32; v += 7919 * 131 {
		check(uint32(v))
	}
	for shift := 0; shift < 32; shift++ {
		b := uint32(1) << shift
		check(b - 1)
		check(b)
		check(b + 1)
	}
	check(math.MaxUint32)
}

func TestVarIntMinimalEncoding(t *testing.T) {
	for _, v := range []uint32{0, 5, 300, 70000, 1 << 30} {
		buf := EncodeVarInt(v)
		if last := buf[len(buf)-1]; last&0x80 != 0 {
			t.Errorf("EncodeVarInt(%d): last byte % x has continuation bit", v, last)
		}
		if len(buf) > 1 && buf[len(buf)-1] == 0 {
			t.Errorf("EncodeVarInt(%d) = % x: redundant trailing zero group", v, buf)
		}
	}
}

func TestVarIntMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		err  error
	}{
		{"five_continuations", []byte{0x80, 0x80, 0x80, 0x80, 0x80}, ErrMalformedVarInt},
		{"six_bytes", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, ErrMalformedVarInt},
		{"above_32_bits", []byte{0xff, 0xff, 0xff, 0xff, 0x7f}, ErrMalformedVarInt},
		{"bit_32_only", []byte{0x80, 0x80, 0x80, 0x80, 0x10}, ErrMalformedVarInt},
		{"empty", nil, ErrTruncatedStream},
		{"ends_mid_value", []byte{0x80, 0x80}, ErrTruncatedStream},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := DecodeVarInt(tc.in); !errors.Is(err, tc.err) {
				t.Errorf("DecodeVarInt(% x) error = %v, want %v", tc.in, err, tc.err)
			}
			if _, _, err := ReadVarInt(bufio.NewReader(bytes.NewReader(tc.in))); !errors.Is(err, tc.err) {
				t.Errorf("ReadVarInt(% x) error = %v, want %v", tc.in, err, tc.err)
			}
		})
	}
}

func TestReadVarIntStopsAtTerminator(t *testing.T) {
	r := bytes.NewReader([]byte{0xdd, 0xc7, 0x01, 0xaa})
	v, n, err := ReadVarInt(r)
	if err != nil {
		t.Fatal(err)
	}
	if v != 25565 || n != 3 {
		t.Fatalf("ReadVarInt = (%d, %d), want (25565, 3)", v, n)
	}
	if r.Len() != 1 {
		t.Fatalf("ReadVarInt consumed past terminator, %d bytes left", r.Len())
	}
}
