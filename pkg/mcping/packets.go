package mcping

import (
	"encoding/binary"
	"fmt"
)

// Packet identifiers used by the status exchange.
const (
	PacketHandshake      uint32 = 0x00
	PacketStatusRequest  uint32 = 0x00
	PacketStatusResponse uint32 = 0x00
	PacketPing           uint32 = 0x01
	PacketPong           uint32 = 0x01
)

// NextStateStatus is the handshake next-state value requesting the status exchange.
const NextStateStatus = 1

// DefaultProtocolVersion is sent in the handshake unless WithProtocolVersion overrides it.
// Servers answer status requests for any version, so it only affects what they report back.
const DefaultProtocolVersion = 768

// Handshake is the first packet of every connection.
type Handshake struct {
	ProtocolVersion int32
	Host            string
	Port            uint16
	NextState       int32
}

// Frame encodes the handshake body:
//
//	VarInt protocol | VarInt len, host bytes | uint16 port (big-endian) | VarInt next state
func (h Handshake) Frame() Frame {
	body := make([]byte, 0, MaxVarIntLen*3+len(h.Host)+2)
	body = AppendVarInt(body, uint32(h.ProtocolVersion))
	body = appendString(body, h.Host)
	body = binary.BigEndian.AppendUint16(body, h.Port)
	body = AppendVarInt(body, uint32(h.NextState))

	return Frame{ID: PacketHandshake, Body: body}
}

// StatusRequest asks the server for its status document. It has no body.
type StatusRequest struct{}

// Frame returns the status request frame.
func (StatusRequest) Frame() Frame {
	return Frame{ID: PacketStatusRequest}
}

// PingRequest carries an opaque payload the server echoes back in a pong.
type PingRequest struct {
	Payload int64
}

// Frame returns the ping frame with its big-endian payload.
func (p PingRequest) Frame() Frame {
	return Frame{ID: PacketPing, Body: binary.BigEndian.AppendUint64(nil, uint64(p.Payload))}
}

// StatusResponse is the server's answer to a StatusRequest.
type StatusResponse struct {
	JSON string
}

// Frame returns the status response frame.
func (r StatusResponse) Frame() Frame {
	return Frame{ID: PacketStatusResponse, Body: appendString(nil, r.JSON)}
}

// ParseHandshake decodes a handshake frame, as seen by a server.
func ParseHandshake(f Frame) (Handshake, error) {
	if f.ID != PacketHandshake {
		return Handshake{}, &PacketIDError{Expected: PacketHandshake, Actual: f.ID}
	}

	var h Handshake
	buf := f.Body

	protocol, n, err := DecodeVarInt(buf)
	if err != nil {
		return h, fmt.Errorf("handshake protocol: %w", err)
	}
	buf = buf[n:]

	host, n, err := readString(buf)
	if err != nil {
		return h, fmt.Errorf("handshake host: %w", err)
	}
	buf = buf[n:]

	if len(buf) < 2 {
		return h, fmt.Errorf("handshake port: %w", ErrTruncatedStream)
	}
	port := binary.BigEndian.Uint16(buf)
	buf = buf[2:]

	next, _, err := DecodeVarInt(buf)
	if err != nil {
		return h, fmt.Errorf("handshake next state: %w", err)
	}

	return Handshake{
		ProtocolVersion: int32(protocol),
		Host:            string(host),
		Port:            port,
		NextState:       int32(next),
	}, nil
}

// ParseStatusResponse validates a status response frame and returns its JSON document.
func ParseStatusResponse(f Frame) ([]byte, error) {
	if f.ID != PacketStatusResponse {
		return nil, &PacketIDError{Expected: PacketStatusResponse, Actual: f.ID}
	}

	doc, _, err := readString(f.Body)
	if err != nil {
		return nil, fmt.Errorf("status response: %w", err)
	}

	return doc, nil
}

// Pong echoes the payload of a PingRequest.
type Pong struct {
	Payload int64
}

// Frame returns the pong frame.
func (p Pong) Frame() Frame {
	return Frame{ID: PacketPong, Body: binary.BigEndian.AppendUint64(nil, uint64(p.Payload))}
}

// ParsePing decodes the payload of a ping frame, as seen by a server.
func ParsePing(f Frame) (int64, error) {
	if f.ID != PacketPing {
		return 0, &PacketIDError{Expected: PacketPing, Actual: f.ID}
	}

	if len(f.Body) < 8 {
		return 0, fmt.Errorf("ping: %w", ErrTruncatedStream)
	}

	return int64(binary.BigEndian.Uint64(f.Body)), nil
}

// ParsePong validates a pong frame against the payload sent in the ping.
func ParsePong(f Frame, want int64) error {
	if f.ID != PacketPong {
		return &PacketIDError{Expected: PacketPong, Actual: f.ID}
	}

	if len(f.Body) < 8 {
		return fmt.Errorf("pong: %w", ErrTruncatedStream)
	}

	if got := int64(binary.BigEndian.Uint64(f.Body)); got != want {
		return fmt.Errorf("pong: payload %d does not echo %d", got, want)
	}

	return nil
}

// appendString appends a VarInt byte-length prefixed UTF-8 string.
func appendString(dst []byte, s string) []byte {
	dst = AppendVarInt(dst, uint32(len(s)))
	return append(dst, s...)
}

// readString reads a VarInt byte-length prefixed string from the start of buf.
// It returns the string bytes and the total number of bytes consumed.
func readString(buf []byte) ([]byte, int, error) {
	n, used, err := DecodeVarInt(buf)
	if err != nil {
		return nil, used, err
	}

	rest := buf[used:]
	if uint64(n) > uint64(len(rest)) {
		return nil, used, fmt.Errorf("%w: string declared %d bytes, %d left", ErrTruncatedStream, n, len(rest))
	}

	return rest[:n], used + int(n), nil
}
