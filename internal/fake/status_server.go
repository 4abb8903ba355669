package fake

import (
	"bufio"
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/pkg/mcping"
)

// StatusServer is a local Java edition server that answers status queries only.
// It is used for development against the query endpoints and by tests.
type StatusServer struct {
	ln net.Listener

	// Handshakes receives every handshake the server decodes. It is buffered;
	// handshakes are dropped once it is full.
	Handshakes chan mcping.Handshake

	doc string
	wg  sync.WaitGroup
}

// NewStatusServer listens on a random loopback port and answers every
// status request with doc.
func NewStatusServer(doc string) (*StatusServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &StatusServer{
		ln:         ln,
		doc:        doc,
		Handshakes: make(chan mcping.Handshake, 16),
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns the listening endpoint.
func (s *StatusServer) Addr() netip.AddrPort {
	ap := s.ln.Addr().(*net.TCPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Close stops accepting connections and waits for open ones to finish.
func (s *StatusServer) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *StatusServer) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Msg("Fake status server accept failed")
			}
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *StatusServer) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	r := bufio.NewReader(conn)

	f, err := mcping.ReadFrame(r)
	if err != nil {
		return
	}
	hs, err := mcping.ParseHandshake(f)
	if err != nil || hs.NextState != mcping.NextStateStatus {
		return
	}

	select {
	case s.Handshakes <- hs:
	default:
	}

	if f, err = mcping.ReadFrame(r); err != nil || f.ID != mcping.PacketStatusRequest {
		return
	}
	if err := mcping.WriteFrame(conn, mcping.StatusResponse{JSON: s.doc}.Frame()); err != nil {
		return
	}

	// answer pings until the client hangs up
	for {
		f, err := mcping.ReadFrame(r)
		if err != nil {
			return
		}

		payload, err := mcping.ParsePing(f)
		if err != nil {
			return
		}
		if err := mcping.WriteFrame(conn, mcping.Pong{Payload: payload}.Frame()); err != nil {
			return
		}
	}
}
