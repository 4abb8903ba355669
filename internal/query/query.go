// Package query dispatches live server queries to the Java status protocol
// or the Source Engine Query (A2S) protocol and returns protocol-neutral results.
package query

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/pkg/mcping"
)

// Kind selects the query protocol.
type Kind string

// Supported server kinds.
const (
	KindJava Kind = "java"
	KindA2S  Kind = "a2s"
)

// ErrUnknownKind is returned for kinds other than java and a2s.
var ErrUnknownKind = errors.New("unknown server kind")

// ParseKind parses a kind name; the empty string selects java.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindJava:
		return KindJava, nil
	case KindA2S:
		return KindA2S, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// DefaultPort returns the usual port of a server kind.
func (k Kind) DefaultPort() int {
	if k == KindA2S {
		return 27016
	}

	return mcping.DefaultPort
}

// Options holds per-query settings.
type Options struct {
	// Dialer overrides the TCP dialer of Java queries.
	Dialer mcping.Dialer

	Logger        zerolog.Logger
	Timeout       time.Duration
	Protocol      int32
	A2SBufferSize uint16
	Resolve       bool
	SRV           bool
	Latency       bool
}

// OptionsFrom maps the query flags onto Options.
func OptionsFrom(cfg config.Query, log zerolog.Logger) Options {
	return Options{
		Logger:        log,
		Timeout:       cfg.Timeout,
		Protocol:      cfg.Protocol,
		A2SBufferSize: cfg.A2SBufferSize,
		Resolve:       cfg.Resolve,
		SRV:           cfg.SRV,
		Latency:       cfg.Latency,
	}
}

// Resolver returns the host resolver the options call for.
func (o Options) Resolver() mcping.Resolver {
	if !o.Resolve {
		return mcping.PassThrough{}
	}

	return mcping.Lookup{SRV: o.SRV}
}

// Result is the protocol-neutral outcome of a query.
type Result struct {
	Kind        Kind            `json:"kind"`
	Host        string          `json:"host"`
	IP          string          `json:"ip"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Map         string          `json:"map,omitempty"`
	Game        string          `json:"game,omitempty"`
	Favicon     string          `json:"favicon,omitempty"`
	Environment string          `json:"environment,omitempty"`
	Sample      []mcping.Player `json:"sample,omitempty"`
	Mods        []mcping.Mod    `json:"mods,omitempty"`
	Port        int             `json:"port"`
	QueryPort   int             `json:"query_port"`
	Protocol    int             `json:"protocol"`
	Players     int             `json:"players"`
	MaxPlayers  int             `json:"max_players"`
	LatencyMS   int64           `json:"latency_ms"`
}

// Server queries host:port using the protocol of kind.
func Server(ctx context.Context, kind Kind, host string, port int, opts Options) (*Result, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	switch kind {
	case KindJava:
		return queryJava(ctx, host, port, opts)
	case KindA2S:
		return queryA2S(ctx, host, port, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func queryJava(ctx context.Context, host string, port int, opts Options) (*Result, error) {
	mcOpts := []mcping.Option{
		mcping.WithTimeout(opts.Timeout),
		mcping.WithResolver(opts.Resolver()),
		mcping.WithLogger(opts.Logger),
	}
	if opts.Protocol != 0 {
		mcOpts = append(mcOpts, mcping.WithProtocolVersion(opts.Protocol))
	}
	if opts.Latency {
		mcOpts = append(mcOpts, mcping.WithLatency())
	}
	if opts.Dialer != nil {
		mcOpts = append(mcOpts, mcping.WithDialer(opts.Dialer))
	}

	conn := mcping.New(mcping.Address{Host: host, Port: uint16(port)}, mcOpts...)
	defer func() { _ = conn.Close() }()

	start := time.Now()
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	status, err := conn.Ping(ctx)
	if err != nil {
		return nil, err
	}

	latency := status.Latency
	if latency == 0 {
		latency = time.Since(start)
	}

	remote := conn.RemoteAddr()
	return &Result{
		Kind:       KindJava,
		Host:       host,
		Port:       port,
		IP:         remote.Addr().String(),
		QueryPort:  int(remote.Port()),
		Name:       status.Description,
		Version:    status.Version.Name,
		Protocol:   status.Version.Protocol,
		Players:    status.Players.Online,
		MaxPlayers: status.Players.Max,
		Favicon:    status.Favicon,
		Sample:     status.Players.Sample,
		Mods:       status.Mods,
		LatencyMS:  latency.Milliseconds(),
	}, nil
}

// resolveOne picks the first endpoint for protocols that cannot try several.
func resolveOne(ctx context.Context, host string, port int, opts Options) (netip.AddrPort, error) {
	eps, err := opts.Resolver().Resolve(ctx, host, uint16(port))
	if err != nil {
		return netip.AddrPort{}, err
	}
	if len(eps) == 0 {
		return netip.AddrPort{}, fmt.Errorf("%w: no endpoints for %q", mcping.ErrResolutionFailed, host)
	}

	return eps[0], nil
}
