package query

import (
	"context"
	"time"

	"github.com/woozymasta/a2s/pkg/a2s"
)

// queryA2S connects to a Source engine server via UDP and requests A2S_INFO.
// Host names go through the configured resolver first; the A2S client only takes IPs.
func queryA2S(ctx context.Context, host string, port int, opts Options) (*Result, error) {
	ep, err := resolveOne(ctx, host, port, opts)
	if err != nil {
		return nil, err
	}

	client, err := a2s.New(ep.Addr().String(), int(ep.Port()))
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	if opts.A2SBufferSize > 0 {
		client.BufferSize = opts.A2SBufferSize
	}
	client.Timeout = opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); client.Timeout == 0 || left < client.Timeout {
			client.Timeout = left
		}
	}

	start := time.Now()
	info, err := client.GetInfo()
	if err != nil {
		opts.Logger.Debug().Err(err).Str("endpoint", ep.String()).Msg("A2S query failed")
		return nil, err
	}

	return &Result{
		Kind:        KindA2S,
		Host:        host,
		Port:        port,
		IP:          ep.Addr().String(),
		QueryPort:   int(ep.Port()),
		Name:        info.Name,
		Version:     info.Version,
		Map:         info.Map,
		Game:        info.Game,
		Environment: info.Environment.String(),
		Players:     int(info.Players),
		MaxPlayers:  int(info.MaxPlayers),
		LatencyMS:   time.Since(start).Milliseconds(),
	}, nil
}
