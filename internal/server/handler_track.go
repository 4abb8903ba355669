package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/query"
)

// handleTrack accepts a server for tracking.
// It validates the target, applies the deny list and the soft limit,
// and queues the query for asynchronous processing to avoid blocking the client.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	ip := GetRealIP(r, s.trustProxy)

	// Max body limit size
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req models.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().
			Err(err).
			Str("ip", ip).
			Msg("Invalid JSON")

		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	portStr := ""
	if req.Port != 0 {
		portStr = fmt.Sprint(req.Port)
	}

	t, err := parseTarget(req.Kind, req.Host, portStr)
	if err != nil {
		log.Debug().
			Err(err).
			Str("ip", ip).
			Str("host", req.Host).
			Int("port", req.Port).
			Msg("Invalid track request")

		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.denied(t.Host) {
		log.Debug().
			Str("ip", ip).
			Str("host", t.Host).
			Msg("Denied host")

		writeError(w, http.StatusForbidden, "host is not allowed")
		return
	}

	// Soft Limit
	softKey := fmt.Sprintf("%s:%s:%d", t.Kind, normalizeHost(t.Host), t.Port)
	if val, ok := s.seenCache.Load(softKey); ok {
		if lastSeen, ok := val.(time.Time); ok && time.Since(lastSeen) < s.softLimitDur {
			log.Trace().
				Str("ip", ip).
				Str("kind", string(t.Kind)).
				Str("host", t.Host).
				Int("port", t.Port).
				Msg("Dropped by soft limit hit")

			writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
			return
		}
	}

	select {
	case <-s.shutdown:
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	default:
	}

	select {
	case s.queue <- trackJob{Kind: t.Kind, Host: t.Host, Port: t.Port, ClientIP: ip}:
		s.seenCache.Store(softKey, time.Now())
		log.Trace().
			Str("ip", ip).
			Str("kind", string(t.Kind)).
			Str("host", t.Host).
			Int("port", t.Port).
			Msg("Track job queued")

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	default:
		log.Warn().
			Str("ip", ip).
			Str("kind", string(t.Kind)).
			Str("host", t.Host).
			Int("port", t.Port).
			Msg("Queue full, track request dropped")

		writeError(w, http.StatusServiceUnavailable, "queue full")
	}
}

// worker is a background goroutine that processes jobs from the track queue.
// On shutdown it finishes whatever is still queued and exits. The queue is
// never closed, so a late handler cannot send on a closed channel.
func (s *Server) worker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.queue:
			s.processJob(job)
		case <-s.shutdown:
			for {
				select {
				case job := <-s.queue:
					s.processJob(job)
				default:
					return
				}
			}
		}
	}
}

// queryContext bounds a query by the configured timeout plus a grace second
// for resolver and socket teardown.
func (s *Server) queryContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.queryOpts.Timeout <= 0 {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, s.queryOpts.Timeout+time.Second)
}

// processJob queries the server, resolves the country (GeoIP), and upserts the result to the storage.
// An unreachable server that is already tracked is marked offline.
func (s *Server) processJob(job trackJob) {
	logCtx := log.With().
		Str("kind", string(job.Kind)).
		Str("host", job.Host).
		Int("port", job.Port).
		Logger()

	ctx, cancel := s.queryContext(context.Background())
	defer cancel()

	res, err := query.Server(ctx, job.Kind, job.Host, job.Port, s.queryOpts)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Track query failed")
		if err := s.storage.MarkOffline(string(job.Kind), job.Host, job.Port); err != nil {
			logCtx.Error().Err(err).Msg("Failed to mark server offline")
		}
		return
	}

	if err := s.save(res); err != nil {
		logCtx.Error().Err(err).Msg("Failed to save server to DB")
		return
	}

	logCtx.Debug().
		Str("ip", res.IP).
		Int("players", res.Players).
		Int64("latency_ms", res.LatencyMS).
		Msg("Server tracked")
}

// save stores a successful query result together with its sample players.
func (s *Server) save(res *query.Result) error {
	var country string
	if s.geoip != nil {
		if addr, err := netip.ParseAddr(res.IP); err == nil {
			country = s.geoip.CountryCode(addr)
		}
	}

	now := time.Now().UTC()
	return s.storage.RecordOnline(res.Record(country, now), res.SamplePlayers(now))
}
