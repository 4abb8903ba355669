// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/logger"
	"github.com/woozymasta/mcstatus/internal/query"
	"github.com/woozymasta/mcstatus/internal/storage"
)

const (
	queueSize = 1000
	workers   = 10
)

// New creates a new Server instance with the provided storage, country lookup, and configuration.
// geo may be nil to disable country detection.
func New(store *storage.Repository, geo CountryLookup, cfg *config.Config) *Server {
	denyMap := make(map[uint64]struct{})
	for _, host := range cfg.Server.DenyHosts {
		if host = normalizeHost(host); host != "" {
			denyMap[xxhash.Sum64String(host)] = struct{}{}
		}
	}

	return &Server{
		storage:        store,
		geoip:          geo,
		queryOpts:      query.OptionsFrom(cfg.Query, logger.Component("mcping")),
		authToken:      cfg.Server.AuthToken,
		denyHosts:      denyMap,
		maxBody:        cfg.Server.MaxBodySize,
		trustProxy:     cfg.Server.TrustProxy,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		softLimitDur:   cfg.RateLimit.SoftLimitDur,

		queue:    make(chan trackJob, queueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers initializes the background worker pool for processing track jobs
// and the cache cleanup routine.
func (s *Server) StartWorkers() {
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	// Clean soft-limit cache
	go s.gcSoftLimitCache()
}

// StopWorkers gracefully stops the background workers after the queued jobs are done.
func (s *Server) StopWorkers() {
	s.stopOnce.Do(func() { close(s.shutdown) })
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()
	limited := s.RateLimitMiddleware

	mux.Handle("GET /api/status", limited(http.HandlerFunc(s.handleStatus)))
	mux.Handle("POST /api/track", limited(http.HandlerFunc(s.handleTrack)))
	mux.Handle("GET /api/favicon", limited(http.HandlerFunc(s.handleFavicon)))
	mux.Handle("GET /api/version", http.HandlerFunc(handleVersion))

	mux.Handle("GET /api/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleServers)))
	mux.Handle("GET /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleGetServer)))
	mux.Handle("DELETE /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteServer)))
	mux.Handle("GET /api/players", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handlePlayers)))

	return s.LoggingMiddleware(mux)
}

// denied reports whether host is on the deny list.
func (s *Server) denied(host string) bool {
	if len(s.denyHosts) == 0 {
		return false
	}

	_, found := s.denyHosts[xxhash.Sum64String(normalizeHost(host))]
	return found
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

// gcSoftLimitCache periodically cleans up expired entries from the soft rate-limit cache.
func (s *Server) gcSoftLimitCache() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			s.seenCache.Range(func(key, value any) bool {
				if t, ok := value.(time.Time); !ok || now.Sub(t) > s.softLimitDur {
					s.seenCache.Delete(key)
				}
				return true
			})
		}
	}
}
