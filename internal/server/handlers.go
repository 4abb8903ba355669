package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/query"
	"github.com/woozymasta/mcstatus/internal/vars"
	"github.com/woozymasta/mcstatus/pkg/mcping"
)

// target identifies a server in query parameters and track requests.
type target struct {
	Kind query.Kind
	Host string
	Port int
}

// parseTarget validates kind, host and port; a missing port defaults per kind.
func parseTarget(kindStr, host, portStr string) (target, error) {
	kind, err := query.ParseKind(kindStr)
	if err != nil {
		return target{}, err
	}

	host = strings.TrimSpace(host)
	if host == "" {
		return target{}, errors.New("missing host")
	}

	port := kind.DefaultPort()
	if portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return target{}, fmt.Errorf("invalid port %q", portStr)
		}
	}

	return target{Kind: kind, Host: host, Port: port}, nil
}

func targetFromQuery(r *http.Request) (target, error) {
	q := r.URL.Query()
	return parseTarget(q.Get("kind"), q.Get("host"), q.Get("port"))
}

// statusForError maps query failures to gateway status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, mcping.ErrTimeout), errors.Is(err, mcping.ErrConnectFailed):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleStatus performs a live query of a server and returns the result.
// Query params: ?host=mc.example.com&port=25565&kind=java
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	t, err := targetFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.denied(t.Host) {
		writeError(w, http.StatusForbidden, "host is not allowed")
		return
	}

	ctx, cancel := s.queryContext(r.Context())
	defer cancel()

	res, err := query.Server(ctx, t.Kind, t.Host, t.Port, s.queryOpts)
	if err != nil {
		log.Debug().
			Err(err).
			Str("kind", string(t.Kind)).
			Str("host", t.Host).
			Int("port", t.Port).
			Msg("Live query failed")

		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleServers returns tracked servers, optionally filtered.
// Query params: ?kind=java&offline=true
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" {
		if _, err := query.ParseKind(kind); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	offline, _ := strconv.ParseBool(r.URL.Query().Get("offline"))

	servers, err := s.storage.GetServersSubset(kind, offline)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if servers == nil {
		servers = []models.Server{}
	}

	writeJSON(w, http.StatusOK, servers)
}

// handleGetServer returns details for a specific tracked server.
// Query params: ?kind=java&host=mc.example.com&port=25565
func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	t, err := targetFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	srv, err := s.storage.GetServer(string(t.Kind), t.Host, t.Port)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch server")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if srv == nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}

	writeJSON(w, http.StatusOK, srv)
}

// handleDeleteServer removes a specific server and its players from the database.
// Query params: ?kind=java&host=mc.example.com&port=25565
func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	t, err := targetFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existed, err := s.storage.DeleteServer(string(t.Kind), t.Host, t.Port)
	if err != nil {
		log.Error().Err(err).
			Str("kind", string(t.Kind)).
			Str("host", t.Host).
			Int("port", t.Port).
			Msg("Failed to delete server")

		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if !existed {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}

	log.Info().
		Str("kind", string(t.Kind)).
		Str("host", t.Host).
		Int("port", t.Port).
		Msg("Server deleted manually")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server deleted"})
}

// handlePlayers lists players seen on a Java server, or on all servers without a host.
// Query params: ?host=mc.example.com&port=25565
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	var (
		host string
		port int
	)

	if r.URL.Query().Get("host") != "" {
		t, err := targetFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		host, port = t.Host, t.Port
	}

	players, err := s.storage.GetPlayers(host, port)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch players")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if players == nil {
		players = []models.Player{}
	}

	writeJSON(w, http.StatusOK, players)
}

// handleFavicon serves the stored favicon of a tracked Java server as PNG.
// Query params: ?host=mc.example.com&port=25565
func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	t, err := targetFromQuery(r)
	if err != nil || t.Kind != query.KindJava {
		writeError(w, http.StatusBadRequest, "java server host and port required")
		return
	}

	srv, err := s.storage.GetServer(string(t.Kind), t.Host, t.Port)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch server")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if srv == nil || srv.Favicon == "" {
		writeError(w, http.StatusNotFound, "favicon not found")
		return
	}

	etag := `"` + srv.FaviconHash + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	status := mcping.Status{Favicon: srv.Favicon}
	png, err := status.FaviconPNG()
	if err != nil {
		log.Debug().Err(err).Str("host", t.Host).Int("port", t.Port).Msg("Stored favicon is not a PNG data URI")
		writeError(w, http.StatusNotFound, "favicon not found")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(png)
}

// handleVersion returns build information.
func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Current())
}
