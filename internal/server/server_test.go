package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/fake"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/query"
	"github.com/woozymasta/mcstatus/internal/storage"
)

const statusDoc = `{
	"version": {"name": "1.21.3", "protocol": 768},
	"players": {"online": 1, "max": 10, "sample": [{"name": "Notch", "id": "069a79f4-44e9-4726-a5be-fca90e38aaf5"}]},
	"description": "Test server",
	"favicon": "data:image/png;base64,iVBORw0KGgo="
}`

type staticCountry string

func (c staticCountry) CountryCode(netip.Addr) string { return string(c) }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.AuthToken = "secret"
	cfg.Server.MaxBodySize = 512
	cfg.Query.Timeout = 2 * time.Second
	cfg.RateLimit.HardLimitCount = 100
	cfg.RateLimit.HardLimitWin = time.Minute
	cfg.RateLimit.SoftLimitDur = time.Minute
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *storage.Repository, http.Handler) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	s := New(store, staticCountry("NL"), cfg)
	t.Cleanup(s.StopWorkers)

	return s, store, s.Run()
}

func newStatusServer(t *testing.T) netip.AddrPort {
	t.Helper()

	srv, err := fake.NewStatusServer(statusDoc)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	return srv.Addr()
}

// closedPort returns a loopback port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	return port
}

func do(h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func admin(h http.Handler, method, target string) *httptest.ResponseRecorder {
	return do(h, method, target, "", "Authorization", "Bearer secret")
}

func TestStatusEndpoint(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())
	addr := newStatusServer(t)

	rec := do(h, http.MethodGet, fmt.Sprintf("/api/status?host=127.0.0.1&port=%d", addr.Port()), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var res query.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Name != "Test server" || res.Players != 1 || res.MaxPlayers != 10 || res.Kind != query.KindJava {
		t.Fatalf("result = %+v", res)
	}
}

func TestStatusErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Server.DenyHosts = []string{"LocalHost.", "10.0.0.1"}
	_, _, h := newTestServer(t, cfg)

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"missing_host", "/api/status", http.StatusBadRequest},
		{"bad_port", "/api/status?host=127.0.0.1&port=abc", http.StatusBadRequest},
		{"port_range", "/api/status?host=127.0.0.1&port=65536", http.StatusBadRequest},
		{"unknown_kind", "/api/status?host=127.0.0.1&kind=bedrock", http.StatusBadRequest},
		{"denied_name", "/api/status?host=localhost", http.StatusForbidden},
		{"denied_ip", "/api/status?host=10.0.0.1&port=25565", http.StatusForbidden},
		{"unresolved_name", "/api/status?host=mc.example.test", http.StatusBadGateway},
		{"refused", fmt.Sprintf("/api/status?host=127.0.0.1&port=%d", closedPort(t)), http.StatusGatewayTimeout},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tc.target, "")
			if rec.Code != tc.code {
				t.Fatalf("GET %s = %d, want %d: %s", tc.target, rec.Code, tc.code, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("Content-Type = %q", ct)
			}
		})
	}
}

func TestTrackAfterShutdown(t *testing.T) {
	s, _, h := newTestServer(t, testConfig())
	s.StartWorkers()
	s.StopWorkers()

	rec := do(h, http.MethodPost, "/api/track", `{"host":"127.0.0.1","port":25565}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("track after shutdown = %d: %s", rec.Code, rec.Body)
	}

	// a handler that passed the shutdown check can still enqueue
	select {
	case s.queue <- trackJob{Kind: "java", Host: "127.0.0.1", Port: 25565}:
	default:
		t.Fatal("queue unexpectedly full")
	}
}

func TestTrackFlow(t *testing.T) {
	s, store, h := newTestServer(t, testConfig())
	addr := newStatusServer(t)
	s.StartWorkers()

	body := fmt.Sprintf(`{"host":"127.0.0.1","port":%d}`, addr.Port())
	if rec := do(h, http.MethodPost, "/api/track", body); rec.Code != http.StatusAccepted {
		t.Fatalf("first track = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(h, http.MethodPost, "/api/track", body); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "skipped") {
		t.Fatalf("second track = %d: %s", rec.Code, rec.Body)
	}

	// drain the queue
	s.StopWorkers()

	srv, err := store.GetServer("java", "127.0.0.1", int(addr.Port()))
	if err != nil || srv == nil {
		t.Fatalf("tracked server = %+v, %v", srv, err)
	}
	if srv.CountryCode != "NL" || srv.MOTD != "Test server" || !srv.Online || srv.Count != 1 {
		t.Fatalf("tracked server = %+v", srv)
	}

	rec := admin(h, http.MethodGet, "/api/servers")
	var servers []models.Server
	if err := json.NewDecoder(rec.Body).Decode(&servers); err != nil || len(servers) != 1 {
		t.Fatalf("GET /api/servers = %d %v %+v", rec.Code, err, servers)
	}

	rec = admin(h, http.MethodGet, "/api/players")
	var players []models.Player
	if err := json.NewDecoder(rec.Body).Decode(&players); err != nil || len(players) != 1 || players[0].Name != "Notch" {
		t.Fatalf("GET /api/players = %d %v %+v", rec.Code, err, players)
	}

	target := fmt.Sprintf("/api/favicon?host=127.0.0.1&port=%d", addr.Port())
	rec = do(h, http.MethodGet, target, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" || rec.Body.Len() != 8 {
		t.Fatalf("GET /api/favicon = %d %q len %d", rec.Code, rec.Header().Get("Content-Type"), rec.Body.Len())
	}
	etag := rec.Header().Get("ETag")
	if rec = do(h, http.MethodGet, target, "", "If-None-Match", etag); rec.Code != http.StatusNotModified {
		t.Fatalf("conditional favicon = %d", rec.Code)
	}

	serverTarget := fmt.Sprintf("/api/server?host=127.0.0.1&port=%d", addr.Port())
	if rec = admin(h, http.MethodGet, serverTarget); rec.Code != http.StatusOK {
		t.Fatalf("GET /api/server = %d", rec.Code)
	}
	if rec = admin(h, http.MethodDelete, serverTarget); rec.Code != http.StatusOK {
		t.Fatalf("DELETE /api/server = %d", rec.Code)
	}
	if rec = admin(h, http.MethodDelete, serverTarget); rec.Code != http.StatusNotFound {
		t.Fatalf("second DELETE /api/server = %d", rec.Code)
	}
	if rec = admin(h, http.MethodGet, serverTarget); rec.Code != http.StatusNotFound {
		t.Fatalf("GET deleted /api/server = %d", rec.Code)
	}
}

func TestTrackUnreachableMarksOffline(t *testing.T) {
	s, store, _ := newTestServer(t, testConfig())
	port := closedPort(t)

	seed := models.Server{Kind: "java", Host: "127.0.0.1", Port: port, Players: 5, LastSeen: time.Now().UTC()}
	if err := store.UpsertServer(seed); err != nil {
		t.Fatal(err)
	}

	s.processJob(trackJob{Kind: query.KindJava, Host: "127.0.0.1", Port: port})

	srv, err := store.GetServer("java", "127.0.0.1", port)
	if err != nil || srv == nil {
		t.Fatalf("server = %+v, %v", srv, err)
	}
	if srv.Online || srv.Players != 0 {
		t.Fatalf("unreachable server still online: %+v", srv)
	}
}

func TestTrackRejects(t *testing.T) {
	cfg := testConfig()
	cfg.Server.DenyHosts = []string{"blocked.example.test"}
	_, _, h := newTestServer(t, cfg)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid_json", `{"host":`, http.StatusBadRequest},
		{"too_large", `{"host":"` + strings.Repeat("a", 1024) + `"}`, http.StatusBadRequest},
		{"missing_host", `{"port":25565}`, http.StatusBadRequest},
		{"bad_port", `{"host":"127.0.0.1","port":-1}`, http.StatusBadRequest},
		{"unknown_kind", `{"host":"127.0.0.1","kind":"bedrock"}`, http.StatusBadRequest},
		{"denied", `{"host":"Blocked.Example.Test"}`, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(h, http.MethodPost, "/api/track", tc.body); rec.Code != tc.code {
				t.Fatalf("POST /api/track = %d, want %d: %s", rec.Code, tc.code, rec.Body)
			}
		})
	}
}

func TestAdminAuth(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())

	for _, auth := range []string{"", "Bearer wrong", "secret"} {
		rec := do(h, http.MethodGet, "/api/servers", "", "Authorization", auth)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("Authorization %q = %d, want 401", auth, rec.Code)
		}
	}

	rec := admin(h, http.MethodGet, "/api/servers")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("GET /api/servers = %d %q", rec.Code, rec.Body)
	}

	if rec := admin(h, http.MethodGet, "/api/servers?kind=bedrock"); rec.Code != http.StatusBadRequest {
		t.Fatalf("GET /api/servers?kind=bedrock = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.HardLimitCount = 2
	_, _, h := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		if rec := do(h, http.MethodGet, "/api/status", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("request %d = %d, want 400", i, rec.Code)
		}
	}

	if rec := do(h, http.MethodGet, "/api/status", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rec.Code)
	}

	// other clients keep their own budget
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "198.51.100.7:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("other client = %d, want 400", rec.Code)
	}
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := GetRealIP(req, false); got != "192.0.2.1" {
		t.Fatalf("untrusted = %q", got)
	}
	if got := GetRealIP(req, true); got != "203.0.113.9" {
		t.Fatalf("trusted = %q", got)
	}
}

func TestVersion(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())

	rec := do(h, http.MethodGet, "/api/version", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"mcstatus"`) {
		t.Fatalf("GET /api/version = %d %s", rec.Code, rec.Body)
	}
}
