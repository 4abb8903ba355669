package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnsureDBDownloadsMissingFile(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		_, _ = w.Write([]byte("mmdb"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	if err := EnsureDB(context.Background(), path, srv.URL, time.Hour); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "mmdb" {
		t.Fatalf("downloaded file = %q, %v", data, err)
	}
	if !strings.HasPrefix(ua, "mcstatus/") {
		t.Fatalf("User-Agent = %q", ua)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind")
	}
}

func TestEnsureDBSkipsFreshFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("fresh database downloaded again")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := EnsureDB(context.Background(), path, srv.URL, time.Hour); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureDBKeepsOldFileOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}

	if err := EnsureDB(context.Background(), path, srv.URL, time.Hour); err == nil {
		t.Fatal("EnsureDB succeeded on HTTP 404")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Fatalf("old database replaced: %q", data)
	}
}
