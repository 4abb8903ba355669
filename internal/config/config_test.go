package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"MCSTATUS_AUTH_TOKEN", "MCSTATUS_QUERY_TIMEOUT", "MCSTATUS_DENY_HOSTS"} {
		// Setenv restores the previous value after the test
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestParseArgsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseArgs([]string{"--auth-token", "secret"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Address != ":8080" || cfg.Storage.Path != "mcstatus.db" {
		t.Fatalf("server/storage defaults = %+v / %+v", cfg.Server, cfg.Storage)
	}
	if cfg.Query.Timeout != 5*time.Second || cfg.Query.Protocol != 768 || cfg.Query.A2SBufferSize != 1400 {
		t.Fatalf("query defaults = %+v", cfg.Query)
	}
	if cfg.Query.Resolve || cfg.Query.SRV || cfg.Query.Latency {
		t.Fatalf("query switches enabled by default: %+v", cfg.Query)
	}
	if cfg.RateLimit.HardLimitCount != 8 || cfg.RateLimit.HardLimitWin != time.Minute || cfg.RateLimit.SoftLimitDur != 5*time.Minute {
		t.Fatalf("rate limit defaults = %+v", cfg.RateLimit)
	}
	if cfg.Logger.Level != "info" {
		t.Fatalf("log level = %q", cfg.Logger.Level)
	}
}

func TestParseArgsAuthToken(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		args []string
		err  error
	}{
		{"service_without_token", nil, ErrAuthTokenRequired},
		{"ping", []string{"--ping", "mc.example.test"}, nil},
		{"version", []string{"--version"}, nil},
		{"prune", []string{"--db-prune-offline"}, nil},
		{"check_all", []string{"--db-check-all=java"}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseArgs(tc.args)
			if !errors.Is(err, tc.err) {
				t.Fatalf("ParseArgs(%q) error = %v, want %v", tc.args, err, tc.err)
			}
		})
	}
}

func TestParseArgsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCSTATUS_AUTH_TOKEN", "from-env")
	t.Setenv("MCSTATUS_QUERY_TIMEOUT", "2s")
	t.Setenv("MCSTATUS_DENY_HOSTS", "127.0.0.1,localhost")

	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.AuthToken != "from-env" || cfg.Query.Timeout != 2*time.Second {
		t.Fatalf("env not applied: %+v %+v", cfg.Server, cfg.Query)
	}
	if len(cfg.Server.DenyHosts) != 2 || cfg.Server.DenyHosts[1] != "localhost" {
		t.Fatalf("deny hosts = %q", cfg.Server.DenyHosts)
	}
}

func TestMaintenanceKindFilter(t *testing.T) {
	clearEnv(t)

	cfg, err := ParseArgs([]string{"--db-prune-offline", "--db-check-all=a2s"})
	if err != nil {
		t.Fatal(err)
	}

	if got := KindFilter(cfg.Storage.PruneOffline); got != "" {
		t.Fatalf("KindFilter(%q) = %q, want no filter", cfg.Storage.PruneOffline, got)
	}
	if got := KindFilter(cfg.Storage.CheckAll); got != "a2s" {
		t.Fatalf("KindFilter(%q) = %q, want a2s", cfg.Storage.CheckAll, got)
	}
}

func TestValidateNegativeTimeout(t *testing.T) {
	cfg := Config{Ping: "x"}
	cfg.Query.Timeout = -time.Second

	if err := cfg.Validate(); err == nil {
		t.Fatal("negative timeout accepted")
	}
}
