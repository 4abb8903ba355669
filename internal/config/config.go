// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/mcstatus/internal/logger"
	"github.com/woozymasta/mcstatus/internal/vars"
)

// AnyKind marks a maintenance task as applying to servers of every kind.
const AnyKind = "any"

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"MCSTATUS"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"MCSTATUS_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MCSTATUS_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"MCSTATUS_RATE_LIMIT"`
	Query     Query         `group:"Query Options" namespace:"query" env-namespace:"MCSTATUS_QUERY"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MCSTATUS_LOG"`

	Ping    string `short:"p" long:"ping" description:"Query a single Java server (host[:port]), print its status as JSON and exit"`
	Version bool   `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address     string   `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken   string   `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	DenyHosts   []string `short:"x" long:"deny-host" env:"DENY_HOSTS" description:"Host names or IPs that must never be queried" env-delim:","`
	MaxBodySize int64    `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"512"`
	TrustProxy  bool     `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"mcstatus.db"`
	PruneOffline  string `long:"prune-offline" description:"Delete servers marked offline. Optional arg: server kind (java, a2s)." optional:"true" optional-value:"any"`
	CheckAll      string `long:"check-all" description:"Re-query ALL servers. Update if UP, mark offline if DOWN. Optional arg: server kind (java, a2s)." optional:"true" optional-value:"any"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"mcstatus.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Query holds server query configuration shared by the Java status and A2S protocols.
type Query struct {
	// betteralign:ignore

	Timeout       time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout, covers resolve, connect and exchange" default:"5s"`
	Protocol      int32         `long:"protocol" env:"PROTOCOL" description:"Protocol version announced in the Java handshake" default:"768"`
	Resolve       bool          `long:"resolve" env:"RESOLVE" description:"Resolve host names through DNS (IP literals only when disabled)"`
	SRV           bool          `long:"srv" env:"SRV" description:"Look up _minecraft._tcp SRV records before A/AAAA"`
	Latency       bool          `long:"latency" env:"LATENCY" description:"Measure ping/pong round trip after the Java status exchange"`
	A2SBufferSize uint16        `long:"a2s-buffer-size" env:"A2S_BUFFER_SIZE" description:"A2S response body buffer size" default:"1400"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"8"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
	SoftLimitDur   time.Duration `long:"soft" env:"SOFT" description:"Soft limit: skip re-tracking a server seen within duration" default:"5m"`
}

// ErrAuthTokenRequired is returned by Validate when the HTTP service would start without an admin token.
var ErrAuthTokenRequired = errors.New("required flag `-t, --auth-token' or environment variable `MCSTATUS_AUTH_TOKEN` was not specified")

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses args (without the program name) and validates the result.
// Help and parse errors are printed by the flags parser itself.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that flag tags cannot express.
func (c *Config) Validate() error {
	if c.Query.Timeout < 0 {
		return fmt.Errorf("invalid query timeout %s", c.Query.Timeout)
	}

	if c.Server.AuthToken == "" && !c.OneShot() {
		return ErrAuthTokenRequired
	}

	return nil
}

// OneShot reports whether the run ends without starting the HTTP service.
func (c *Config) OneShot() bool {
	return c.Version ||
		c.Ping != "" ||
		c.Storage.PruneOffline != "" ||
		c.Storage.CheckAll != "" ||
		c.Storage.GenerateCount > 0
}

// KindFilter converts an optional maintenance argument to a storage filter,
// where the empty string means no filter.
func KindFilter(input string) string {
	if input == AnyKind {
		return ""
	}

	return input
}
