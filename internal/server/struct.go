package server

import (
	"net/netip"
	"sync"
	"time"

	"github.com/woozymasta/mcstatus/internal/query"
	"github.com/woozymasta/mcstatus/internal/storage"
)

// CountryLookup resolves server endpoints to ISO country codes.
// *geoip.Provider satisfies it.
type CountryLookup interface {
	CountryCode(addr netip.Addr) string
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background tracking.
type Server struct {
	// storage provides access to the persistent database layer for tracked servers and players.
	storage *storage.Repository

	// geoip resolves queried endpoints to country codes.
	// It is nil if the GeoIP database is not initialized.
	geoip CountryLookup

	// denyHosts is a set of hashed host names and IPs (using xxhash) that must never be queried.
	denyHosts map[uint64]struct{}

	// queue is a buffered channel used to pass track jobs from HTTP handlers
	// to background workers for asynchronous processing.
	queue chan trackJob

	// shutdown is a signal channel used to broadcast a stop signal to all background goroutines
	// during a graceful shutdown.
	shutdown chan struct{}

	// seenCache tracks recently queued servers for the soft rate limit.
	seenCache sync.Map

	// authToken is the secret token required to access administrative API endpoints.
	authToken string

	// queryOpts holds settings for Java status and A2S queries.
	queryOpts query.Options

	// wg is used to wait for all background workers to finish processing
	// before the server shuts down completely.
	wg sync.WaitGroup

	// stopOnce guards StopWorkers against double close.
	stopOnce sync.Once

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// softLimitDur is the duration for which a repeated track request is skipped
	// if the same server was queued recently.
	softLimitDur time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// trackJob is a unit of work for the background workers.
type trackJob struct {
	Kind query.Kind
	Host string
	Port int

	// ClientIP is the address of the requester, kept for logs.
	ClientIP string
}
