// main is the entry point of the mcstatus application.
// It initializes the configuration, logger, database, GeoIP provider, and starts the HTTP server,
// or runs a one-shot query or maintenance task.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/fake"
	"github.com/woozymasta/mcstatus/internal/geoip"
	"github.com/woozymasta/mcstatus/internal/logger"
	"github.com/woozymasta/mcstatus/internal/maintenance"
	"github.com/woozymasta/mcstatus/internal/server"
	"github.com/woozymasta/mcstatus/internal/storage"
	"github.com/woozymasta/mcstatus/pkg/mcping"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Ping != "" {
		code := ping(ctx, cfg)
		stop()
		os.Exit(code)
	}

	log.Info().Msg("Starting mcstatus service...")

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(store, cfg.Storage.GenerateCount)
		return
	} else if maintenance.Run(ctx, cfg, store) {
		return
	}

	// GeoIP Update
	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	var countries server.CountryLookup
	geoProvider, err := geoip.Open(cfg.GeoIP.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
	} else {
		countries = geoProvider
		defer func() {
			if err := geoProvider.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing GeoIP provider")
			}
		}()
	}

	// Init server
	srvHandler := server.New(store, countries, cfg)

	// Background queue
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srvHandler.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Query.Timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
}

// ping queries one Java server, prints its status as JSON to stdout and
// returns the process exit code. Host names are always resolved here.
func ping(ctx context.Context, cfg *config.Config) int {
	addr, err := mcping.ParseAddress(cfg.Ping)
	if err != nil {
		log.Error().Err(err).Str("address", cfg.Ping).Msg("Invalid address")
		return 2
	}

	opts := []mcping.Option{
		mcping.WithTimeout(cfg.Query.Timeout),
		mcping.WithProtocolVersion(cfg.Query.Protocol),
		mcping.WithResolver(mcping.Lookup{SRV: cfg.Query.SRV}),
		mcping.WithLogger(logger.Component("mcping")),
	}
	if cfg.Query.Latency {
		opts = append(opts, mcping.WithLatency())
	}

	status, err := mcping.Query(ctx, addr, opts...)
	if err != nil {
		log.Error().Err(err).Str("address", addr.String()).Msg("Status query failed")
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		log.Error().Err(err).Msg("Failed to encode status")
		return 1
	}

	return 0
}
