// Package maintenance provide tools for clean and update database
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/logger"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/query"
	"github.com/woozymasta/mcstatus/internal/storage"
)

const workers = 10

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository) bool {
	// Prune Offline
	if cfg.Storage.PruneOffline != "" {
		kind := config.KindFilter(cfg.Storage.PruneOffline)
		log.Info().Str("kind_filter", kind).Msg("Pruning offline servers...")

		count, err := store.DeleteOfflineServers(kind)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune servers")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	if cfg.Storage.CheckAll == "" {
		return false
	}

	kind := config.KindFilter(cfg.Storage.CheckAll)
	log.Info().Str("kind_filter", kind).Msg("Fetching all servers for re-check...")

	servers, err := store.GetServersSubset(kind, false)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		return true
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for maintenance")
		return true
	}

	log.Info().Int("count", len(servers)).Int("workers", workers).Msg("Starting re-check task...")
	stats := CheckAll(ctx, servers, store, query.OptionsFrom(cfg.Query, logger.Component("mcping")))
	log.Info().
		Int("online", stats.Online).
		Int("offline", stats.Offline).
		Int("invalid", stats.Invalid).
		Msg("Maintenance task completed")

	return true
}

// Stats counts the outcomes of a re-check.
type Stats struct {
	Online  int
	Offline int
	Invalid int
}

// CheckAll re-queries servers with a fixed worker pool. Servers that answer are
// updated, unreachable ones are marked offline, and records with an invalid
// port or kind are deleted.
func CheckAll(ctx context.Context, servers []models.Server, store *storage.Repository, opts query.Options) Stats {
	jobs := make(chan models.Server, len(servers))
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		stats Stats
	)

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for srv := range jobs {
				outcome := processServer(ctx, srv, store, opts)

				mu.Lock()
				switch outcome {
				case outcomeOnline:
					stats.Online++
				case outcomeOffline:
					stats.Offline++
				case outcomeInvalid:
					stats.Invalid++
				}
				mu.Unlock()
			}
		}()
	}

	// Send jobs
	for _, s := range servers {
		jobs <- s
	}
	close(jobs)

	wg.Wait()
	return stats
}

type outcome int

const (
	outcomeOnline outcome = iota
	outcomeOffline
	outcomeInvalid
)

func processServer(ctx context.Context, srv models.Server, store *storage.Repository, opts query.Options) outcome {
	logCtx := log.With().
		Str("kind", srv.Kind).
		Str("host", srv.Host).
		Int("port", srv.Port).
		Logger()

	kind, err := query.ParseKind(srv.Kind)
	if err != nil || srv.Port <= 0 || srv.Port > 65535 {
		logCtx.Debug().Msg("Invalid record, deleting server")
		if _, err := store.DeleteServer(srv.Kind, srv.Host, srv.Port); err != nil {
			logCtx.Error().Err(err).Msg("Failed to delete invalid server")
		}
		return outcomeInvalid
	}

	qctx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, opts.Timeout+time.Second)
		defer cancel()
	}

	res, err := query.Server(qctx, kind, srv.Host, srv.Port, opts)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Server unreachable, marking offline")
		if err := store.MarkOffline(srv.Kind, srv.Host, srv.Port); err != nil {
			logCtx.Error().Err(err).Msg("Failed to mark server offline")
		}
		return outcomeOffline
	}

	now := time.Now().UTC()
	if err := store.RecordOnline(res.Record(srv.CountryCode, now), res.SamplePlayers(now)); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update server")
	} else {
		logCtx.Trace().Msg("Server updated successfully")
	}

	return outcomeOnline
}
