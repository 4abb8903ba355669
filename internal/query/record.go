package query

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/mcstatus/internal/models"
)

// FaviconHash fingerprints a favicon data URI; empty for no favicon.
func FaviconHash(favicon string) string {
	if favicon == "" {
		return ""
	}

	return fmt.Sprintf("%016x", xxhash.Sum64String(favicon))
}

// Record converts the result into the stored server record.
func (r *Result) Record(country string, seen time.Time) models.Server {
	return models.Server{
		Kind:        string(r.Kind),
		Host:        r.Host,
		Port:        r.Port,
		IP:          r.IP,
		CountryCode: country,
		VersionName: r.Version,
		Protocol:    r.Protocol,
		MOTD:        r.Name,
		Players:     r.Players,
		MaxPlayers:  r.MaxPlayers,
		MapName:     r.Map,
		GameName:    r.Game,
		Favicon:     r.Favicon,
		FaviconHash: FaviconHash(r.Favicon),
		LatencyMS:   r.LatencyMS,
		Online:      true,
		LastSeen:    seen,
	}
}

// SamplePlayers converts the sample list into player records.
// Entries without a valid UUID are skipped; servers use them for MOTD lines.
func (r *Result) SamplePlayers(seen time.Time) []models.Player {
	out := make([]models.Player, 0, len(r.Sample))
	for _, p := range r.Sample {
		id, err := p.UUID()
		if err != nil || p.Name == "" {
			continue
		}

		out = append(out, models.Player{
			UUID:     id.String(),
			Name:     p.Name,
			Host:     r.Host,
			Port:     r.Port,
			LastSeen: seen,
		})
	}

	return out
}
