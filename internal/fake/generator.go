// Package fake provides utilities for generating random server data and a local
// status server for testing and development purposes.
package fake

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/query"
	"github.com/woozymasta/mcstatus/internal/storage"
)

var (
	javaVersions = []struct {
		name     string
		protocol int
	}{
		{"1.20.4", 765}, {"1.20.6", 766}, {"1.21.1", 767}, {"Paper 1.21.3", 768}, {"Velocity 3.4.0", 769},
	}
	motds       = []string{"A Minecraft Server", "§aSurvival §7| §bCreative", "Skyblock Network", "Vanilla SMP", "Modded Adventures"}
	playerNames = []string{"Notch", "jeb_", "Dinnerbone", "Grumm", "Steve", "Alex", "Herobrine", "xXBuilderXx"}
	a2sMaps     = []string{"de_dust2", "cs_office", "ctf_2fort", "chernarusplus", "livonia"}
	a2sGames    = []string{"Counter-Strike 2", "Team Fortress", "DayZ", "Rust"}

	// Countries list
	countriesHigh = []string{"US", "DE", "RU", "CN", "BR", "FR", "GB", "PL", "CZ", "KZ", "UA"}
	countriesMid  = []string{"CA", "AU", "IT", "ES", "NL", "SE", "JP", "KR", "TR", "BE", "RO"}
	countriesLow  = []string{"ZA", "AR", "MX", "IN", "ID", "VN", "CH", "NO", "FI", "DK", "PT"}
)

// StatusDocument returns a random Java status JSON document with players online and a sample list.
func StatusDocument(online, maxPlayers int) string {
	v := javaVersions[rand.IntN(len(javaVersions))]

	sample := make([]map[string]string, 0, min(online, 5))
	for i := 0; i < min(online, 5); i++ {
		sample = append(sample, map[string]string{
			"name": playerNames[rand.IntN(len(playerNames))],
			"id":   uuid.NewString(),
		})
	}

	doc := map[string]any{
		"version": map[string]any{"name": v.name, "protocol": v.protocol},
		"players": map[string]any{"online": online, "max": maxPlayers, "sample": sample},
		"description": map[string]any{
			"text":  motds[rand.IntN(len(motds))],
			"extra": []any{map[string]any{"text": " #" + fmt.Sprint(rand.IntN(1000))}},
		},
		"enforcesSecureChat": rand.IntN(2) == 0,
	}

	data, _ := json.Marshal(doc)
	return string(data)
}

// GenerateData populates the storage with a specified number of randomized server records.
// It simulates Java and A2S servers with various versions, countries, and player counts.
func GenerateData(store *storage.Repository, count int) {
	for i := 0; i < count; i++ {
		// Random date-time in 30 days range
		daysAgo := rand.IntN(30)
		seenTime := time.Now().UTC().Add(-time.Duration(daysAgo) * 24 * time.Hour).
			Add(-time.Duration(rand.IntN(1440)) * time.Minute)

		srv := randomServer(seenTime)

		if err := store.UpsertServer(srv); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server")
			continue
		}

		if rand.Float32() < 0.3 { // 30% chance of repeated tracking
			_ = store.UpsertServer(srv)
			_ = store.UpsertServer(srv)
		}

		if rand.Float32() < 0.15 { // 15% chance offline
			_ = store.MarkOffline(srv.Kind, srv.Host, srv.Port)
		}

		if srv.Kind == string(query.KindJava) {
			players := make([]models.Player, 0, min(srv.Players, 5))
			for j := 0; j < min(srv.Players, 5); j++ {
				players = append(players, models.Player{
					UUID:     uuid.NewString(),
					Name:     playerNames[rand.IntN(len(playerNames))],
					Host:     srv.Host,
					Port:     srv.Port,
					LastSeen: seenTime,
				})
			}
			if err := store.UpsertPlayers(players); err != nil {
				log.Warn().Err(err).Msg("Failed to generate fake players")
			}
		}
	}

	log.Info().Int("count", count).Msg("Fake data generated")
}

func randomServer(seen time.Time) models.Server {
	ip := fmt.Sprintf("%d.%d.%d.%d", rand.IntN(220)+1, rand.IntN(255), rand.IntN(255), rand.IntN(255))

	srv := models.Server{
		IP:          ip,
		CountryCode: randomCountry(),
		LatencyMS:   int64(5 + rand.IntN(250)),
		FirstSeen:   seen.Add(-time.Hour * 24 * 7),
		LastSeen:    seen,
	}

	if rand.Float32() < 0.75 {
		v := javaVersions[rand.IntN(len(javaVersions))]
		srv.Kind = string(query.KindJava)
		srv.Host = fmt.Sprintf("mc%d.example.net", rand.IntN(10000))
		srv.Port = 25565 + rand.IntN(10)
		srv.VersionName = v.name
		srv.Protocol = v.protocol
		srv.MOTD = motds[rand.IntN(len(motds))]
		srv.MaxPlayers = 20 + 10*rand.IntN(10)
		srv.Players = rand.IntN(srv.MaxPlayers + 1)
		return srv
	}

	srv.Kind = string(query.KindA2S)
	srv.Host = ip
	srv.Port = 27015 + rand.IntN(100)
	srv.MOTD = fmt.Sprintf("Community Server #%d", rand.IntN(1000))
	srv.MapName = a2sMaps[rand.IntN(len(a2sMaps))]
	srv.GameName = a2sGames[rand.IntN(len(a2sGames))]
	srv.VersionName = fmt.Sprintf("1.%d.%d", rand.IntN(40), rand.IntN(10))
	srv.MaxPlayers = 32 + rand.IntN(33)
	srv.Players = rand.IntN(srv.MaxPlayers + 1)

	return srv
}

func randomCountry() string {
	roll := rand.Float32()
	switch {
	case roll < 0.70:
		return countriesHigh[rand.IntN(len(countriesHigh))]
	case roll < 0.90:
		return countriesMid[rand.IntN(len(countriesMid))]
	default:
		return countriesLow[rand.IntN(len(countriesLow))]
	}
}
