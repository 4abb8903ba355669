// Package models defines the data structures used for API requests and database persistence.
package models

import "time"

// TrackRequest asks the service to query a server and keep it in the database.
type TrackRequest struct {
	Host string `json:"host"`
	Kind string `json:"kind,omitempty"`
	Port int    `json:"port,omitempty"`
}

// Server represents a tracked game server stored in the database.
type Server struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Kind        string    `json:"kind"`
	Host        string    `json:"host"`
	IP          string    `json:"ip"`
	CountryCode string    `json:"country_code"`
	VersionName string    `json:"version_name"`
	MOTD        string    `json:"motd"`
	MapName     string    `json:"map_name,omitempty"`
	GameName    string    `json:"game_name,omitempty"`
	Favicon     string    `json:"-"`
	FaviconHash string    `json:"favicon_hash,omitempty"`
	Port        int       `json:"port"`
	Protocol    int       `json:"protocol"`
	Players     int       `json:"players"`
	MaxPlayers  int       `json:"max_players"`
	LatencyMS   int64     `json:"latency_ms"`
	Count       int64     `json:"count"`
	Online      bool      `json:"online"`
}

// Player is a sample player last seen on a tracked server.
type Player struct {
	LastSeen time.Time `json:"last_seen"`
	UUID     string    `json:"uuid"`
	Name     string    `json:"name"`
	Host     string    `json:"host"`
	Port     int       `json:"port"`
}
