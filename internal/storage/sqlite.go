// Package storage handles database connections, schema migrations, and data operations using SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/mcstatus/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

const serverColumns = `
	kind, host, port, ip, country_code, version_name, protocol, motd,
	players, max_players, map_name, game_name, favicon, favicon_hash,
	latency_ms, online, count, first_seen, last_seen`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (models.Server, error) {
	var s models.Server
	err := row.Scan(
		&s.Kind, &s.Host, &s.Port, &s.IP, &s.CountryCode, &s.VersionName, &s.Protocol, &s.MOTD,
		&s.Players, &s.MaxPlayers, &s.MapName, &s.GameName, &s.Favicon, &s.FaviconHash,
		&s.LatencyMS, &s.Online, &s.Count, &s.FirstSeen, &s.LastSeen,
	)

	return s, err
}

// UpsertServer inserts a server seen online or updates the existing record keyed by kind, host and port.
// The country code is only replaced by a non-empty value.
func (r *Repository) UpsertServer(s models.Server) error {
	query := `
	INSERT INTO servers (` + serverColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 1, ?, ?)
	ON CONFLICT(kind, host, port) DO UPDATE SET
		count        = count + 1,
		online       = 1,
		last_seen    = excluded.last_seen,
		ip           = excluded.ip,
		version_name = excluded.version_name,
		protocol     = excluded.protocol,
		motd         = excluded.motd,
		players      = excluded.players,
		max_players  = excluded.max_players,
		map_name     = excluded.map_name,
		game_name    = excluded.game_name,
		favicon      = excluded.favicon,
		favicon_hash = excluded.favicon_hash,
		latency_ms   = excluded.latency_ms,

		-- Update country if updated and not blank
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE servers.country_code END;
	`

	// LastSeen doubles as FirstSeen for new records
	firstSeen := s.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = s.LastSeen
	}

	_, err := r.db.Exec(query,
		s.Kind, s.Host, s.Port, s.IP, s.CountryCode, s.VersionName, s.Protocol, s.MOTD,
		s.Players, s.MaxPlayers, s.MapName, s.GameName, s.Favicon, s.FaviconHash,
		s.LatencyMS, firstSeen, s.LastSeen,
	)

	return err
}

// MarkOffline flags a tracked server as unreachable and zeroes its player count.
// LastSeen keeps the time it was last seen online.
func (r *Repository) MarkOffline(kind, host string, port int) error {
	_, err := r.db.Exec(
		`UPDATE servers SET online = 0, players = 0, latency_ms = 0 WHERE kind = ? AND host = ? AND port = ?`,
		kind, host, port,
	)

	return err
}

// GetServers retrieves all servers from the database, sorted by the last seen timestamp in descending order.
func (r *Repository) GetServers() ([]models.Server, error) {
	return r.GetServersSubset("", false)
}

// GetServersSubset retrieves servers for listing and maintenance.
// A non-empty kind filters by protocol kind; onlyOffline limits the result to servers marked offline.
func (r *Repository) GetServersSubset(kind string, onlyOffline bool) ([]models.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE 1=1`
	var args []any

	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	if onlyOffline {
		query += " AND online = 0"
	}

	query += " ORDER BY last_seen DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

// GetServer retrieves a specific server by kind, host and port. It returns nil when not found.
func (r *Repository) GetServer(kind, host string, port int) (*models.Server, error) {
	row := r.db.QueryRow(
		`SELECT `+serverColumns+` FROM servers WHERE kind = ? AND host = ? AND port = ?`,
		kind, host, port,
	)

	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// playersKind is the only server kind that reports sample players.
const playersKind = "java"

// DeleteServer removes a server and, for Java servers, the players seen on it.
// It reports whether a server record existed.
func (r *Repository) DeleteServer(kind, host string, port int) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM servers WHERE kind = ? AND host = ? AND port = ?`, kind, host, port)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if kind == playersKind {
		if _, err := tx.Exec(`DELETE FROM players WHERE host = ? AND port = ?`, host, port); err != nil {
			return false, err
		}
	}

	return n > 0, tx.Commit()
}

// DeleteOfflineServers removes servers marked offline.
// If kind is provided (not empty), it restricts deletion to that kind.
func (r *Repository) DeleteOfflineServers(kind string) (int64, error) {
	query := `DELETE FROM servers WHERE online = 0`
	var args []any

	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// UpsertPlayers records the sample players reported by a server.
func (r *Repository) UpsertPlayers(players []models.Player) error {
	if len(players) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
	INSERT INTO players (uuid, name, host, port, last_seen)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(uuid, host, port) DO UPDATE SET
		name = excluded.name,
		last_seen = excluded.last_seen;
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range players {
		if _, err := stmt.Exec(p.UUID, p.Name, p.Host, p.Port, p.LastSeen); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPlayers lists players seen on host:port, most recent first.
// An empty host lists players of every server.
func (r *Repository) GetPlayers(host string, port int) ([]models.Player, error) {
	query := `SELECT uuid, name, host, port, last_seen FROM players`
	var args []any

	if host != "" {
		query += ` WHERE host = ? AND port = ?`
		args = append(args, host, port)
	}
	query += ` ORDER BY last_seen DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.UUID, &p.Name, &p.Host, &p.Port, &p.LastSeen); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return players, nil
}

// RecordOnline stores a server seen online together with its sample players.
func (r *Repository) RecordOnline(s models.Server, players []models.Player) error {
	if err := r.UpsertServer(s); err != nil {
		return err
	}

	return r.UpsertPlayers(players)
}
