// Package store persists playlists and their tracks so games can be played
// offline. SQLite (modernc.org/sqlite) is the default; Postgres is supported
// through lib/pq.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sv4u/playlistroulette/game/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS playlists (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		image        TEXT NOT NULL DEFAULT '',
		tracks_count INTEGER NOT NULL DEFAULT 0,
		position     INTEGER NOT NULL DEFAULT 0,
		updated_at   BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tracks (
		id          TEXT NOT NULL,
		playlist_id TEXT NOT NULL,
		position    INTEGER NOT NULL DEFAULT 0,
		name        TEXT NOT NULL,
		artist      TEXT NOT NULL DEFAULT '',
		album       TEXT NOT NULL DEFAULT '',
		image       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (id, playlist_id)
	)`,
	`CREATE INDEX IF NOT EXISTS tracks_playlist_idx ON tracks (playlist_id, position)`,
}

type playlistRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Image       string `db:"image"`
	TracksCount int    `db:"tracks_count"`
	Position    int    `db:"position"`
	UpdatedAt   int64  `db:"updated_at"`
}

func (r playlistRow) playlist() model.Playlist {
	return model.Playlist{ID: r.ID, Name: r.Name, ImageURL: r.Image, TracksCount: r.TracksCount}
}

type trackRow struct {
	ID         string `db:"id"`
	PlaylistID string `db:"playlist_id"`
	Position   int    `db:"position"`
	Name       string `db:"name"`
	Artist     string `db:"artist"`
	Album      string `db:"album"`
	Image      string `db:"image"`
}

func (r trackRow) song() model.Song {
	return model.Song{ID: r.ID, Title: r.Name, Artist: r.Artist, Album: r.Album, ImageURL: r.Image}
}

// Stats summarises the cache contents.
type Stats struct {
	Playlists int       `json:"playlists"`
	Tracks    int       `json:"tracks"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the playlist cache database.
type Store struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and creates the tables when missing. For
// SQLite the dsn is a file path whose directory is created on demand.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Store{db: db, driver: driver, now: time.Now}, nil
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SavePlaylists upserts each playlist and replaces its tracks in one
// transaction. Songs without an ID are not stored.
func (s *Store) SavePlaylists(ctx context.Context, playlists []model.PlaylistSnapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsertPlaylist := tx.Rebind(`
		INSERT INTO playlists (id, name, image, tracks_count, position, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			image = excluded.image,
			tracks_count = excluded.tracks_count,
			position = excluded.position,
			updated_at = excluded.updated_at`)
	deleteTracks := tx.Rebind(`DELETE FROM tracks WHERE playlist_id = ?`)
	upsertTrack := tx.Rebind(`
		INSERT INTO tracks (id, playlist_id, position, name, artist, album, image)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, playlist_id) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			artist = excluded.artist,
			album = excluded.album,
			image = excluded.image`)

	updated := s.now().Unix()
	for i, snap := range playlists {
		p := snap.Playlist
		if p.ID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertPlaylist, p.ID, p.Name, p.ImageURL, p.TracksCount, i, updated); err != nil {
			return fmt.Errorf("failed to save playlist %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, deleteTracks, p.ID); err != nil {
			return fmt.Errorf("failed to clear tracks of %s: %w", p.ID, err)
		}
		for j, song := range snap.Songs {
			if song.ID == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, upsertTrack, song.ID, p.ID, j, song.Title, song.Artist, song.Album, song.ImageURL); err != nil {
				return fmt.Errorf("failed to save track %s: %w", song.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Playlists returns every cached playlist in the order it was last saved.
func (s *Store) Playlists(ctx context.Context) ([]model.Playlist, error) {
	var rows []playlistRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM playlists ORDER BY position, name`); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	out := make([]model.Playlist, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.playlist())
	}
	return out, nil
}

// Tracks returns the cached songs of one playlist.
func (s *Store) Tracks(ctx context.Context, playlistID string) ([]model.Song, error) {
	var rows []trackRow
	query := s.db.Rebind(`SELECT * FROM tracks WHERE playlist_id = ? ORDER BY position`)
	if err := s.db.SelectContext(ctx, &rows, query, playlistID); err != nil {
		return nil, fmt.Errorf("failed to list tracks of %s: %w", playlistID, err)
	}
	out := make([]model.Song, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.song())
	}
	return out, nil
}

// Snapshots returns every cached playlist with its songs.
func (s *Store) Snapshots(ctx context.Context) ([]model.PlaylistSnapshot, error) {
	playlists, err := s.Playlists(ctx)
	if err != nil {
		return nil, err
	}
	var rows []trackRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM tracks ORDER BY playlist_id, position`); err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	byPlaylist := make(map[string][]model.Song, len(playlists))
	for _, r := range rows {
		byPlaylist[r.PlaylistID] = append(byPlaylist[r.PlaylistID], r.song())
	}

	out := make([]model.PlaylistSnapshot, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, model.PlaylistSnapshot{Playlist: p, Songs: byPlaylist[p.ID]})
	}
	return out, nil
}

// Stats counts cached playlists and tracks.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var updated int64
	row := s.db.QueryRowxContext(ctx, `SELECT COUNT(*), COALESCE(MAX(updated_at), 0) FROM playlists`)
	if err := row.Scan(&st.Playlists, &updated); err != nil {
		return Stats{}, fmt.Errorf("failed to count playlists: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.Tracks, `SELECT COUNT(*) FROM tracks`); err != nil {
		return Stats{}, fmt.Errorf("failed to count tracks: %w", err)
	}
	if updated > 0 {
		st.UpdatedAt = time.Unix(updated, 0)
	}
	return st, nil
}

// Clear removes every cached playlist and track.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracks`); err != nil {
		return fmt.Errorf("failed to clear tracks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM playlists`); err != nil {
		return fmt.Errorf("failed to clear playlists: %w", err)
	}
	return nil
}
