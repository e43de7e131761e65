// Package storage is the server-side document store. Each player has a
// bcrypt-hashed key and at most one saved document.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"github.com/mathrealm/backend/internal/config"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a player has no stored document.
	ErrNotFound = errors.New("document not found")
	// ErrForbidden is returned when a player key does not match.
	ErrForbidden = errors.New("player key mismatch")
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		player_id TEXT PRIMARY KEY REFERENCES players(id) ON DELETE CASCADE,
		version INTEGER NOT NULL,
		body TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
}

// Store persists player documents in SQLite or PostgreSQL.
type Store struct {
	db      *sql.DB
	dialect Dialect
	keyCost int
	now     func() time.Time
}

// Open connects to the configured database and runs migrations. For SQLite
// the DSN is a file path whose directory is created if needed.
func Open(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	dialect, err := NewDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if dialect.DriverName() == "sqlite" && cfg.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if n := dialect.MaxOpenConns(); n > 0 {
		db.SetMaxOpenConns(n)
	}
	for _, stmt := range dialect.InitStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init %q: %w", stmt, err)
		}
	}

	s := &Store{db: db, dialect: dialect, keyCost: bcrypt.DefaultCost, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetKeyCost sets the bcrypt cost for newly claimed players.
func (s *Store) SetKeyCost(cost int) {
	s.keyCost = cost
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

// Claim binds key to playerID on first use and verifies it afterwards. It
// reports whether the player was created by this call.
func (s *Store) Claim(ctx context.Context, playerID, key string) (bool, error) {
	if playerID == "" {
		return false, errors.New("empty player id")
	}
	if key == "" {
		return false, ErrForbidden
	}

	var hash string
	err := s.queryRow(ctx, "SELECT key_hash FROM players WHERE id = ?", playerID).Scan(&hash)
	switch {
	case err == nil:
		return false, verifyKey(hash, key)
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to look up player: %w", err)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(key), s.keyCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash key: %w", err)
	}
	_, err = s.exec(ctx, "INSERT INTO players (id, key_hash, created_at) VALUES (?, ?, ?)",
		playerID, string(h), s.now().Unix())
	if err != nil {
		if s.dialect.IsDuplicateKeyError(err) {
			// Lost a race with another first claim.
			return s.Claim(ctx, playerID, key)
		}
		return false, fmt.Errorf("failed to create player: %w", err)
	}
	return true, nil
}

// Verify checks key against an existing player without creating one. It
// returns ErrNotFound for unknown players.
func (s *Store) Verify(ctx context.Context, playerID, key string) error {
	var hash string
	err := s.queryRow(ctx, "SELECT key_hash FROM players WHERE id = ?", playerID).Scan(&hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	case err != nil:
		return fmt.Errorf("failed to look up player: %w", err)
	case key == "":
		return ErrForbidden
	}
	return verifyKey(hash, key)
}

func verifyKey(hash, key string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrForbidden
	}
	return nil
}

// PutDocument stores body as the player's document, replacing any previous
// one. The player must have been claimed.
func (s *Store) PutDocument(ctx context.Context, playerID string, version int, body []byte) error {
	_, err := s.exec(ctx, `INSERT INTO documents (player_id, version, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (player_id) DO UPDATE SET version = excluded.version, body = excluded.body, updated_at = excluded.updated_at`,
		playerID, version, string(body), s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

// GetDocument returns the stored document body.
func (s *Store) GetDocument(ctx context.Context, playerID string) ([]byte, error) {
	var body string
	err := s.queryRow(ctx, "SELECT body FROM documents WHERE player_id = ?", playerID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return []byte(body), nil
}

// PlayerInfo summarises one stored player.
type PlayerInfo struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Version   int        `json:"version,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ListPlayers returns every player ordered by id.
func (s *Store) ListPlayers(ctx context.Context) ([]PlayerInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.id, p.created_at, d.version, d.updated_at
		FROM players p LEFT JOIN documents d ON d.player_id = p.id
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var out []PlayerInfo
	for rows.Next() {
		var (
			info    PlayerInfo
			created int64
			version sql.NullInt64
			updated sql.NullInt64
		)
		if err := rows.Scan(&info.ID, &created, &version, &updated); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(created, 0).UTC()
		if version.Valid {
			info.Version = int(version.Int64)
		}
		if updated.Valid {
			at := time.Unix(updated.Int64, 0).UTC()
			info.UpdatedAt = &at
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
