package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ritzau/thoughtgraph/pkg/model"
)

// SQLiteBackend persists connections in a SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at dbPath.
// It enables WAL mode and creates the schema.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	// created_at holds unix nanoseconds so timestamps round-trip exactly
	query := `
	CREATE TABLE IF NOT EXISTS connections (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		source_type TEXT NOT NULL,
		target_type TEXT NOT NULL,
		relationship TEXT NOT NULL,
		strength INTEGER NOT NULL CHECK (strength BETWEEN 1 AND 10),
		created_at INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_connections_pair ON connections(source_id, target_id);
	CREATE INDEX IF NOT EXISTS idx_connections_target ON connections(target_id);
	CREATE INDEX IF NOT EXISTS idx_connections_created ON connections(created_at, id);
	`
	if _, err := b.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create connections table: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Name() string {
	return "sqlite"
}

const selectColumns = `SELECT id, source_id, target_id, source_type, target_type, relationship, strength, created_at FROM connections`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (model.Connection, error) {
	var (
		c         model.Connection
		srcType   string
		tgtType   string
		rel       string
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.SourceID, &c.TargetID, &srcType, &tgtType, &rel, &c.Strength, &createdAt); err != nil {
		return model.Connection{}, err
	}
	c.SourceType = model.EntityKind(srcType)
	c.TargetType = model.EntityKind(tgtType)
	c.Relationship = model.Relationship(rel)
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return c, nil
}

func (b *SQLiteBackend) queryOne(ctx context.Context, where string, args ...any) (model.Connection, bool, error) {
	c, err := scanConnection(b.db.QueryRowContext(ctx, selectColumns+" WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Connection{}, false, nil
	}
	if err != nil {
		return model.Connection{}, false, err
	}
	return c, true, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, id string) (model.Connection, bool, error) {
	return b.queryOne(ctx, "id = ?", id)
}

func (b *SQLiteBackend) FindPair(ctx context.Context, sourceID, targetID string) (model.Connection, bool, error) {
	return b.queryOne(ctx, "source_id = ? AND target_id = ?", sourceID, targetID)
}

func (b *SQLiteBackend) Put(ctx context.Context, c model.Connection) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO connections (id, source_id, target_id, source_type, target_type, relationship, strength, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			source_type = excluded.source_type,
			target_type = excluded.target_type,
			relationship = excluded.relationship,
			strength = excluded.strength`,
		c.ID, c.SourceID, c.TargetID, string(c.SourceType), string(c.TargetType),
		string(c.Relationship), c.Strength, c.CreatedAt.UnixNano())
	return err
}

// Merge relies on the unique pair index, so concurrent writers on the same
// database file cannot both insert the pair.
func (b *SQLiteBackend) Merge(ctx context.Context, c model.Connection) (model.Connection, bool, error) {
	row := b.db.QueryRowContext(ctx, `
		INSERT INTO connections (id, source_id, target_id, source_type, target_type, relationship, strength, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET
			strength = MIN(strength + 1, ?)
		RETURNING id, source_id, target_id, source_type, target_type, relationship, strength, created_at`,
		c.ID, c.SourceID, c.TargetID, string(c.SourceType), string(c.TargetType),
		string(c.Relationship), c.Strength, c.CreatedAt.UnixNano(), model.MaxStrength)
	merged, err := scanConnection(row)
	if err != nil {
		return model.Connection{}, false, fmt.Errorf("merge %s -> %s: %w", c.SourceID, c.TargetID, err)
	}
	return merged, merged.ID == c.ID, nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM connections WHERE id = ?", id)
	return err
}

func (b *SQLiteBackend) List(ctx context.Context) ([]model.Connection, error) {
	rows, err := b.db.QueryContext(ctx, selectColumns+" ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Connection, 0)
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
