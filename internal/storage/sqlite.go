// Package storage provides the SQLite-backed persisted vector index and disk usage helpers.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/vector"
)

// CollectionInfo summarizes a persisted collection.
type CollectionInfo struct {
	Name       string    `json:"name"`
	BuildID    string    `json:"build_id"`
	Embedder   string    `json:"embedder"`
	Dimensions int       `json:"dimensions"`
	Chunks     int       `json:"chunks"`
	Documents  int       `json:"documents"`
	BuiltAt    time.Time `json:"built_at"`
}

// SQLiteStore implements vector.Store using SQLite. Each collection is replaced wholesale
// inside one transaction, so a crash mid-save leaves the previous build intact.
type SQLiteStore struct {
	db *sql.DB
}

var _ vector.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		build_id TEXT NOT NULL,
		embedder TEXT NOT NULL DEFAULT '',
		dimensions INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		built_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		origin TEXT NOT NULL,
		format TEXT NOT NULL,
		sequence_index INTEGER NOT NULL,
		char_start INTEGER NOT NULL,
		char_end INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (collection, position),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_origin ON chunks(collection, origin);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// Databases created before the embedder column existed.
	_, err := db.Exec(`ALTER TABLE collections ADD COLUMN embedder TEXT NOT NULL DEFAULT ''`)
	if err != nil && !strings.Contains(err.Error(), "duplicate column") {
		return err
	}
	return nil
}

// Save replaces the collection with snap. Chunk positions preserve insertion order.
func (s *SQLiteStore) Save(ctx context.Context, snap *vector.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, snap.Collection); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	builtAt := snap.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, build_id, embedder, dimensions, chunk_count, built_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET build_id = excluded.build_id, embedder = excluded.embedder,
		   dimensions = excluded.dimensions, chunk_count = excluded.chunk_count, built_at = excluded.built_at`,
		snap.Collection, snap.BuildID, snap.Embedder, snap.Dimensions, len(snap.Entries), builtAt,
	); err != nil {
		return fmt.Errorf("upsert collection: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (collection, position, id, origin, format, sequence_index, char_start, char_end, content, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range snap.Entries {
		c := e.Chunk
		if _, err := stmt.ExecContext(ctx, snap.Collection, i, c.ID, c.Origin, string(c.Format),
			c.SequenceIndex, c.CharStart, c.CharEnd, c.Text, vector.EncodeVector(e.Vector)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Load returns the persisted collection or vector.ErrCollectionNotFound.
func (s *SQLiteStore) Load(ctx context.Context, collection string) (*vector.Snapshot, error) {
	snap := &vector.Snapshot{Collection: collection}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT build_id, embedder, dimensions, chunk_count, built_at FROM collections WHERE name = ?`, collection,
	).Scan(&snap.BuildID, &snap.Embedder, &snap.Dimensions, &count, &snap.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vector.ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, origin, format, sequence_index, char_start, char_end, content, embedding
		 FROM chunks WHERE collection = ? ORDER BY position`, collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap.Entries = make([]models.EmbeddedChunk, 0, count)
	for rows.Next() {
		var c models.Chunk
		var format string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Origin, &format, &c.SequenceIndex, &c.CharStart, &c.CharEnd, &c.Text, &blob); err != nil {
			return nil, err
		}
		c.Format = models.DocumentFormat(format)
		vec, err := vector.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		snap.Entries = append(snap.Entries, models.EmbeddedChunk{Chunk: c, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snap.Entries) != count {
		return nil, fmt.Errorf("collection %s: expected %d chunks, found %d", collection, count, len(snap.Entries))
	}
	return snap, nil
}

// Collections returns a summary of every persisted collection.
func (s *SQLiteStore) Collections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name, c.build_id, c.embedder, c.dimensions, c.chunk_count, c.built_at,
		        (SELECT COUNT(DISTINCT origin) FROM chunks k WHERE k.collection = c.name)
		 FROM collections c ORDER BY c.name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.BuildID, &info.Embedder, &info.Dimensions, &info.Chunks, &info.BuiltAt, &info.Documents); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
