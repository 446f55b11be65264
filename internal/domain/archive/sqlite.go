package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS archives (
	id         TEXT PRIMARY KEY,
	codec      TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	compressed INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps archives as rows of a single SQLite table
type SQLiteStore struct {
	db       *sql.DB
	codec    Codec
	compress bool
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string, codec Codec, compress bool) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, codec: codec, compress: compress}, nil
}

// Save upserts the archive for id
func (s *SQLiteStore) Save(ctx context.Context, id uuid.UUID, dict map[string]any) (Entry, error) {
	data, sum, err := encodePayload(s.codec, s.compress, dict)
	if err != nil {
		return Entry{}, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO archives (id, codec, checksum, compressed, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			codec = excluded.codec,
			checksum = excluded.checksum,
			compressed = excluded.compressed,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		id.String(), s.codec.Name(), sum, s.compress, data, now.UnixNano())
	if err != nil {
		return Entry{}, fmt.Errorf("save archive: %w", err)
	}

	return Entry{
		ID:         id,
		Codec:      s.codec.Name(),
		Checksum:   sum,
		Size:       int64(len(data)),
		Compressed: s.compress,
		UpdatedAt:  now,
	}, nil
}

// Load reads and verifies the archive for id. Rows written with another
// codec are decoded with that codec.
func (s *SQLiteStore) Load(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	var (
		codecName string
		checksum  string
		payload   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT codec, checksum, payload FROM archives WHERE id = ?`, id.String()).
		Scan(&codecName, &checksum, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}

	if got := Checksum(payload); got != checksum {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, id)
	}

	codec, err := CodecFor(codecName)
	if err != nil {
		return nil, err
	}
	return decodePayload(codec, payload)
}

// Delete removes the archive for id
func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM archives WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List describes every stored archive ordered by UUID
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, codec, checksum, compressed, length(payload), updated_at
		FROM archives ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			rawID   string
			e       Entry
			updated int64
		)
		if err := rows.Scan(&rawID, &e.Codec, &e.Checksum, &e.Compressed, &e.Size, &updated); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			continue
		}
		e.ID = id
		e.UpdatedAt = time.Unix(0, updated).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
