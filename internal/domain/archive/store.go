package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no archive exists for an object
	ErrNotFound = errors.New("archive not found")
	// ErrCorrupt is returned when a stored payload fails its checksum
	ErrCorrupt = errors.New("archive checksum mismatch")
	// ErrUnknownBackend is returned by Open for unsupported backends
	ErrUnknownBackend = errors.New("unknown archive backend")
)

// Entry describes one stored archive
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Codec      string    `json:"codec"`
	Checksum   string    `json:"checksum"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists property dictionaries keyed by object UUID
type Store interface {
	Save(ctx context.Context, id uuid.UUID, dict map[string]any) (Entry, error)
	Load(ctx context.Context, id uuid.UUID) (map[string]any, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Options configures Open
type Options struct {
	Backend  string // "file" or "sqlite"
	Path     string // directory for file, database file for sqlite
	Codec    string
	Compress bool
}

// Open creates the store selected by opts
func Open(opts Options) (Store, error) {
	codec, err := CodecFor(opts.Codec)
	if err != nil {
		return nil, err
	}

	switch opts.Backend {
	case "file", "":
		return NewFileStore(opts.Path, codec, opts.Compress)
	case "sqlite":
		return NewSQLiteStore(opts.Path, codec, opts.Compress)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
