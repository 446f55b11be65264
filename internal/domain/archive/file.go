package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/google/uuid"
)

// FileStore keeps one file per object under a root directory.
// Files are named <uuid><codec extension>.
type FileStore struct {
	root     string
	codec    Codec
	compress bool
}

// NewFileStore creates root if needed and returns a store writing with codec
func NewFileStore(root string, codec Codec, compress bool) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("archive root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &FileStore{root: root, codec: codec, compress: compress}, nil
}

// Save atomically replaces the archive for id
func (s *FileStore) Save(ctx context.Context, id uuid.UUID, dict map[string]any) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	data, sum, err := encodePayload(s.codec, s.compress, dict)
	if err != nil {
		return Entry{}, err
	}

	path := s.path(id)
	if err := writeAtomic(path, data); err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		ID:         id,
		Codec:      s.codec.Name(),
		Checksum:   sum,
		Size:       info.Size(),
		Compressed: s.compress,
		UpdatedAt:  info.ModTime(),
	}, nil
}

// Load reads the archive for id
func (s *FileStore) Load(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodePayload(s.codec, data)
}

// Delete removes the archive for id
func (s *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// List walks the root and describes every archive written with this
// store's codec, ordered by UUID
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	var (
		mu      sync.Mutex
		entries []Entry
	)

	ext := s.codec.Extension()
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		id, err := uuid.Parse(strings.TrimSuffix(d.Name(), ext))
		if err != nil {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		mu.Lock()
		entries = append(entries, Entry{
			ID:         id,
			Codec:      s.codec.Name(),
			Checksum:   Checksum(data),
			Size:       info.Size(),
			Compressed: IsCompressed(data),
			UpdatedAt:  info.ModTime(),
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return entries, nil
}

// Close is a no-op; FileStore holds no open resources
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.root, id.String()+s.codec.Extension())
}

// writeAtomic writes data to a temp file in the target directory and
// renames it over path
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
