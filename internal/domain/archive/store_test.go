package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T, codec Codec, compress bool) Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"file": func(t *testing.T, codec Codec, compress bool) Store {
			s, err := NewFileStore(t.TempDir(), codec, compress)
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T, codec Codec, compress bool) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db"), codec, compress)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func objectDict(id uuid.UUID, title string) map[string]any {
	return map[string]any{
		"uuid":       id.String(),
		"properties": map[string]any{"title": title},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range stores() {
		for _, compress := range []bool{false, true} {
			t.Run(name, func(t *testing.T) {
				store := newStore(t, YAML{}, compress)
				id := uuid.New()

				entry, err := store.Save(ctx, id, objectDict(id, "first"))
				require.NoError(t, err)
				assert.Equal(t, id, entry.ID)
				assert.Equal(t, "yaml", entry.Codec)
				assert.Equal(t, compress, entry.Compressed)
				assert.NotEmpty(t, entry.Checksum)

				_, err = store.Save(ctx, id, objectDict(id, "second"))
				require.NoError(t, err)

				dict, err := store.Load(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, id.String(), dict["uuid"])
				assert.Equal(t, "second", dict["properties"].(map[string]any)["title"])
			})
		}
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, JSON{}, false)

			_, err := store.Load(ctx, uuid.New())
			assert.ErrorIs(t, err, ErrNotFound)

			err = store.Delete(ctx, uuid.New())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, CBOR{}, true)
			ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
			for _, id := range ids {
				_, err := store.Save(ctx, id, objectDict(id, "x"))
				require.NoError(t, err)
			}

			entries, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			for i := 1; i < len(entries); i++ {
				assert.Less(t, entries[i-1].ID.String(), entries[i].ID.String())
			}
			for _, e := range entries {
				assert.True(t, e.Compressed)
				assert.Equal(t, "cbor", e.Codec)
			}

			require.NoError(t, store.Delete(ctx, ids[1]))

			entries, err = store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, entries, 2)
		})
	}
}

func TestStoreHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, JSON{}, false)
			_, err := store.Save(ctx, uuid.New(), map[string]any{})
			assert.Error(t, err)
		})
	}
}

func TestFileStoreReadsUncompressedAfterSettingChange(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	id := uuid.New()

	plain, err := NewFileStore(root, JSON{}, false)
	require.NoError(t, err)
	_, err = plain.Save(ctx, id, objectDict(id, "plain"))
	require.NoError(t, err)

	compressed, err := NewFileStore(root, JSON{}, true)
	require.NoError(t, err)
	dict, err := compressed.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "plain", dict["properties"].(map[string]any)["title"])
}

func TestFileStoreListIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	store, err := NewFileStore(root, JSON{}, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "not-a-uuid.json"), []byte("{}"), 0o644))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteStoreDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db"), JSON{}, false)
	require.NoError(t, err)
	defer store.Close()

	id := uuid.New()
	_, err = store.Save(ctx, id, objectDict(id, "x"))
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, `UPDATE archives SET payload = ? WHERE id = ?`, []byte(`{"uuid":"tampered"}`), id.String())
	require.NoError(t, err)

	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	fileStore, err := Open(Options{Backend: "file", Path: filepath.Join(dir, "files"), Codec: "toml"})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fileStore)

	sqliteStore, err := Open(Options{Backend: "sqlite", Path: filepath.Join(dir, "db.sqlite"), Codec: "json"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, sqliteStore)
	require.NoError(t, sqliteStore.Close())

	_, err = Open(Options{Backend: "redis", Path: dir, Codec: "json"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(Options{Backend: "file", Path: dir, Codec: "xml"})
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
