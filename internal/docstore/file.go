package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const fileExt = ".json"

// FileStore keeps each document in <dir>/<collection>/<key>.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(collection, key string) string {
	return filepath.Join(s.dir, collection, key+fileExt)
}

func (s *FileStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := validateKey(collection, key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(collection, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, key, err)
	}
	return data, nil
}

// Put writes to a temp file and renames it over the target so readers never
// observe a partially written document.
// Put writes to a temp file and renames it over the target so readers never
// observe a partially written document.
func (s *FileStore) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpName, err := s.writeTemp(collection, key, value)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, key, err)
	}
	defer func() { _ = os.Remove(tmpName) }()

	if err := os.Rename(tmpName, s.path(collection, key)); err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, key, err)
	}
	return nil
}

// Create writes to a temp file and hard-links it into place. The link fails
// when the target exists, and readers only ever see the complete document.
func (s *FileStore) Create(ctx context.Context, collection, key string, value []byte) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpName, err := s.writeTemp(collection, key, value)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, key, err)
	}
	defer func() { _ = os.Remove(tmpName) }()

	err = os.Link(tmpName, s.path(collection, key))
	if errors.Is(err, fs.ErrExist) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, key, err)
	}
	return nil
}

// writeTemp stores value in a hidden temp file inside the collection dir and
// returns its name. ListKeys ignores dot files.
func (s *FileStore) writeTemp(collection, key string, value []byte) (string, error) {
	dir := filepath.Join(s.dir, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "."+key+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *FileStore) Remove(ctx context.Context, collection, key string) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.path(collection, key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *FileStore) ListKeys(ctx context.Context, collection string) ([]string, error) {
	if err := validateKey(collection, "list"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, collection))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	slices.Sort(keys)
	return keys, nil
}
