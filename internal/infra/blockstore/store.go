// Package blockstore persists raw block JSON as one file per height.
package blockstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/vietddude/archiver/internal/core/domain"
)

// Store writes block files under {root}/{start}_{end}_data.
type Store struct {
	dir      string
	compress bool
}

// DirName returns the output directory name for a requested range.
func DirName(r domain.HeightRange) string {
	return r.String() + "_data"
}

// NewStore creates the output directory for r below root.
func NewStore(root string, r domain.HeightRange, compress bool) (*Store, error) {
	dir := filepath.Join(root, DirName(r))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Store{dir: dir, compress: compress}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for height.
func (s *Store) Path(height int64) string {
	name := fmt.Sprintf("block_%d.json", height)
	if s.compress {
		name += ".gz"
	}
	return filepath.Join(s.dir, name)
}

// Save writes data for height, replacing any existing file. The file is
// written to a temporary name first so readers never see a partial block.
func (s *Store) Save(height int64, data []byte) (string, error) {
	path := s.Path(height)

	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".block_%d_*.tmp", height))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := s.write(tmp, data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write block %d: %w", height, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close block %d: %w", height, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename block %d: %w", height, err)
	}
	return path, nil
}

func (s *Store) write(w io.Writer, data []byte) error {
	if !s.compress {
		_, err := w.Write(data)
		return err
	}

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Load reads back the payload stored for height.
func (s *Store) Load(height int64) ([]byte, error) {
	raw, err := os.ReadFile(s.Path(height))
	if err != nil {
		return nil, err
	}
	if !s.compress {
		return raw, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open gzip block %d: %w", height, err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
