// Package cache stores fetched package lists on disk, zstd-compressed and
// keyed by the SHA-256 of the URL they were fetched from.
package cache

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ErrMiss is returned by Get when nothing is cached for a key.
var ErrMiss = errors.New("cache miss")

type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Key returns the hex SHA-256 of a URL.
func Key(url string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(url)))
}

// path returns the sharded file path for a hash: <dir>/<first2>/<rest>.list.zst
func (s *Store) path(hash string) string {
	return filepath.Join(s.dir, hash[:2], hash[2:]+".list.zst")
}

// Put stores content under url, replacing anything cached before.
func (s *Store) Put(url string, content []byte) error {
	p := s.path(Key(url))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return fmt.Errorf("compressing cache entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}

	// Rename so concurrent readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Get returns the content cached for url, or ErrMiss.
func (s *Store) Get(url string) ([]byte, error) {
	f, err := os.Open(s.path(Key(url)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file for %s: %w", url, err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing cache file for %s: %w", url, err)
	}
	return data, nil
}

// Clear removes every cached entry.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
