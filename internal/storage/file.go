package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"chatflow/client/internal/models"
)

// FileStore keeps the pair in a JSON file readable only by the user,
// the terminal equivalent of browser local storage.
type FileStore struct {
	Path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created lazily.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Tokens(context.Context) (models.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pair models.TokenPair
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return pair, nil
	}
	if err != nil {
		return pair, fmt.Errorf("read token file: %w", err)
	}
	if len(data) == 0 {
		return pair, nil
	}
	if err := json.Unmarshal(data, &pair); err != nil {
		return models.TokenPair{}, fmt.Errorf("parse token file %s: %w", s.Path, err)
	}
	return pair, nil
}

// SaveTokens replaces the file atomically (temp file + rename).
func (s *FileStore) SaveTokens(_ context.Context, pair models.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func (s *FileStore) ClearTokens(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
