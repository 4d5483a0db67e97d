// Package filestore persists a single session as a JSON document on disk.
// The CLI uses it so successive invocations share a login.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/ports"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// Store keeps the three session entries in one file. Writes go through a
// temporary file and a rename so a crash never leaves a half-written session.
type Store struct {
	mu   sync.Mutex
	path string
}

var _ ports.SessionStore = (*Store)(nil)

// New returns a Store backed by path. The file is created on first Set.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	return &Store{path: filepath.Clean(path)}, nil
}

// DefaultPath returns <user config dir>/lanoire/session.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "lanoire", "session.json"), nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(_ context.Context, key domainauth.StorageKey) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return "", err
	}
	return entries[key], nil
}

func (s *Store) Set(_ context.Context, key domainauth.StorageKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = value
	return s.save(entries)
}

// Clear removes the session file. A missing file is not an error.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// load treats a missing file as an empty session. A corrupt file is reported
// so the caller can decide whether to clear it.
func (s *Store) load() (map[domainauth.StorageKey]string, error) {
	entries := make(map[domainauth.StorageKey]string, len(domainauth.StorageKeys()))
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode session file %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Store) save(entries map[domainauth.StorageKey]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cause
	}

	if err := tmp.Chmod(fileMode); err != nil {
		return cleanup(fmt.Errorf("chmod temp session file: %w", err))
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp session file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
