// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package state persists the list of repositories padfs manages, so
// that they are reopened when it starts again. Nothing else is kept
// locally: trees, file content and backlinks are rebuilt from the
// remote.
//
// The file is CBOR with Core Deterministic Encoding, so the same list
// always produces the same bytes. Writes replace the file atomically.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the version written to new files. Files with a
// different version are rejected rather than guessed at.
const FormatVersion = 1

// Repository names one managed repository branch. An empty Branch
// follows the default branch.
type Repository struct {
	Owner  string `cbor:"owner"`
	Name   string `cbor:"name"`
	Branch string `cbor:"branch,omitempty"`
}

func (r Repository) String() string {
	if r.Branch == "" {
		return r.Owner + "/" + r.Name
	}
	return r.Owner + "/" + r.Name + "@" + r.Branch
}

type file struct {
	Version      int          `cbor:"version"`
	Repositories []Repository `cbor:"repositories"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("state: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("state: CBOR decoder initialization failed: " + err.Error())
	}
}

// Store reads and updates one state file. Its methods are safe for
// concurrent use within one process.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a Store for path. The file is created on the first
// change.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file's location.
func (s *Store) Path() string { return s.path }

// Repositories returns the managed repositories, sorted. A missing
// file is an empty list.
func (s *Store) Repositories() ([]Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add records repo. It reports false if repo was already managed.
func (s *Store) Add(repo Repository) (bool, error) {
	if repo.Owner == "" || repo.Name == "" {
		return false, fmt.Errorf("state: repository needs an owner and a name, got %q", repo.String())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	repos, err := s.load()
	if err != nil {
		return false, err
	}
	for _, existing := range repos {
		if existing == repo {
			return false, nil
		}
	}
	return true, s.save(append(repos, repo))
}

// Remove forgets repo. It reports false if repo was not managed.
func (s *Store) Remove(repo Repository) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repos, err := s.load()
	if err != nil {
		return false, err
	}
	kept := repos[:0]
	for _, existing := range repos {
		if existing != repo {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(repos) {
		return false, nil
	}
	return true, s.save(kept)
}

func (s *Store) load() ([]Repository, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: reading %s: %w", s.path, err)
	}
	var decoded file
	if err := decMode.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("state: decoding %s: %w", s.path, err)
	}
	if decoded.Version != FormatVersion {
		return nil, fmt.Errorf("state: %s has format version %d, want %d", s.path, decoded.Version, FormatVersion)
	}
	return decoded.Repositories, nil
}

func (s *Store) save(repos []Repository) error {
	sorted := append([]Repository(nil), repos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	data, err := encMode.Marshal(file{Version: FormatVersion, Repositories: sorted})
	if err != nil {
		return fmt.Errorf("state: encoding: %w", err)
	}

	directory := filepath.Dir(s.path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("state: creating %s: %w", directory, err)
	}
	tmpFile, err := os.CreateTemp(directory, ".repositories-*.cbor")
	if err != nil {
		return fmt.Errorf("state: creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("state: writing temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("state: syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("state: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("state: renaming temp file to %s: %w", s.path, err)
	}
	success = true
	return nil
}
