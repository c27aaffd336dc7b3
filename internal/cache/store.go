// Package cache tracks which papers have already been processed so a
// rerun does not analyze or report them again.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store is a JSON-file-backed set of processed paper IDs.
//
// The file holds {"processed_ids": ["...", ...]}. A missing file is an
// empty cache. Writes go through a temp file and rename so a crash
// mid-write cannot corrupt the cache.
type Store struct {
	path string

	mu  sync.RWMutex
	ids map[string]bool
}

type cacheFile struct {
	ProcessedIDs []string `json:"processed_ids"`
}

// Open loads the cache at path, creating an empty one if the file
// does not exist.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		ids:  make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading cache %s: %w", path, err)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing cache %s: %w", path, err)
	}
	for _, id := range file.ProcessedIDs {
		s.ids[id] = true
	}

	return s, nil
}

// Contains reports whether the paper ID has been processed before.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[id]
}

// Len returns the number of cached IDs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Add unions the given IDs into the cache and persists it. The write
// is atomic; on error the in-memory set still includes the new IDs.
func (s *Store) Add(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if id != "" {
			s.ids[id] = true
		}
	}
	return s.save()
}

// save writes the cache file. Caller holds the lock.
func (s *Store) save() error {
	all := make([]string, 0, len(s.ids))
	for id := range s.ids {
		all = append(all, id)
	}
	sort.Strings(all)

	data, err := json.MarshalIndent(cacheFile{ProcessedIDs: all}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("creating temp cache: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp cache: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing cache: %w", err)
	}
	return nil
}
