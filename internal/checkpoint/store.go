package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists the checkpoint document: a single JSON mapping from
// fully-qualified repository name to RepoCheckpoint, rewritten in full on
// every save. Size stays bounded by distinct branches ever seen, so a full
// rewrite is cheaper than an append log would be to compact.
type Store struct {
	path string
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint store: path required")
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string { return s.path }

// Load reads the checkpoint document. A missing or corrupt file yields an
// empty map, never an error: the crawl can always restart from scratch as a
// degraded fallback.
func (s *Store) Load() map[string]*RepoCheckpoint {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]*RepoCheckpoint{}
	}
	var doc map[string]*RepoCheckpoint
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]*RepoCheckpoint{}
	}
	if doc == nil {
		doc = map[string]*RepoCheckpoint{}
	}
	for _, cp := range doc {
		if cp != nil && cp.ProcessedBranches == nil {
			cp.ProcessedBranches = NewStringSet()
		}
	}
	return doc
}

// Save rewrites the document crash-safely (temp file + rename), so a crash
// mid-save never corrupts the previous checkpoint.
func (s *Store) Save(doc map[string]*RepoCheckpoint) error {
	if s == nil {
		return fmt.Errorf("checkpoint store is nil")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
