package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/peterbourgon/diskv/v3"
)

// Store keeps snapshots as JSON files under a base directory.
type Store struct {
	d *diskv.Diskv
}

// NewStore returns a Store rooted at dir. Keys map to flat file names, so
// they must be filename safe; Key only produces such keys.
func NewStore(dir string) *Store {
	return &Store{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 1024 * 1024, // 1MB
	})}
}

// Load reads the snapshot saved under key.
// Returns ErrNoSnapshot when nothing is stored and ErrMalformed when the
// stored bytes are not a snapshot document.
func (s *Store) Load(key string) (Snapshot, error) {
	if !s.d.Has(key) {
		return Snapshot{}, ErrNoSnapshot
	}
	raw, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, fmt.Errorf("snapshot.Store.Load: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return snap, nil
}

// Save writes snap under key, replacing any previous snapshot.
func (s *Store) Save(key string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot.Store.Save: %w", err)
	}
	if err := s.d.Write(key, raw); err != nil {
		return fmt.Errorf("snapshot.Store.Save: %w", err)
	}
	return nil
}

// Erase removes the snapshot under key. Erasing a missing key is not an error.
func (s *Store) Erase(key string) error {
	if err := s.d.Erase(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("snapshot.Store.Erase: %w", err)
	}
	return nil
}

// writeRaw stores bytes verbatim; tests use it to plant corrupt snapshots.
func (s *Store) writeRaw(key string, raw []byte) error {
	return s.d.Write(key, raw)
}
