package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

type snapshot struct {
	Pending   map[string]domain.PendingVerification `json:"pending"`
	Consumed  map[string]time.Time                  `json:"consumed"`
	Failures  map[string]failureEntry               `json:"failures,omitempty"`
	Sessions  map[string]domain.Session             `json:"sessions"`
	Customers map[string]customerEntry              `json:"customers"`
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	for k, v := range snap.Pending {
		s.pending[k] = v
	}
	for k, v := range snap.Consumed {
		s.consumed[k] = v
	}
	for k, v := range snap.Failures {
		s.failures[k] = v
	}
	for k, v := range snap.Sessions {
		s.sessions[k] = v
	}
	for k, v := range snap.Customers {
		s.customers[k] = v
	}
	return nil
}

// persistLocked writes the full snapshot to a temp file in the same directory and
// renames it over the target, so a crash mid-write leaves the previous snapshot intact.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	b, err := json.Marshal(snapshot{
		Pending:   s.pending,
		Consumed:  s.consumed,
		Failures:  s.failures,
		Sessions:  s.sessions,
		Customers: s.customers,
	})
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".store-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
