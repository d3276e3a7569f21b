package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"minidex/internal/storage/postgres"
)

// StateStore persists the timestamp up to which windows are final.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore keeps the aggregation cursor in a local JSON file.
type FileStateStore struct {
	Path string
}

type cursorFile struct {
	FinalTS   uint64 `json:"final_ts"`
	UpdatedAt string `json:"updated_at"`
}

func (s *FileStateStore) Load(_ context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	var cur cursorFile
	switch data, err := os.ReadFile(s.Path); {
	case errors.Is(err, fs.ErrNotExist):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read aggregate cursor: %w", err)
	default:
		if err := json.Unmarshal(data, &cur); err != nil {
			return 0, false, fmt.Errorf("parse aggregate cursor %s: %w", s.Path, err)
		}
	}
	return cur.FinalTS, true, nil
}

// Save replaces the cursor file through a temporary sibling so readers never
// see a partial write.
func (s *FileStateStore) Save(_ context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	data, err := json.MarshalIndent(cursorFile{FinalTS: ts, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create aggregate cursor dir: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write aggregate cursor: %w", err)
	}
	return os.Rename(tmp, s.Path)
}

// DBStateStore keeps the cursor as a named row of the minidex_state table.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, ts)
}
