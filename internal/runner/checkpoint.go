package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"minidex/internal/exchange"
)

// Checkpoint records the last applied operation together with the exchange
// state it produced, so a run can resume without replaying the script.
type Checkpoint struct {
	LastProcessedSeq uint64               `json:"last_processed_seq"`
	UpdatedAt        string               `json:"updated_at"`
	State            exchange.Snapshot    `json:"state"`
	FirstSeen        map[string]FirstSeen `json:"first_seen,omitempty"`
}

// FirstSeen identifies the operation that created a pool.
type FirstSeen struct {
	Seq       uint64 `json:"seq"`
	Timestamp uint64 `json:"ts"`
}

// CheckpointStore persists checkpoints to disk. A disabled store loads
// nothing and saves nothing.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

// Load reports false when no checkpoint has been written yet.
func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Checkpoint{}, false, nil
	case err != nil:
		return Checkpoint{}, false, fmt.Errorf("read checkpoint %s: %w", c.path, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", c.path, err)
	}
	return cp, true, nil
}

// Save replaces the checkpoint through a temporary file and a rename.
func (c *CheckpointStore) Save(lastProcessed uint64, state exchange.Snapshot, firstSeen map[string]FirstSeen) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(Checkpoint{
		LastProcessedSeq: lastProcessed,
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339Nano),
		State:            state,
		FirstSeen:        firstSeen,
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, c.path)
}
