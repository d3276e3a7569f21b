package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"minidex/internal/model"
)

// JsonlStorage appends events and rejections to two JSONL files. An empty
// rejections path drops rejections.
type JsonlStorage struct {
	eventsPath     string
	rejectionsPath string
	mu             sync.Mutex
}

func NewJsonlStorage(eventsPath, rejectionsPath string) *JsonlStorage {
	return &JsonlStorage{eventsPath: eventsPath, rejectionsPath: rejectionsPath}
}

// PutEventBatch appends a batch of events as JSON lines.
func (s *JsonlStorage) PutEventBatch(_ context.Context, events []model.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.eventsPath, events)
}

// PutRejectionBatch appends a batch of rejections as JSON lines.
func (s *JsonlStorage) PutRejectionBatch(_ context.Context, rejections []model.Rejection) error {
	if s.rejectionsPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.rejectionsPath, rejections)
}

// WriteJSONL appends items to path, one JSON document per line.
func WriteJSONL[T any](path string, items []T) error {
	return appendLines(path, items)
}

func appendLines[T any](path string, items []T) error {
	if len(items) == 0 {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	buf := bufio.NewWriter(file)
	enc := json.NewEncoder(buf)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			file.Close()
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return file.Close()
}
