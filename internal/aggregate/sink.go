package aggregate

import (
	"context"

	"minidex/internal/model"
	"minidex/internal/storage"
)

// Sink receives pool rows and window metrics. *postgres.Store satisfies it.
type Sink interface {
	UpsertPools(ctx context.Context, pools []model.PoolRecord) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// JSONLSink appends pools and metrics to local JSONL files.
type JSONLSink struct {
	PoolsPath   string
	MetricsPath string
}

func (s *JSONLSink) UpsertPools(_ context.Context, pools []model.PoolRecord) error {
	if s.PoolsPath == "" {
		return nil
	}
	return storage.WriteJSONL(s.PoolsPath, pools)
}

func (s *JSONLSink) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	return storage.WriteJSONL(s.MetricsPath, metrics)
}
