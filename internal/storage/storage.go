package storage

import (
	"context"

	"go.uber.org/multierr"

	"minidex/internal/model"
)

// Storage defines a sink for simulation output.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.EventRecord) error
	PutRejectionBatch(ctx context.Context, rejections []model.Rejection) error
}

// Fanout writes every batch to all sinks and reports every failure.
type Fanout []Storage

// Sinks flattens s into the sinks that receive its writes, so a caller can
// retry a failing sink without repeating writes that already succeeded.
func Sinks(s Storage) []Storage {
	f, ok := s.(Fanout)
	if !ok {
		return []Storage{s}
	}
	var out []Storage
	for _, sink := range f {
		out = append(out, Sinks(sink)...)
	}
	return out
}

func (f Fanout) PutEventBatch(ctx context.Context, events []model.EventRecord) error {
	var err error
	for _, sink := range f {
		err = multierr.Append(err, sink.PutEventBatch(ctx, events))
	}
	return err
}

func (f Fanout) PutRejectionBatch(ctx context.Context, rejections []model.Rejection) error {
	var err error
	for _, sink := range f {
		err = multierr.Append(err, sink.PutRejectionBatch(ctx, rejections))
	}
	return err
}
