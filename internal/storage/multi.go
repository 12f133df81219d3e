package storage

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ensure multiBackend implements Backend
var _ Backend = (*multiBackend)(nil)

type multiBackend struct {
	backends []Backend
}

// Multi returns a Backend that saves every record into all given backends.
// Queries are answered by the first backend.
func Multi(backends ...Backend) Backend {
	var nonNil []Backend
	for _, b := range backends {
		if b != nil {
			nonNil = append(nonNil, b)
		}
	}
	return &multiBackend{backends: nonNil}
}

func (m *multiBackend) Save(ctx context.Context, record *CheckRecord) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, b := range m.backends {
		g.Go(func() error {
			return b.Save(gCtx, record)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("multi save: %w", err)
	}
	return nil
}

func (m *multiBackend) Query(ctx context.Context, filter Filter) ([]*CheckRecord, error) {
	if len(m.backends) == 0 {
		return nil, nil
	}
	return m.backends[0].Query(ctx, filter)
}

func (m *multiBackend) Close() error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
