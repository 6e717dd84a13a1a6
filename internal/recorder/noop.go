package recorder

import (
	"context"

	"FairValue/internal/model"
)

// NoopStore is used when no database is configured. Every operation reports ErrNotConfigured.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) Get(context.Context, string) (*Analysis, error) { return nil, ErrNotConfigured }

func (NoopStore) SaveTicker(context.Context, string, *model.TickerData) error { return ErrNotConfigured }

func (NoopStore) SaveAnalysis(context.Context, string, *model.TickerData, model.SavedDCFParams) error {
	return ErrNotConfigured
}

func (NoopStore) List(context.Context, int) ([]Analysis, error) { return nil, ErrNotConfigured }

func (NoopStore) Close() error { return nil }
