package services

import (
	"context"
	"fmt"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// BatchFetcher resolves id lists into documents with bounded `id in` queries. Batches run
// concurrently; results keep batch order, and each batch keeps the order of its ids.
type BatchFetcher struct {
	store     domain.EntityStore
	batchSize int
	log       logger.Logger
}

func NewBatchFetcher(store domain.EntityStore, batchSize int, log logger.Logger) *BatchFetcher {
	if batchSize <= 0 || batchSize > domain.MaxInValues {
		batchSize = domain.MaxInValues
	}
	return &BatchFetcher{store: store, batchSize: batchSize, log: log}
}

func (f *BatchFetcher) Fetch(ctx context.Context, collection string, ids []string) ([]domain.DocumentSnapshot, error) {
	batches := chunk(ids, f.batchSize)
	results := make([][]domain.DocumentSnapshot, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			docs, err := f.store.Query(gctx, domain.Query{
				Collection: collection,
				Where:      []domain.Filter{domain.IDIn(batch)},
			})
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.log.Error("Batch fetch failed", "collection", collection, "ids", len(ids), "error", err)
		return nil, err
	}

	var out []domain.DocumentSnapshot
	for _, docs := range results {
		out = append(out, docs...)
	}
	return out, nil
}

func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

func decodeAll[T any](docs []domain.DocumentSnapshot) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, d := range docs {
		v := new(T)
		if err := d.DataTo(v); err != nil {
			return nil, fmt.Errorf("%w: undecodable document %s", domain.ErrStoreUnavailable, d.ID)
		}
		out = append(out, v)
	}
	return out, nil
}
