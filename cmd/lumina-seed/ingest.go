package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/pkg/client"
)

// batchUpserter is the part of the API client the ingester needs.
type batchUpserter interface {
	UpsertBatch(ctx context.Context, items []client.Item) (*client.BatchResponse, error)
}

// ingester splits items into batches and uploads them on a worker pool.
type ingester struct {
	api       batchUpserter
	workers   int
	batchSize int
	logger    *zap.Logger
}

type ingestResult struct {
	Succeeded int64
	Failed    int64
	Duration  time.Duration
}

func (ing *ingester) Run(ctx context.Context, items []client.Item) (ingestResult, error) {
	pool, err := ants.NewPool(ing.workers)
	if err != nil {
		return ingestResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg                sync.WaitGroup
		succeeded, failed atomic.Int64
	)
	start := time.Now()

	for lo := 0; lo < len(items); lo += ing.batchSize {
		if ctx.Err() != nil {
			break
		}
		batch := items[lo:min(lo+ing.batchSize, len(items))]
		offset := lo

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			ok, bad := ing.upload(ctx, offset, batch)
			succeeded.Add(ok)
			failed.Add(bad)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(int64(len(batch)))
			ing.logger.Error("submit batch", zap.Int("offset", offset), zap.Error(submitErr))
		}
	}
	wg.Wait()

	res := ingestResult{
		Succeeded: succeeded.Load(),
		Failed:    failed.Load(),
		Duration:  time.Since(start),
	}
	return res, ctx.Err()
}

// upload sends one batch and returns the succeeded and failed counts.
func (ing *ingester) upload(ctx context.Context, offset int, batch []client.Item) (int64, int64) {
	resp, err := ing.api.UpsertBatch(ctx, batch)
	if err != nil {
		ing.logger.Warn("batch failed",
			zap.Int("offset", offset),
			zap.Int("size", len(batch)),
			zap.Error(err),
		)
		return 0, int64(len(batch))
	}
	for i, r := range resp.Results {
		if !r.OK() {
			ing.logger.Warn("item rejected",
				zap.Int("position", offset+i),
				zap.String("id", r.ID),
				zap.String("error", r.Error),
			)
		}
	}
	ing.logger.Debug("batch stored",
		zap.Int("offset", offset),
		zap.Int("succeeded", resp.Succeeded),
		zap.Int("failed", resp.Failed),
	)
	return int64(resp.Succeeded), int64(resp.Failed)
}
