package service

import (
	"context"
	"time"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/registry"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// OrphanJanitor ends spans a client opened and never stopped, typically because its pipeline
// aborted on a reporting failure. It also drops closed spans once their retention is over.
type OrphanJanitor struct {
	service     CollectorService
	registry    registry.SpanRegistry
	clock       clockz.Clock
	orphanAfter time.Duration
	sweepEvery  time.Duration
	logger      *zap.Logger
}

func NewOrphanJanitor(
	service CollectorService,
	registry registry.SpanRegistry,
	clock clockz.Clock,
	orphanAfter time.Duration,
	sweepEvery time.Duration,
	logger *zap.Logger,
) *OrphanJanitor {
	return &OrphanJanitor{
		service:     service,
		registry:    registry,
		clock:       clock,
		orphanAfter: orphanAfter,
		sweepEvery:  sweepEvery,
		logger:      logger,
	}
}

// Run sweeps every sweepEvery until ctx is done.
func (oj *OrphanJanitor) Run(ctx context.Context) {
	oj.logger.Info(
		"Starting orphan janitor",
		zap.Duration("orphan_after", oj.orphanAfter),
		zap.Duration("sweep_every", oj.sweepEvery),
	)
	for {
		select {
		case <-ctx.Done():
			oj.logger.Info("Stopping orphan janitor")
			return
		case <-oj.clock.After(oj.sweepEvery):
			oj.SweepOnce(ctx)
		}
	}
}

// SweepOnce ends orphaned spans and prunes expired closed spans. It returns the number of orphans ended.
func (oj *OrphanJanitor) SweepOnce(ctx context.Context) int {
	now := oj.clock.Now()
	ended := oj.service.SweepOrphans(ctx, now.Add(-oj.orphanAfter), now)
	pruned := oj.registry.PruneClosed()
	if ended > 0 || pruned > 0 {
		oj.logger.Info(
			"Janitor sweep finished",
			zap.Int("orphans_ended", ended),
			zap.Int("closed_pruned", pruned),
		)
	}
	return ended
}
