package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/model"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

const (
	DefaultFlushSize    = 30
	DefaultFlushTimeOut = 10 * time.Second
)

type SpanWriteBuffer interface {
	WriteToBuffer(spans []model.SpanRecord)
	// Flush writes whatever is buffered, regardless of size.
	Flush(ctx context.Context) error
}

type SpanWriteBufferImpl struct {
	writeQueue   []model.SpanRecord
	store        SpanStore
	flushSize    int
	flushTimeOut time.Duration
	logger       *zap.Logger
	mu           sync.Mutex
	flushMu      sync.Mutex
}

func NewSpanWriteBufferImpl(
	store SpanStore,
	flushSize int,
	flushTimeOut time.Duration,
	logger *zap.Logger,
) *SpanWriteBufferImpl {
	if flushSize <= 0 {
		flushSize = DefaultFlushSize
	}
	if flushTimeOut <= 0 {
		flushTimeOut = DefaultFlushTimeOut
	}
	return &SpanWriteBufferImpl{
		writeQueue:   []model.SpanRecord{},
		store:        store,
		flushSize:    flushSize,
		flushTimeOut: flushTimeOut,
		logger:       logger,
	}
}

// WriteToBuffer queues spans and flushes synchronously once the queue reaches the flush size.
func (wb *SpanWriteBufferImpl) WriteToBuffer(spans []model.SpanRecord) {
	wb.mu.Lock()
	wb.writeQueue = append(wb.writeQueue, spans...)
	full := len(wb.writeQueue) >= wb.flushSize
	wb.mu.Unlock()
	if !full {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), wb.flushTimeOut)
	defer cancel()
	if err := wb.Flush(ctx); err != nil {
		wb.logger.Error("Failed to flush spans to Elasticsearch", zap.Error(err))
	}
}

func (wb *SpanWriteBufferImpl) Flush(ctx context.Context) error {
	wb.flushMu.Lock()
	defer wb.flushMu.Unlock()

	wb.mu.Lock()
	batch := wb.writeQueue
	wb.writeQueue = []model.SpanRecord{}
	wb.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	if err := wb.store.BulkIndex(ctx, batch); err != nil {
		return fmt.Errorf("error bulk indexing %d spans to Elasticsearch: %w", len(batch), err)
	}
	wb.logger.Debug("Flushed spans to Elasticsearch", zap.Int("count", len(batch)))
	return nil
}

// RunPeriodicFlush flushes whatever is buffered every interval until ctx is done, so spans do not
// wait for the flush size under low traffic.
func (wb *SpanWriteBufferImpl) RunPeriodicFlush(ctx context.Context, clock clockz.Clock, interval time.Duration) {
	wb.logger.Info("Starting periodic span flush", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			wb.logger.Info("Stopping periodic span flush")
			return
		case <-clock.After(interval):
			flushCtx, cancel := context.WithTimeout(ctx, wb.flushTimeOut)
			if err := wb.Flush(flushCtx); err != nil {
				wb.logger.Error("Failed to flush spans to Elasticsearch", zap.Error(err))
			}
			cancel()
		}
	}
}

// HandleSpanClosed adapts the buffer to the span_closed event bus topic.
func (wb *SpanWriteBufferImpl) HandleSpanClosed(event model.SpanClosedEvent) error {
	wb.WriteToBuffer([]model.SpanRecord{event.Span})
	return nil
}
