package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/model"
	"github.com/dgraph-io/ristretto"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/trace"
)

// OpenSpan is a span the collector started and has not ended yet.
type OpenSpan struct {
	Span   trace.Span
	Record model.SpanRecord
}

// ClosedSpan is what is kept of a span after it ends: enough to link late children and to
// recognise a repeated stop.
type ClosedSpan struct {
	SpanContext trace.SpanContext
	Record      model.SpanRecord
}

type SpanRegistry interface {
	Open(span OpenSpan) error
	Lookup(spanID string) (OpenSpan, bool)
	// Close moves spanID from the open set to the closed set with the given record.
	Close(spanID string, record model.SpanRecord) (OpenSpan, error)
	LookupClosed(spanID string) (ClosedSpan, bool)
	// CloseOpenedBefore closes every open span whose start time is before cutoff, stamping it with
	// endTime and status, and returns them so the caller can end the underlying spans.
	CloseOpenedBefore(cutoff time.Time, endTime time.Time, status model.SpanStatus) []OpenSpan
	// PruneClosed forgets closed spans whose retention has run out and returns how many it dropped.
	PruneClosed() int
	OpenCount() int
	ClosedCount() int
}

type closedEntry struct {
	span      ClosedSpan
	expiresAt time.Time
}

// SpanRegistryImpl keeps both open and closed spans in maps under one lock, so a span is always in
// exactly one of them. The ristretto cache is a read-through layer over the closed map.
type SpanRegistryImpl struct {
	open   map[string]OpenSpan
	closed map[string]closedEntry
	hot    *ristretto.Cache
	ttl    time.Duration
	clock  clockz.Clock
	mu     sync.Mutex
}

func NewSpanRegistryImpl(hot *ristretto.Cache, closedTTL time.Duration, clock clockz.Clock) *SpanRegistryImpl {
	return &SpanRegistryImpl{
		open:   make(map[string]OpenSpan),
		closed: make(map[string]closedEntry),
		hot:    hot,
		ttl:    closedTTL,
		clock:  clock,
	}
}

// NewClosedSpanCache builds a cache that admits up to size closed spans, each costing 1.
func NewClosedSpanCache(size int64) (*ristretto.Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create closed span cache: %w", err)
	}
	return cache, nil
}

func (sr *SpanRegistryImpl) Open(span OpenSpan) error {
	spanID := span.Record.SpanID
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if _, ok := sr.open[spanID]; ok {
		return fmt.Errorf("span %s: %w", spanID, ErrSpanAlreadyOpen)
	}
	sr.open[spanID] = span
	return nil
}

func (sr *SpanRegistryImpl) Lookup(spanID string) (OpenSpan, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	span, ok := sr.open[spanID]
	return span, ok
}

func (sr *SpanRegistryImpl) Close(spanID string, record model.SpanRecord) (OpenSpan, error) {
	sr.mu.Lock()
	span, ok := sr.open[spanID]
	if !ok {
		_, closed := sr.lookupClosedLocked(spanID)
		sr.mu.Unlock()
		if closed {
			return OpenSpan{}, ErrSpanAlreadyClosed
		}
		return OpenSpan{}, ErrSpanNotFound
	}
	entry := sr.moveToClosedLocked(span, record)
	sr.mu.Unlock()

	sr.warm(entry)
	return span, nil
}

func (sr *SpanRegistryImpl) LookupClosed(spanID string) (ClosedSpan, bool) {
	if value, found := sr.hot.Get(spanID); found {
		if entry, ok := value.(closedEntry); ok && sr.clock.Now().Before(entry.expiresAt) {
			return entry.span, true
		}
	}

	sr.mu.Lock()
	entry, ok := sr.lookupClosedLocked(spanID)
	sr.mu.Unlock()
	if !ok {
		return ClosedSpan{}, false
	}
	sr.warm(entry)
	return entry.span, true
}

func (sr *SpanRegistryImpl) CloseOpenedBefore(
	cutoff time.Time,
	endTime time.Time,
	status model.SpanStatus,
) []OpenSpan {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	var expired []OpenSpan
	for _, span := range sr.open {
		if !span.Record.StartTime.Before(cutoff) {
			continue
		}
		record := span.Record
		record.EndTime = endTime
		record.Status = status
		sr.moveToClosedLocked(span, record)
		span.Record = record
		expired = append(expired, span)
	}
	return expired
}

func (sr *SpanRegistryImpl) PruneClosed() int {
	now := sr.clock.Now()
	sr.mu.Lock()
	defer sr.mu.Unlock()
	pruned := 0
	for spanID, entry := range sr.closed {
		if !now.Before(entry.expiresAt) {
			delete(sr.closed, spanID)
			pruned++
		}
	}
	return pruned
}

func (sr *SpanRegistryImpl) OpenCount() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return len(sr.open)
}

func (sr *SpanRegistryImpl) ClosedCount() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return len(sr.closed)
}

func (sr *SpanRegistryImpl) moveToClosedLocked(span OpenSpan, record model.SpanRecord) closedEntry {
	entry := closedEntry{
		span:      ClosedSpan{SpanContext: span.Span.SpanContext(), Record: record},
		expiresAt: sr.clock.Now().Add(sr.ttl),
	}
	sr.closed[record.SpanID] = entry
	delete(sr.open, record.SpanID)
	return entry
}

func (sr *SpanRegistryImpl) lookupClosedLocked(spanID string) (closedEntry, bool) {
	entry, ok := sr.closed[spanID]
	if !ok || !sr.clock.Now().Before(entry.expiresAt) {
		return closedEntry{}, false
	}
	return entry, true
}

// warm offers a closed span to the cache for the rest of its retention. A refused or dropped set
// only costs a trip to the map.
func (sr *SpanRegistryImpl) warm(entry closedEntry) {
	remaining := entry.expiresAt.Sub(sr.clock.Now())
	if remaining <= 0 {
		return
	}
	sr.hot.SetWithTTL(entry.span.Record.SpanID, entry, 1, remaining)
}

var (
	ErrSpanNotFound      = errors.New("span not found")
	ErrSpanAlreadyOpen   = errors.New("span already open")
	ErrSpanAlreadyClosed = errors.New("span already closed")
)
