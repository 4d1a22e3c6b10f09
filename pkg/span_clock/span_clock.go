package span_clock

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// SpanClock supplies span timestamps and the blocking waits used for simulated work.
type SpanClock interface {
	Now() time.Time
	Wait(ctx context.Context, d time.Duration) error
}

type SpanClockImpl struct {
	clock clockz.Clock
	last  time.Time
	mu    sync.Mutex
}

func NewSpanClockImpl(clock clockz.Clock) *SpanClockImpl {
	return &SpanClockImpl{
		clock: clock,
	}
}

// NewRealSpanClock returns a SpanClock backed by the wall clock.
func NewRealSpanClock() *SpanClockImpl {
	return NewSpanClockImpl(clockz.RealClock)
}

// Now never returns a time earlier than one it has already handed out, so a span's end time
// cannot precede its start time even if the wall clock steps backwards.
func (sc *SpanClockImpl) Now() time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	now := sc.clock.Now()
	if now.Before(sc.last) {
		return sc.last
	}
	sc.last = now
	return now
}

func (sc *SpanClockImpl) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-sc.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
