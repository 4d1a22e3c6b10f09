package load_client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	TargetURL string
	Users     int
	Duration  time.Duration
	Timeout   time.Duration
}

type Report struct {
	TotalRequests  int
	FailedRequests int
	TotalTime      time.Duration
}

func (r Report) AverageResponseTime() time.Duration {
	if r.TotalRequests == 0 {
		return 0
	}
	return r.TotalTime / time.Duration(r.TotalRequests)
}

type LoadClient struct {
	client *resty.Client
	cfg    Config
	logger *zap.Logger
}

func NewLoadClient(cfg Config, logger *zap.Logger) *LoadClient {
	return &LoadClient{
		client: resty.New().SetTimeout(cfg.Timeout),
		cfg:    cfg,
		logger: logger,
	}
}

// Run keeps cfg.Users virtual users hitting the target until cfg.Duration elapses or ctx ends.
func (lc *LoadClient) Run(ctx context.Context) (Report, error) {
	if lc.cfg.Users <= 0 {
		return Report{}, fmt.Errorf("users must be positive, got %d", lc.cfg.Users)
	}
	runCtx, cancel := context.WithTimeout(ctx, lc.cfg.Duration)
	defer cancel()

	lc.logger.Info(
		"Starting load test",
		zap.String("target", lc.cfg.TargetURL),
		zap.Int("users", lc.cfg.Users),
		zap.Duration("duration", lc.cfg.Duration),
	)

	var mu sync.Mutex
	var report Report
	g, gCtx := errgroup.WithContext(runCtx)
	for i := 0; i < lc.cfg.Users; i++ {
		user := i
		g.Go(func() error {
			for gCtx.Err() == nil {
				start := time.Now()
				resp, err := lc.client.R().SetContext(gCtx).Get(lc.cfg.TargetURL)
				elapsed := time.Since(start)
				if gCtx.Err() != nil {
					return nil
				}

				mu.Lock()
				report.TotalRequests++
				report.TotalTime += elapsed
				if err != nil || resp.IsError() {
					report.FailedRequests++
				}
				mu.Unlock()

				// A slow answer is a failed request; an unreachable target ends the run for everyone.
				if err != nil && !isTimeout(err) {
					return fmt.Errorf("user %d: %w: %w", user, ErrTargetUnreachable, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		return report, fmt.Errorf("load test encountered errors: %w", err)
	}

	lc.logger.Info(
		"Load test completed",
		zap.Int("total_requests", report.TotalRequests),
		zap.Int("failed_requests", report.FailedRequests),
		zap.Duration("average_response_time", report.AverageResponseTime()),
	)
	return report, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var ErrTargetUnreachable = errors.New("load test target is unreachable")
