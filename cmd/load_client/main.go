package main

import (
	"context"
	"fmt"

	"github.com/Avi18971911/augur-span-reporter/internal/config"
	"github.com/Avi18971911/augur-span-reporter/internal/load_client"
	"github.com/Avi18971911/augur-span-reporter/internal/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadLoadClient()
	if err != nil {
		panic(err)
	}
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	lc := load_client.NewLoadClient(load_client.Config{
		TargetURL: cfg.TargetURL,
		Users:     cfg.Users,
		Duration:  cfg.Duration,
		Timeout:   cfg.Timeout,
	}, logger)
	report, err := lc.Run(context.Background())
	if err != nil {
		logger.Error("Load test failed", zap.Error(err))
	}

	fmt.Printf("\nLoad Test Results:\n")
	fmt.Printf("Total Requests: %d\n", report.TotalRequests)
	fmt.Printf("Failed Requests: %d\n", report.FailedRequests)
	fmt.Printf("Average Response Time: %s\n", report.AverageResponseTime())
}
