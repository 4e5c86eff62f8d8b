package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/UltimateServices/Dumpsters-CRM/config"
	"github.com/UltimateServices/Dumpsters-CRM/internal/adapters/jobrunner"
	"github.com/UltimateServices/Dumpsters-CRM/internal/adapters/reaper"
	domainjob "github.com/UltimateServices/Dumpsters-CRM/internal/domain/job"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
	"github.com/UltimateServices/Dumpsters-CRM/internal/service"
)

// WorkerConfig contains configuration for the research worker.
type WorkerConfig struct {
	Jobs     *service.JobService
	Research *service.ResearchService
	Worker   config.WorkerConfig
	// Reaper supplies StaleAfter, which bounds the heartbeat interval.
	Reaper  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RunWorker starts the research job runner.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	policy, err := domainjob.NewHeartbeatPolicy(cfg.Reaper.StaleAfter)
	if err != nil {
		return fmt.Errorf("heartbeat policy: %w", err)
	}

	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Jobs:              cfg.Jobs,
		Handler:           cfg.Research.Run,
		Logger:            cfg.Logger,
		Concurrency:       cfg.Worker.Concurrency,
		PollInterval:      cfg.Worker.PollInterval,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		Heartbeat:         policy,
		RetryBaseDelay:    cfg.Worker.RetryBaseDelay,
		RetryMaxDelay:     cfg.Worker.RetryMaxDelay,
		Metrics:           cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create research runner: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run research runner: %w", runErr)
	}
	return nil
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
