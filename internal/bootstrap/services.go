package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/UltimateServices/Dumpsters-CRM/config"
	redisadapter "github.com/UltimateServices/Dumpsters-CRM/internal/adapters/redis"
	"github.com/UltimateServices/Dumpsters-CRM/internal/adapters/wordpress"
	"github.com/UltimateServices/Dumpsters-CRM/internal/content"
	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/data"
	domainjob "github.com/UltimateServices/Dumpsters-CRM/internal/domain/job"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
	"github.com/UltimateServices/Dumpsters-CRM/internal/llm"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
	"github.com/UltimateServices/Dumpsters-CRM/internal/pages"
	"github.com/UltimateServices/Dumpsters-CRM/internal/service"
)

// publishLockPrefix namespaces the per-locality publish lock keys.
const publishLockPrefix = "publish:"

// shutdownWaitTimeout bounds how long background services get to stop.
const shutdownWaitTimeout = 30 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs       *service.JobService
	Research   *service.ResearchService
	Publish    *service.PublishService // nil when WordPress is not configured
	Localities core.LocalityRepository
	Metrics    *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // Optional
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	JobRepo       *data.JobRepo
	LocalityRepo  *data.LocalityRepo
	PublishedRepo *data.PublishedPageRepo
	CacheRepo     *data.RedisCacheRepo // nil without Redis
}

func buildRepositories(db *sql.DB, rdb redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	repoCfg := data.RepoConfig{Logger: logger}
	repos := &serviceRepositories{
		JobRepo:       data.NewJobRepo(db, repoCfg),
		LocalityRepo:  data.NewLocalityRepo(db, repoCfg),
		PublishedRepo: data.NewPublishedPageRepo(db, repoCfg),
	}
	if rdb != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(rdb)
	}
	return repos
}

// BuildServices wires repositories, adapters and services from configuration.
func BuildServices(deps ServiceDeps) (ServiceContainer, error) {
	if deps.Config == nil || deps.DB == nil {
		return ServiceContainer{}, errors.New("config and database are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	metrics := buildMetrics(logger, cfg.Metrics)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)

	waiter, publisher, err := buildJobSignals(repos, deps.RedisClient, cfg.Redis, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	notifier, err := domainjob.NewNotifier(domainjob.NotifierOptions{Waiter: waiter})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create job notifier: %w", err)
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:     repos.JobRepo,
		Logger:   logger,
		Notifier: notifier,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create job service: %w", err)
	}

	generator, err := buildGenerator(cfg, metrics, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	research, err := service.NewResearchService(service.ResearchServiceOptions{
		Localities: repos.LocalityRepo,
		Jobs:       repos.JobRepo,
		Generator:  generator,
		Assembler:  pages.NewAssembler(pages.Options{Logger: logger}),
		Notifier:   publisher,
		Config:     cfg.Research,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create research service: %w", err)
	}

	publish, err := buildPublishService(cfg.WordPress, repos, metrics, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	return ServiceContainer{
		Jobs:       jobs,
		Research:   research,
		Publish:    publish,
		Localities: repos.LocalityRepo,
		Metrics:    metrics,
	}, nil
}

// buildMetrics returns a StatsD client; a dial failure falls back to a disabled client.
func buildMetrics(logger *slog.Logger, cfg config.MetricsConfig) *statsd.Client {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Enabled,
		Address: cfg.Address,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		client, _ = statsd.NewClient(statsd.Config{Prefix: cfg.Prefix, Logger: logger})
	}
	return client
}

// buildJobSignals picks how workers learn about new jobs. With Redis the API
// publishes on a pub/sub channel and workers subscribe to it; without Redis
// workers LISTEN on the Postgres channel the job repository notifies.
func buildJobSignals(
	repos *serviceRepositories,
	rdb redis.UniversalClient,
	cfg config.RedisConfig,
	logger *slog.Logger,
) (domainjob.Waiter, core.JobNotifier, error) {
	if rdb == nil {
		return repos.JobRepo, nil, nil
	}
	n, err := redisadapter.NewJobNotifier(redisadapter.JobNotifierOptions{
		Client:  rdb,
		Channel: cfg.Channel,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create redis job notifier: %w", err)
	}
	return n, n, nil
}

// buildGenerator wires the LLM client into the section generator. Processes
// without an API key (HTTP or reaper only) get a generator that refuses work.
//
//nolint:ireturn // the generator is either the LLM-backed one or the disabled stub.
func buildGenerator(cfg *config.AppConfig, metrics statsd.Sink, logger *slog.Logger) (service.SectionGenerator, error) {
	if cfg.LLM.APIKey == "" {
		logger.Warn("LLM_API_KEY is not set; this process cannot generate sections")
		return disabledGenerator{}, nil
	}

	client, err := llm.NewAnthropicClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIVersion:  cfg.LLM.APIVersion,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	batcher := content.NewAnswerBatcher(content.BatcherOptions{
		Completer:   client,
		MaxTokens:   cfg.LLM.BatchMaxTokens,
		Interval:    cfg.LLM.BatchInterval,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Logger:      logger,
	})
	gen, err := content.NewSectionGenerator(content.GeneratorOptions{
		Completer:   client,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		FAQMode:     cfg.Research.FAQMode,
		Batcher:     batcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create section generator: %w", err)
	}
	return gen, nil
}

type disabledGenerator struct{}

func (disabledGenerator) Generate(context.Context, content.SectionRequest) (model.Section, error) {
	return model.Section{}, apperrors.Internal("text generation is not configured in this process")
}

// buildPublishService returns nil when WordPress credentials are absent.
func buildPublishService(
	cfg config.WordPressConfig,
	repos *serviceRepositories,
	metrics statsd.Sink,
	logger *slog.Logger,
) (*service.PublishService, error) {
	if !cfg.Configured() {
		logger.Info("wordpress publishing disabled: site url or credentials not set")
		return nil, nil
	}

	client, err := wordpress.NewClient(wordpress.Options{
		SiteURL:     cfg.SiteURL,
		Username:    cfg.Username,
		AppPassword: cfg.AppPassword,
		Template:    cfg.Template,
		Status:      cfg.Status,
		Timeout:     cfg.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create wordpress client: %w", err)
	}

	var lock *core.KeyedLock
	if repos.CacheRepo != nil {
		lock = core.NewKeyedLock(core.KeyedLockOptions{
			Cache:  repos.CacheRepo,
			Prefix: publishLockPrefix,
			TTL:    cfg.LockTTL,
		})
	}

	svc, err := service.NewPublishService(service.PublishServiceOptions{
		Localities: repos.LocalityRepo,
		Jobs:       repos.JobRepo,
		Published:  repos.PublishedRepo,
		Publisher:  client,
		Lock:       lock,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create publish service: %w", err)
	}
	return svc, nil
}

// ServiceOrchestrationConfig contains everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	DB       *sql.DB
	Services ServiceContainer
	Logger   *slog.Logger
}

// backgroundService describes a startable component bound to a service mode.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	return []backgroundService{
		{
			mode: config.ServiceModeHTTP,
			name: "http server",
			start: func(ctx context.Context) error {
				return RunHTTPServer(ctx, HTTPServerConfig{
					Config:   cfg.Config.HTTP,
					Services: cfg.Services,
					Logger:   logger,
				})
			},
		},
		{
			mode: config.ServiceModeWorker,
			name: "research worker",
			start: func(ctx context.Context) error {
				return RunWorker(ctx, WorkerConfig{
					Jobs:     cfg.Services.Jobs,
					Research: cfg.Services.Research,
					Worker:   cfg.Config.Worker,
					Reaper:   cfg.Config.Reaper,
					Logger:   logger,
					Metrics:  cfg.Services.Metrics,
				})
			},
		},
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					DB:      cfg.DB,
					Logger:  logger,
					Config:  cfg.Config.Reaper,
					Metrics: cfg.Services.Metrics,
				})
			},
		},
	}
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives or one of them fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(sigCtx)
	started := 0
	for _, svc := range buildBackgroundServices(cfg, logger) {
		if !enabled[svc.mode] {
			continue
		}
		started++
		group.Go(func() error {
			logger.InfoContext(ctx, "background service started", "service", svc.name, "mode", svc.mode)
			err := svc.start(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.InfoContext(ctx, svc.name+" stopped")
			return nil
		})
	}
	if started == 0 {
		return errors.New("no services enabled")
	}

	<-ctx.Done()
	if sigCtx.Err() != nil {
		logger.Info("shutting down services...")
	}
	if cfg.Services.Jobs != nil {
		cfg.Services.Jobs.StopAllListeners()
	}
	return waitForGroup(group, logger)
}

func waitForGroup(group *errgroup.Group, logger *slog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("service error", "error", err)
		}
		return err
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for services to stop")
		return errors.New("timeout waiting for services to stop")
	}
}
