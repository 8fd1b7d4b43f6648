package di

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"EarnPull/internal/domain/repository"
	"EarnPull/internal/domain/service"
	"EarnPull/internal/handler/api"
	internalrepo "EarnPull/internal/repository"
	"EarnPull/internal/service/ratelimit"
	"EarnPull/internal/usecase"
	"EarnPull/pkg/cache"
	"EarnPull/pkg/calendar"
	"EarnPull/pkg/config"
	xhttp "EarnPull/pkg/http"
	pkgkafka "EarnPull/pkg/kafka"
	xlogger "EarnPull/pkg/logger"
	"EarnPull/pkg/metrics"
	"EarnPull/pkg/scheduler"
	"EarnPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*xlogger.Logger, error) {
	l, err := xlogger.New(&xlogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(xlogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry shared by every collector.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvideCalendar builds the calendar with the configured Local zone.
func ProvideCalendar(cfg *config.Config) (*calendar.Calendar, error) {
	if cfg.Forex.LocalZone == "" {
		return calendar.New(nil), nil
	}
	loc, err := time.LoadLocation(cfg.Forex.LocalZone)
	if err != nil {
		return nil, fmt.Errorf("forex.local_zone: %w", err)
	}
	return calendar.New(loc), nil
}

// ProvideHTTPClient creates the outbound client shared by both sources.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Fetcher.Timeout),
		xhttp.WithUserAgent(cfg.Fetcher.UserAgent),
		xhttp.WithMaxBodyBytes(cfg.Fetcher.MaxBodyBytes),
	)
}

// ProvidePageCache creates the in-memory page cache, layered over Redis when
// enabled. An unreachable Redis degrades to memory only.
func ProvidePageCache(cfg *config.Config, log *xlogger.Logger) cache.Service {
	mem := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
		cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		cache.WithMemoryDefaultTTL(cfg.Fetcher.PageTTL),
	)
	if !cfg.Cache.Redis.Enabled {
		return mem
	}

	rc := cfg.Cache.Redis
	remote, err := cache.NewRedisCache(
		cache.WithRedisAddr(rc.Addr),
		cache.WithRedisPassword(rc.Password),
		cache.WithRedisDB(rc.DB),
		cache.WithRedisPool(rc.PoolSize, rc.PoolSize/2, 4*time.Second),
		cache.WithRedisPrefix(rc.Prefix),
	)
	if err != nil {
		log.Warn("redis unavailable, page cache is memory only", xlogger.String("addr", rc.Addr), xlogger.Error(err))
		return mem
	}
	return cache.NewLayeredCache(mem, remote, cfg.Cache.L1TTL)
}

// ProvideLimiter creates the per-host politeness limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvidePublisher publishes record changes to Kafka, or drops them when
// Kafka is disabled.
func ProvidePublisher(cfg *config.Config, reg *prometheus.Registry) (repository.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic), nil
}

func newFetcher(
	cfg *config.Config,
	baseURL string,
	client *xhttp.Client,
	pages cache.Service,
	limiter *ratelimit.Limiter,
	log *xlogger.Logger,
) (*internalrepo.PageFetcher, error) {
	return internalrepo.NewPageFetcher(client, pages, limiter, log, internalrepo.PageFetcherConfig{
		BaseURL:      baseURL,
		RateCapacity: cfg.Fetcher.RateCapacity,
		RatePerSec:   cfg.Fetcher.RatePerSec,
		PageTTL:      cfg.Fetcher.PageTTL,
	})
}

// ProvideEarningsCache creates the ticker cache over the earnings source.
func ProvideEarningsCache(
	cfg *config.Config,
	client *xhttp.Client,
	pages cache.Service,
	limiter *ratelimit.Limiter,
	m repository.Metrics,
	pub repository.Publisher,
	log *xlogger.Logger,
) (*usecase.EarningsCache, error) {
	fetcher, err := newFetcher(cfg, cfg.Earnings.SourceURL, client, pages, limiter, log)
	if err != nil {
		return nil, fmt.Errorf("earnings fetcher: %w", err)
	}
	ec := cfg.Earnings
	return usecase.NewEarningsCache(fetcher, usecase.NewEarningsScraper(""), m, log, usecase.EarningsCacheConfig{
		SnapshotPath: ec.SnapshotPath,
		Policy: usecase.StalenessPolicy{
			QueryStaleDays:        ec.QueryStaleDays,
			PostEarningsStaleDays: ec.PostEarningsStaleDays,
			JitterDays:            ec.JitterDays,
			ForceRefresh:          ec.ForceRefresh,
		},
		RequeryUnavailableOnce: ec.RequeryUnavailableOnce,
	}, usecase.WithPublisher(pub)), nil
}

// ProvideForexLookup returns nil when the forex source is disabled.
func ProvideForexLookup(
	cfg *config.Config,
	client *xhttp.Client,
	pages cache.Service,
	limiter *ratelimit.Limiter,
	cal *calendar.Calendar,
	m repository.Metrics,
	log *xlogger.Logger,
) (service.ForexLookup, error) {
	if !cfg.Forex.Enabled {
		return nil, nil
	}
	fetcher, err := newFetcher(cfg, cfg.Forex.SourceURL, client, pages, limiter, log)
	if err != nil {
		return nil, fmt.Errorf("forex fetcher: %w", err)
	}
	return usecase.NewForexCalendar(fetcher, cal, m, log, usecase.ForexCalendarConfig{
		PathFormat:      cfg.Forex.PathFormat,
		RequeryInterval: cfg.Forex.RequeryInterval,
	}), nil
}

// ProvideSnapshotJob creates the periodic save / reload job.
func ProvideSnapshotJob(cfg *config.Config, ec *usecase.EarningsCache, log *xlogger.Logger) *usecase.SnapshotJob {
	return usecase.NewSnapshotJob(ec, cfg.Earnings.SnapshotPath, cfg.Snapshot.SaveInterval, log)
}

// ProvideScheduler creates the cron scheduler.
func ProvideScheduler(log *xlogger.Logger) *scheduler.Scheduler {
	return scheduler.New(log.Zerolog())
}

// ProvideHTTPHandler registers the API routes.
func ProvideHTTPHandler(
	log *xlogger.Logger,
	ec *usecase.EarningsCache,
	forex service.ForexLookup,
	cal *calendar.Calendar,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewEarningsEchoHandler(log, ec),
		api.NewMarketEchoHandler(log, forex, cal),
	}
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, log *xlogger.Logger, reg *prometheus.Registry) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, log,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(metricsPath, reg),
	)
}

// ProvideClosers lists clients the app releases on shutdown.
func ProvideClosers(pub repository.Publisher, pages cache.Service) server.Closers {
	return server.Closers{pub, pages}
}
