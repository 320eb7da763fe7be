package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/icvsb/icvsb/config"
	"github.com/icvsb/icvsb/internal/handlers"
	"github.com/icvsb/icvsb/pkg/benchmark"
	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/events"
	"github.com/icvsb/icvsb/pkg/health"
	"github.com/icvsb/icvsb/pkg/httpclient"
	"github.com/icvsb/icvsb/pkg/middleware"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/providers"
	"github.com/icvsb/icvsb/pkg/redis"
	"github.com/icvsb/icvsb/pkg/respcache"
	"github.com/icvsb/icvsb/pkg/startup"
	"github.com/icvsb/icvsb/pkg/tracing"
	"github.com/icvsb/icvsb/pkg/tracing/exporters"
	"github.com/icvsb/icvsb/pkg/validate"
	"github.com/icvsb/icvsb/pkg/webhooks"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg, cfg.LoggerFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	dbLogger, err := newLogger(cfg, cfg.DatabaseLogFile)
	if err != nil {
		logger.WithError(err).Warn("failed to build database logger; using the global one")
		dbLogger = logger
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, dbLogger); err != nil {
		logger.WithError(err).Error("service exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger, dbLogger ectologger.Logger) error {
	var (
		db          database.DB
		redisClient *redis.Client
		emitter     *events.Emitter
		checker     *health.Checker
		registry    *benchmark.Registry
		server      *http.Server
	)

	boot := startup.NewStartup(logger, 5)

	if cfg.OTLPEnabled {
		boot.AddDependency(startup.NewDependency("tracing", nil,
			func(ctx context.Context) error {
				exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
					Endpoint: cfg.OTLPEndpoint,
					Insecure: cfg.OTLPInsecure,
					Timeout:  10 * time.Second,
				})
				if err != nil {
					return err
				}
				res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceName(cfg.AppName),
				))
				if err != nil {
					return err
				}
				provider := sdktrace.NewTracerProvider(
					sdktrace.WithBatcher(exporter),
					sdktrace.WithResource(res),
				)
				otel.SetTracerProvider(provider)
				tracing.SetTracer(provider.Tracer(cfg.AppName))
				return nil
			}, nil))
	}

	boot.AddDependency(startup.NewDependency("database", nil,
		func(ctx context.Context) error {
			var err error
			db, err = database.Connect(cfg.DatabaseConnectionURL, dbLogger)
			if err != nil {
				return err
			}

			driver, err := database.MigrationDriver(db)
			if err != nil {
				return err
			}
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: migrationFolder(cfg, db),
				Version:             uint(cfg.DatabaseMigrationVersion),
			})
			return migrations.Migrate("icvsb", driver)
		},
		func(ctx context.Context) error {
			return db.Close()
		}))

	if cfg.RedisHost != "" {
		boot.AddDependency(startup.NewDependency("redis", nil,
			func(ctx context.Context) error {
				var err error
				redisClient, err = redis.NewClient(redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				return err
			},
			func(ctx context.Context) error {
				return redisClient.Close()
			}))
	}

	if cfg.KafkaBrokers != "" {
		boot.AddDependency(startup.NewDependency("kafka", nil,
			func(ctx context.Context) error {
				emitter = events.NewEmitter(events.ParseConfig(cfg.KafkaBrokers, cfg.KafkaEventsTopic), logger)
				return nil
			},
			func(ctx context.Context) error {
				return emitter.Close()
			}))
	}

	boot.AddDependency(startup.NewDependency("registry", []string{"database"},
		func(ctx context.Context) error {
			registry = benchmark.NewRegistry(logger)
			return nil
		},
		func(ctx context.Context) error {
			registry.Shutdown()
			return nil
		}))

	serverDeps := []string{"database", "registry"}
	if cfg.RedisHost != "" {
		serverDeps = append(serverDeps, "redis")
	}
	boot.AddDependency(startup.NewDependency("http-server", serverDeps,
		func(ctx context.Context) error {
			outbound := httpclient.NewClient(httpclient.Config{
				Timeout:         cfg.ProviderTimeout,
				MaxIdleConns:    100,
				IdleConnTimeout: 90 * time.Second,
			}, logger)

			notifier := webhooks.NewNotifier(outbound, logger, cfg.WebhookTimeout)

			var cache respcache.Cache
			if redisClient != nil {
				cache = respcache.NewRedis(redisClient, logger, cfg.RedisCacheTTL)
			} else {
				cache = respcache.NewMemory(cfg.LabelsCacheCapacity)
			}

			labelProviders := buildProviders(cfg, outbound, logger)

			e := echo.New()
			e.HideBanner = true
			e.HTTPErrorHandler = middleware.Error(logger)
			bodyValidator, err := validate.NewEchoValidator()
			if err != nil {
				return err
			}
			e.Validator = bodyValidator
			e.Use(otelecho.Middleware(cfg.AppName))
			e.Use(middleware.Context())
			e.Use(middleware.Logger(logger))

			checker = health.NewChecker(db, redisClient, cfg.AppName)
			checker.RegisterRoutes(e)
			e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

			handlers.NewStaticHandler(cfg.StaticIndexPath).Register(e)
			handlers.NewBenchmarkHandler(registry, labelProviders, db, notifier, emitter, logger).Register(e.Group("/benchmark"))
			handlers.NewKeyHandler(db, logger).Register(e.Group("/key"))
			handlers.NewLabelsHandler(registry, db, cache, logger).Register(e.Group("/labels"))

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           e,
				ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
				ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
				MaxHeaderBytes:    cfg.MaxHeaderBytes,
			}

			go func() {
				logger.Infof("Listening on :%d", cfg.Port)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("http server stopped")
				}
			}()
			checker.SetReady(true)
			return nil
		},
		func(ctx context.Context) error {
			checker.SetReady(false)
			return server.Shutdown(ctx)
		}))

	if err := boot.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return boot.Stop(stopCtx)
}

// buildProviders wires one LabelProvider per configured vendor. Azure
// is omitted unless its subscription key is set.
func buildProviders(cfg config.Config, outbound *httpclient.Client, logger ectologger.Logger) map[string]providers.LabelProvider {
	labelProviders := map[string]providers.LabelProvider{
		models.ServiceGoogle: providers.NewGoogleProvider(outbound, logger, providers.GoogleConfig{
			APIKey:   cfg.GoogleAPIKey,
			Endpoint: cfg.GoogleEndpoint,
			Timeout:  cfg.ProviderTimeout,
		}),
		models.ServiceAmazon: providers.NewAmazonProvider(outbound, logger, providers.AmazonConfig{
			Endpoint: cfg.AmazonEndpoint,
			Headers:  amazonHeaders(cfg),
			Timeout:  cfg.ProviderTimeout,
		}),
	}
	if cfg.AzureSubscriptionKey != "" {
		labelProviders[models.ServiceAzure] = providers.NewAzureProvider(outbound, logger, providers.AzureConfig{
			SubscriptionKey: cfg.AzureSubscriptionKey,
			Endpoint:        cfg.AzureEndpoint,
			Timeout:         cfg.ProviderTimeout,
		})
	}
	return labelProviders
}

// migrationFolder picks the per-driver migration folder unless the
// config names one explicitly.
func migrationFolder(cfg config.Config, db database.DB) string {
	if cfg.DatabaseMigrationFolderPath != "" {
		return cfg.DatabaseMigrationFolderPath
	}
	if db.DriverName() == "sqlite3" {
		return "db/migrations/sqlite"
	}
	return "db/migrations/postgres"
}

func amazonHeaders(cfg config.Config) map[string]string {
	if cfg.AmazonAuthorization == "" {
		return nil
	}
	return map[string]string{"Authorization": cfg.AmazonAuthorization}
}

// newLogger builds a zap-backed logger writing to sink, or stdout when
// sink is empty.
func newLogger(cfg config.Config, sink string) (ectologger.Logger, error) {
	var zapCfg zap.Config
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err == nil {
		zapCfg.Level = level
	}

	if sink != "" {
		zapCfg.OutputPaths = []string{sink}
		zapCfg.ErrorOutputPaths = []string{sink}
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}
