package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/banking/upi-risk-service/internal/api"
	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/content"
	"github.com/banking/upi-risk-service/internal/messaging"
	"github.com/banking/upi-risk-service/internal/metrics"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
	"github.com/banking/upi-risk-service/internal/pkg/telemetry"
	"github.com/banking/upi-risk-service/internal/profile"
	"github.com/banking/upi-risk-service/internal/scoring"
)

func main() {
	// 1. Environment and configuration
	_ = godotenv.Load()

	cfg, v, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	log, err := logger.New(cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, cfg.Telemetry.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, v, log); err != nil {
		log.Fatal("server exited with error", logger.ErrorField(err))
	}
	log.Info("server exited properly")
}

func run(ctx context.Context, cfg *config.Config, v *viper.Viper, log *logger.Logger) error {
	// 3. Tracing
	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// 4. Scoring engine with fixture baselines
	fixture := profile.NewFixtureProvider(highRiskUser(cfg.Policy.Demo))

	engine, err := scoring.NewEngine(scoring.PolicyFromConfig(cfg.Policy), fixture, log)
	if err != nil {
		return fmt.Errorf("init scoring engine: %w", err)
	}

	// 5. Profile stores: redis -> breaker -> postgres
	var store profile.Store
	if cfg.Database.Enabled {
		pool, err := profile.NewPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := profile.NewPostgresStore(pool, cfg.Database.HistoryWindow)
		store = profile.NewBreakerStore("postgres_stats", pg, cfg.Breaker, log)
		log.Info("postgres profile store enabled")
	}
	if cfg.Redis.Enabled {
		client, err := profile.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		store = profile.NewRedisCache(client, store, cfg.Redis.StatsCacheTTL, log)
		log.Info("redis stats cache enabled")
	}

	analyzer := content.NewAnalyzer(cfg.Content, log)

	var profiles scoring.ProfileStore
	if store != nil {
		profiles = store
	}
	svc := scoring.NewService(engine, profiles, analyzer, scoring.ServiceConfig{
		MaxScoringLatency: cfg.Server.MaxScoringLatency,
		Parallelism:       cfg.Server.ParallelScoring,
	}, log)

	// 6. Kafka pipeline, built before any listener starts
	var consumer *messaging.Consumer
	if cfg.Kafka.Enabled {
		clientID := cfg.Telemetry.ServiceName

		producer, err := messaging.NewProducer(cfg.Kafka, clientID)
		if err != nil {
			return err
		}
		publisher := messaging.NewPublisher(producer, cfg.Kafka.AssessmentTopic)
		defer publisher.Close()

		group, err := messaging.NewConsumerGroup(cfg.Kafka, clientID)
		if err != nil {
			return err
		}
		consumer = messaging.NewConsumer(group, cfg.Kafka.TransactionTopic, svc, publisher, log)
		defer consumer.Close()
	}

	// 7. Hot reload of policy, fixture override and flagged payees
	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(ev fsnotify.Event) {
			next, err := config.Decode(v)
			if err != nil {
				log.Error("config reload failed", logger.ErrorField(err))
				return
			}
			if err := engine.Reload(scoring.PolicyFromConfig(next.Policy)); err != nil {
				log.Error("policy reload rejected", logger.StringField("file", ev.Name), logger.ErrorField(err))
				return
			}
			fixture.SetHighRiskUser(highRiskUser(next.Policy.Demo))
			analyzer.LoadFlaggedPayees(next.Content.FlaggedPayees)
		})
		v.WatchConfig()
	}

	// 8. HTTP API
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(cfg.Server.MaxRequestSize))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Security.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	e.Use(api.RequestContext())

	var auth []echo.MiddlewareFunc
	if cfg.Security.JWTSecret != "" {
		auth = append(auth, api.JWTAuth(cfg.Security.JWTSecret, cfg.Security.JWTIssuer))
	} else {
		log.Warn("jwt secret not configured, scoring API is unauthenticated")
	}
	api.NewHandler(svc, engine, cfg.Server.MaxBatchSize, log).Register(e, auth...)

	// 9. Metrics endpoint
	m := echo.New()
	m.HideBanner = true
	m.HidePort = true
	m.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// 10. Serve
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("server started", logger.StringField("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		if err := m.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	// 11. Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return errors.Join(e.Shutdown(sctx), m.Shutdown(sctx))
	})

	return g.Wait()
}

// highRiskUser returns the fixture override, which only applies in demo mode
func highRiskUser(demo config.DemoConfig) (string, float64) {
	if !demo.Enabled {
		return "", 0
	}
	return demo.HighRiskUserID, demo.HighRiskP95
}
