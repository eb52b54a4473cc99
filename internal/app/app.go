package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/assembly"
	"github.com/Val17-ui/CACESmodule-sub000/internal/auth"
	"github.com/Val17-ui/CACESmodule-sub000/internal/auth/jwt"
	"github.com/Val17-ui/CACESmodule-sub000/internal/config"
	"github.com/Val17-ui/CACESmodule-sub000/internal/db/repository"
	"github.com/Val17-ui/CACESmodule-sub000/internal/db/store"
	"github.com/Val17-ui/CACESmodule-sub000/internal/events"
	"github.com/Val17-ui/CACESmodule-sub000/internal/export"
	"github.com/Val17-ui/CACESmodule-sub000/internal/iteration"
	"github.com/Val17-ui/CACESmodule-sub000/internal/logging"
	"github.com/Val17-ui/CACESmodule-sub000/internal/metrics"
	"github.com/Val17-ui/CACESmodule-sub000/internal/reconcile"
	"github.com/Val17-ui/CACESmodule-sub000/internal/scoring"
	"github.com/Val17-ui/CACESmodule-sub000/internal/server"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
	ws "github.com/Val17-ui/CACESmodule-sub000/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	broadcaster   *events.Broadcaster
	pendingWorker *metrics.PendingWorker
	bgCancels     []context.CancelFunc
}

// New bootstraps configs, logger, Postgres, Redis and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	queries := store.NewStore(pool)
	mappingRepo := repository.NewQuestionMappingRepository(queries)
	bindingRepo := repository.NewDeviceBindingRepository(queries)
	resultRepo := repository.NewSessionResultRepository(queries)

	m := metrics.New(prometheus.DefaultRegisterer)
	publisher := events.NewRedisPublisher(redisClient, cfg.Import.EventsChannel, logger)
	scorer := scoring.NewEngine(scoring.DefaultScoringConfig())

	var sink export.Sink
	if cfg.Export.AutosaveDir != "" {
		sink = export.NewFileSink(cfg.Export.AutosaveDir, logger)
	} else {
		logger.Info().Msg("EXPORT_AUTOSAVE_DIR not set; generated containers are not auto-saved")
	}

	assemblySvc := assembly.NewService(assembly.Config{
		ContainerExt:        cfg.Export.ContainerExt,
		DefaultTemplatePath: cfg.Export.DefaultTemplate,
		Layouts: assembly.LayoutNames{
			Polling:      cfg.Layouts.Polling,
			Title:        cfg.Layouts.Title,
			Participants: cfg.Layouts.Participants,
		},
		Polling: session.PollingConfig{
			StartMode:              cfg.Polling.StartMode,
			CountdownMode:          cfg.Polling.CountdownMode,
			DefaultDurationSeconds: cfg.Polling.DefaultDurationSeconds,
			MultipleResponses:      cfg.Polling.MultipleResponses,
			BulletStyle:            cfg.Polling.BulletStyle,
		},
	}, assembly.Deps{
		Sink:      sink,
		Mappings:  mappingRepo,
		Publisher: publisher,
		Metrics:   m,
		Scorer:    scorer,
		Images: assembly.NewImageLoader(assembly.ImageConfig{
			FetchTimeout:    cfg.Images.FetchTimeout,
			MaxBytes:        cfg.Images.MaxBytes,
			Concurrency:     cfg.Images.Concurrency,
			AllowLocalPaths: cfg.Images.AllowLocalPaths,
		}, nil, logger),
	}, logger)

	importSvc := reconcile.NewService(reconcile.ServiceDeps{
		Store:     reconcile.NewRedisPendingStore(redisClient, logger),
		Bindings:  bindingRepo,
		Mappings:  mappingRepo,
		Results:   resultRepo,
		Publisher: publisher,
		Metrics:   m,
		Scorer:    scorer,
	}, logger)

	// Leave the validator as an untyped nil when unset so the guard is disabled.
	var validator auth.TokenValidator
	if cfg.Security.JWTSecret != "" {
		validator = jwt.NewManager(jwt.TokenConfig{
			Secret: []byte(cfg.Security.JWTSecret),
			TTL:    cfg.Security.TokenTTL,
			Issuer: cfg.Security.JWTIssuer,
		})
	} else {
		logger.Warn().Msg("JWT secret not configured; API guard disabled")
	}

	wsHub := ws.NewHub(logger)
	broadcaster := events.NewBroadcaster(redisClient, wsHub, cfg.Import.EventsChannel, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, server.Routes{
		Features: []server.RouteRegistrar{
			assembly.NewHTTPHandler(assemblySvc, cfg.MaxUploadBytes, logger),
			reconcile.NewHTTPHandler(importSvc, cfg.MaxUploadBytes, logger),
			iteration.NewHTTPHandler(bindingRepo, resultRepo, scorer, logger),
		},
		Events: events.NewHandler(wsHub, server.WSUpgrader, logger),
		Guard:  auth.Guard(validator, logger),
	})

	return &Application{
		cfg:           cfg,
		logger:        logger,
		pool:          pool,
		redis:         redisClient,
		http:          apiServer,
		broadcaster:   broadcaster,
		pendingWorker: metrics.NewPendingWorker(importSvc, m, cfg.Import.PendingGaugeInterval, logger),
		bgCancels:     make([]context.CancelFunc, 0, 2),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.broadcaster != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.broadcaster.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("event broadcaster stopped")
			}
		}()
	}

	if a.pendingWorker != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.pendingWorker.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("pending imports worker stopped")
			}
		}()
	}
}
