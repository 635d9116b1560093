package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/echoapp/echo-rewards/internal/config"
	"github.com/echoapp/echo-rewards/internal/domain/activity"
	"github.com/echoapp/echo-rewards/internal/domain/admin"
	"github.com/echoapp/echo-rewards/internal/domain/ledger"
	"github.com/echoapp/echo-rewards/internal/domain/milestone"
	"github.com/echoapp/echo-rewards/internal/domain/reward"
	"github.com/echoapp/echo-rewards/internal/domain/seasonal"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
	"github.com/echoapp/echo-rewards/internal/domain/user"
	"github.com/echoapp/echo-rewards/internal/middleware"
	"github.com/echoapp/echo-rewards/internal/pkg/database"
	"github.com/echoapp/echo-rewards/internal/pkg/jwt"
	"github.com/echoapp/echo-rewards/internal/pkg/logger"
	"github.com/echoapp/echo-rewards/internal/pkg/metrics"
	pkgresponse "github.com/echoapp/echo-rewards/internal/pkg/response"
	"github.com/echoapp/echo-rewards/internal/worker"
)

const rateLimiterIdle = 30 * time.Minute

// handlers is everything the router mounts.
type handlers struct {
	health     func(ctx context.Context) error
	credits    *ledger.Handler
	streaks    *streak.Handler
	milestones *milestone.Handler
	seasonal   *seasonal.Handler
	settings   *user.Handler
	events     *reward.Handler
	admin      *admin.Handler
}

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "echo-rewards"}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Echo rewards API")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.RunMigrations {
		if err := database.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, balance cache disabled")
		redis = nil
	}
	defer database.CloseRedis(redis)

	serverLoc := cfg.Location()
	tokenVerifier := jwt.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	adminJWTService := admin.NewJWTService(cfg.AdminJWTSecret, 8*time.Hour)

	// ---------- Repositories ----------
	ledgerRepo := ledger.NewRepository(db)
	streakRepo := streak.NewRepository(db)
	seasonalRepo := seasonal.NewRepository(db)
	activityRepo := activity.NewRepository(db)
	userRepo := user.NewRepository(db)

	// ---------- Services ----------
	locations := user.NewLocationResolver(userRepo, serverLoc)
	ledgerService := ledger.NewService(ledgerRepo, ledger.NewBalanceCache(redis, cfg.BalanceCacheTTL))
	streakService := streak.NewService(streakRepo, locations)

	seasonCatalog := seasonal.NewCatalog(seasonalRepo.List, cfg.SeasonalRefreshInterval)
	seasonEngine := seasonal.NewEngine(seasonCatalog, ledgerRepo)
	seasonService := seasonal.NewService(seasonalRepo, seasonCatalog)

	milestoneCatalog, err := milestone.LoadCatalog(cfg.MilestoneCatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.MilestoneCatalogPath).Msg("Failed to load milestone catalog")
	}
	milestoneEvaluator := milestone.NewEvaluator(milestoneCatalog, streakRepo, activityRepo, ledgerRepo)

	coordinator := reward.NewCoordinator(reward.Deps{
		Transactor: database.NewTransactor(db),
		Streaks:    streakRepo,
		Activity:   activityRepo,
		Ledger:     ledgerRepo,
		Seasonal:   seasonEngine,
		Milestones: milestoneCatalog,
		Locations:  locations,
		Balances:   ledgerService,
	})
	eventLimiter := middleware.NewRateLimiter(cfg.EventRateLimit, cfg.EventRateBurst)

	// ---------- Handlers ----------
	seasonalHandler := seasonal.NewHandler(seasonService, seasonEngine, serverLoc)
	h := handlers{
		health: func(ctx context.Context) error {
			if err := database.Ping(ctx, db); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := database.PingRedis(ctx, redis); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
		credits:    ledger.NewHandler(ledgerService, locations),
		streaks:    streak.NewHandler(streakService),
		milestones: milestone.NewHandler(milestoneEvaluator),
		seasonal:   seasonalHandler,
		settings:   user.NewHandler(userRepo, locations),
		events:     reward.NewHandler(coordinator, eventLimiter),
		admin:      admin.NewHandler(adminJWTService, admin.NewCreditHandler(ledgerService), seasonalHandler.AdminRoutes()),
	}

	// ---------- Background jobs ----------
	jobs, err := worker.New(worker.Config{
		ReconcileInterval:  cfg.ReconcileInterval,
		ReconcileBatchSize: cfg.ReconcileBatchSize,
		RefreshInterval:    cfg.SeasonalRefreshInterval,
		PruneInterval:      rateLimiterIdle / 3,
		PruneIdle:          rateLimiterIdle,
	}, ledgerService, func(ctx context.Context) error {
		_, err := seasonCatalog.Refresh(ctx)
		return err
	}, eventLimiter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule background jobs")
	}
	jobs.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, middleware.Auth(tokenVerifier), h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := jobs.Stop(); err != nil {
		log.Error().Err(err).Msg("Background jobs did not stop cleanly")
	}

	log.Info().Msg("Server exited")
}

func newRouter(cfg *config.Config, authMiddleware func(http.Handler) http.Handler, h handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(metrics.Instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if h.health != nil {
			if err := h.health(r.Context()); err != nil {
				logger.FromContext(r.Context()).Error().Err(err).Msg("health check failed")
				pkgresponse.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "Dependency unavailable")
				return
			}
		}
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/credits", h.credits.Routes(authMiddleware))
		r.Mount("/streaks", h.streaks.Routes(authMiddleware))
		r.Mount("/milestones", h.milestones.Routes(authMiddleware))
		r.Mount("/settings", h.settings.Routes(authMiddleware))
		r.Get("/seasonal/active", h.seasonal.Active)
	})

	r.Mount("/internal/v1/events", h.events.Routes(middleware.ServiceToken(cfg.ServiceToken)))
	r.Mount("/api/admin", h.admin.Routes())

	return r
}
