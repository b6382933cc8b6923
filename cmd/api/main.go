package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ironhall-fitness/gym-access-api/internal/adapters/httpapi"
	memaccesslog "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/accesslog"
	memdailycoderepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/dailycoderepo"
	memidempotency "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/idempotency"
	memmemberrepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/memberrepo"
	memmembershiprepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/membershiprepo"
	memscanguard "github.com/ironhall-fitness/gym-access-api/internal/adapters/memory/scanguard"
	postgres "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres"
	pgaccesslog "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/accesslog"
	pgdailycoderepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/dailycoderepo"
	pgidempotency "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/idempotency"
	pgmemberrepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/memberrepo"
	pgmembershiprepo "github.com/ironhall-fitness/gym-access-api/internal/adapters/postgres/membershiprepo"
	redisadapter "github.com/ironhall-fitness/gym-access-api/internal/adapters/redis"
	"github.com/ironhall-fitness/gym-access-api/internal/adapters/redis/dailycodecache"
	redisscanguard "github.com/ironhall-fitness/gym-access-api/internal/adapters/redis/scanguard"
	sqlitedb "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite"
	sqlitestore "github.com/ironhall-fitness/gym-access-api/internal/adapters/sqlite/store"
	"github.com/ironhall-fitness/gym-access-api/internal/app/access"
	"github.com/ironhall-fitness/gym-access-api/internal/app/dailycodes"
	"github.com/ironhall-fitness/gym-access-api/internal/app/ledger"
	"github.com/ironhall-fitness/gym-access-api/internal/app/maintenance"
	"github.com/ironhall-fitness/gym-access-api/internal/app/members"
	"github.com/ironhall-fitness/gym-access-api/internal/app/memberships"
	"github.com/ironhall-fitness/gym-access-api/internal/domain"
	"github.com/ironhall-fitness/gym-access-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/ironhall-fitness/gym-access-api/internal/platform/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/platform/config"
	"github.com/ironhall-fitness/gym-access-api/internal/platform/logging"
	accesslogport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/accesslog"
	dailycoderepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/dailycoderepo"
	idempotencyport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
	memberrepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/memberrepo"
	membershiprepoport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/membershiprepo"
	scanguardport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/scanguard"
)

type repos struct {
	members     memberrepoport.Repository
	memberships membershiprepoport.Repository
	codes       dailycoderepoport.Repository
	log         accesslogport.Repository
	idem        idempotencyport.Store
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadAppConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auth configuration:
	// - Production: require JWT_* env vars and enforce bearer auth
	// - Local dev: AUTH_MODE=dev bypasses JWT verification and uses X-Debug-Subject
	var authMW func(http.Handler) http.Handler
	authIssuer := ""
	switch cfg.AuthMode {
	case config.AuthModeDev:
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevSubject)
		authIssuer = getenv("DEV_ISSUER", "dev")
		logger.Warn("dev auth enabled; do not use in production", zap.String("default_subject", cfg.DevSubject))
	default:
		jwtCfg, err := config.LoadJWTConfigFromEnv()
		if err != nil {
			logger.Fatal("invalid auth config", zap.Error(err))
		}
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(jwtCfg))
		authIssuer = jwtCfg.Issuer
	}

	clk := platformclock.NewSystemClock()
	cal := domain.NewCalendar(cfg.Timezone)

	rs, cleanup, err := openStorage(ctx, cfg, authIssuer)
	if err != nil {
		logger.Fatal("open storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	defer cleanup()

	var guard scanguardport.Guard = memscanguard.NewGuard(clk, cfg.ScanLockTTL)
	if cfg.RedisAddr != "" {
		rdb, err := redisadapter.NewClient(ctx, redisadapter.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		defer func(rdb *goredis.Client) { _ = rdb.Close() }(rdb)
		rs.codes = dailycodecache.NewRepo(rs.codes, rdb, clk, logger.Named("dailycodecache"))
		guard = redisscanguard.NewGuard(rdb, cfg.ScanLockTTL)
		logger.Info("redis enabled", zap.String("addr", cfg.RedisAddr))
	}

	admins := make([]domain.SubjectID, 0, len(cfg.AdminSubjects))
	for _, s := range cfg.AdminSubjects {
		admins = append(admins, domain.SubjectID(s))
	}

	registry := dailycodes.NewRegistry(rs.codes, clk, cal, logger.Named("dailycodes"))
	api := &httpapi.Server{
		Members:     members.NewService(rs.members, clk, admins),
		Memberships: memberships.NewService(rs.members, rs.memberships, clk, cal),
		DailyCodes:  registry,
		Access: access.NewService(access.Deps{
			Members:     rs.members,
			Memberships: rs.memberships,
			Codes:       registry,
			Ledger:      rs.log,
			Guard:       guard,
			Clock:       clk,
			Cal:         cal,
			Logger:      logger.Named("access"),
		}),
		Ledger: ledger.NewService(rs.log, rs.members, rs.memberships, clk, cal),
		Idem:   rs.idem,
		Clock:  clk,
		Cal:    cal,
		Logger: logger.Named("http"),
	}

	pruner := maintenance.NewPruner(rs.idem, clk, maintenance.PrunerConfig{
		RetentionHours: cfg.IdempotencyRetentionHours,
		IntervalHours:  cfg.PruneIntervalHours,
	}, logger.Named("pruner"))
	pruner.Start(ctx)
	defer pruner.Stop()

	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware:         authMW,
		CORSAllowedOrigins:     cfg.CORSAllowedOrigins,
		ScanRateLimitPerMinute: cfg.ScanRateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageBackend),
			zap.String("auth", cfg.AuthMode),
			zap.String("timezone", cfg.Timezone.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func openStorage(ctx context.Context, cfg config.AppConfig, issuer string) (repos, func(), error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return repos{}, nil, err
		}
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{})
		if err != nil {
			return repos{}, nil, err
		}
		return repos{
			members:     pgmemberrepo.NewRepo(pool, issuer),
			memberships: pgmembershiprepo.NewRepo(pool),
			codes:       pgdailycoderepo.NewRepo(pool),
			log:         pgaccesslog.NewRepo(pool),
			idem:        pgidempotency.NewStore(pool, issuer),
		}, pool.Close, nil
	case config.StorageSQLite:
		db, err := sqlitedb.Open(ctx, sqlitedb.Config{Path: cfg.SQLitePath})
		if err != nil {
			return repos{}, nil, err
		}
		w := sqlitedb.NewWorker(db)
		rs := repos{
			members:     sqlitestore.NewMemberStore(db, w, issuer),
			memberships: sqlitestore.NewMembershipStore(db, w),
			codes:       sqlitestore.NewDailyCodeStore(db, w),
			log:         sqlitestore.NewAccessLogStore(db, w),
			idem:        sqlitestore.NewIdempotencyStore(db, w),
		}
		cleanup := func() {
			w.Close()
			_ = db.Close()
		}
		return rs, cleanup, nil
	default:
		return repos{
			members:     memmemberrepo.NewRepo(),
			memberships: memmembershiprepo.NewRepo(),
			codes:       memdailycoderepo.NewRepo(),
			log:         memaccesslog.NewRepo(),
			idem:        memidempotency.NewStore(),
		}, func() {}, nil
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
