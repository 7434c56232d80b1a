package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"tle_zone_judge/internal/api"
	"tle_zone_judge/internal/app/judge"
	"tle_zone_judge/internal/app/service"
	"tle_zone_judge/internal/app/worker"
	"tle_zone_judge/internal/common/security"
	"tle_zone_judge/internal/domain/repository"
	"tle_zone_judge/internal/domain/repository/memory"
	"tle_zone_judge/internal/platform/cache"
	"tle_zone_judge/internal/platform/config"
	"tle_zone_judge/internal/platform/database"
	"tle_zone_judge/internal/platform/engine"
	"tle_zone_judge/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

type repositories struct {
	users       repository.UserRepository
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	blocklist   repository.TokenBlocklist
}

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	log.Info("Configuration loaded", "store", cfg.StoreDriver, "engine", cfg.Engine.BaseURL)

	// 2. Initialize Redis. Memory mode runs without it.
	rdb, err := cache.ConnectRedis(cfg)
	if err != nil {
		if cfg.StoreDriver != "memory" {
			log.Error("Redis unavailable", logger.Err(err))
			os.Exit(1)
		}
		log.Warn("Redis unavailable; using in-process token blocklist and unlocked sweeper", logger.Err(err))
		rdb = nil
	} else {
		defer rdb.Close()
		log.Info("Redis connected", "addr", cfg.RedisAddr)
	}

	// 3. Initialize Repositories
	repos, db, err := openRepositories(cfg, rdb, log)
	if err != nil {
		log.Error("Failed to initialize storage", logger.Err(err))
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	// 4. Initialize the judging pipeline
	policy, err := judge.ParseFailurePolicy(cfg.Judge.FailurePolicy)
	if err != nil {
		log.Error("Invalid judge configuration", logger.Err(err))
		os.Exit(1)
	}
	engineClient := engine.New(cfg.Engine)
	runner := judge.NewRunner(engineClient, judge.PollerConfigFrom(cfg.Judge), log.With("component", "judge"))
	aggregator := judge.Aggregator{Policy: policy}

	// 5. Initialize Services
	tokens := security.NewTokenIssuer(cfg.JWTKey, cfg.JWTExp)
	authService := service.NewAuthService(repos.users, repos.submissions, repos.blocklist, tokens, log)
	problemService := service.NewProblemService(repos.problems, runner, log)
	submissionService := service.NewSubmissionService(repos.submissions, repos.problems, repos.users, runner, aggregator, log)
	userService := service.NewUserService(repos.users, repos.problems)

	// 6. Start the pending sweeper (as a goroutine)
	sweeper := worker.NewPendingSweeper(rdb, repos.submissions, cfg.Sweep, log.With("component", "sweeper"))
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Start(workerCtx)
	}()

	// 7. Initialize Router & HTTP Server
	router := api.NewRouter(log, tokens, cfg.JWTExp, authService, problemService, submissionService, userService)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("Server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not listen", "port", cfg.APIPort, logger.Err(err))
			os.Exit(1)
		}
	}()

	<-stop // Wait for interrupt signal

	log.Info("Shutting down server...")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", logger.Err(err))
	}
	<-sweeperDone

	log.Info("Server and sweeper stopped gracefully")
}

func openRepositories(cfg *config.Config, rdb *redis.Client, log *slog.Logger) (repositories, *sql.DB, error) {
	var repos repositories
	if rdb != nil {
		repos.blocklist = repository.NewRedisTokenBlocklist(rdb)
	} else {
		repos.blocklist = memory.NewTokenBlocklist()
	}

	switch cfg.StoreDriver {
	case "memory":
		repos.users = memory.NewUserRepository()
		repos.problems = memory.NewProblemRepository()
		repos.submissions = memory.NewSubmissionRepository()
		log.Warn("Using in-memory storage; data is lost on restart")
		return repos, nil, nil
	case "postgres":
		db, err := database.Connect(cfg)
		if err != nil {
			return repos, nil, err
		}
		if cfg.DBAutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := database.Migrate(ctx, db); err != nil {
				db.Close()
				return repos, nil, err
			}
		}
		log.Info("Database connected", "host", cfg.DBHost, "name", cfg.DBName)
		repos.users = repository.NewPgUserRepository(db)
		repos.problems = repository.NewPgProblemRepository(db)
		repos.submissions = repository.NewPgSubmissionRepository(db)
		return repos, db, nil
	default:
		return repos, nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver + " (want postgres or memory)")
	}
}
