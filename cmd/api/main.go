package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/cache"
	"github.com/Dan9191/bureau-scoring/internal/config"
	"github.com/Dan9191/bureau-scoring/internal/handler"
	"github.com/Dan9191/bureau-scoring/internal/integrations/bureau"
	"github.com/Dan9191/bureau-scoring/internal/normalizer"
	"github.com/Dan9191/bureau-scoring/internal/rejection"
	"github.com/Dan9191/bureau-scoring/internal/repository"
	"github.com/Dan9191/bureau-scoring/internal/scoring"
	"github.com/Dan9191/bureau-scoring/internal/service"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load the risk model once; a bad table must stop the service
	coef, err := scoring.LoadCoefficients(cfg.CoefficientsPath)
	if err != nil {
		logger.Fatalf("Failed to load coefficients: %v", err)
	}
	logger.Infof("Loaded risk model %s (digest %s)", coef.Version(), coef.Digest())

	// Score cache store: Postgres when configured, memory otherwise
	var store cache.Store
	if cfg.DBConn != "" {
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		if err := repository.Migrate(db); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
		store = repository.NewRepository(db, []byte(cfg.SubjectHashKey))
	} else {
		logger.Warn("DB_CONN not set, using in-memory score cache")
		store = cache.NewMemoryStore()
	}

	sweeper, err := cache.NewSweeper(store, cfg.CacheSweep, logger)
	if err != nil {
		logger.Fatalf("Failed to start cache sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize layers
	svc := service.NewService(
		bureau.NewClient(cfg, logger),
		normalizer.NewNormalizer(logger),
		rejection.NewEvaluator(cfg.Policy),
		scoring.NewEngine(coef, logger),
		cache.New(store, cfg.ScoreCacheTTL, logger),
		logger,
	)
	h := handler.NewHandler(svc, coef, logger)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.BureauTimeout + 10*time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
