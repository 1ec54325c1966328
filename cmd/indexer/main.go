package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"dadchain/internal/config"
	"dadchain/internal/indexer"
	"dadchain/internal/queue"
	"dadchain/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, nil)
	logger.Info("Starting dadchain indexer",
		logger.String("environment", cfg.App.Environment),
	)

	if !cfg.NATS.Enabled {
		logger.Error("The indexer needs the event bus, set NATS_ENABLED=true")
		os.Exit(1)
	}

	db, err := indexer.Open(cfg.Indexer.DatabaseURL)
	if err != nil {
		logger.Error("Failed to initialize index database", logger.Err(err))
		os.Exit(1)
	}

	store, err := indexer.NewStore(db)
	if err != nil {
		logger.Error("Failed to run index migrations", logger.Err(err))
		os.Exit(1)
	}

	q, err := queue.New(cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS", logger.Err(err))
		os.Exit(1)
	}
	defer q.Close()
	logger.Info("Connected to NATS", logger.String("url", cfg.NATS.URL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting event consumer...")
		if err := q.ConsumeEvents(ctx, indexer.ConsumerName, store.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumer error", logger.Err(err))
			stop()
		}
	}()

	router := gin.New()
	router.Use(gin.Recovery())
	indexer.SetupRoutes(router, &indexer.Env{Store: store, MaxLimit: cfg.Indexer.PageLimit})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Indexer.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Indexer listening", logger.Int("port", cfg.Indexer.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Indexer server error", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down indexer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Indexer forced to shutdown", logger.Err(err))
	}

	logger.Info("Indexer stopped")
}
