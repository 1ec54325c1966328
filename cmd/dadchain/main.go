package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"dadchain/internal/api"
	"dadchain/internal/bot"
	"dadchain/internal/config"
	"dadchain/internal/database"
	"dadchain/internal/node"
	"dadchain/internal/parser"
	"dadchain/internal/queue"
	"dadchain/internal/ws"
	"dadchain/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		switch {
		case errors.Is(err, config.ErrInvalidOwner):
			fmt.Fprintln(os.Stderr, "Error: LEDGER_OWNER must be a non-zero hex address")
		case errors.Is(err, config.ErrEmptyBotToken):
			fmt.Fprintln(os.Stderr, "Error: BOT_TOKEN environment variable is required when the bot is enabled")
		case errors.Is(err, config.ErrEmptyDBPassword):
			fmt.Fprintln(os.Stderr, "Error: DB_PASSWORD environment variable is required for postgres storage")
		default:
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, nil)
	logger.Info("Starting dadchain",
		logger.String("app", cfg.App.Name),
		logger.String("environment", cfg.App.Environment),
		logger.String("storage", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Node stopped with error", logger.Err(err))
		stop()
		os.Exit(1)
	}

	logger.Info("Node stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	txLog, err := openLog(ctx, cfg, &closers)
	if err != nil {
		return fmt.Errorf("failed to open transaction log: %w", err)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	opts := []node.Option{node.WithBroadcaster(hub)}

	var events bot.Consumer
	if cfg.NATS.Enabled {
		q, err := queue.New(cfg.NATS)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closers = append(closers, q)
		logger.Info("Connected to NATS", logger.String("url", cfg.NATS.URL))

		opts = append(opts, node.WithPublisher(q))
		events = q
	}

	n, err := node.New(ctx, node.Config{
		Owner:            cfg.Ledger.OwnerAddress(),
		MaxContentLength: cfg.Ledger.MaxContentLength,
		Tiers:            cfg.Ledger.BadgeTiers(),
		TokenName:        cfg.Ledger.TokenName,
		TokenSymbol:      cfg.Ledger.TokenSymbol,
		TokenDecimals:    cfg.Ledger.TokenDecimals,
		BadgeBaseURI:     cfg.Ledger.BadgeBaseURI,
	}, txLog, opts...)
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	contracts := n.Contracts()
	logger.Info("Node ready",
		logger.Uint64("height", n.Height()),
		logger.Stringer("core", contracts.Core),
		logger.Stringer("token", contracts.Token),
		logger.Stringer("nft", contracts.NFT),
	)

	if cfg.Bot.Enabled {
		telegramBot, err := bot.New(cfg.Bot, n, events)
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		if err := telegramBot.Start(ctx); err != nil {
			return err
		}
		logger.Info("Telegram bot started")
	}

	if cfg.Parser.Enabled {
		seeder := parser.New(cfg.Parser, n)
		go func() {
			logger.Info("Starting joke seeder...", logger.Stringer("account", cfg.Parser.AccountAddress()))
			if err := seeder.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Seeder error", logger.Err(err))
			}
		}()
	}

	server := api.NewServer(cfg.HTTP, n, hub)
	return server.Run(ctx)
}

func openLog(ctx context.Context, cfg *config.Config, closers *[]io.Closer) (node.Log, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logger.Warn("Using in-memory transaction log, state is lost on exit")
		return database.NewMemoryLog(), nil
	}

	connString := cfg.Database.ConnectionString()
	if err := database.Migrate(ctx, connString, "up"); err != nil {
		return nil, err
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		var dbErr *database.ConnectionError
		if errors.As(err, &dbErr) {
			logger.Error("Failed to connect to database",
				logger.String("host", cfg.Database.Host),
				logger.Int("port", cfg.Database.Port),
			)
		}
		return nil, err
	}
	*closers = append(*closers, closerFunc(func() error {
		db.Close()
		return nil
	}))
	logger.Info("Connected to database")

	return database.NewTransactionRepository(db), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
