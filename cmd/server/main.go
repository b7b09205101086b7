package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"joke-server/internal/ai"
	"joke-server/internal/api"
	"joke-server/internal/bot"
	"joke-server/internal/config"
	"joke-server/internal/database"
	"joke-server/internal/jokeapi"
	"joke-server/internal/models"
	"joke-server/internal/queue"
	"joke-server/internal/service"
	"joke-server/internal/store"
	"joke-server/pkg/logger"
	"joke-server/pkg/netutil"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, nil)
	logger.Info("Starting joke server",
		logger.String("app", cfg.App.Name),
		logger.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Server stopped with error", logger.Err(err))
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	var db *database.DB
	if cfg.Database.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, err := database.New(connectCtx, cfg.Database)
		cancel()
		if err != nil {
			var dbErr *database.ConnectionError
			if errors.As(err, &dbErr) {
				logger.Error("Failed to connect to database",
					logger.Err(dbErr.Err),
					logger.String("host", dbErr.Host),
					logger.Int("port", dbErr.Port),
				)
			}
			return err
		}
		defer conn.Close()
		db = conn
		logger.Info("Connected to database")
	}

	jokes, err := loadJokes(ctx, cfg, db)
	if err != nil {
		return err
	}

	generator, err := ai.New(ctx, cfg.AI)
	if err != nil {
		return err
	}
	if generator.Configured() {
		logger.Info("AI joke generation enabled",
			logger.String("provider", cfg.AI.Provider),
			logger.Int("max_tokens", cfg.AI.MaxTokens),
			logger.Float64("temperature", cfg.AI.Temperature),
		)
	} else {
		logger.Warn("AI joke generation is not configured")
	}

	logger.Info("External joke provider",
		logger.String("url", cfg.JokeAPI.URL),
		logger.Bool("safe_mode", !cfg.JokeAPI.AllowUnsafe),
	)

	var opts []service.Option
	var q *queue.NATS
	if cfg.NATS.Enabled {
		q, err = queue.New(cfg.NATS)
		if err != nil {
			return err
		}
		defer q.Close()
		opts = append(opts, service.WithPublisher(q))
		logger.Info("Connected to NATS", logger.String("url", cfg.NATS.URL))
	}

	svc := service.New(jokes, jokeapi.New(cfg.JokeAPI), generator, opts...)
	defer svc.Flush()

	if cfg.App.IsTest() {
		logger.Info("Test environment, not starting listeners")
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	server := api.New(svc, api.WithIndex(clientIndex(cfg.HTTP.ClientDir)))
	g.Go(func() error {
		logServerURLs(cfg.HTTP.Port)
		return server.Run(ctx, cfg.HTTP)
	})

	if q != nil && db != nil {
		events := database.NewEventRepository(db)
		g.Go(func() error {
			return consumeServed(ctx, q, events)
		})
	}

	if cfg.Bot.Enabled() {
		var botOpts []bot.Option
		if db != nil {
			botOpts = append(botOpts,
				bot.WithUsers(database.NewUserRepository(db)),
				bot.WithStats(database.NewEventRepository(db)),
			)
		}
		telegramBot, err := bot.New(cfg.Bot, svc, botOpts...)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := telegramBot.Run(ctx); err != nil {
				logger.Error("Telegram bot unavailable", logger.Err(err))
			}
			return nil
		})
	}

	return g.Wait()
}

func loadJokes(ctx context.Context, cfg *config.Config, db *database.DB) (*store.Collection, error) {
	if cfg.Store.Backend == config.StorePostgres {
		jokes, err := store.LoadFrom(ctx, database.NewJokeRepository(db))
		if err != nil {
			return nil, err
		}
		logger.Info("Jokes loaded from database", logger.Int("count", jokes.Len()))
		return jokes, nil
	}

	jokes := store.Load(cfg.Store.Path)
	logger.Info("Jokes loaded",
		logger.Int("count", jokes.Len()),
		logger.String("path", cfg.Store.Path),
	)
	return jokes, nil
}

func consumeServed(ctx context.Context, q *queue.NATS, events *database.EventRepository) error {
	logger.Info("Starting served event consumer")
	err := q.ConsumeServed(ctx, func(ev *models.ServedEvent) error {
		return events.Record(ctx, ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("served event consumer: %w", err)
	}
	return nil
}

func clientIndex(dir string) []byte {
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, "index.html")
	doc, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Client document not found, serving embedded page",
			logger.String("path", path),
			logger.Err(err),
		)
		return nil
	}
	return doc
}

func logServerURLs(port int) {
	attrs := []any{logger.String("local", fmt.Sprintf("http://localhost:%d", port))}
	if ip := netutil.NetworkIP(); ip != "" {
		attrs = append(attrs, logger.String("network", fmt.Sprintf("http://%s:%d", ip, port)))
	}
	logger.Info("Server running", attrs...)
}
