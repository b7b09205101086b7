package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"joke-server/internal/config"
	"joke-server/internal/database"
	"joke-server/internal/jokeapi"
	"joke-server/internal/models"
	"joke-server/internal/store"
	"joke-server/pkg/logger"
)

func main() {
	file := flag.String("file", "", "backing file to import (defaults to JOKES_PATH)")
	external := flag.Int("external", 0, "number of jokes to fetch from the external provider")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *file, *external); err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, file string, external int) error {
	cfg, err := config.Read()
	if err != nil {
		return err
	}

	logger.Init(cfg.App.LogLevel, nil)

	path := file
	if path == "" {
		path = cfg.Store.Path
	}

	jokes, err := collect(ctx, cfg, path, external)
	if err != nil {
		return fmt.Errorf("failed to collect jokes: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := database.New(connectCtx, cfg.Database)
	cancel()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := database.NewJokeRepository(db)

	var inserted, skipped int
	for i := range jokes {
		ok, err := repo.Create(ctx, &jokes[i])
		if err != nil {
			return fmt.Errorf("import aborted after %d jokes: %w", inserted+skipped, err)
		}
		if ok {
			inserted++
		} else {
			skipped++
		}
	}

	total, err := repo.Count(ctx)
	if err != nil {
		logger.Warn("Failed to count jokes", logger.Err(err))
	}

	fmt.Printf("Imported %d jokes, skipped %d duplicates (%d in database)\n", inserted, skipped, total)
	return nil
}

func collect(ctx context.Context, cfg *config.Config, path string, external int) ([]models.Joke, error) {
	coll, err := store.LoadFile(path)
	if err != nil {
		return nil, err
	}
	jokes := coll.Jokes()
	fmt.Printf("Loaded %d jokes from %s\n", len(jokes), path)

	if external <= 0 {
		return jokes, nil
	}

	fetcher := jokeapi.New(cfg.JokeAPI)
	for i := 0; i < external; i++ {
		joke, err := fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Failed to fetch external joke", logger.Err(err), logger.Int("attempt", i+1))
			continue
		}
		jokes = append(jokes, *joke)
	}
	fmt.Printf("Collected %d jokes in total\n", len(jokes))

	return jokes, nil
}
