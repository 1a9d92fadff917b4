package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		batchSize   int
		capacity    uint
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz newsletter exports, one address per line")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 10_000, "addresses per COPY batch")
	flag.UintVar(&capacity, "capacity", 10_000_000, "expected number of distinct addresses, sizes the bloom filter")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, batchSize, capacity); err != nil {
		slog.Error("subscriber ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("subscriber ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, batchSize int, capacity uint) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list input files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewSubscriberRepository(pool)
	ing := newIngester(repo, capacity, batchSize)

	slog.Info("loading existing subscribers")
	var existing int
	if err := repo.Each(ctx, func(email string) {
		ing.seed(email)
		existing++
	}); err != nil {
		return errors.Wrap(err, "load existing subscribers")
	}
	slog.Info("existing subscribers loaded", slog.Int("count", existing))

	stats, err := ing.run(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("ingest stats",
		slog.Uint64("read", stats.Read),
		slog.Uint64("lines", stats.Lines),
		slog.Uint64("inserted", stats.Inserted),
		slog.Uint64("duplicates", stats.Duplicates),
		slog.Uint64("invalid", stats.Invalid),
		slog.Uint64("exact_checks", stats.ExactChecks),
	)
	return nil
}
