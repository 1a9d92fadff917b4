package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/footer"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// store is the subset of the subscriber repository the ingester writes to.
type store interface {
	Exists(ctx context.Context, email string) (bool, error)
	CopyNew(ctx context.Context, emails []string) (int64, error)
}

type stats struct {
	Read        uint64
	Lines       uint64
	Inserted    uint64
	Duplicates  uint64
	Invalid     uint64
	ExactChecks uint64
}

// ingester deduplicates addresses against a bloom filter of everything
// already stored or queued. A negative answer is definite and the address
// goes straight into the COPY batch; a positive one is confirmed against the
// pending batch and then the database.
type ingester struct {
	store     store
	filter    *bloom.BloomFilter
	batchSize int

	batch   []string
	pending map[string]struct{}
	read    atomic.Uint64
	stats   stats
}

func newIngester(s store, capacity uint, batchSize int) *ingester {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &ingester{
		store:     s,
		filter:    bloom.NewWithEstimates(capacity, bloomFPR),
		batchSize: batchSize,
		pending:   make(map[string]struct{}, batchSize),
	}
}

// seed marks an already stored address.
func (g *ingester) seed(email string) {
	g.filter.AddString(footer.NormalizeEmail(email))
}

// run streams files concurrently into a single deduplicating consumer.
func (g *ingester) run(ctx context.Context, files []string) (stats, error) {
	lines := make(chan string, 1024)

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	producers, pctx := errgroup.WithContext(readCtx)
	for _, f := range files {
		producers.Go(func() error {
			return streamGzFile(pctx, f, func(line string) bool {
				g.read.Add(1)
				select {
				case lines <- line:
					return true
				case <-pctx.Done():
					return false
				}
			})
		})
	}

	done := make(chan error, 1)
	go func() {
		err := producers.Wait()
		close(lines)
		done <- err
	}()

	var consumeErr error
	for line := range lines {
		if consumeErr != nil {
			continue
		}
		if consumeErr = g.add(ctx, line); consumeErr != nil {
			stopReading()
		}
	}
	readErr := <-done
	g.stats.Read = g.read.Load()
	if consumeErr != nil {
		return g.stats, consumeErr
	}
	if readErr != nil {
		return g.stats, errors.Wrap(readErr, "read input")
	}
	if err := g.flush(ctx); err != nil {
		return g.stats, err
	}
	return g.stats, nil
}

func (g *ingester) add(ctx context.Context, line string) error {
	g.stats.Lines++
	if g.stats.Lines%progressEvery == 0 {
		slog.Info("ingest progress",
			slog.Uint64("lines", g.stats.Lines),
			slog.Uint64("inserted", g.stats.Inserted),
		)
	}

	email := footer.NormalizeEmail(line)
	if !valid(email) {
		g.stats.Invalid++
		return nil
	}

	if g.filter.TestString(email) {
		if _, ok := g.pending[email]; ok {
			g.stats.Duplicates++
			return nil
		}
		g.stats.ExactChecks++
		exists, err := g.store.Exists(ctx, email)
		if err != nil {
			return errors.Wrapf(err, "check %s", email)
		}
		if exists {
			g.stats.Duplicates++
			return nil
		}
	}

	g.filter.AddString(email)
	g.batch = append(g.batch, email)
	g.pending[email] = struct{}{}
	if len(g.batch) >= g.batchSize {
		return g.flush(ctx)
	}
	return nil
}

func (g *ingester) flush(ctx context.Context) error {
	if len(g.batch) == 0 {
		return nil
	}
	n, err := g.store.CopyNew(ctx, g.batch)
	if err != nil {
		return errors.Wrapf(err, "copy batch of %d", len(g.batch))
	}
	g.stats.Inserted += uint64(n)
	g.batch = g.batch[:0]
	clear(g.pending)
	return nil
}

func valid(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

// streamGzFile opens a gzip-compressed file and calls fn for each line until
// fn returns false.
func streamGzFile(ctx context.Context, path string, fn func(line string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(scanner.Text()) {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
