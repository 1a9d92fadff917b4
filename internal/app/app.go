package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/footer"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// deps are the backends selected by configuration.
type deps struct {
	products   product.Repository
	subscriber footer.Subscriber
	pool       *pgxpool.Pool
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	d, err := openDeps(ctx, lg, cfg)
	if err != nil {
		return err
	}
	if d.pool != nil {
		defer d.pool.Close()
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("catalog", 5*time.Second, health.NonEmptyCheck[product.Product](d.products))
	if d.pool != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return d.pool.Ping(ctx)
		})
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	sessions := session.NewMemoryStore(cfg.Session.TTL)
	sessions.StartCleanup(ctx, cfg.Session.CleanupInterval)

	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})
	limiter.StartCleanup(ctx)

	h, err := handler.NewHandler(
		handler.HandlerConfig{
			ShopName:     cfg.ShopName,
			ImageBaseURL: cfg.ImageBaseURL,
			Anchors:      cfg.Footer,
		},
		d.products,
		sessions,
		handler.NewCookieStore([]byte(cfg.Session.Key), cfg.Session.Secure),
		footer.NewService(d.subscriber, lg.Named("footer")),
		m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}
	if cfg.Session.Key == "" {
		lg.Warn("No session key configured, sessions will not survive a restart")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, limiter.Middleware())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		BaseContext: func(net.Listener) context.Context {
			return zctx.Base(context.Background(), lg)
		},
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// openDeps picks the catalog and subscriber backends. With a database URL both
// live in PostgreSQL; otherwise the catalog comes from a file or the built-in
// list and subscriptions are only logged.
func openDeps(ctx context.Context, lg *zap.Logger, cfg *Config) (*deps, error) {
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Using PostgreSQL catalog")
		return &deps{
			products:   postgres.NewProductRepository(pool),
			subscriber: postgres.NewSubscriberRepository(pool),
			pool:       pool,
		}, nil
	}

	products, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	lg.Info("Using in-memory catalog",
		zap.String("file", cfg.CatalogFile),
		zap.Int("products", len(products)),
	)
	return &deps{
		products:   product.NewStaticRepository(products),
		subscriber: footer.NewLogSubscriber(lg.Named("newsletter")),
	}, nil
}

func loadCatalog(path string) ([]product.Product, error) {
	if path == "" {
		return product.DefaultCatalog(), nil
	}
	products, err := product.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load catalog %q", path)
	}
	return products, nil
}
