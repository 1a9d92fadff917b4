package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/footer"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL; the built-in catalog is used when empty" flag:"database-url"`
	CatalogFile  string `default:"" usage:"JSON product file used instead of the built-in catalog" flag:"catalog-file"`
	ImageBaseURL string `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	ShopName     string `default:"ShopName" usage:"Name shown in the page header" flag:"shop-name"`
	Session      SessionConfig
	Footer       footer.Anchors
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// SessionConfig controls visitor sessions.
type SessionConfig struct {
	Key             string        `usage:"Cookie signing key; random per process when empty" flag:"session-key"`
	Secure          bool          `default:"false" usage:"Send the session cookie over HTTPS only" flag:"session-secure"`
	TTL             time.Duration `default:"24h" usage:"Idle time after which a session is dropped" flag:"session-ttl"`
	CleanupInterval time.Duration `default:"5m" usage:"Interval between idle session sweeps" flag:"session-cleanup-interval"`
}

// RateLimitConfig controls the per-client limiter on newsletter submissions.
type RateLimitConfig struct {
	Max    int           `default:"5"  usage:"Max subscriptions per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		Args:      args,
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL != "" && c.CatalogFile != "" {
		return errors.New("database URL and catalog file are mutually exclusive")
	}
	if c.Session.TTL <= 0 || c.Session.CleanupInterval <= 0 {
		return errors.New("session TTL and cleanup interval must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the STOREFRONT_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" && c.CatalogFile == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
