package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/tombola/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CatalogFile     string        `env:"CATALOG_FILE" envDefault:""`
	WatchPurchases  bool          `env:"PURCHASE_WATCH" envDefault:"true"`

	Postgres   config.PostgresConfig
	Provider   config.ProviderConfig
	Purchase   config.PurchaseConfig
	Reconcile  config.ReconcileConfig
	ClaimCache config.ClaimCacheConfig
	RateLimit  rateLimitConfig
}

type rateLimitConfig struct {
	SpinsPerSecond float64       `env:"SPIN_RATE_PER_SECOND" envDefault:"2"`
	SpinBurst      int           `env:"SPIN_RATE_BURST" envDefault:"5"`
	TrackedUsers   int           `env:"SPIN_RATE_USERS" envDefault:"10000"`
	IdleAfter      time.Duration `env:"SPIN_RATE_IDLE" envDefault:"10m"`
}
