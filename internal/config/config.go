package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// ProviderConfig points at the hosted payment backend.
type ProviderConfig struct {
	BaseURL        string        `env:"PAYMENT_BASE_URL"`
	APIKey         string        `env:"PAYMENT_API_KEY" envDefault:""`
	RequestTimeout time.Duration `env:"PAYMENT_REQUEST_TIMEOUT" envDefault:"60s"`
	Source         string        `env:"PAYMENT_META_SOURCE" envDefault:"zenia-tombola"`
}

// PurchaseConfig drives ticket purchases and their status polling.
type PurchaseConfig struct {
	TicketPrice  decimal.Decimal `env:"TICKET_PRICE" envDefault:"500"`
	Currency     string          `env:"TICKET_CURRENCY" envDefault:"XOF"`
	PollInterval time.Duration   `env:"PURCHASE_POLL_INTERVAL" envDefault:"3s"`
	PollDeadline time.Duration   `env:"PURCHASE_POLL_DEADLINE" envDefault:"2m"`
}

// ReconcileConfig schedules the sweep that settles late provider answers.
type ReconcileConfig struct {
	Schedule    string        `env:"RECONCILE_SCHEDULE" envDefault:"@every 1m"`
	GracePeriod time.Duration `env:"RECONCILE_GRACE_PERIOD" envDefault:"2m"`
	BatchSize   int           `env:"RECONCILE_BATCH_SIZE" envDefault:"50"`
	MaxAge      time.Duration `env:"RECONCILE_MAX_AGE" envDefault:"72h"`
}

func (p PurchaseConfig) Validate() error {
	if !p.TicketPrice.IsPositive() {
		return fmt.Errorf("ticket price must be positive, got %s", p.TicketPrice)
	}

	if p.PollInterval <= 0 || p.PollDeadline < p.PollInterval {
		return fmt.Errorf("poll interval %s must be positive and not exceed deadline %s", p.PollInterval, p.PollDeadline)
	}

	return nil
}

// ClaimCacheConfig sizes the read-through cache in front of prize claims.
type ClaimCacheConfig struct {
	Size int           `env:"CLAIM_CACHE_SIZE" envDefault:"1024"`
	TTL  time.Duration `env:"CLAIM_CACHE_TTL" envDefault:"10m"`
}
