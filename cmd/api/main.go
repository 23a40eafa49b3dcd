package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/tombola/internal/api"
	"github.com/fastprodman/tombola/internal/infra/logging"
	"github.com/fastprodman/tombola/internal/infra/pgutils"
	"github.com/fastprodman/tombola/internal/provider/hosted"
	"github.com/fastprodman/tombola/internal/services/claims"
	"github.com/fastprodman/tombola/internal/services/draw"
	"github.com/fastprodman/tombola/internal/services/game"
	"github.com/fastprodman/tombola/internal/services/ledger"
	"github.com/fastprodman/tombola/internal/services/payments"
	"github.com/fastprodman/tombola/pkg/envconf"
	"github.com/fastprodman/tombola/pkg/shutdownqueue"
	"github.com/jonboulle/clockwork"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.LoadWithDotenv(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.Purchase.Validate()
	if err != nil {
		return fmt.Errorf("purchase config: %w", err)
	}

	if cfg.Provider.BaseURL == "" {
		return errors.New("PAYMENT_BASE_URL is required")
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	// Tasks drain LIFO: the pool registered first closes last.
	shutdownqueue.Add("postgres", func(context.Context) error {
		return db.Close()
	})

	catalog, err := draw.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	clock := clockwork.NewRealClock()

	// --- Services ---
	ledgerSrv := ledger.New(db)
	recorder := claims.New(db, cfg.ClaimCache, clock)
	gameSrv := game.New(db, catalog, draw.NewEngine(), ledgerSrv, recorder)

	tracker := payments.NewTracker(
		payments.NewSQLStore(db, ledgerSrv),
		hosted.New(cfg.Provider),
		payments.TrackerOptions{
			Purchase:    cfg.Purchase,
			InitTimeout: cfg.Provider.RequestTimeout,
			Clock:       clock,
			Logger:      slog.Default(),
		},
	)
	shutdownqueue.Add("purchase watches", tracker.Close)

	reconciler := payments.NewReconciler(tracker, cfg.Reconcile)

	err = reconciler.Start()
	if err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}

	shutdownqueue.Add("reconciler", reconciler.Stop)

	// --- HTTP server ---
	router := api.NewRouter(api.Deps{
		Game:      gameSrv,
		Ledger:    ledgerSrv,
		Purchases: tracker,
		Claims:    recorder,
		Pricing: api.Pricing{
			TicketPrice: cfg.Purchase.TicketPrice,
			Currency:    cfg.Purchase.Currency,
		},
		RateLimit: api.RateLimitConfig{
			PerSecond: cfg.RateLimit.SpinsPerSecond,
			Burst:     cfg.RateLimit.SpinBurst,
			Users:     cfg.RateLimit.TrackedUsers,
			Idle:      cfg.RateLimit.IdleAfter,
		},
		WatchPurchases: cfg.WatchPurchases,
	})

	srv := api.NewServer(cfg.Port, router)

	shutdownqueue.Add("http server", func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started",
		"port", cfg.Port,
		"segments", len(catalog),
		"reconcile_schedule", cfg.Reconcile.Schedule,
	)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
