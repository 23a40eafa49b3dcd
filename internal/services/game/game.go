package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastprodman/tombola/internal/apperr"
	"github.com/fastprodman/tombola/internal/infra/metrics"
	"github.com/fastprodman/tombola/internal/infra/pgutils"
	"github.com/fastprodman/tombola/internal/repos/tickets"
	"github.com/fastprodman/tombola/internal/services/claims"
	"github.com/fastprodman/tombola/internal/services/draw"
	"github.com/fastprodman/tombola/internal/services/ledger"
)

// SpinResult is the authoritative outcome of one spin. Presentation must
// render SegmentIndex, never recompute it.
type SpinResult struct {
	SegmentIndex int
	Segment      draw.Segment
	Balance      int64
	Claim        *claims.Claim
}

type Service struct {
	db      *sql.DB
	catalog draw.Catalog
	engine  *draw.Engine
	ledger  *ledger.Service
	claims  *claims.Recorder
	log     *slog.Logger
}

func New(db *sql.DB, catalog draw.Catalog, engine *draw.Engine, l *ledger.Service, rec *claims.Recorder) *Service {
	return &Service{
		db:      db,
		catalog: catalog,
		engine:  engine,
		ledger:  l,
		claims:  rec,
		log:     slog.Default().With("component", "game"),
	}
}

func (s *Service) Catalog() draw.Catalog {
	return s.catalog
}

// Spin draws a segment and, in one SQL transaction, spends one ticket and
// records the claim for a winning segment. When the balance is empty or any
// write fails nothing is kept.
func (s *Service) Spin(ctx context.Context, userKey string) (SpinResult, error) {
	idx, err := s.engine.Draw(s.catalog)
	if err != nil {
		metrics.Spin("error")
		return SpinResult{}, fmt.Errorf("draw: %w", err)
	}

	res := SpinResult{SegmentIndex: idx, Segment: s.catalog[idx]}

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		balance, err := s.ledger.DebitTx(tx, userKey, 1)
		if err != nil {
			return err
		}

		res.Balance = balance

		if res.Segment.Losing {
			return nil
		}

		c, err := s.claims.RecordClaimTx(tx, userKey, idx, res.Segment)
		if err != nil {
			return err
		}

		res.Claim = &c

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, tickets.ErrInsufficientTickets):
			metrics.Spin("insufficient")
			return SpinResult{}, err
		case errors.Is(err, ledger.ErrEmptyUserKey):
			return SpinResult{}, err
		case errors.Is(err, apperr.ErrPersistence):
			metrics.Spin("error")
			return SpinResult{}, fmt.Errorf("spin: %w", err)
		default:
			metrics.Spin("error")
			return SpinResult{}, apperr.Persistence("spin", err)
		}
	}

	metrics.SegmentDrawn(idx)

	if res.Claim != nil {
		s.claims.Remember(*res.Claim)
		metrics.Spin("win")
		s.log.Info("prize won",
			"user_key", userKey,
			"segment", idx,
			"label", res.Segment.Label,
			"claim_id", res.Claim.ID,
			"balance", res.Balance,
		)
	} else {
		metrics.Spin("lose")
	}

	return res, nil
}
