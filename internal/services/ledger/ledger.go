package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/fastprodman/tombola/internal/apperr"
	"github.com/fastprodman/tombola/internal/infra/pgutils"
	"github.com/fastprodman/tombola/internal/repos/tickets"
	pgtickets "github.com/fastprodman/tombola/internal/repos/tickets/postgres"
)

var ErrEmptyUserKey = errors.New("user key is empty")

// Service is the ticket ledger. Every mutation is a single guarded statement,
// so concurrent callers never observe or create a negative balance.
type Service struct {
	db      *sql.DB
	tickets tickets.Tickets
}

func New(db *sql.DB) *Service {
	return &Service{
		db:      db,
		tickets: pgtickets.New(db),
	}
}

// GetBalance returns 0 for users the ledger has never seen.
func (s *Service) GetBalance(ctx context.Context, userKey string) (int64, error) {
	err := checkKey(userKey)
	if err != nil {
		return 0, err
	}

	balance, err := s.tickets.GetBalance(ctx, userKey)
	if err != nil {
		return 0, apperr.Persistence("get balance", err)
	}

	return balance, nil
}

// Debit spends n tickets in its own transaction.
func (s *Service) Debit(ctx context.Context, userKey string, n int64) (int64, error) {
	var balance int64

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		balance, err = s.DebitTx(tx, userKey, n)
		return err
	})
	if err != nil {
		return 0, classify("debit", err)
	}

	return balance, nil
}

// DebitTx spends n tickets inside tx. Callers own commit and rollback.
func (s *Service) DebitTx(tx *sql.Tx, userKey string, n int64) (int64, error) {
	err := checkKey(userKey)
	if err != nil {
		return 0, err
	}

	balance, err := s.tickets.Debit(tx, userKey, n)
	if err != nil {
		return 0, classify("debit", err)
	}

	return balance, nil
}

// Credit adds n tickets in its own transaction.
func (s *Service) Credit(ctx context.Context, userKey string, n int64) (int64, error) {
	var balance int64

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		balance, err = s.CreditTx(tx, userKey, n)
		return err
	})
	if err != nil {
		return 0, classify("credit", err)
	}

	return balance, nil
}

// CreditTx adds n tickets inside tx.
func (s *Service) CreditTx(tx *sql.Tx, userKey string, n int64) (int64, error) {
	err := checkKey(userKey)
	if err != nil {
		return 0, err
	}

	balance, err := s.tickets.Credit(tx, userKey, n)
	if err != nil {
		return 0, classify("credit", err)
	}

	return balance, nil
}

// MarkFirstVisit reports whether this call was the user's first visit.
// Repeated calls return false.
func (s *Service) MarkFirstVisit(ctx context.Context, userKey string) (bool, error) {
	err := checkKey(userKey)
	if err != nil {
		return false, err
	}

	var first bool

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		first, err = s.tickets.MarkFirstVisit(tx, userKey)
		return err
	})
	if err != nil {
		return false, apperr.Persistence("mark first visit", err)
	}

	return first, nil
}

func checkKey(userKey string) error {
	if strings.TrimSpace(userKey) == "" {
		return ErrEmptyUserKey
	}

	return nil
}

// classify passes domain errors through and tags everything else as a
// persistence failure. Already classified errors are left alone.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, tickets.ErrInsufficientTickets),
		errors.Is(err, tickets.ErrInvalidAmount),
		errors.Is(err, ErrEmptyUserKey),
		errors.Is(err, apperr.ErrPersistence):
		return err
	default:
		return apperr.Persistence(op, err)
	}
}
