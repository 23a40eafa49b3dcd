package payments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/tombola/internal/apperr"
	"github.com/fastprodman/tombola/internal/infra/pgutils"
	repo "github.com/fastprodman/tombola/internal/repos/payments"
	pgpayments "github.com/fastprodman/tombola/internal/repos/payments/postgres"
	"github.com/fastprodman/tombola/internal/services/ledger"
)

// Store is the tracker's view of persistence. Settle must flip the settled
// flag and credit the ledger atomically.
type Store interface {
	Create(ctx context.Context, t repo.Transaction) error
	Get(ctx context.Context, id string) (repo.Transaction, error)
	Transition(ctx context.Context, id string, to repo.Status, from ...repo.Status) (bool, error)
	Settle(ctx context.Context, id string, from ...repo.Status) (balance int64, credited bool, err error)
	Balance(ctx context.Context, userKey string) (int64, error)
	ListUnsettled(ctx context.Context, createdBefore, createdAfter time.Time, limit int, statuses ...repo.Status) ([]repo.Transaction, error)
}

type sqlStore struct {
	db     *sql.DB
	txns   repo.Transactions
	ledger *ledger.Service
}

var _ Store = (*sqlStore)(nil)

// NewSQLStore keeps transactions in Postgres next to the ticket ledger.
func NewSQLStore(db *sql.DB, l *ledger.Service) Store {
	return &sqlStore{
		db:     db,
		txns:   pgpayments.New(db),
		ledger: l,
	}
}

func (s *sqlStore) Create(ctx context.Context, t repo.Transaction) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.txns.Insert(tx, t)
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateTransaction) {
			return err
		}

		return apperr.Persistence("create transaction", err)
	}

	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (repo.Transaction, error) {
	t, err := s.txns.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrTransactionNotFound) {
			return repo.Transaction{}, err
		}

		return repo.Transaction{}, apperr.Persistence("get transaction", err)
	}

	return t, nil
}

func (s *sqlStore) Transition(ctx context.Context, id string, to repo.Status, from ...repo.Status) (bool, error) {
	var changed bool

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		changed, err = s.txns.UpdateStatus(tx, id, to, from...)
		return err
	})
	if err != nil {
		return false, apperr.Persistence("transition transaction", err)
	}

	return changed, nil
}

// Settle runs the settle statement and the ledger credit in one SQL
// transaction. A concurrent settler sees zero rows and credits nothing.
func (s *sqlStore) Settle(ctx context.Context, id string, from ...repo.Status) (int64, bool, error) {
	var (
		balance  int64
		credited bool
	)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		settlement, ok, err := s.txns.Settle(tx, id, from...)
		if err != nil || !ok {
			return err
		}

		balance, err = s.ledger.CreditTx(tx, settlement.UserKey, settlement.Tickets)
		if err != nil {
			return err
		}

		credited = true

		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrPersistence) {
			return 0, false, err
		}

		return 0, false, apperr.Persistence("settle transaction", err)
	}

	return balance, credited, nil
}

func (s *sqlStore) Balance(ctx context.Context, userKey string) (int64, error) {
	return s.ledger.GetBalance(ctx, userKey)
}

func (s *sqlStore) ListUnsettled(
	ctx context.Context,
	createdBefore, createdAfter time.Time,
	limit int,
	statuses ...repo.Status,
) ([]repo.Transaction, error) {
	out, err := s.txns.ListUnsettled(ctx, createdBefore, createdAfter, limit, statuses...)
	if err != nil {
		return nil, apperr.Persistence("list unsettled", err)
	}

	return out, nil
}
