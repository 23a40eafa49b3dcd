package payments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrTransactionNotFound  = errors.New("transaction not found")
)

type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRefused   Status = "REFUSED"
	StatusCanceled  Status = "CANCELED"
	StatusTimedOut  Status = "TIMED_OUT"
)

// Terminal reports whether no further provider observation can change s.
// TIMED_OUT is terminal for polling; only reconciliation reopens it.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRefused, StatusCanceled, StatusTimedOut:
		return true
	default:
		return false
	}
}

type Transaction struct {
	ID           string
	UserKey      string
	Quantity     int
	Bonus        int
	Amount       decimal.Decimal
	Currency     string
	CustomerName string
	Status       Status
	Settled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SettledAt    sql.NullTime
}

// Credit is the number of tickets a settled transaction is worth.
func (t Transaction) Credit() int64 {
	return int64(t.Quantity + t.Bonus)
}

// Settlement is what a successful settle statement hands to the ledger.
type Settlement struct {
	UserKey string
	Tickets int64
}

type Transactions interface {
	Insert(tx *sql.Tx, t Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	UpdateStatus(tx *sql.Tx, id string, to Status, from ...Status) (bool, error)
	Settle(tx *sql.Tx, id string, from ...Status) (Settlement, bool, error)
	ListUnsettled(ctx context.Context, createdBefore, createdAfter time.Time, limit int, statuses ...Status) ([]Transaction, error)
}
