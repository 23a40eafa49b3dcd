package tickets

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrInsufficientTickets = errors.New("insufficient tickets")
	ErrInvalidAmount       = errors.New("ticket amount must be positive")
)

// Tickets stores one non-negative ticket counter per user key. Mutations run
// inside a caller-owned transaction so they can be composed with other writes.
type Tickets interface {
	GetBalance(ctx context.Context, userKey string) (int64, error)
	Debit(tx *sql.Tx, userKey string, n int64) (int64, error)
	Credit(tx *sql.Tx, userKey string, n int64) (int64, error)
	MarkFirstVisit(tx *sql.Tx, userKey string) (bool, error)
}
