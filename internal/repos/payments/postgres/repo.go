package payments

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/fastprodman/tombola/internal/repos/payments"
)

var _ payments.Transactions = (*transactionsRepo)(nil)

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

const selectColumns = `
	id, user_key, quantity, bonus, amount, currency, COALESCE(customer_name, ''),
	status, settled, created_at, updated_at, settled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (payments.Transaction, error) {
	var t payments.Transaction

	err := row.Scan(
		&t.ID, &t.UserKey, &t.Quantity, &t.Bonus, &t.Amount, &t.Currency, &t.CustomerName,
		&t.Status, &t.Settled, &t.CreatedAt, &t.UpdatedAt, &t.SettledAt,
	)
	if err != nil {
		return payments.Transaction{}, err
	}

	return t, nil
}

// statusIn renders "IN ($n, $n+1, ...)" for statuses, numbering placeholders
// from first.
func statusIn(first int, statuses []payments.Status) (string, []any) {
	holders := make([]string, len(statuses))
	args := make([]any, len(statuses))

	for i, s := range statuses {
		holders[i] = fmt.Sprintf("$%d", first+i)
		args[i] = string(s)
	}

	return "IN (" + strings.Join(holders, ", ") + ")", args
}
