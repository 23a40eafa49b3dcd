package payments

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/tombola/internal/infra/pgutils"
	"github.com/fastprodman/tombola/internal/repos/payments"
)

func (r *transactionsRepo) Insert(tx *sql.Tx, t payments.Transaction) error {
	var customerName sql.NullString
	if t.CustomerName != "" {
		customerName = sql.NullString{String: t.CustomerName, Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO payment_transactions
			(id, user_key, quantity, bonus, amount, currency, customer_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.UserKey, t.Quantity, t.Bonus, t.Amount, t.Currency, customerName, string(t.Status))
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return payments.ErrDuplicateTransaction
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}
