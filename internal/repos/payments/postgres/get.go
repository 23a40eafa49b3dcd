package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/tombola/internal/repos/payments"
)

func (r *transactionsRepo) Get(ctx context.Context, id string) (payments.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `
		SELECT`+selectColumns+`
		FROM payment_transactions
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payments.Transaction{}, payments.ErrTransactionNotFound
		}

		return payments.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	return t, nil
}
