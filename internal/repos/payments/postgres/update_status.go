package payments

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/tombola/internal/repos/payments"
)

// UpdateStatus moves id to `to` only if its current status is one of from and
// it is not settled. It reports whether a row changed.
func (r *transactionsRepo) UpdateStatus(tx *sql.Tx, id string, to payments.Status, from ...payments.Status) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("update status: no source statuses given")
	}

	in, inArgs := statusIn(3, from)
	args := append([]any{id, string(to)}, inArgs...)

	res, err := tx.Exec(`
		UPDATE payment_transactions
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND settled = FALSE
		  AND status `+in, args...)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected > 0, nil
}
