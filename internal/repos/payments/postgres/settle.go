package payments

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/tombola/internal/repos/payments"
)

// Settle flips settled false->true and forces status ACCEPTED, guarded by the
// current status being in from. Only the caller that gets ok=true may credit
// the ledger, and it must do so in the same tx.
func (r *transactionsRepo) Settle(tx *sql.Tx, id string, from ...payments.Status) (payments.Settlement, bool, error) {
	if len(from) == 0 {
		return payments.Settlement{}, false, fmt.Errorf("settle: no source statuses given")
	}

	in, inArgs := statusIn(2, from)
	args := append([]any{id}, inArgs...)

	var s payments.Settlement

	err := tx.QueryRow(`
		UPDATE payment_transactions
		SET status = 'ACCEPTED',
		    settled = TRUE,
		    settled_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND settled = FALSE
		  AND status `+in+`
		RETURNING user_key, quantity + bonus
	`, args...).Scan(&s.UserKey, &s.Tickets)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payments.Settlement{}, false, nil
		}

		return payments.Settlement{}, false, fmt.Errorf("settle: %w", err)
	}

	return s, true, nil
}
