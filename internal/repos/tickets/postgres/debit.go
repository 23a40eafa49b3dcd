package tickets

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/tombola/internal/repos/tickets"
)

// Debit removes n tickets in a single guarded statement. A missing row and a
// short balance both come back as ErrInsufficientTickets.
func (r *ticketsRepo) Debit(tx *sql.Tx, userKey string, n int64) (int64, error) {
	if n <= 0 {
		return 0, tickets.ErrInvalidAmount
	}

	var balance int64

	err := tx.QueryRow(`
		UPDATE ticket_balances
		SET tickets = tickets - $2,
		    updated_at = now()
		WHERE user_key = $1
		  AND tickets >= $2
		RETURNING tickets
	`, userKey, n).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, tickets.ErrInsufficientTickets
		}

		return 0, fmt.Errorf("debit tickets: %w", err)
	}

	return balance, nil
}
