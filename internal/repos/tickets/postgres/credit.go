package tickets

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/tombola/internal/repos/tickets"
)

// Credit adds n tickets, creating the balance row when needed.
func (r *ticketsRepo) Credit(tx *sql.Tx, userKey string, n int64) (int64, error) {
	if n <= 0 {
		return 0, tickets.ErrInvalidAmount
	}

	var balance int64

	err := tx.QueryRow(`
		INSERT INTO ticket_balances (user_key, tickets)
		VALUES ($1, $2)
		ON CONFLICT (user_key) DO UPDATE
		SET tickets = ticket_balances.tickets + EXCLUDED.tickets,
		    updated_at = now()
		RETURNING tickets
	`, userKey, n).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("credit tickets: %w", err)
	}

	return balance, nil
}
