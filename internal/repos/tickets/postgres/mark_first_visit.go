package tickets

import (
	"database/sql"
	"errors"
	"fmt"
)

// MarkFirstVisit flips has_visited once. It reports true only to the caller
// that performed the flip.
func (r *ticketsRepo) MarkFirstVisit(tx *sql.Tx, userKey string) (bool, error) {
	var key string

	err := tx.QueryRow(`
		INSERT INTO ticket_balances (user_key, has_visited)
		VALUES ($1, TRUE)
		ON CONFLICT (user_key) DO UPDATE
		SET has_visited = TRUE,
		    updated_at = now()
		WHERE ticket_balances.has_visited = FALSE
		RETURNING user_key
	`, userKey).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("mark first visit: %w", err)
	}

	return true, nil
}
