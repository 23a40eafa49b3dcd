package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetBalance returns 0 for a user that has no row yet.
func (r *ticketsRepo) GetBalance(ctx context.Context, userKey string) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx, `
		SELECT tickets
		FROM ticket_balances
		WHERE user_key = $1
	`, userKey).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}
