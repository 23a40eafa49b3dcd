package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/fastprodman/tombola/internal/repos/payments"
)

// ListUnsettled returns the oldest unsettled transactions in statuses created
// inside (createdAfter, createdBefore].
func (r *transactionsRepo) ListUnsettled(
	ctx context.Context,
	createdBefore, createdAfter time.Time,
	limit int,
	statuses ...payments.Status,
) ([]payments.Transaction, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	in, inArgs := statusIn(4, statuses)
	args := append([]any{createdBefore, createdAfter, limit}, inArgs...)

	rows, err := r.db.QueryContext(ctx, `
		SELECT`+selectColumns+`
		FROM payment_transactions
		WHERE settled = FALSE
		  AND created_at <= $1
		  AND created_at > $2
		  AND status `+in+`
		ORDER BY created_at
		LIMIT $3
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list unsettled: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []payments.Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		out = append(out, t)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
