package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/tombola/internal/infra/pgutils"
	"github.com/fastprodman/tombola/internal/repos/claims"
	"github.com/google/uuid"
)

var _ claims.Claims = (*claimsRepo)(nil)

type claimsRepo struct{ db *sql.DB }

func New(db *sql.DB) *claimsRepo {
	return &claimsRepo{db: db}
}

func (r *claimsRepo) Insert(tx *sql.Tx, c claims.Claim) error {
	var imageRef sql.NullString
	if c.ImageRef != "" {
		imageRef = sql.NullString{String: c.ImageRef, Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO prize_claims
			(id, user_key, segment_index, label, kind, image_ref, fulfillment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.UserKey, c.SegmentIndex, c.Label, c.Kind, imageRef, c.Fulfillment, c.CreatedAt)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return claims.ErrDuplicateClaim
		}

		return fmt.Errorf("insert claim: %w", err)
	}

	return nil
}

const claimColumns = `id, user_key, segment_index, label, kind, COALESCE(image_ref, ''), fulfillment, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (claims.Claim, error) {
	var c claims.Claim

	err := row.Scan(&c.ID, &c.UserKey, &c.SegmentIndex, &c.Label, &c.Kind, &c.ImageRef, &c.Fulfillment, &c.CreatedAt)
	if err != nil {
		return claims.Claim{}, err
	}

	return c, nil
}

func (r *claimsRepo) Get(ctx context.Context, id uuid.UUID) (claims.Claim, error) {
	c, err := scanClaim(r.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+`
		FROM prize_claims
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return claims.Claim{}, claims.ErrClaimNotFound
		}

		return claims.Claim{}, fmt.Errorf("get claim: %w", err)
	}

	return c, nil
}

// ListByUser returns the user's most recent claims first.
func (r *claimsRepo) ListByUser(ctx context.Context, userKey string, limit int) ([]claims.Claim, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+claimColumns+`
		FROM prize_claims
		WHERE user_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userKey, limit)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []claims.Claim

	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}

		out = append(out, c)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}

	return out, nil
}
