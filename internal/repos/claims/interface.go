package claims

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClaimNotFound  = errors.New("claim not found")
	ErrDuplicateClaim = errors.New("duplicate claim")
)

// Claim is the write-once proof that a user won a segment.
type Claim struct {
	ID           uuid.UUID
	UserKey      string
	SegmentIndex int
	Label        string
	Kind         string
	ImageRef     string
	Fulfillment  string
	CreatedAt    time.Time
}

type Claims interface {
	Insert(tx *sql.Tx, c Claim) error
	Get(ctx context.Context, id uuid.UUID) (Claim, error)
	ListByUser(ctx context.Context, userKey string, limit int) ([]Claim, error)
}
