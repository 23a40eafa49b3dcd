package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/fastprodman/tombola/internal/apperr"
	"github.com/fastprodman/tombola/internal/config"
	"github.com/fastprodman/tombola/internal/infra/pgutils"
	"github.com/fastprodman/tombola/internal/repos/claims"
	pgclaims "github.com/fastprodman/tombola/internal/repos/claims/postgres"
	"github.com/fastprodman/tombola/internal/services/draw"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
)

var (
	ErrClaimNotFound = claims.ErrClaimNotFound
	ErrLosingSegment = errors.New("losing segment has no prize to claim")
)

type Claim = claims.Claim

// Recorder writes prize claims once and serves them to the fulfillment flow.
// Claims never change after insert, so reads go through an expiring cache.
type Recorder struct {
	db    *sql.DB
	repo  claims.Claims
	cache *expirable.LRU[uuid.UUID, Claim]
	clock clockwork.Clock
}

func New(db *sql.DB, cfg config.ClaimCacheConfig, clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Recorder{
		db:    db,
		repo:  pgclaims.New(db),
		cache: expirable.NewLRU[uuid.UUID, Claim](cfg.Size, nil, cfg.TTL),
		clock: clock,
	}
}

// RecordClaimTx inserts a claim for the segment the draw engine picked. The
// caller's transaction decides whether it sticks.
func (r *Recorder) RecordClaimTx(tx *sql.Tx, userKey string, index int, seg draw.Segment) (Claim, error) {
	if seg.Losing {
		return Claim{}, ErrLosingSegment
	}

	c := Claim{
		ID:           uuid.New(),
		UserKey:      userKey,
		SegmentIndex: index,
		Label:        seg.Label,
		Kind:         string(seg.Kind),
		ImageRef:     seg.ImageRef,
		Fulfillment:  string(seg.Kind.Fulfillment()),
		CreatedAt:    r.clock.Now().UTC(),
	}

	err := r.repo.Insert(tx, c)
	if err != nil {
		return Claim{}, apperr.Persistence("record claim", err)
	}

	return c, nil
}

// Remember primes the cache once the transaction holding the claim committed.
func (r *Recorder) Remember(c Claim) {
	r.cache.Add(c.ID, c)
}

// RecordClaim records a claim in its own transaction.
func (r *Recorder) RecordClaim(ctx context.Context, userKey string, index int, seg draw.Segment) (Claim, error) {
	var c Claim

	err := pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		c, err = r.RecordClaimTx(tx, userKey, index, seg)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrLosingSegment) || errors.Is(err, apperr.ErrPersistence) {
			return Claim{}, err
		}

		return Claim{}, apperr.Persistence("record claim", err)
	}

	r.Remember(c)

	return c, nil
}

func (r *Recorder) GetClaim(ctx context.Context, id uuid.UUID) (Claim, error) {
	if c, ok := r.cache.Get(id); ok {
		return c, nil
	}

	c, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return Claim{}, err
		}

		return Claim{}, apperr.Persistence("get claim", err)
	}

	r.cache.Add(id, c)

	return c, nil
}

// ListClaims returns a user's most recent claims.
func (r *Recorder) ListClaims(ctx context.Context, userKey string, limit int) ([]Claim, error) {
	out, err := r.repo.ListByUser(ctx, userKey, limit)
	if err != nil {
		return nil, apperr.Persistence("list claims", err)
	}

	return out, nil
}

// FulfillmentPath is where the external flow picks the claim up: physical
// prizes go to delivery, cash prizes to payout.
func FulfillmentPath(c Claim) string {
	base := "/cash"
	if c.Fulfillment == string(draw.FulfillDelivery) {
		base = "/delivery"
	}

	return fmt.Sprintf("%s?id=%s", base, url.QueryEscape(c.ID.String()))
}
