package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/fastprodman/tombola/internal/apperr"
	"github.com/fastprodman/tombola/internal/infra/logging"
	"github.com/fastprodman/tombola/internal/repos/tickets"
	"github.com/fastprodman/tombola/internal/services/claims"
	"github.com/fastprodman/tombola/internal/services/draw"
	"github.com/fastprodman/tombola/internal/services/game"
	"github.com/fastprodman/tombola/internal/services/ledger"
	"github.com/fastprodman/tombola/internal/services/payments"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Game interface {
	Spin(ctx context.Context, userKey string) (game.SpinResult, error)
	Catalog() draw.Catalog
}

type Ledger interface {
	GetBalance(ctx context.Context, userKey string) (int64, error)
	MarkFirstVisit(ctx context.Context, userKey string) (bool, error)
}

type Purchases interface {
	Initiate(ctx context.Context, req payments.PurchaseRequest) (payments.Initiation, error)
	Observe(ctx context.Context, transactionID string) (payments.Outcome, error)
	Status(ctx context.Context, transactionID string) (payments.Outcome, error)
	Watch(transactionID string) *payments.WatchHandle
}

type Claims interface {
	GetClaim(ctx context.Context, id uuid.UUID) (claims.Claim, error)
	ListClaims(ctx context.Context, userKey string, limit int) ([]claims.Claim, error)
}

// Pricing is what the catalog endpoint advertises for one ticket.
type Pricing struct {
	TicketPrice decimal.Decimal
	Currency    string
}

// HandlerProvider exposes the tombola services over HTTP.
type HandlerProvider struct {
	game      Game
	ledger    Ledger
	purchases Purchases
	claims    Claims
	pricing   Pricing
	validate  *validator.Validate
	// watchPurchases starts a server-side poll for every new purchase.
	watchPurchases bool
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tickets.ErrInsufficientTickets):
		writeError(w, http.StatusConflict, "insufficient tickets")
	case errors.Is(err, payments.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "quantity must be at least 1")
	case errors.Is(err, payments.ErrInvalidUserKey), errors.Is(err, ledger.ErrEmptyUserKey):
		writeError(w, http.StatusBadRequest, "invalid user key")
	case errors.Is(err, payments.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, claims.ErrClaimNotFound):
		writeError(w, http.StatusNotFound, "claim not found")
	case errors.Is(err, payments.ErrInitiation):
		logging.FromContext(r.Context()).Warn("payment initiation failed", "error", err)
		writeError(w, http.StatusBadGateway, "payment could not be initiated")
	case errors.Is(err, apperr.ErrPersistence):
		logging.FromContext(r.Context()).Error("storage failure", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, nothing was changed")
	default:
		logging.FromContext(r.Context()).Error("unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func chiParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)

	v, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}

	return v
}

// userKeyFromPath reads {userKey}, which is the user's e-mail.
func (h *HandlerProvider) userKeyFromPath(r *http.Request) (string, error) {
	key := strings.ToLower(strings.TrimSpace(chiParam(r, "userKey")))

	err := h.validate.Var(key, "required,email,max=254")
	if err != nil {
		return "", fmt.Errorf("invalid user key: %w", err)
	}

	return key, nil
}

// decodeBody reads a JSON body capped at 1MB and rejects unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	//nolint:errcheck
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}

		return errors.New("invalid JSON")
	}

	return nil
}
