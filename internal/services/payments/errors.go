package payments

import (
	"errors"

	repo "github.com/fastprodman/tombola/internal/repos/payments"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidUserKey  = errors.New("user key is empty")
	// ErrInitiation means the provider did not open a payment session.
	// Nothing was persisted and no tickets moved.
	ErrInitiation = errors.New("payment initiation failed")
	// ErrTransientPoll is one failed status read. Polling goes on.
	ErrTransientPoll = errors.New("transient payment status read failure")

	ErrTransactionNotFound = repo.ErrTransactionNotFound
)
