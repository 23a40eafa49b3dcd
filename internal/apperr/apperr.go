// Package apperr holds errors shared by more than one service.
package apperr

import (
	"errors"
	"fmt"
)

// ErrPersistence marks a failed read or write against the ledger, payment or
// claim store. Whatever the operation was doing is rolled back.
var ErrPersistence = errors.New("persistence error")

// Persistence wraps err so that errors.Is(err, ErrPersistence) holds while the
// original cause stays inspectable.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
