package tickets

import (
	"context"
	"testing"
	"time"

	"github.com/fastprodman/tombola/internal/infra/pgtestutil"
	"github.com/fastprodman/tombola/internal/repos/tickets"
	"github.com/stretchr/testify/require"
)

func TestTickets_CreditThenDebit_PrefixSums(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	type op struct {
		credit bool
		n      int64
	}

	ops := []op{{true, 3}, {false, 1}, {false, 1}, {true, 13}, {false, 1}, {false, 1}, {false, 1}}

	var expected int64
	for i, o := range ops {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)

		var got int64
		if o.credit {
			got, err = repo.Credit(tx, "p@x.test", o.n)
			expected += o.n
		} else {
			got, err = repo.Debit(tx, "p@x.test", o.n)
			expected -= o.n
		}
		require.NoError(t, err, "op %d", i)
		require.NoError(t, tx.Commit())
		require.Equal(t, expected, got, "op %d", i)
		require.GreaterOrEqual(t, got, int64(0))
	}

	bal, err := repo.GetBalance(ctx, "p@x.test")
	require.NoError(t, err)
	require.Equal(t, int64(12), bal)
}

func TestTickets_Credit_RejectsNonPositive(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	tx, err := db.BeginTx(t.Context(), nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = New(db).Credit(tx, "z@x.test", 0)
	require.ErrorIs(t, err, tickets.ErrInvalidAmount)
}

func TestTickets_GetBalance_UnknownUserIsZero(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	bal, err := New(db).GetBalance(t.Context(), "nobody@x.test")
	require.NoError(t, err)
	require.Zero(t, bal)
}

func TestTickets_MarkFirstVisit(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	pgtestutil.SeedBalance(t, db, "seen@x.test", 2)

	mark := func(key string) bool {
		tx, err := db.BeginTx(t.Context(), nil)
		require.NoError(t, err)
		first, err := repo.MarkFirstVisit(tx, key)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		return first
	}

	require.True(t, mark("new@x.test"))
	require.False(t, mark("new@x.test"))

	require.True(t, mark("seen@x.test"))
	require.False(t, mark("seen@x.test"))
	require.Equal(t, int64(2), pgtestutil.Balance(t, db, "seen@x.test"))
}
