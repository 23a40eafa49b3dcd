package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/fastprodman/tombola/internal/config"
	"github.com/fastprodman/tombola/internal/infra/metrics"
	"github.com/fastprodman/tombola/internal/provider/hosted"
	repo "github.com/fastprodman/tombola/internal/repos/payments"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// Provider is the hosted payment backend.
type Provider interface {
	InitPayment(ctx context.Context, req hosted.InitRequest) (hosted.InitResponse, error)
	PaymentStatus(ctx context.Context, transactionID string) (string, error)
}

type settlePath string

const (
	pathPoll      settlePath = "poll"
	pathReconcile settlePath = "reconcile"
)

// PurchaseRequest asks for Quantity tickets on behalf of UserKey, which is
// also the e-mail the provider bills.
type PurchaseRequest struct {
	UserKey      string
	Quantity     int
	CustomerName string
	ReturnURL    string
}

type Initiation struct {
	TransactionID string
	RedirectURL   string
	Quantity      int
	Bonus         int
	Amount        decimal.Decimal
	Currency      string
}

type TrackerOptions struct {
	Purchase    config.PurchaseConfig
	InitTimeout time.Duration
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

// Tracker drives payment transactions from initiation to a terminal status
// and settles accepted ones exactly once.
type Tracker struct {
	store       Store
	provider    Provider
	purchase    config.PurchaseConfig
	initTimeout time.Duration
	clock       clockwork.Clock
	log         *slog.Logger
	watches     *watches
}

func NewTracker(store Store, provider Provider, opts TrackerOptions) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	t := &Tracker{
		store:       store,
		provider:    provider,
		purchase:    opts.Purchase,
		initTimeout: opts.InitTimeout,
		clock:       opts.Clock,
		log:         opts.Logger.With("component", "payments"),
	}
	t.watches = newWatches(t)

	return t
}

// Initiate opens a payment session with the provider and records it as
// PENDING. The ledger is not touched.
func (t *Tracker) Initiate(ctx context.Context, req PurchaseRequest) (Initiation, error) {
	if strings.TrimSpace(req.UserKey) == "" {
		return Initiation{}, ErrInvalidUserKey
	}

	if req.Quantity < 1 {
		return Initiation{}, ErrInvalidQuantity
	}

	amount := t.purchase.TicketPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
	bonus := Bonus(req.Quantity)

	callCtx := ctx
	if t.initTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.initTimeout)
		defer cancel()
	}

	res, err := t.provider.InitPayment(callCtx, hosted.InitRequest{
		Quantity:      req.Quantity,
		Amount:        amount,
		CustomerEmail: req.UserKey,
		CustomerName:  req.CustomerName,
		ReturnURL:     req.ReturnURL,
		Meta:          map[string]string{"page": "payment"},
	})
	if err != nil {
		metrics.PurchaseInitiated("failed")
		return Initiation{}, fmt.Errorf("%w: %w", ErrInitiation, err)
	}

	if res.TransactionID == "" || res.PaymentURL == "" {
		metrics.PurchaseInitiated("failed")
		return Initiation{}, fmt.Errorf("%w: provider returned no transaction id or redirect", ErrInitiation)
	}

	err = t.store.Create(ctx, repo.Transaction{
		ID:           res.TransactionID,
		UserKey:      req.UserKey,
		Quantity:     req.Quantity,
		Bonus:        bonus,
		Amount:       amount,
		Currency:     t.purchase.Currency,
		CustomerName: req.CustomerName,
		Status:       repo.StatusPending,
	})
	if err != nil {
		metrics.PurchaseInitiated("failed")

		if errors.Is(err, repo.ErrDuplicateTransaction) {
			return Initiation{}, fmt.Errorf("%w: provider reused transaction id %s", ErrInitiation, res.TransactionID)
		}

		return Initiation{}, fmt.Errorf("record transaction: %w", err)
	}

	metrics.PurchaseInitiated("ok")
	metrics.Transition(string(repo.StatusPending))
	t.log.Info("purchase initiated",
		"transaction_id", res.TransactionID,
		"user_key", req.UserKey,
		"quantity", req.Quantity,
		"bonus", bonus,
		"amount", amount.String(),
	)

	return Initiation{
		TransactionID: res.TransactionID,
		RedirectURL:   res.PaymentURL,
		Quantity:      req.Quantity,
		Bonus:         bonus,
		Amount:        amount,
		Currency:      t.purchase.Currency,
	}, nil
}

// Observe performs a single poll tick. Records that are already terminal are
// answered from storage without calling the provider. A failed provider read
// is reported as pending.
func (t *Tracker) Observe(ctx context.Context, transactionID string) (Outcome, error) {
	out, _, err := t.tick(ctx, transactionID, pathPoll)
	if err != nil {
		if errors.Is(err, ErrTransientPoll) {
			t.log.Debug("observe: provider read failed", "transaction_id", transactionID, "error", err)
			return out, nil
		}

		return Outcome{}, err
	}

	return out, nil
}

// Status reports the stored outcome. It never calls the provider.
func (t *Tracker) Status(ctx context.Context, transactionID string) (Outcome, error) {
	rec, err := t.store.Get(ctx, transactionID)
	if err != nil {
		return Outcome{}, err
	}

	return t.withBalance(ctx, describe(rec))
}

// tick reads the record, asks the provider when the record is still open and
// applies the answer. done reports that the record reached a state this path
// cannot move any further.
func (t *Tracker) tick(ctx context.Context, id string, path settlePath) (Outcome, bool, error) {
	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, errors.Is(err, ErrTransactionNotFound), err
	}

	from := openStatuses(path)

	switch {
	case rec.Settled:
		out, err := t.withBalance(ctx, describe(rec))
		return out, true, err
	case rec.Status == repo.StatusAccepted:
		return t.settle(ctx, rec, path)
	case !slices.Contains(from, rec.Status):
		return describe(rec), true, nil
	}

	raw, err := t.provider.PaymentStatus(ctx, id)
	if err != nil {
		if path == pathPoll && t.overdue(rec) {
			return t.timeOut(ctx, rec)
		}

		return describe(rec), false, fmt.Errorf("%w: %w", ErrTransientPoll, err)
	}

	status, known := ParseProviderStatus(raw)
	if !known {
		if path == pathPoll && t.overdue(rec) {
			return t.timeOut(ctx, rec)
		}

		return describe(rec), false, fmt.Errorf("%w: unknown provider status %q", ErrTransientPoll, raw)
	}

	switch status {
	case repo.StatusAccepted:
		return t.settle(ctx, rec, path)
	case repo.StatusRefused, repo.StatusCanceled:
		return t.fail(ctx, rec, status, from)
	default:
		if t.overdue(rec) {
			return t.timeOut(ctx, rec)
		}

		return describe(rec), false, nil
	}
}

// overdue reports an INITIATED or PENDING record whose poll deadline, counted
// from creation, has passed.
func (t *Tracker) overdue(rec repo.Transaction) bool {
	if rec.Status != repo.StatusInitiated && rec.Status != repo.StatusPending {
		return false
	}

	return t.purchase.PollDeadline > 0 && t.clock.Since(rec.CreatedAt) > t.purchase.PollDeadline
}

// timeOut moves an overdue record to TIMED_OUT. Nothing is credited.
func (t *Tracker) timeOut(ctx context.Context, rec repo.Transaction) (Outcome, bool, error) {
	changed, err := t.markTimedOut(ctx, rec.ID)
	if err != nil {
		return describe(rec), false, fmt.Errorf("mark %s %s: %w", rec.ID, repo.StatusTimedOut, err)
	}

	if !changed {
		return t.reread(ctx, rec.ID)
	}

	rec.Status = repo.StatusTimedOut

	return describe(rec), true, nil
}

func (t *Tracker) settle(ctx context.Context, rec repo.Transaction, path settlePath) (Outcome, bool, error) {
	from := append(openStatuses(path), repo.StatusAccepted)

	balance, credited, err := t.store.Settle(ctx, rec.ID, from...)
	if err != nil {
		return describe(rec), false, fmt.Errorf("settle %s: %w", rec.ID, err)
	}

	if credited {
		metrics.Transition(string(repo.StatusAccepted))
		metrics.Settled(string(path), rec.Credit())
		t.log.Info("purchase settled",
			"transaction_id", rec.ID,
			"user_key", rec.UserKey,
			"tickets", rec.Credit(),
			"balance", balance,
			"path", path,
		)

		rec.Status = repo.StatusAccepted
		rec.Settled = true
		out := describe(rec)
		out.Balance = &balance

		return out, true, nil
	}

	return t.reread(ctx, rec.ID)
}

func (t *Tracker) fail(ctx context.Context, rec repo.Transaction, to repo.Status, from []repo.Status) (Outcome, bool, error) {
	changed, err := t.store.Transition(ctx, rec.ID, to, from...)
	if err != nil {
		return describe(rec), false, fmt.Errorf("mark %s %s: %w", rec.ID, to, err)
	}

	if !changed {
		return t.reread(ctx, rec.ID)
	}

	metrics.Transition(string(to))
	t.log.Info("purchase failed", "transaction_id", rec.ID, "status", to)

	rec.Status = to

	return describe(rec), true, nil
}

// reread is used after a conditional write matched nothing: someone else
// moved the record first.
func (t *Tracker) reread(ctx context.Context, id string) (Outcome, bool, error) {
	cur, err := t.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, false, err
	}

	out, err := t.withBalance(ctx, describe(cur))

	return out, cur.Settled || cur.Status.Terminal(), err
}

// expire marks an open record TIMED_OUT once its watch deadline passed.
func (t *Tracker) expire(ctx context.Context, id string) {
	_, err := t.markTimedOut(ctx, id)
	if err != nil {
		t.log.Error("mark transaction timed out", "transaction_id", id, "error", err)
	}
}

func (t *Tracker) markTimedOut(ctx context.Context, id string) (bool, error) {
	changed, err := t.store.Transition(ctx, id, repo.StatusTimedOut, repo.StatusInitiated, repo.StatusPending)
	if err != nil {
		return false, err
	}

	if changed {
		metrics.Transition(string(repo.StatusTimedOut))
		t.log.Warn("purchase not confirmed before deadline", "transaction_id", id)
	}

	return changed, nil
}

func (t *Tracker) withBalance(ctx context.Context, out Outcome) (Outcome, error) {
	if out.Result != ResultSuccess {
		return out, nil
	}

	balance, err := t.store.Balance(ctx, out.UserKey)
	if err != nil {
		return out, err
	}

	out.Balance = &balance

	return out, nil
}

// openStatuses are the statuses a path may still move. Only reconciliation
// reopens TIMED_OUT.
func openStatuses(path settlePath) []repo.Status {
	if path == pathReconcile {
		return []repo.Status{repo.StatusInitiated, repo.StatusPending, repo.StatusTimedOut}
	}

	return []repo.Status{repo.StatusInitiated, repo.StatusPending}
}
