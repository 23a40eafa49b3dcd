package payments

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fastprodman/tombola/internal/apperr"
	"github.com/fastprodman/tombola/internal/provider/hosted"
	repo "github.com/fastprodman/tombola/internal/repos/payments"
)

type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	txns     map[string]repo.Transaction
	balances map[string]int64
	credits  int
	failNext error
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		now:      now,
		txns:     make(map[string]repo.Transaction),
		balances: make(map[string]int64),
	}
}

func (m *memStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) Create(_ context.Context, t repo.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return apperr.Persistence("create transaction", err)
	}

	if _, ok := m.txns[t.ID]; ok {
		return repo.ErrDuplicateTransaction
	}

	t.CreatedAt = m.now()
	t.UpdatedAt = t.CreatedAt
	m.txns[t.ID] = t

	return nil
}

func (m *memStore) Get(_ context.Context, id string) (repo.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.txns[id]
	if !ok {
		return repo.Transaction{}, repo.ErrTransactionNotFound
	}

	return t, nil
}

func (m *memStore) Transition(_ context.Context, id string, to repo.Status, from ...repo.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return false, apperr.Persistence("transition transaction", err)
	}

	t, ok := m.txns[id]
	if !ok || t.Settled || !slices.Contains(from, t.Status) {
		return false, nil
	}

	t.Status = to
	m.txns[id] = t

	return true, nil
}

func (m *memStore) Settle(_ context.Context, id string, from ...repo.Status) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return 0, false, apperr.Persistence("settle transaction", err)
	}

	t, ok := m.txns[id]
	if !ok || t.Settled || !slices.Contains(from, t.Status) {
		return 0, false, nil
	}

	t.Status = repo.StatusAccepted
	t.Settled = true
	m.txns[id] = t
	m.balances[t.UserKey] += t.Credit()
	m.credits++

	return m.balances[t.UserKey], true, nil
}

func (m *memStore) Balance(_ context.Context, userKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.balances[userKey], nil
}

func (m *memStore) ListUnsettled(_ context.Context, before, after time.Time, limit int, statuses ...repo.Status) ([]repo.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []repo.Transaction
	for _, t := range m.txns {
		if t.Settled || !slices.Contains(statuses, t.Status) {
			continue
		}
		if t.CreatedAt.After(before) || !t.CreatedAt.After(after) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (m *memStore) status(id string) repo.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.txns[id].Status
}

func (m *memStore) creditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.credits
}

func (m *memStore) put(t repo.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	m.txns[t.ID] = t
}

var errProviderDown = errors.New("provider unreachable")

type fakeProvider struct {
	mu sync.Mutex

	initRes  hosted.InitResponse
	initErr  error
	lastInit hosted.InitRequest

	// byID wins over statuses. statuses are served in order, the last one
	// repeats.
	byID        map[string]string
	statuses    []string
	statusErr   error
	statusCalls int
}

func (p *fakeProvider) InitPayment(_ context.Context, req hosted.InitRequest) (hosted.InitResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastInit = req

	return p.initRes, p.initErr
}

func (p *fakeProvider) PaymentStatus(_ context.Context, id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.statusCalls++

	if p.statusErr != nil {
		return "", p.statusErr
	}

	if s, ok := p.byID[id]; ok {
		return s, nil
	}

	if len(p.statuses) == 0 {
		return "PENDING", nil
	}

	s := p.statuses[0]
	if len(p.statuses) > 1 {
		p.statuses = p.statuses[1:]
	}

	return s, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.statusCalls
}

func (p *fakeProvider) setStatuses(s ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.statuses = s
	p.statusErr = nil
}
