package payments

import (
	"fmt"
	"strings"

	repo "github.com/fastprodman/tombola/internal/repos/payments"
)

// ParseProviderStatus maps a provider status onto the transaction state
// machine. ok is false for statuses the provider may send that we do not
// know; those are treated as transient.
func ParseProviderStatus(raw string) (repo.Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "PENDING":
		return repo.StatusPending, true
	case "ACCEPTED", "APPROVED":
		return repo.StatusAccepted, true
	case "REFUSED", "FAILED", "DECLINED":
		return repo.StatusRefused, true
	case "CANCELED", "CANCELLED":
		return repo.StatusCanceled, true
	default:
		return "", false
	}
}

type Result string

const (
	ResultSuccess Result = "success"
	ResultPending Result = "pending"
	ResultFailure Result = "failure"
)

// Outcome is what a purchase looks like from the buyer's side.
type Outcome struct {
	TransactionID string
	UserKey       string
	Status        repo.Status
	Result        Result
	Message       string
	Settled       bool
	Tickets       int64
	// Balance is set only for successful outcomes.
	Balance *int64
}

func describe(t repo.Transaction) Outcome {
	out := Outcome{
		TransactionID: t.ID,
		UserKey:       t.UserKey,
		Status:        t.Status,
		Settled:       t.Settled,
		Tickets:       t.Credit(),
	}

	switch {
	case t.Settled:
		out.Result = ResultSuccess
		out.Message = fmt.Sprintf("payment confirmed, %d tickets credited", t.Credit())
	case t.Status == repo.StatusAccepted:
		// Accepted by the provider but not credited yet; the next tick settles it.
		out.Result = ResultPending
		out.Message = fmt.Sprintf("payment confirmed, crediting %d tickets", t.Credit())
	case t.Status == repo.StatusTimedOut:
		out.Result = ResultPending
		out.Message = "payment not yet confirmed"
	case t.Status == repo.StatusRefused:
		out.Result = ResultFailure
		out.Message = "payment refused"
	case t.Status == repo.StatusCanceled:
		out.Result = ResultFailure
		out.Message = "payment canceled"
	default:
		out.Result = ResultPending
		out.Message = "payment pending confirmation"
	}

	return out
}
