//go:build e2e

package e2etests

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

const (
	timeout   = 5 * time.Second
	waitReady = 20 * time.Second

	// Seeded by the migrator when APP_ENV=DEV.
	demoUser  = "demo@zenia.test"
	emptyUser = "empty@zenia.test"
)

var (
	baseURL    = envOr("E2E_BASE_URL", "http://localhost:8080")
	httpClient = &http.Client{Timeout: timeout}
)

func TestE2E_SpinFlow(t *testing.T) {
	waitUntilReady(t)

	t.Run("catalog_lists_segments", func(t *testing.T) {
		var payload struct {
			Segments []struct {
				Label       string  `json:"label"`
				Probability float64 `json:"probability"`
			} `json:"segments"`
			TicketPrice string `json:"ticketPrice"`
		}

		code := getJSON(t, "/catalog", &payload)
		if code != http.StatusOK {
			t.Fatalf("catalog: want 200, got %d", code)
		}

		if len(payload.Segments) == 0 {
			t.Fatalf("catalog has no segments")
		}

		var sum float64
		for _, s := range payload.Segments {
			sum += s.Probability
		}

		if sum < 0.999 || sum > 1.001 {
			t.Fatalf("probabilities sum to %f", sum)
		}
	})

	t.Run("spin_debits_one_ticket", func(t *testing.T) {
		before := getBalance(t, demoUser)
		if before < 1 {
			t.Skipf("%s has no tickets left, reseed to rerun", demoUser)
		}

		var spin struct {
			SegmentIndex int   `json:"segmentIndex"`
			Losing       bool  `json:"losing"`
			Balance      int64 `json:"balance"`
			Claim        *struct {
				ID             string `json:"id"`
				FulfillmentURL string `json:"fulfillmentUrl"`
			} `json:"claim"`
		}

		code := postJSON(t, "/users/"+demoUser+"/spin", &spin)
		if code != http.StatusOK {
			t.Fatalf("spin: want 200, got %d", code)
		}

		if spin.Balance != before-1 {
			t.Fatalf("spin balance: want %d, got %d", before-1, spin.Balance)
		}

		if got := getBalance(t, demoUser); got != before-1 {
			t.Fatalf("balance after spin: want %d, got %d", before-1, got)
		}

		if spin.Losing != (spin.Claim == nil) {
			t.Fatalf("losing=%v but claim present=%v", spin.Losing, spin.Claim != nil)
		}

		if spin.Claim != nil {
			code = getJSON(t, "/claims/"+spin.Claim.ID, &struct{}{})
			if code != http.StatusOK {
				t.Fatalf("claim lookup: want 200, got %d", code)
			}
		}
	})

	t.Run("spin_without_tickets_conflicts", func(t *testing.T) {
		code := postJSON(t, "/users/"+emptyUser+"/spin", &struct{}{})
		if code != http.StatusConflict {
			t.Fatalf("empty spin: want 409, got %d", code)
		}

		if got := getBalance(t, emptyUser); got != 0 {
			t.Fatalf("empty balance changed: %d", got)
		}
	})

	t.Run("first_visit_reported_once", func(t *testing.T) {
		user := fmt.Sprintf("visitor-%d@zenia.test", time.Now().UnixNano())

		var first struct {
			FirstVisit bool `json:"firstVisit"`
		}

		code := postJSON(t, "/users/"+user+"/first-visit", &first)
		if code != http.StatusOK || !first.FirstVisit {
			t.Fatalf("first call: want 200/true, got %d/%v", code, first.FirstVisit)
		}

		code = postJSON(t, "/users/"+user+"/first-visit", &first)
		if code != http.StatusOK || first.FirstVisit {
			t.Fatalf("second call: want 200/false, got %d/%v", code, first.FirstVisit)
		}
	})

	t.Run("invalid_user_key", func(t *testing.T) {
		code := getJSON(t, "/users/not-an-email/balance", &struct{}{})
		if code != http.StatusBadRequest {
			t.Fatalf("bad key: want 400, got %d", code)
		}
	})
}

/* -------------------- helpers -------------------- */

func getBalance(t *testing.T, userKey string) int64 {
	t.Helper()

	var payload struct {
		UserKey string `json:"userKey"`
		Tickets int64  `json:"tickets"`
	}

	code := getJSON(t, "/users/"+userKey+"/balance", &payload)
	if code != http.StatusOK {
		t.Fatalf("balance %s: want 200, got %d", userKey, code)
	}

	if payload.UserKey != userKey {
		t.Fatalf("userKey mismatch: want %s, got %s", userKey, payload.UserKey)
	}

	return payload.Tickets
}

func getJSON(t *testing.T, path string, dst any) int {
	t.Helper()
	return doJSON(t, http.MethodGet, path, dst)
}

func postJSON(t *testing.T, path string, dst any) int {
	t.Helper()
	return doJSON(t, http.MethodPost, path, dst)
}

func doJSON(t *testing.T, method, path string, dst any) int {
	t.Helper()

	req, err := http.NewRequest(method, baseURL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	if resp.StatusCode < 300 {
		err = json.Unmarshal(b, dst)
		if err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, b)
		}
	}

	return resp.StatusCode
}

// waitUntilReady polls /healthz until it answers 200 or waitReady elapses.
func waitUntilReady(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", baseURL, waitReady)
		case <-tick.C:
			resp, err := httpClient.Get(baseURL + "/healthz")
			if err != nil {
				continue
			}

			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
