package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/purchases/{transactionId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/purchases/{transactionId}", "418"))

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/purchases/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/purchases/{transactionId}", "418"))
	assert.InDelta(t, 3, after-before, 0)
}

func TestSettled_CountsTickets(t *testing.T) {
	before := testutil.ToFloat64(ticketsCredited)
	Settled("reconcile", 13)
	assert.InDelta(t, 13, testutil.ToFloat64(ticketsCredited)-before, 0)
}

func TestWatchGauge(t *testing.T) {
	before := testutil.ToFloat64(activeWatches)
	WatchStarted()
	assert.InDelta(t, before+1, testutil.ToFloat64(activeWatches), 0)
	WatchFinished()
	assert.InDelta(t, before, testutil.ToFloat64(activeWatches), 0)
}
