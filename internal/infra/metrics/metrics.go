package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tombola"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	providerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Payment provider call latency by endpoint and outcome.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"endpoint", "outcome"})

	spins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spins_total",
		Help:      "Spin attempts by outcome (win, lose, insufficient, error).",
	}, []string{"outcome"})

	segments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_drawn_total",
		Help:      "Committed draws by segment index.",
	}, []string{"segment"})

	purchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purchases_initiated_total",
		Help:      "Purchase initiations by result.",
	}, []string{"result"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_transitions_total",
		Help:      "Payment transaction status changes by target status.",
	}, []string{"status"})

	settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_settlements_total",
		Help:      "Settled transactions by the path that settled them.",
	}, []string{"path"})

	ticketsCredited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tickets_credited_total",
		Help:      "Tickets credited by settlements, bonus included.",
	})

	activeWatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "payment_watches_active",
		Help:      "Background payment polls currently running.",
	})
)

// Middleware records request count and latency keyed by the chi route
// pattern, so ids in paths do not blow up label cardinality. It must be
// mounted with r.Use on the router so the pattern is known after routing.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func ObserveProvider(endpoint, outcome string, start time.Time) {
	providerDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
}

func Spin(outcome string) { spins.WithLabelValues(outcome).Inc() }

func SegmentDrawn(index int) { segments.WithLabelValues(strconv.Itoa(index)).Inc() }

func PurchaseInitiated(result string) { purchases.WithLabelValues(result).Inc() }

func Transition(status string) { transitions.WithLabelValues(status).Inc() }

func Settled(path string, tickets int64) {
	settlements.WithLabelValues(path).Inc()
	ticketsCredited.Add(float64(tickets))
}

func WatchStarted()  { activeWatches.Inc() }
func WatchFinished() { activeWatches.Dec() }
