package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaliz_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personaliz_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Conversation metrics
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaliz_messages_total",
			Help: "Total number of chat messages processed",
		},
		[]string{"route"},
	)

	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaliz_intents_total",
			Help: "Intents selected by the router",
		},
		[]string{"intent"},
	)

	flowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaliz_flow_transitions_total",
			Help: "Pending-flow transitions",
		},
		[]string{"from", "to"},
	)

	// Planner / LLM metrics
	plannerOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaliz_planner_outcomes_total",
			Help: "Planner outcomes (planned, needs_more_info, unavailable, malformed)",
		},
		[]string{"outcome"},
	)

	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaliz_llm_calls_total",
			Help: "Total number of LLM completion calls",
		},
		[]string{"provider", "status"},
	)

	llmCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personaliz_llm_call_duration_seconds",
			Help:    "LLM completion latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	// Dispatch metrics
	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaliz_dispatches_total",
			Help: "Worker dispatches and agent commits",
		},
		[]string{"target", "mode", "status"},
	)

	runningWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "personaliz_running_workers",
			Help: "Number of worker processes currently running",
		},
	)

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			messagesTotal,
			intentsTotal,
			flowTransitionsTotal,
			plannerOutcomesTotal,
			llmCallsTotal,
			llmCallDuration,
			dispatchesTotal,
			runningWorkers,
		)
	})
}

// Handler returns an HTTP handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, status).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordMessage counts a processed message; route is "flow" or "intent".
func RecordMessage(route string) {
	messagesTotal.WithLabelValues(route).Inc()
}

func RecordIntent(intent string) {
	intentsTotal.WithLabelValues(intent).Inc()
}

func RecordFlowTransition(from, to string) {
	flowTransitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordPlannerOutcome(outcome string) {
	plannerOutcomesTotal.WithLabelValues(outcome).Inc()
}

func RecordLLMCall(provider string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	llmCallsTotal.WithLabelValues(provider, status).Inc()
	llmCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordDispatch counts a worker launch or agent commit. mode is "live" or
// "sandbox".
func RecordDispatch(target, mode string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	dispatchesTotal.WithLabelValues(target, mode, status).Inc()
}

func SetRunningWorkers(n int) {
	runningWorkers.Set(float64(n))
}
