package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "events_consumed_total",
		Help:      "Delivered-order events read from the broker, by outcome.",
	}, []string{"outcome"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "job_runs_total",
		Help:      "Background job executions, by job name.",
	}, []string{"job"})

	JobItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "job_items_total",
		Help:      "Items handled by background jobs, by job name.",
	}, []string{"job"})

	JobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "job_failures_total",
		Help:      "Background job runs that returned an error, by job name.",
	}, []string{"job"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
