package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mfornace/lilwil/event"
	"github.com/mfornace/lilwil/reporting"
)

const (
	MetricsNamespace = "lilwil"
)

var (
	Debug bool = false

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of operational errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of test runs",
	}, []string{
		"suite",
		"result",
	})

	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "units_total",
		Help:      "Count of executed test units",
	}, []string{
		"suite",
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "events_total",
		Help:      "Count of test events by kind",
	}, []string{
		"suite",
		"kind",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Summed unit duration of the last test run",
	}, []string{
		"suite",
	})
)

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordRun records the folded outcome of one run under the given suite
// name. The run result label is "pass" when no failure or exception was
// counted, "fail" otherwise.
func RecordRun(suite string, sum reporting.Summary) {
	result := "pass"
	if sum.Counts[event.Failure] > 0 || sum.Counts[event.Exception] > 0 {
		result = "fail"
	}
	if Debug {
		log.Debug("metric inc",
			"m", "runs_total",
			"suite", suite,
			"result", result,
			"units", sum.Units)
	}

	runsTotal.WithLabelValues(suite, result).Inc()
	unitsTotal.WithLabelValues(suite).Add(float64(sum.Units))
	for k := event.Kind(0); k < event.NumKinds; k++ {
		if sum.Counts[k] > 0 {
			eventsTotal.WithLabelValues(suite, k.String()).Add(float64(sum.Counts[k]))
		}
	}
	runDuration.WithLabelValues(suite).Set(sum.Elapsed.Seconds())
}

// RecordInterrupted marks a run that was stopped before completion.
func RecordInterrupted(suite string, elapsed time.Duration) {
	runsTotal.WithLabelValues(suite, "interrupted").Inc()
	runDuration.WithLabelValues(suite).Set(elapsed.Seconds())
}
