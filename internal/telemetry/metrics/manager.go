package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests                  *prometheus.CounterVec
	CounterWorkoutsLogged            prometheus.Counter
	CounterFixesSeen                 prometheus.Counter
	CounterFixesAccepted             prometheus.Counter
	CounterSnapshotSaveFailures      prometheus.Counter
	CounterWorkoutSubmissions        prometheus.Counter
	CounterWorkoutSubmissionFailures prometheus.Counter
	CounterHandleRequestPanic        prometheus.Counter
	CounterRateLimitedRequests       prometheus.Counter

	// gauges
	GaugeRequests              prometheus.Gauge
	GaugeLifeSignal            prometheus.Gauge
	GaugeSessionActive         prometheus.Gauge
	GaugeSessionElapsedSeconds prometheus.Gauge
	GaugeSessionDistanceMeters prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("backend", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("backend", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterWorkoutsLogged := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_logged",
		Help:      "The total number of workouts written to the workout log",
	})
	counterFixesSeen := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_fixes_seen",
		Help:      "The total number of GPS fixes received for the active session",
	})
	counterFixesAccepted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_fixes_accepted",
		Help:      "The total number of GPS fixes that passed the noise filters",
	})
	counterSnapshotSaveFailures := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_snapshot_save_failures",
		Help:      "Failed session snapshot writes (non fatal, retried on next change)",
	})
	counterWorkoutSubmissions := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workout_submissions",
		Help:      "Finished sessions submitted to the workout log",
	})
	counterWorkoutSubmissionFailures := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workout_submission_failures",
		Help:      "Failed workout submissions (non fatal, summary still returned)",
	})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimitedRequests := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "current_requests",
		Help:        "Current number of requests served",
		ConstLabels: nil,
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "life_signal",
		Help:        "Shows whether the service is alive",
		ConstLabels: nil,
	})
	gaugeSessionActive := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_active",
		Help:      "1 while a workout session is being tracked, 0 otherwise",
	})
	gaugeSessionElapsedSeconds := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_elapsed_seconds",
		Help:      "Active time of the current workout session in seconds",
	})
	gaugeSessionDistanceMeters := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_distance_meters",
		Help:      "Accumulated distance of the current workout session in meters",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})

	return &Manager{
		CounterRequests:                  counterRequests,
		CounterWorkoutsLogged:            counterWorkoutsLogged,
		CounterFixesSeen:                 counterFixesSeen,
		CounterFixesAccepted:             counterFixesAccepted,
		CounterSnapshotSaveFailures:      counterSnapshotSaveFailures,
		CounterWorkoutSubmissions:        counterWorkoutSubmissions,
		CounterWorkoutSubmissionFailures: counterWorkoutSubmissionFailures,
		CounterHandleRequestPanic:        counterHandleRequestPanic,
		CounterRateLimitedRequests:       counterRateLimitedRequests,
		GaugeRequests:                    gaugeRequests,
		GaugeLifeSignal:                  gaugeLifeSignal,
		GaugeSessionActive:               gaugeSessionActive,
		GaugeSessionElapsedSeconds:       gaugeSessionElapsedSeconds,
		GaugeSessionDistanceMeters:       gaugeSessionDistanceMeters,
		HistogramRequestDuration:         histogramRequestDuration,
	}
}
