package planner

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	lockWait            *prometheus.HistogramVec
	solverTimeouts      prometheus.Counter
	urgentRejections    prometheus.Counter
	persistenceFailures *prometheus.CounterVec
)

func newCollectors() (*prometheus.HistogramVec, prometheus.Counter, prometheus.Counter, *prometheus.CounterVec) {
	wait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetroute_routing_lock_wait_seconds",
			Help:    "Time spent waiting for the fleet routing lock",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	timeouts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetroute_solver_timeouts_total",
			Help: "Batch solves that exhausted their search budget",
		},
	)
	rejections := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetroute_urgent_rejections_total",
			Help: "Urgent requests no truck could take",
		},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetroute_persistence_failures_total",
			Help: "Store writes that failed",
		},
		[]string{"operation"},
	)
	return wait, timeouts, rejections, failures
}

func init() {
	lockWait, solverTimeouts, urgentRejections, persistenceFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers planner metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(lockWait, solverTimeouts, urgentRejections, persistenceFailures)
}

// ResetMetrics recreates the collectors, registering them on reg when it is
// not nil. Tests use it to start from zero.
func ResetMetrics(reg prometheus.Registerer) {
	lockWait, solverTimeouts, urgentRejections, persistenceFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
