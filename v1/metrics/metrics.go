package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// GetCounter tracks the number of Get operations.
	GetCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lru_get_total",
		Help: "Total number of Get operations",
	})
	// PutCounter tracks the number of Put operations.
	PutCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lru_put_total",
		Help: "Total number of Put operations",
	})
	// PopCounter tracks the number of PopMRU and PopLRU operations.
	PopCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lru_pop_total",
		Help: "Total number of Pop operations",
	})
	// PoisonedGauge reports the number of poisoned caches still in use.
	PoisonedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lru_poisoned_caches",
		Help: "Current number of poisoned caches",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers the package level counters on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(GetCounter, PutCounter, PopCounter, PoisonedGauge)
}
