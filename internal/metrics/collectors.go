package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are the Prometheus series exported by a session.
type Collectors struct {
	Ticks             prometheus.Counter
	Overruns          prometheus.Counter
	DroppedRecords    prometheus.Counter
	StageDuration     *prometheus.HistogramVec
	RefgenCompletions *prometheus.CounterVec
	ActiveController  *prometheus.GaugeVec
	BusErrors         prometheus.Counter
}

// NewCollectors registers every series with reg. Use a fresh
// prometheus.NewRegistry per session in tests.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "wam_ticks_total",
			Help: "Control loop ticks executed",
		}),
		Overruns: f.NewCounter(prometheus.CounterOpts{
			Name: "wam_tick_overruns_total",
			Help: "Ticks whose work exceeded the loop period",
		}),
		DroppedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "wam_log_dropped_records_total",
			Help: "Log records dropped because both buffers were full",
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wam_stage_duration_seconds",
			Help:    "Time spent in each control loop stage",
			Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 2e-3},
		}, []string{"stage"}),
		RefgenCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wam_refgen_completions_total",
			Help: "Trajectories run to completion",
		}, []string{"refgen"}),
		ActiveController: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wam_active_controller",
			Help: "1 for the active controller, 0 otherwise",
		}, []string{"controller"}),
		BusErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "wam_bus_errors_total",
			Help: "Sensor or actuator failures",
		}),
	}
}

// Stages resolves one histogram child per stage name so the loop never
// hashes label values.
func (c *Collectors) Stages(names []string) []prometheus.Observer {
	obs := make([]prometheus.Observer, len(names))
	for i, n := range names {
		obs[i] = c.StageDuration.WithLabelValues(n)
	}
	return obs
}

// SetActive marks name as the active controller among names.
func (c *Collectors) SetActive(names []string, name string) {
	for _, n := range names {
		v := 0.0
		if n == name {
			v = 1
		}
		c.ActiveController.WithLabelValues(n).Set(v)
	}
}
