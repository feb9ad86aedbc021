package logging

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssa-sim/ssa-sim/sim"
	"github.com/ssa-sim/ssa-sim/sim/model"
)

// MetricsLogger exposes a run as Prometheus metrics: applied events by kind,
// waiting times, simulated time, total rate and the population of each
// state. With a non-empty path the registry is written in the text
// exposition format at the end of the run.
//
// It is both an event and a periodic logger; populations are refreshed on
// every tick and at the end.
type MetricsLogger struct {
	path     string
	registry *prometheus.Registry

	Events     *prometheus.CounterVec
	Waiting    prometheus.Histogram
	SimTime    prometheus.Gauge
	Population *prometheus.GaugeVec

	interval float64
	ticks    int
	next     float64
	last     float64
}

var (
	_ sim.EventLogger    = (*MetricsLogger)(nil)
	_ sim.PeriodicLogger = (*MetricsLogger)(nil)
)

// NewMetricsLogger registers the run metrics on a fresh registry.
// totalRate, if non-nil, backs the total-rate gauge.
func NewMetricsLogger(path string, interval float64, totalRate func() float64) (*MetricsLogger, error) {
	if err := checkInterval(interval); err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	l := &MetricsLogger{
		path:     path,
		registry: reg,
		interval: interval,
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ssa_events_total",
			Help: "Total number of applied events, labeled by event kind.",
		}, []string{"kind"}),
		Waiting: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ssa_waiting_time",
			Help:    "Simulated time between consecutive events.",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 12),
		}),
		SimTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ssa_simulation_time",
			Help: "Simulated time of the last applied event.",
		}),
		Population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ssa_population",
			Help: "Number of entities per state.",
		}, []string{"state"}),
	}
	collectors := []prometheus.Collector{l.Events, l.Waiting, l.SimTime, l.Population}
	if totalRate != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ssa_total_rate",
			Help: "Sum of the rates of all live events.",
		}, totalRate))
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return l, nil
}

// Registry returns the registry holding the run metrics.
func (l *MetricsLogger) Registry() *prometheus.Registry { return l.registry }

func (l *MetricsLogger) LogStart(m sim.Model) error {
	l.observePopulation(m)
	return nil
}

func (l *MetricsLogger) LogEvent(_ sim.Model, t float64, e sim.Event) error {
	l.Events.WithLabelValues(sim.EventLabel(e)).Inc()
	l.Waiting.Observe(t - l.last)
	l.SimTime.Set(t)
	l.last = t
	return nil
}

func (l *MetricsLogger) NextLogTime(sim.Model) float64 { return l.next }

func (l *MetricsLogger) LogPeriodic(m sim.Model, _ float64) error {
	l.observePopulation(m)
	l.ticks++
	l.next = float64(l.ticks) * l.interval
	return nil
}

func (l *MetricsLogger) LogEnd(m sim.Model) error {
	l.observePopulation(m)
	if l.path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(l.path, l.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func (l *MetricsLogger) observePopulation(m sim.Model) {
	src, ok := m.(CensusSource)
	if !ok || src.Census() == nil {
		return
	}
	c := src.Census()
	for s, name := range src.StateNames() {
		l.Population.WithLabelValues(name).Set(float64(c.Count(model.State(s))))
	}
}
