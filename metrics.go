package rwasim

// metrics.go exposes the simulation's admission activity as Prometheus metrics.
// The counters are cumulative over a whole run, warm-up included; the blocking
// probability itself comes from the simulation's own counters

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by a Simulation.  A nil *Metrics is valid
// and records nothing
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests          prometheus.Counter
	Blocked           prometheus.Counter
	Released          prometheus.Counter
	ActiveConnections prometheus.Gauge
	PathHops          prometheus.Histogram
}

// CreateMetrics registers the simulation metrics against reg, or against the
// default registerer when reg is nil.  Registering twice on one registry reuses
// the collectors already there
func CreateMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rwasim_connections_total",
		Help: "Connection requests processed by the simulation.",
	}))
	if err != nil {
		return nil, err
	}

	blocked, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rwasim_connections_blocked_total",
		Help: "Connection requests for which no path and wavelength were found.",
	}))
	if err != nil {
		return nil, err
	}

	released, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rwasim_connections_released_total",
		Help: "Admitted connections whose holding time ended.",
	}))
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rwasim_active_connections",
		Help: "Connections currently holding a wavelength.",
	}))
	if err != nil {
		return nil, err
	}

	hops, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rwasim_path_hops",
		Help:    "Number of links on the paths of admitted connections.",
		Buckets: prometheus.LinearBuckets(1, 1, 12),
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:          gatherer,
		Requests:          requests,
		Blocked:           blocked,
		Released:          released,
		ActiveConnections: active,
		PathHops:          hops,
	}, nil
}

// Gatherer returns the gatherer the metrics were registered with
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

// observeAdmit records an admitted request routed over path
func (m *Metrics) observeAdmit(path Path) {
	if m == nil {
		return
	}
	m.Requests.Inc()
	m.ActiveConnections.Inc()
	m.PathHops.Observe(float64(path.Hops()))
}

// observeBlock records a request that could not be routed
func (m *Metrics) observeBlock() {
	if m == nil {
		return
	}
	m.Requests.Inc()
	m.Blocked.Inc()
}

// observeRelease records a connection leaving the network
func (m *Metrics) observeRelease() {
	if m == nil {
		return
	}
	m.Released.Inc()
	m.ActiveConnections.Dec()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("counter already registered with incompatible type: %w", err)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("gauge already registered with incompatible type: %w", err)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("histogram already registered with incompatible type: %w", err)
		}
		return nil, err
	}
	return hist, nil
}
