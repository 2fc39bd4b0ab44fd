// Package metrics exposes Prometheus collectors for a hashserver instance.
//
// Each server owns its collectors. By default they are registered on a fresh
// prometheus.Registry so several servers can run in one test binary without
// duplicate registration errors.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "hashserver"

// Response kinds used as the "kind" label.
const (
	KindContent        = "content"
	KindRedirect       = "redirect"
	KindCallback       = "callback"
	KindNotFound       = "not_found"
	KindUnauthorized   = "unauthorized"
	KindBadRequest     = "bad_request"
	KindNotImplemented = "not_implemented"
	KindError          = "error"
)

// Metrics holds the collectors of one server.
type Metrics struct {
	Responses       *prometheus.CounterVec
	ResponseSeconds *prometheus.HistogramVec
	Connections     prometheus.Counter
	ActiveWorkers   prometheus.Gauge
	KilledWorkers   prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a private registry.
//
// Registerers may be shared: when reg already holds a hashserver collector,
// the existing one is reused and the servers report into the same series.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	responses, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "responses_total",
		Help:      "Responses written, by page kind and status code",
	}, []string{"kind", "status"}))
	if err != nil {
		return nil, err
	}

	seconds, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "response_duration_seconds",
		Help:      "Time spent dispatching a request, by page kind",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	connections, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "connections_total",
		Help:      "Connections accepted",
	}))
	if err != nil {
		return nil, err
	}

	active, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "active_workers",
		Help:      "Workers currently handling a request",
	}))
	if err != nil {
		return nil, err
	}

	killed, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "killed_workers_total",
		Help:      "Workers forcibly terminated by Stop",
	}))
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		Responses:       responses,
		ResponseSeconds: seconds,
		Connections:     connections,
		ActiveWorkers:   active,
		KilledWorkers:   killed,
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor if there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("registering metrics: %w", err)
}

// ObserveResponse records one response.
func (m *Metrics) ObserveResponse(kind string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	m.ResponseSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Gatherer returns the registry the collectors were registered on, or nil
// when that registerer cannot gather.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}
