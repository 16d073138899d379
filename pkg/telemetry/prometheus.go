package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusSink exposes recorded gauges through a Prometheus registry.
// Gauges are created on first use, keyed by metric name, and carry the
// configured static labels.
type PrometheusSink struct {
	registry *prometheus.Registry
	labels   prometheus.Labels

	mu     sync.Mutex
	gauges map[string]prometheus.Gauge
}

// PrometheusConfig configures a PrometheusSink.
type PrometheusConfig struct {
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// NewPrometheusSink creates a sink backed by its own registry.
func NewPrometheusSink(config *PrometheusConfig) *PrometheusSink {
	if config == nil {
		config = &PrometheusConfig{Namespace: "storycache"}
	}

	labels := prometheus.Labels{}
	for k, v := range config.Labels {
		labels[k] = v
	}
	if _, ok := labels["service"]; !ok {
		labels["service"] = "storycache"
	}

	return &PrometheusSink{
		registry: prometheus.NewRegistry(),
		labels:   labels,
		gauges:   make(map[string]prometheus.Gauge),
	}
}

// Record implements Sink.
func (p *PrometheusSink) Record(name string, value float64) {
	p.gauge(name).Set(value)
}

func (p *PrometheusSink) gauge(name string) prometheus.Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.gauges[name]; ok {
		return g
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        "storycache gauge " + name,
		ConstLabels: p.labels,
	})
	p.registry.MustRegister(g)
	p.gauges[name] = g
	return g
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (p *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so hosts can add their own
// collectors next to the cache gauges.
func (p *PrometheusSink) Registry() *prometheus.Registry {
	return p.registry
}
