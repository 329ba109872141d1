// Package metric manages Prometheus metric registration for the adapter.
// Each adapter instance owns its own registry so multiple adapters in one
// process never collide on metric names.
package metric

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZeMeny/Mars-Sensor/errors"
)

// Registry wraps a dedicated Prometheus registry with name-tracked
// registration.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	registered         map[string]prometheus.Collector
	mu                 sync.Mutex
}

// NewRegistry creates a registry preloaded with Go runtime and process
// collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		prometheusRegistry: reg,
		registered:         make(map[string]prometheus.Collector),
	}
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Register registers a named collector. Registering the same name twice is
// an error.
func (r *Registry) Register(name string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registered[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("collector %q already registered", name),
			"Registry", "Register", "duplicate collector")
	}
	if err := r.prometheusRegistry.Register(c); err != nil {
		return errors.Wrap(err, "Registry", "Register", "prometheus registration")
	}
	r.registered[name] = c
	return nil
}

// Unregister removes a named collector. Returns true if it was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.registered[name]
	if !exists {
		return false
	}
	delete(r.registered, name)
	return r.prometheusRegistry.Unregister(c)
}

// Handler returns an HTTP handler serving the registry's metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}
