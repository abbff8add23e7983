package metrics

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildInfo reports process version/runtime metadata.
var buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "build_info",
	Help:      "Build and runtime information",
}, []string{"version", "go_version"})

var startTime = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "start_time_seconds",
	Help:      "Unix timestamp when the process started",
})

// MetricsProvider is implemented by components that can report their own
// current gauges on demand (store sizes, queue depth, and similar).
type MetricsProvider interface {
	CollectMetrics(ctx context.Context) error
}

// Collector periodically polls registered MetricsProviders.
type Collector struct {
	mu        sync.RWMutex
	providers map[string]MetricsProvider
	interval  time.Duration
	stopCh    chan struct{}
	running   bool
}

// NewCollector creates a new metrics collector.
func NewCollector(interval time.Duration) *Collector {
	return &Collector{
		providers: make(map[string]MetricsProvider),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Register adds a metrics provider to the collector.
func (c *Collector) Register(name string, provider MetricsProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = provider
}

// Unregister removes a metrics provider from the collector.
func (c *Collector) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.providers, name)
}

// Start begins periodic metric collection.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	startTime.Set(float64(time.Now().Unix()))
	buildInfo.WithLabelValues("0.1.0", runtime.Version()).Set(1)

	c.collect(ctx)
	go c.run(ctx)

	return nil
}

// Stop halts periodic metric collection.
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	close(c.stopCh)
	c.running = false
	return nil
}

func (c *Collector) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

func (c *Collector) collect(ctx context.Context) {
	c.mu.RLock()
	providers := make(map[string]MetricsProvider, len(c.providers))
	for k, v := range c.providers {
		providers[k] = v
	}
	c.mu.RUnlock()

	for name, provider := range providers {
		if err := provider.CollectMetrics(ctx); err != nil {
			ComponentStatus.WithLabelValues(name).Set(0)
		} else {
			ComponentStatus.WithLabelValues(name).Set(1)
		}
	}
}

// Handler returns the default Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
