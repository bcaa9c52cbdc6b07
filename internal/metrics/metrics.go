package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hoaxbuster"

// Collector 持有独立的 Registry，nil Collector 的所有方法均为空操作
type Collector struct {
	registry *prometheus.Registry

	nodeDuration *prometheus.HistogramVec
	nodeErrors   *prometheus.CounterVec
	checks       *prometheus.CounterVec
	toolFailures *prometheus.CounterVec
	cacheHits    prometheus.Counter
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of each pipeline node.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"node"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_errors_total",
			Help:      "Pipeline node failures.",
		}, []string{"node"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Finished claim checks by status and verdict.",
		}, []string{"status", "verdict"}),
		toolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_failures_total",
			Help:      "Tool calls that produced an error payload.",
		}, []string{"tool"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Claim checks answered from the verdict cache.",
		}),
	}
	reg.MustRegister(
		c.nodeDuration,
		c.nodeErrors,
		c.checks,
		c.toolFailures,
		c.cacheHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveNode 记录节点耗时与失败次数
func (c *Collector) ObserveNode(node string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
	if err != nil {
		c.nodeErrors.WithLabelValues(node).Inc()
	}
}

func (c *Collector) ObserveCheck(status, verdict string) {
	if c == nil {
		return
	}
	c.checks.WithLabelValues(status, verdict).Inc()
}

func (c *Collector) ToolFailure(tool string) {
	if c == nil {
		return
	}
	c.toolFailures.WithLabelValues(tool).Inc()
}

func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.cacheHits.Inc()
}

// Registry 返回底层 Registry，nil Collector 返回 nil
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler 暴露 /metrics
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
