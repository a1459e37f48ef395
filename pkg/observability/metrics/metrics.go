package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// Collector bundles the planner's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Projections        *prometheus.CounterVec
	ProjectionDuration *prometheus.HistogramVec
	ProjectionIssues   *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	PlansSaved         prometheus.Counter
	TableVersion       prometheus.Gauge
}

// NewCollector registers the planner metrics against reg, defaulting to the
// global registry when nil. Metrics already registered are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	projections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_projections_total",
		Help: "Projection passes by scenario and outcome (computed, cached, failed).",
	}, []string{"scenario", "outcome"}), "planner_projections_total")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_projection_duration_seconds",
		Help:    "Wall time of a computed projection pass.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"scenario"}), "planner_projection_duration_seconds")
	if err != nil {
		return nil, err
	}
	issues, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_projection_issues_total",
		Help: "Issues reported next to projection results, by severity and kind.",
	}, []string{"severity", "kind"}), "planner_projection_issues_total")
	if err != nil {
		return nil, err
	}
	cache, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_projection_cache_lookups_total",
		Help: "Projection cache lookups by result (hit, miss, error).",
	}, []string{"result"}), "planner_projection_cache_lookups_total")
	if err != nil {
		return nil, err
	}
	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_http_requests_total",
		Help: "Handled HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"}), "planner_http_requests_total")
	if err != nil {
		return nil, err
	}
	httpDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"}), "planner_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}
	plans, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_plans_saved_total",
		Help: "Plans saved.",
	}), "planner_plans_saved_total")
	if err != nil {
		return nil, err
	}
	version, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_table_version",
		Help: "Version of the effective planning tables.",
	}), "planner_table_version")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		Projections:        projections,
		ProjectionDuration: duration,
		ProjectionIssues:   issues,
		CacheLookups:       cache,
		HTTPRequests:       requests,
		HTTPDuration:       httpDuration,
		PlansSaved:         plans,
		TableVersion:       version,
	}, nil
}

// ObserveProjection records one projection outcome. elapsed is only
// observed for computed passes.
func (c *Collector) ObserveProjection(scenario models.Scenario, outcome string, elapsed time.Duration, issues []models.Issue) {
	if c == nil {
		return
	}
	c.Projections.WithLabelValues(string(scenario), outcome).Inc()
	if outcome == "computed" {
		c.ProjectionDuration.WithLabelValues(string(scenario)).Observe(elapsed.Seconds())
	}
	for _, issue := range issues {
		c.ProjectionIssues.WithLabelValues(string(issue.Severity), string(issue.Kind)).Inc()
	}
}

func (c *Collector) ObserveCache(result string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, method, fmt.Sprintf("%d", code)).Inc()
	c.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (c *Collector) PlanSaved() {
	if c == nil {
		return
	}
	c.PlansSaved.Inc()
}

func (c *Collector) SetTableVersion(version int64) {
	if c == nil {
		return
	}
	c.TableVersion.Set(float64(version))
}

// Handler exposes the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
