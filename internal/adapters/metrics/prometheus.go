package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "identity"

// Prometheus implements ports.Metrics on a private registry.
type Prometheus struct {
	registry      *prometheus.Registry
	applications  *prometheus.CounterVec
	autoApprovals *prometheus.CounterVec
	registrations *prometheus.CounterVec
	reverify      *prometheus.CounterVec
	orphans       *prometheus.CounterVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_total",
			Help:      "Seller, promoter and steward applications by outcome.",
		}, []string{"kind", "outcome"}),
		autoApprovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_approvals_total",
			Help:      "Automatic approvals attempted for verified members.",
		}, []string{"kind", "outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_registrations_total",
			Help:      "Member registration attempts by outcome.",
		}, []string{"outcome"}),
		reverify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seller_reverifications_total",
			Help:      "Branded listing checks that refused or reset seller verification.",
		}, []string{"outcome"}),
		orphans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_links_healed_total",
			Help:      "Account profile links cleared because the profile row was gone.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.applications, p.autoApprovals, p.registrations, p.reverify, p.orphans, p.requests, p.latency,
	)
	return p
}

func (p *Prometheus) ApplicationSubmitted(kind, outcome string) {
	p.applications.WithLabelValues(kind, outcome).Inc()
}

func (p *Prometheus) AutoApproval(kind, outcome string) {
	p.autoApprovals.WithLabelValues(kind, outcome).Inc()
}

func (p *Prometheus) Registration(outcome string) {
	p.registrations.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) Reverification(outcome string) {
	p.reverify.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) OrphanHealed(kind string) {
	p.orphans.WithLabelValues(kind).Inc()
}

// ObserveRequest matches the router's request hook.
func (p *Prometheus) ObserveRequest(method, route string, statusCode int, elapsed time.Duration) {
	p.requests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	p.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
