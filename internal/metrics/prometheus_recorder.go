package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "careradius"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once               sync.Once
	transitions        *prom.CounterVec
	transitionDuration prom.Histogram
	registrations      *prom.CounterVec
	unregistrations    *prom.CounterVec
	reregisterDuration prom.Histogram
	reregisterZones    prom.Gauge
	reconciles         *prom.CounterVec
	notifications      *prom.CounterVec
	zones              prom.Gauge
	openVisits         prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.transitions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Region transitions handled, by kind and outcome",
		}, []string{"kind", "outcome"})
		pr.transitionDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Time spent applying a transition to the visit ledger",
			Buckets:   prom.DefBuckets,
		})
		pr.registrations = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "region_registrations_total",
			Help:      "Region registrations by result",
		}, []string{"result"})
		pr.unregistrations = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "region_unregistrations_total",
			Help:      "Region unregistrations by result",
		}, []string{"result"})
		pr.reregisterDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "reregister_all_duration_seconds",
			Help:      "Duration of full re-registration passes",
			Buckets:   prom.DefBuckets,
		})
		pr.reregisterZones = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "reregister_all_zones",
			Help:      "Zones covered by the last re-registration pass",
		})
		pr.reconciles = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "edit_reconciliations_total",
			Help:      "Open visit checks after zone geometry edits, by result",
		}, []string{"result"})
		pr.notifications = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Transition notifications by result",
		}, []string{"result"})
		pr.zones = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "zones",
			Help:      "Number of persisted zones",
		})
		pr.openVisits = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "open_visits",
			Help:      "Visits without an exit time",
		})
		reg.MustRegister(pr.transitions, pr.transitionDuration, pr.registrations, pr.unregistrations,
			pr.reregisterDuration, pr.reregisterZones, pr.reconciles, pr.notifications, pr.zones, pr.openVisits)
	})
	return pr
}

func (p *PrometheusRecorder) IncTransition(kind, outcome string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveTransitionDuration(d time.Duration) {
	if p == nil || p.transitionDuration == nil {
		return
	}
	p.transitionDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRegistration(result ResultLabel) {
	if p == nil || p.registrations == nil {
		return
	}
	p.registrations.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncUnregistration(result ResultLabel) {
	if p == nil || p.unregistrations == nil {
		return
	}
	p.unregistrations.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveReregisterAll(d time.Duration, zones int) {
	if p == nil || p.reregisterDuration == nil {
		return
	}
	p.reregisterDuration.Observe(d.Seconds())
	p.reregisterZones.Set(float64(zones))
}

func (p *PrometheusRecorder) IncReconcile(result ResultLabel) {
	if p == nil || p.reconciles == nil {
		return
	}
	p.reconciles.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncNotification(result ResultLabel) {
	if p == nil || p.notifications == nil {
		return
	}
	p.notifications.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) SetZones(n int) {
	if p == nil || p.zones == nil {
		return
	}
	p.zones.Set(float64(n))
}

func (p *PrometheusRecorder) SetOpenVisits(n int) {
	if p == nil || p.openVisits == nil {
		return
	}
	p.openVisits.Set(float64(n))
}
