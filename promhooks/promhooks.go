// Package promhooks exports discordb hook events as prometheus counters.
package promhooks

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/discordb"
)

// Hooks counts events. Keys are never used as labels.
type Hooks struct {
	Lookups        *prometheus.CounterVec
	SelfHeals      *prometheus.CounterVec
	CacheErrors    *prometheus.CounterVec
	SetRejections  prometheus.Counter
	Outages        prometheus.Counter
	RemoteFailures *prometheus.CounterVec
}

var _ discordb.Hooks = (*Hooks)(nil)

// New creates the counters under namespace (e.g. "discordb") and registers
// them with reg.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache reads by keyspace and result",
		}, []string{"ns", "result"}),
		SelfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "self_heals_total",
			Help:      "Entries dropped on read by reason",
		}, []string{"reason"}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Provider, generation store and codec failures by operation",
		}, []string{"op"}),
		SetRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "set_rejections_total",
			Help:      "Writes refused by the provider",
		}),
		Outages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidate_outages_total",
			Help:      "Deletes where both the generation bump and the provider delete failed",
		}),
		RemoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "failures_total",
			Help:      "Failed discord calls by operation and status (0 = no response)",
		}, []string{"op", "status"}),
	}
	for _, c := range []prometheus.Collector{
		h.Lookups, h.SelfHeals, h.CacheErrors, h.SetRejections, h.Outages, h.RemoteFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) Lookup(ns string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	h.Lookups.WithLabelValues(ns, result).Inc()
}

func (h *Hooks) SelfHeal(_, reason string)             { h.SelfHeals.WithLabelValues(reason).Inc() }
func (h *Hooks) CacheError(op, _ string, _ error)      { h.CacheErrors.WithLabelValues(op).Inc() }
func (h *Hooks) ProviderSetRejected(string)            { h.SetRejections.Inc() }
func (h *Hooks) InvalidateOutage(string, error, error) { h.Outages.Inc() }

func (h *Hooks) RemoteFailure(op string, status, _ int) {
	h.RemoteFailures.WithLabelValues(op, strconv.Itoa(status)).Inc()
}
