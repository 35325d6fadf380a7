// Package promhook exports mutcache hook events as Prometheus counters.
package promhook

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/mutcache"
)

// Hooks implements mutcache.Hooks and exports Prometheus counters.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Hooks struct {
	staleDrops   prometheus.Counter
	selfHeals    *prometheus.CounterVec
	setRejects   prometheus.Counter
	revalidates  prometheus.Counter
	tokenErrors  *prometheus.CounterVec
	clearOutages prometheus.Counter
}

var _ mutcache.Hooks = (*Hooks)(nil)

// New constructs a Prometheus hooks adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &Hooks{
		staleDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "stale_writes_dropped_total",
			Help:        "Cache writes dropped because the request token was superseded",
			ConstLabels: constLabels,
		}),
		selfHeals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "self_heals_total",
				Help:        "Entries deleted on read by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		setRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "store_set_rejected_total",
			Help:        "Store rejected writes (backpressure/eviction)",
			ConstLabels: constLabels,
		}),
		revalidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "revalidations_requested_total",
			Help:        "Background revalidations requested",
			ConstLabels: constLabels,
		}),
		tokenErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "token_errors_total",
				Help:        "Token tracker errors by operation",
				ConstLabels: constLabels,
			},
			[]string{"op"},
		),
		clearOutages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "clear_outages_total",
			Help:        "Clear calls where both token bump and delete failed",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(h.staleDrops, h.selfHeals, h.setRejects, h.revalidates, h.tokenErrors, h.clearOutages)
	return h
}

func (h *Hooks) StaleWriteDropped(string, uint64, uint64) { h.staleDrops.Inc() }

func (h *Hooks) SelfHeal(_, reason string) { h.selfHeals.WithLabelValues(reason).Inc() }

func (h *Hooks) StoreSetRejected(string) { h.setRejects.Inc() }

func (h *Hooks) RevalidateRequested(string, int) { h.revalidates.Inc() }

func (h *Hooks) TokenError(op, _ string, _ error) { h.tokenErrors.WithLabelValues(op).Inc() }

func (h *Hooks) ClearOutage(string, error, error) { h.clearOutages.Inc() }
