package observability

import (
	"context"
	"errors"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the vitrine collectors.
type Metrics struct {
	Inbound           *prometheus.CounterVec
	ProtocolErrors    prometheus.Counter
	DeltasApplied     *prometheus.CounterVec
	DeltaErrors       *prometheus.CounterVec
	Sweeps            prometheus.Counter
	SweptElements     prometheus.Counter
	RunStateChanges   *prometheus.CounterVec
	Outbound          *prometheus.CounterVec
	OutboundDropped   *prometheus.CounterVec
	ThrottleCoalesced prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitrine_inbound_total",
			Help: "Inbound envelopes received, by type tag.",
		}, []string{"tag"}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitrine_protocol_errors_total",
			Help: "Envelopes the client could not handle.",
		}),
		DeltasApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitrine_deltas_applied_total",
			Help: "Deltas applied to documents, by resulting element kind.",
		}, []string{"kind"}),
		DeltaErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitrine_delta_errors_total",
			Help: "Deltas rejected, by reason.",
		}, []string{"reason"}),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitrine_sweeps_total",
			Help: "Stale element sweeps after a finished report.",
		}),
		SweptElements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitrine_swept_elements_total",
			Help: "Elements blanked by sweeps.",
		}),
		RunStateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitrine_run_state_transitions_total",
			Help: "Report run state transitions.",
		}, []string{"from", "to"}),
		Outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitrine_outbound_total",
			Help: "Outbound envelopes handed to the gateway, by type tag.",
		}, []string{"tag"}),
		OutboundDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitrine_outbound_dropped_total",
			Help: "Outbound envelopes dropped by the connection gate, by type tag.",
		}, []string{"tag"}),
		ThrottleCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitrine_throttle_coalesced_total",
			Help: "Outbound envelopes overwritten by a newer one inside the throttle window.",
		}),
	}
	reg.MustRegister(
		m.Inbound, m.ProtocolErrors, m.DeltasApplied, m.DeltaErrors,
		m.Sweeps, m.SweptElements, m.RunStateChanges,
		m.Outbound, m.OutboundDropped, m.ThrottleCoalesced,
	)
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnInbound: func(_ context.Context, e *domain.InboundEvent) {
			m.Inbound.WithLabelValues(e.Tag).Inc()
		},
		OnDelta: func(_ context.Context, e *domain.DeltaEvent) {
			if e.Err != nil {
				m.DeltaErrors.WithLabelValues(deltaReason(e.Err)).Inc()
				return
			}
			m.DeltasApplied.WithLabelValues(string(e.Kind)).Inc()
		},
		OnSweep: func(_ context.Context, e *domain.SweepEvent) {
			m.Sweeps.Inc()
			m.SweptElements.Add(float64(e.Swept))
		},
		OnRunState: func(_ context.Context, e *domain.RunStateEvent) {
			m.RunStateChanges.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
		OnOutbound: func(_ context.Context, e *domain.OutboundEvent) {
			m.Outbound.WithLabelValues(e.Tag).Inc()
		},
		OnDropped: func(_ context.Context, e *domain.OutboundEvent) {
			m.OutboundDropped.WithLabelValues(e.Tag).Inc()
		},
		OnCoalesced: func(context.Context, *domain.OutboundEvent) {
			m.ThrottleCoalesced.Inc()
		},
		OnFault: func(_ context.Context, e *domain.FaultEvent) {
			if errors.Is(e.Err, domain.ErrProtocol) {
				m.ProtocolErrors.Inc()
			}
		},
	}
}

func deltaReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSchemaMismatch):
		return "schema_mismatch"
	default:
		return "other"
	}
}
