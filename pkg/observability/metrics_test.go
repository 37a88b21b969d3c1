package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	h := m.Hooks()
	ctx := context.Background()

	h.OnInbound(ctx, &domain.InboundEvent{Tag: domain.TagDelta})
	h.OnInbound(ctx, &domain.InboundEvent{Tag: domain.TagDelta})
	h.OnDelta(ctx, &domain.DeltaEvent{Kind: domain.KindText})
	h.OnDelta(ctx, &domain.DeltaEvent{Err: &domain.NotFoundError{ID: 3}})
	h.OnDelta(ctx, &domain.DeltaEvent{Err: &domain.SchemaMismatchError{ID: 1}})
	h.OnSweep(ctx, &domain.SweepEvent{Swept: 4})
	h.OnRunState(ctx, &domain.RunStateEvent{From: domain.RunNotRunning, To: domain.RunRunning})
	h.OnOutbound(ctx, &domain.OutboundEvent{Tag: domain.TagStopReport})
	h.OnDropped(ctx, &domain.OutboundEvent{Tag: domain.TagStopReport})
	h.OnCoalesced(ctx, &domain.OutboundEvent{})
	h.OnFault(ctx, &domain.FaultEvent{Err: &domain.ProtocolError{Tag: "bogus"}})
	h.OnFault(ctx, &domain.FaultEvent{Err: errors.New("connection error: refused")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Inbound.WithLabelValues(domain.TagDelta)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeltasApplied.WithLabelValues(string(domain.KindText))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeltaErrors.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeltaErrors.WithLabelValues("schema_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sweeps))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SweptElements))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunStateChanges.WithLabelValues("NOT_RUNNING", "RUNNING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outbound.WithLabelValues(domain.TagStopReport)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundDropped.WithLabelValues(domain.TagStopReport)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThrottleCoalesced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProtocolErrors), "only protocol faults count")
}

func TestNewMetrics_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)

	// Vectors without observations are not gathered.
	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 4, n, "plain counters are always exported")

	assert.Panics(t, func() { observability.NewMetrics(reg) }, "registering twice must fail loudly")
}
