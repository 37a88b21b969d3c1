package runtime

import (
	"context"
	"time"

	"github.com/aretw0/vitrine/pkg/domain"
)

func (s *Session) base(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, SessionID: s.id}
}

func (s *Session) emitInbound(ctx context.Context, msg domain.Inbound) {
	if s.hooks.OnInbound == nil {
		return
	}
	s.hooks.OnInbound(ctx, &domain.InboundEvent{EventBase: s.base(domain.EventInbound), Envelope: msg, Tag: msg.Tag()})
}

func (s *Session) emitDelta(ctx context.Context, id int, body string, kind domain.ElementKind, err error) {
	if err != nil {
		s.logger.Error("Delta rejected", "element_id", id, "body", body, "err", err)
	}
	if s.hooks.OnDelta == nil {
		return
	}
	s.hooks.OnDelta(ctx, &domain.DeltaEvent{
		EventBase: s.base(domain.EventDelta),
		ElementID: id,
		Body:      body,
		Kind:      kind,
		Err:       err,
	})
}

func (s *Session) emitSweep(ctx context.Context, swept int) {
	s.logger.Debug("Swept stale elements", "report_id", s.reportID, "swept", swept)
	if s.hooks.OnSweep == nil {
		return
	}
	s.hooks.OnSweep(ctx, &domain.SweepEvent{EventBase: s.base(domain.EventSweep), ReportID: s.reportID, Swept: swept})
}

// emitRunState is wired as the state machine's change callback.
func (s *Session) emitRunState(from, to domain.ReportRunState) {
	s.logger.Debug("Run state changed", "from", from, "to", to)
	if s.hooks.OnRunState == nil {
		return
	}
	s.hooks.OnRunState(context.Background(), &domain.RunStateEvent{EventBase: s.base(domain.EventRunState), From: from, To: to})
}

func (s *Session) emitOutbound(ctx context.Context, msg domain.Outbound, err error) {
	if s.hooks.OnOutbound == nil {
		return
	}
	s.hooks.OnOutbound(ctx, &domain.OutboundEvent{EventBase: s.base(domain.EventOutbound), Tag: msg.Tag(), Err: err})
}

func (s *Session) emitDropped(ctx context.Context, msg domain.Outbound, err error) {
	if s.hooks.OnDropped == nil {
		return
	}
	s.hooks.OnDropped(ctx, &domain.OutboundEvent{EventBase: s.base(domain.EventDropped), Tag: msg.Tag(), Err: err})
}

// emitCoalesced is wired as the throttle's overwrite callback.
func (s *Session) emitCoalesced(dropped domain.Outbound) {
	s.logger.Debug("Coalesced outbound envelope", "tag", dropped.Tag())
	if s.hooks.OnCoalesced == nil {
		return
	}
	s.hooks.OnCoalesced(context.Background(), &domain.OutboundEvent{EventBase: s.base(domain.EventCoalesced), Tag: dropped.Tag()})
}

func (s *Session) emitFault(ctx context.Context, err error) {
	if s.hooks.OnFault == nil {
		return
	}
	s.hooks.OnFault(ctx, &domain.FaultEvent{EventBase: s.base(domain.EventFault), Err: err})
}
