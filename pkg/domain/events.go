package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventInbound   EventType = "inbound"
	EventDelta     EventType = "delta"
	EventSweep     EventType = "sweep"
	EventRunState  EventType = "run_state"
	EventOutbound  EventType = "outbound"
	EventDropped   EventType = "dropped"
	EventCoalesced EventType = "coalesced"
	EventFault     EventType = "fault"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// InboundEvent is emitted for every envelope received, before it is dispatched.
type InboundEvent struct {
	EventBase
	Envelope Inbound `json:"-"`
	Tag      string  `json:"tag"`
}

// DeltaEvent is emitted after a delta was applied (or rejected).
type DeltaEvent struct {
	EventBase
	ElementID int         `json:"element_id"`
	Body      string      `json:"body"` // newElement or addRows
	Kind      ElementKind `json:"kind,omitempty"`
	Err       error       `json:"-"`
}

// SweepEvent is emitted after stale elements were blanked.
type SweepEvent struct {
	EventBase
	ReportID ReportID `json:"report_id"`
	Swept    int      `json:"swept"`
}

// RunStateEvent is emitted whenever the report run state changes.
type RunStateEvent struct {
	EventBase
	From ReportRunState `json:"from"`
	To   ReportRunState `json:"to"`
}

// OutboundEvent is emitted for sent, dropped and coalesced envelopes.
type OutboundEvent struct {
	EventBase
	Tag string `json:"tag"`
	Err error  `json:"-"`
}

// FaultEvent is emitted when the document was replaced by an error element.
type FaultEvent struct {
	EventBase
	Err error `json:"-"`
}

// LifecycleHooks defines callbacks for session observability.
// Hooks run on the session loop and must not block.
type LifecycleHooks struct {
	OnInbound   func(context.Context, *InboundEvent)
	OnDelta     func(context.Context, *DeltaEvent)
	OnSweep     func(context.Context, *SweepEvent)
	OnRunState  func(context.Context, *RunStateEvent)
	OnOutbound  func(context.Context, *OutboundEvent)
	OnDropped   func(context.Context, *OutboundEvent)
	OnCoalesced func(context.Context, *OutboundEvent)
	OnFault     func(context.Context, *FaultEvent)
}

// Merge returns hooks that call h first and then other for every event.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnInbound:   chain(h.OnInbound, other.OnInbound),
		OnDelta:     chain(h.OnDelta, other.OnDelta),
		OnSweep:     chain(h.OnSweep, other.OnSweep),
		OnRunState:  chain(h.OnRunState, other.OnRunState),
		OnOutbound:  chain(h.OnOutbound, other.OnOutbound),
		OnDropped:   chain(h.OnDropped, other.OnDropped),
		OnCoalesced: chain(h.OnCoalesced, other.OnCoalesced),
		OnFault:     chain(h.OnFault, other.OnFault),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
