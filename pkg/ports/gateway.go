package ports

import (
	"context"

	"github.com/aretw0/vitrine/pkg/domain"
)

// Gateway owns the transport of one session.
// It is the only component that changes the ConnectionState.
type Gateway interface {
	// Run connects and delivers envelopes to l until ctx is cancelled or the
	// gateway gives up. Callbacks are invoked from a single goroutine, in order.
	Run(ctx context.Context, l GatewayListener) error

	// Send delivers an outbound envelope. A disconnected gateway drops it
	// and returns an error wrapping domain.ErrNotConnected.
	Send(ctx context.Context, msg domain.Outbound) error

	// State returns the current connection state.
	State() domain.ConnectionState

	IsConnected() bool
	IsReplay() bool
}

// GatewayListener receives what a Gateway observes.
type GatewayListener interface {
	OnMessage(msg domain.Inbound)
	OnConnectionStateChanged(state domain.ConnectionState)
	// OnError reports frames that could not be decoded and transport failures.
	OnError(err error)
}

// Authenticator supplies credentials when the server refuses a connection
// for lack of them. Login blocks until the operator answers or ctx ends.
type Authenticator interface {
	Login(ctx context.Context) (domain.Credentials, error)
}

// EventRelay forwards session events to dialog collaborators.
// The session treats it as a black box.
type EventRelay interface {
	Handle(ctx context.Context, ev domain.SessionEvent)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context) (domain.Credentials, error)

// Login calls f.
func (f AuthenticatorFunc) Login(ctx context.Context) (domain.Credentials, error) {
	return f(ctx)
}
