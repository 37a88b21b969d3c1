// Package replay plays a recorded report back as a STATIC connection.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/vitrine/internal/logging"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
)

// Gateway implements ports.Gateway over a recording. Its state is always
// STATIC and everything sent to it is discarded.
type Gateway struct {
	rec       *domain.Recording
	logger    *slog.Logger
	pace      time.Duration
	delivered atomic.Int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithPace waits d between envelopes, so a watcher sees the report build up.
func WithPace(d time.Duration) Option {
	return func(g *Gateway) {
		g.pace = d
	}
}

// New creates a gateway replaying rec.
func New(rec *domain.Recording, opts ...Option) *Gateway {
	g := &Gateway{
		rec:    rec,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("report_id", rec.ReportID)
	return g
}

// Open loads report id from src and creates a gateway for it.
func Open(ctx context.Context, src ports.ReportSource, id domain.ReportID, opts ...Option) (*Gateway, error) {
	rec, err := src.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", id, err)
	}
	return New(rec, opts...), nil
}

// Recording returns the recording being replayed.
func (g *Gateway) Recording() *domain.Recording {
	return g.rec
}

// Delivered reports how many envelopes reached the listener so far.
func (g *Gateway) Delivered() int {
	return int(g.delivered.Load())
}

func (g *Gateway) State() domain.ConnectionState { return domain.ConnStatic }
func (g *Gateway) IsConnected() bool             { return false }
func (g *Gateway) IsReplay() bool                { return true }

// Run delivers every envelope in order, then idles until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context, l ports.GatewayListener) error {
	l.OnConnectionStateChanged(domain.ConnStatic)
	g.logger.Info("Replaying report", "envelopes", len(g.rec.Envelopes))

	for i, msg := range g.rec.Envelopes {
		if i > 0 && g.pace > 0 {
			t := time.NewTimer(g.pace)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		l.OnMessage(msg)
		g.delivered.Add(1)
	}

	g.logger.Debug("Replay complete")
	<-ctx.Done()
	return nil
}

// Send discards msg. A replay has no server to answer.
func (g *Gateway) Send(ctx context.Context, msg domain.Outbound) error {
	g.logger.Debug("Ignoring outbound envelope during replay", "tag", msg.Tag())
	return nil
}
