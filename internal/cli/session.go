package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/vitrine"
	"github.com/aretw0/vitrine/internal/config"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Target names what a command attaches to: a live server or a recorded report.
type Target struct {
	URL      string
	ReplayID string
	Pace     time.Duration
}

var errNoTarget = errors.New("no report server: pass a ws:// url, set server_url, or replay a recorded report")

// openClient builds the client for target. Live sessions are recorded into
// the manager's archive when cfg.Record is set.
func openClient(ctx context.Context, cfg config.Config, logger *slog.Logger, t Target, m *session.Manager, reg prometheus.Registerer) (*vitrine.Client, error) {
	opts := append(clientOptions(cfg, logger), vitrine.WithManager(m))
	if reg != nil {
		opts = append(opts, vitrine.WithMetrics(reg))
	}

	if t.ReplayID != "" {
		opts = append(opts, vitrine.WithReplayPace(t.Pace))
		return vitrine.Replay(ctx, m.Archive(), domain.ReportID(t.ReplayID), opts...)
	}
	if t.URL == "" {
		return nil, errNoTarget
	}
	opts = append(opts, vitrine.WithRecording(cfg.Record))
	return vitrine.Dial(t.URL, opts...), nil
}

// Watch attaches to target and draws the document on out after every
// change. Commands typed on in are applied to the session; in may be nil.
func Watch(ctx context.Context, cfg config.Config, logger *slog.Logger, t Target, in io.Reader, out io.Writer) error {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	client, err := openClient(ctx, cfg, logger, t, backend.Manager(logger), nil)
	if err != nil {
		return err
	}
	display, err := NewDisplay(out)
	if err != nil {
		return err
	}
	logger.Info("Watching report", "session_id", client.ID(), "url", t.URL, "replay", t.ReplayID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx)
	})
	g.Go(func() error {
		return display.Follow(ctx, client.Controller())
	})
	if in != nil {
		// Not part of the group: a read on stdin cannot be interrupted.
		go func() {
			if err := ReadCommands(ctx, in, client.Controller(), logger); errors.Is(err, errQuit) {
				cancel()
			}
		}()
	}
	return g.Wait()
}
