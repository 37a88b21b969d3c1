// Package recorder captures the envelopes of each report a session receives
// and archives them once the report finishes, so it can be replayed later.
package recorder

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/vitrine/internal/logging"
	"github.com/aretw0/vitrine/pkg/domain"
)

// DefaultQueueSize bounds finished recordings waiting to be saved.
const DefaultQueueSize = 16

// Saver persists a finished recording. session.Manager implements it,
// serializing writes per report id.
type Saver interface {
	SaveRecording(ctx context.Context, rec *domain.Recording) error
}

// Recorder turns inbound lifecycle events into recordings.
// Hooks only buffer; Run performs the writes.
type Recorder struct {
	saver   Saver
	logger  *slog.Logger
	onSaved func(domain.ReportSummary, error)

	mu      sync.Mutex
	current map[string]*domain.Recording

	queue chan *domain.Recording
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithQueueSize sets how many finished recordings may wait for Run.
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		r.queue = make(chan *domain.Recording, n)
	}
}

// WithOnSaved is called after every save attempt.
func WithOnSaved(fn func(domain.ReportSummary, error)) Option {
	return func(r *Recorder) {
		r.onSaved = fn
	}
}

// New creates a recorder writing to saver.
func New(saver Saver, opts ...Option) *Recorder {
	r := &Recorder{
		saver:   saver,
		logger:  logging.NewNop(),
		current: make(map[string]*domain.Recording),
		queue:   make(chan *domain.Recording, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hooks returns the lifecycle hooks to install on sessions.
func (r *Recorder) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{OnInbound: r.observe}
}

func (r *Recorder) observe(ctx context.Context, ev *domain.InboundEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg := ev.Envelope.(type) {
	case domain.NewReport:
		if prev, ok := r.current[ev.SessionID]; ok {
			r.logger.Debug("Discarding unfinished recording", "report_id", prev.ReportID, "envelopes", len(prev.Envelopes))
		}
		r.current[ev.SessionID] = &domain.Recording{
			ReportID:    msg.ID,
			Name:        msg.Name,
			CommandLine: strings.Join(msg.CommandLine, " "),
			RecordedAt:  ev.Timestamp,
			Envelopes:   []domain.Inbound{msg},
		}

	case domain.ReportFinished:
		rec, ok := r.current[ev.SessionID]
		if !ok {
			return
		}
		rec.Envelopes = append(rec.Envelopes, msg)
		delete(r.current, ev.SessionID)
		select {
		case r.queue <- rec:
		default:
			r.logger.Warn("Recording queue full, dropping report", "report_id", rec.ReportID)
		}

	default:
		// Envelopes before the first newReport belong to no report.
		if rec, ok := r.current[ev.SessionID]; ok {
			rec.Envelopes = append(rec.Envelopes, msg)
		}
	}
}

// InProgress returns the number of reports still being recorded.
func (r *Recorder) InProgress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.current)
}

// Run saves finished recordings until ctx is cancelled, then flushes
// whatever is already queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-r.queue:
			r.save(ctx, rec)
		case <-ctx.Done():
			flush := context.WithoutCancel(ctx)
			for {
				select {
				case rec := <-r.queue:
					r.save(flush, rec)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) save(ctx context.Context, rec *domain.Recording) {
	err := r.saver.SaveRecording(ctx, rec)
	if err != nil {
		r.logger.Error("Failed to save recording", "report_id", rec.ReportID, "err", err)
	} else {
		r.logger.Info("Report recorded", "report_id", rec.ReportID, "envelopes", len(rec.Envelopes))
	}
	if r.onSaved != nil {
		r.onSaved(rec.Summary(), err)
	}
}
