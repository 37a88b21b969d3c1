package runtime

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/aretw0/vitrine/internal/document"
	"github.com/aretw0/vitrine/internal/logging"
	"github.com/aretw0/vitrine/internal/runstate"
	"github.com/aretw0/vitrine/internal/throttle"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/aretw0/vitrine/pkg/session"
	"github.com/google/uuid"
)

// Session keeps the view-state of one remote report in sync with its gateway.
//
// Every piece of state below the loop marker is owned by the goroutine
// running Run. Gateway callbacks, operator requests and throttle timers are
// turned into closures and executed there one at a time, in arrival order.
type Session struct {
	id      string
	gateway ports.Gateway
	relay   ports.EventRelay
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	clock   throttle.Clock
	window  time.Duration

	ops  chan func()
	done chan struct{}

	login session.LoginSlot

	// loop
	doc           *document.Store
	run           *runstate.Machine
	out           *throttle.Throttle
	conn          domain.ConnectionState
	reportID      domain.ReportID
	reportName    string
	commandLine   string
	settings      domain.UserSettings
	sharing       bool
	serverVersion string
	dialog        *domain.Dialog
	widgets       map[string]any
	subs          map[int]chan domain.View
	nextSub       int
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session id. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHooks registers lifecycle hooks. Repeated calls merge.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithRelay sets where session events are forwarded.
func WithRelay(relay ports.EventRelay) Option {
	return func(s *Session) {
		s.relay = relay
	}
}

// WithClock replaces the clock driving the outbound throttle.
func WithClock(clock throttle.Clock) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithThrottleWindow sets the outbound throttle window.
func WithThrottleWindow(d time.Duration) Option {
	return func(s *Session) {
		s.window = d
	}
}

// NewSession creates a session bound to gateway. Call Run to start its loop.
func NewSession(gateway ports.Gateway, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		gateway:  gateway,
		logger:   logging.NewNop(),
		clock:    throttle.SystemClock,
		window:   throttle.DefaultWindow,
		ops:      make(chan func(), 64),
		done:     make(chan struct{}),
		doc:      document.New(),
		conn:     gateway.State(),
		reportID: domain.NoReport,
		widgets:  make(map[string]any),
		subs:     make(map[int]chan domain.View),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)

	s.run = runstate.NewMachine(runstate.WithOnChange(s.emitRunState))
	s.out = throttle.New(s.window, s.sendThrottled,
		throttle.WithClock(s.clock),
		throttle.WithPost(s.post),
		throttle.WithOnCoalesced(s.emitCoalesced),
	)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Run executes the session loop until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer s.teardown()
	for {
		select {
		case op := <-s.ops:
			op()
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) teardown() {
	s.out.Close()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	close(s.done)
}

// Done is closed once the loop has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// post schedules fn on the loop. It is dropped if the loop has stopped.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

// do runs fn on the loop and waits for its result.
func (s *Session) do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	op := func() {
		err := fn(ctx)
		s.publish()
		result <- err
	}

	select {
	case s.ops <- op:
	case <-s.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-s.done:
		// The loop may have run op just before stopping.
		select {
		case err := <-result:
			return err
		default:
			return domain.ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns a snapshot of the session.
func (s *Session) View(ctx context.Context) (domain.View, error) {
	var v domain.View
	err := s.do(ctx, func(context.Context) error {
		v = s.snapshot()
		return nil
	})
	return v, err
}

// Subscribe delivers a fresh View after every change until ctx ends.
// Slow readers only see the latest View.
func (s *Session) Subscribe(ctx context.Context) (<-chan domain.View, error) {
	ch := make(chan domain.View, 1)
	var id int
	err := s.do(ctx, func(context.Context) error {
		id = s.nextSub
		s.nextSub++
		s.subs[id] = ch
		ch <- s.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			s.post(func() {
				if sub, ok := s.subs[id]; ok {
					close(sub)
					delete(s.subs, id)
				}
			})
		case <-s.done:
		}
	}()
	return ch, nil
}

func (s *Session) publish() {
	if len(s.subs) == 0 {
		return
	}
	v := s.snapshot()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (s *Session) snapshot() domain.View {
	v := domain.View{
		SessionID:      s.id,
		ReportID:       s.reportID,
		ReportName:     s.reportName,
		CommandLine:    s.commandLine,
		RunState:       s.run.State(),
		Connection:     s.conn,
		Settings:       s.settings,
		SharingEnabled: s.sharing,
		ServerVersion:  s.serverVersion,
		Widgets:        maps.Clone(s.widgets),
	}
	if s.dialog != nil {
		d := *s.dialog
		v.Dialog = &d
	}

	elements := s.doc.Elements()
	v.Elements = make([]domain.ElementView, len(elements))
	for i, el := range elements {
		v.Elements[i] = domain.ElementView{
			Element: el,
			Stale:   s.conn != domain.ConnStatic && el.ReportID != s.reportID,
		}
	}
	return v
}
