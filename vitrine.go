package vitrine

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/vitrine/internal/logging"
	"github.com/aretw0/vitrine/internal/runtime"
	"github.com/aretw0/vitrine/pkg/adapters/replay"
	"github.com/aretw0/vitrine/pkg/adapters/websocket"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/observability"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/aretw0/vitrine/pkg/recorder"
	"github.com/aretw0/vitrine/pkg/relay"
	"github.com/aretw0/vitrine/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Client is the high-level entry point of the library.
// It wires a session to its gateway and, optionally, to a recorder,
// a metrics registry and a session manager shared with control surfaces.
type Client struct {
	session  *runtime.Session
	gateway  ports.Gateway
	manager  *session.Manager
	recorder *recorder.Recorder
	relay    *relay.Relay
	logger   *slog.Logger

	id       string
	hooks    domain.LifecycleHooks
	window   time.Duration
	record   bool
	registry prometheus.Registerer
	backoff  websocket.Backoff
	attempts int
	pace     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by every component of the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSessionID sets the session id instead of a random one.
func WithSessionID(id string) Option {
	return func(c *Client) {
		c.id = id
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Client) {
		c.hooks = c.hooks.Merge(hooks)
	}
}

// WithManager registers the session in m, and records into m's archive
// when recording is enabled.
func WithManager(m *session.Manager) Option {
	return func(c *Client) {
		c.manager = m
	}
}

// WithRecording saves every finished report to the manager's archive.
func WithRecording(enabled bool) Option {
	return func(c *Client) {
		c.record = enabled
	}
}

// WithMetrics registers the Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registry = reg
	}
}

// WithThrottleWindow sets the outbound throttle window.
func WithThrottleWindow(d time.Duration) Option {
	return func(c *Client) {
		c.window = d
	}
}

// WithReconnect configures the live gateway backoff. maxAttempts 0 retries forever.
func WithReconnect(b websocket.Backoff, maxAttempts int) Option {
	return func(c *Client) {
		c.backoff = b
		c.attempts = maxAttempts
	}
}

// WithReplayPace delays each replayed envelope by d.
func WithReplayPace(d time.Duration) Option {
	return func(c *Client) {
		c.pace = d
	}
}

func newClient(opts []Option) *Client {
	c := &Client{
		logger:  logging.NewNop(),
		backoff: websocket.DefaultBackoff,
		relay:   relay.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial creates a client for the live report server at url.
// The connection is opened by Run. Logins requested by the server are
// answered through the session controller.
func Dial(url string, opts ...Option) *Client {
	c := newClient(opts)
	gw := websocket.New(url,
		websocket.WithLogger(c.logger.With("component", "gateway")),
		websocket.WithBackoff(c.backoff),
		websocket.WithMaxAttempts(c.attempts),
		websocket.WithAuthenticator(ports.AuthenticatorFunc(func(ctx context.Context) (domain.Credentials, error) {
			return c.session.Login(ctx)
		})),
	)
	c.bind(gw)
	return c
}

// Replay creates a client showing the recorded report id from src.
func Replay(ctx context.Context, src ports.ReportSource, id domain.ReportID, opts ...Option) (*Client, error) {
	c := newClient(opts)
	gw, err := replay.Open(ctx, src, id,
		replay.WithLogger(c.logger.With("component", "gateway")),
		replay.WithPace(c.pace),
	)
	if err != nil {
		return nil, err
	}
	c.bind(gw)
	return c, nil
}

// New creates a client over a custom gateway.
func New(gw ports.Gateway, opts ...Option) *Client {
	c := newClient(opts)
	c.bind(gw)
	return c
}

func (c *Client) bind(gw ports.Gateway) {
	c.gateway = gw
	hooks := c.hooks

	if c.registry != nil {
		hooks = hooks.Merge(observability.NewMetrics(c.registry).Hooks())
	}
	if c.record && c.manager != nil && !gw.IsReplay() {
		c.recorder = recorder.New(c.manager, recorder.WithLogger(c.logger.With("component", "recorder")))
		hooks = hooks.Merge(c.recorder.Hooks())
	}

	opts := []runtime.Option{
		runtime.WithLogger(c.logger),
		runtime.WithHooks(hooks),
		runtime.WithRelay(c.relay),
	}
	if c.id != "" {
		opts = append(opts, runtime.WithID(c.id))
	}
	if c.window > 0 {
		opts = append(opts, runtime.WithThrottleWindow(c.window))
	}
	c.session = runtime.NewSession(gw, opts...)
}

// Run drives the session, its gateway and the recorder until ctx is
// cancelled or the gateway gives up.
func (c *Client) Run(ctx context.Context) error {
	if c.manager != nil {
		c.manager.Register(c.session)
		defer c.manager.Unregister(c.session.ID())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.session.Run(ctx)
	})
	g.Go(func() error {
		return c.gateway.Run(ctx, c.session)
	})
	if c.recorder != nil {
		g.Go(func() error {
			return c.recorder.Run(ctx)
		})
	}
	return g.Wait()
}

// ID returns the session id.
func (c *Client) ID() string {
	return c.session.ID()
}

// Controller returns the operator side of the session.
func (c *Client) Controller() ports.Controller {
	return c.session
}

// Gateway returns the transport the session is bound to.
func (c *Client) Gateway() ports.Gateway {
	return c.gateway
}

// Subscribe registers h for session events such as compile errors.
// It returns a function removing h.
func (c *Client) Subscribe(h relay.HandlerFunc) func() {
	return c.relay.Subscribe(h)
}
