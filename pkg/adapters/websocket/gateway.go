// Package websocket is the live transport: a gorilla/websocket client that
// reconnects with backoff and asks an Authenticator for credentials when the
// server refuses the handshake.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/vitrine/internal/logging"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/gorilla/websocket"
)

// ErrUnauthorized is returned when the server refuses the handshake with 401
// and no Authenticator can supply credentials.
var ErrUnauthorized = errors.New("server requires authentication")

// Backoff computes the delay before reconnect attempt n (starting at 1).
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff doubles from 500ms up to 10s.
var DefaultBackoff = Backoff{Initial: 500 * time.Millisecond, Max: 10 * time.Second}

// Delay returns Initial * 2^(n-1), capped at Max.
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := b.Initial
	for i := 1; i < n; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	return min(d, b.Max)
}

// Gateway implements ports.Gateway over a websocket connection.
type Gateway struct {
	url          string
	dialer       *websocket.Dialer
	header       http.Header
	auth         ports.Authenticator
	logger       *slog.Logger
	backoff      Backoff
	maxAttempts  int
	writeTimeout time.Duration
	pingInterval time.Duration

	mu    sync.RWMutex
	state domain.ConnectionState
	conn  *websocket.Conn
	creds *domain.Credentials

	// gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithAuthenticator sets who is asked for credentials after a 401.
func WithAuthenticator(auth ports.Authenticator) Option {
	return func(g *Gateway) {
		g.auth = auth
	}
}

// WithBackoff sets the reconnect delays.
func WithBackoff(b Backoff) Option {
	return func(g *Gateway) {
		g.backoff = b
	}
}

// WithMaxAttempts bounds consecutive failed dials. Zero retries forever.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		g.maxAttempts = n
	}
}

// WithDialer replaces the default gorilla dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(g *Gateway) {
		g.dialer = d
	}
}

// WithHeader adds headers to every handshake.
func WithHeader(h http.Header) Option {
	return func(g *Gateway) {
		g.header = h.Clone()
	}
}

// WithPingInterval sets the keepalive period. Zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(g *Gateway) {
		g.pingInterval = d
	}
}

// New creates a gateway for the websocket endpoint at url.
func New(url string, opts ...Option) *Gateway {
	g := &Gateway{
		url:          url,
		dialer:       websocket.DefaultDialer,
		header:       http.Header{},
		logger:       logging.NewNop(),
		backoff:      DefaultBackoff,
		writeTimeout: 10 * time.Second,
		pingInterval: 30 * time.Second,
		state:        domain.ConnInitial,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("url", url)
	return g
}

// State returns the current connection state.
func (g *Gateway) State() domain.ConnectionState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gateway) IsConnected() bool { return g.State() == domain.ConnConnected }
func (g *Gateway) IsReplay() bool    { return false }

func (g *Gateway) setState(l ports.GatewayListener, state domain.ConnectionState) {
	g.mu.Lock()
	changed := g.state != state
	g.state = state
	g.mu.Unlock()
	if changed {
		g.logger.Debug("Connection state", "state", state)
		l.OnConnectionStateChanged(state)
	}
}

// Run dials, reads and redials until ctx is cancelled. It returns an error
// only when it gives up: too many failed dials or a refused login.
func (g *Gateway) Run(ctx context.Context, l ports.GatewayListener) error {
	failures := 0
	for {
		g.setState(l, domain.ConnConnecting)

		conn, err := g.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				g.setState(l, domain.ConnDisconnected)
				return nil
			}
			if errors.Is(err, ErrUnauthorized) {
				if err := g.login(ctx); err != nil {
					if ctx.Err() != nil {
						g.setState(l, domain.ConnDisconnected)
						return nil
					}
					g.setState(l, domain.ConnError)
					l.OnError(err)
					return err
				}
				continue
			}

			failures++
			if g.maxAttempts > 0 && failures >= g.maxAttempts {
				err = fmt.Errorf("giving up after %d attempts: %w", failures, err)
				g.logger.Error("Connection failed", "err", err)
				g.setState(l, domain.ConnError)
				l.OnError(err)
				return err
			}
			g.logger.Warn("Dial failed", "attempt", failures, "err", err)
			g.setState(l, domain.ConnDisconnected)
			if !g.sleep(ctx, g.backoff.Delay(failures)) {
				return nil
			}
			continue
		}

		failures = 0
		g.attach(conn)
		g.setState(l, domain.ConnConnected)
		err = g.serve(ctx, conn, l)
		g.detach()

		if ctx.Err() != nil {
			g.setState(l, domain.ConnDisconnected)
			return nil
		}
		g.logger.Warn("Connection lost", "err", err)
		g.setState(l, domain.ConnDisconnected)
		if !g.sleep(ctx, g.backoff.Delay(1)) {
			return nil
		}
	}
}

func (g *Gateway) dial(ctx context.Context) (*websocket.Conn, error) {
	header := g.header.Clone()
	g.mu.RLock()
	if g.creds != nil {
		header.Set("Authorization", "Bearer "+g.creds.Token)
	}
	g.mu.RUnlock()

	conn, resp, err := g.dialer.DialContext(ctx, g.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return conn, nil
}

func (g *Gateway) login(ctx context.Context) error {
	if g.auth == nil {
		return ErrUnauthorized
	}
	g.logger.Info("Server requires authentication")
	creds, err := g.auth.Login(ctx)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	g.mu.Lock()
	g.creds = &creds
	g.mu.Unlock()
	return nil
}

func (g *Gateway) attach(conn *websocket.Conn) {
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
}

func (g *Gateway) detach() {
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// serve reads frames until the connection fails or ctx ends.
func (g *Gateway) serve(ctx context.Context, conn *websocket.Conn, l ports.GatewayListener) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblocks ReadMessage on cancellation.
	go func() {
		<-serveCtx.Done()
		_ = conn.Close()
	}()

	if g.pingInterval > 0 {
		wait := 2 * g.pingInterval
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
		go g.keepalive(serveCtx, conn)
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		msg, err := domain.DecodeInbound(data)
		if err != nil {
			if !errors.Is(err, domain.ErrProtocol) {
				err = &domain.ProtocolError{Err: err}
			}
			g.logger.Error("Undecodable frame", "err", err)
			l.OnError(err)
			continue
		}
		l.OnMessage(msg)
	}
}

func (g *Gateway) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.writeTimeout))
			g.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (g *Gateway) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Send writes one outbound envelope as a text frame.
func (g *Gateway) Send(ctx context.Context, msg domain.Outbound) error {
	g.mu.RLock()
	conn, state := g.conn, g.state
	g.mu.RUnlock()
	if conn == nil {
		return &domain.NotConnectedError{Action: "send " + msg.Tag(), State: state}
	}

	data, err := domain.EncodeOutbound(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Tag(), err)
	}

	deadline := time.Now().Add(g.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Tag(), err)
	}
	return nil
}
