package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/vitrine/internal/throttle"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu      sync.Mutex
	state   domain.ConnectionState
	sent    []domain.Outbound
	sendErr error
}

func newFakeGateway(state domain.ConnectionState) *fakeGateway {
	return &fakeGateway{state: state}
}

func (g *fakeGateway) Run(ctx context.Context, _ ports.GatewayListener) error {
	<-ctx.Done()
	return nil
}

func (g *fakeGateway) Send(ctx context.Context, msg domain.Outbound) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, msg)
	return nil
}

func (g *fakeGateway) State() domain.ConnectionState { return g.state }
func (g *fakeGateway) IsConnected() bool             { return g.state == domain.ConnConnected }
func (g *fakeGateway) IsReplay() bool                { return g.state == domain.ConnStatic }

func (g *fakeGateway) Sent() []domain.Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Outbound(nil), g.sent...)
}

func (g *fakeGateway) Tags() []string {
	var tags []string
	for _, msg := range g.Sent() {
		tags = append(tags, msg.Tag())
	}
	return tags
}

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) throttle.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	rest := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(c.now) {
			due = append(due, t)
			continue
		}
		rest = append(rest, t)
	}
	c.timers = rest
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

type relayFunc func(ctx context.Context, ev domain.SessionEvent)

func (f relayFunc) Handle(ctx context.Context, ev domain.SessionEvent) { f(ctx, ev) }

func startSession(t *testing.T, gw ports.Gateway, opts ...Option) *Session {
	t.Helper()
	s := NewSession(gw, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s
}

// deliver feeds envelopes through the listener and waits until they were handled.
func deliver(t *testing.T, s *Session, msgs ...domain.Inbound) domain.View {
	t.Helper()
	for _, msg := range msgs {
		s.OnMessage(msg)
	}
	v, err := s.View(context.Background())
	require.NoError(t, err)
	return v
}

func running(on bool) domain.Inbound {
	return domain.SessionStateChanged{SessionState: domain.SessionState{ReportIsRunning: on}}
}

func text(id int, body string) domain.Inbound {
	return domain.Delta{ID: id, Body: domain.NewElement{Payload: domain.Text{Body: body}}}
}

func report(id string) domain.Inbound {
	return domain.NewReport{ID: domain.ReportID(id), Name: "demo", CommandLine: []string{"streamlit", "run", "demo.py"}}
}

func TestSession_IdleSignalThenStopIsIgnored(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	s := startSession(t, gw)

	v := deliver(t, s, running(false))
	assert.Equal(t, domain.RunNotRunning, v.RunState)

	require.NoError(t, s.Stop(context.Background()))
	assert.Empty(t, gw.Sent(), "stop is guarded out while idle")
}

func TestSession_CompileErrorLatch(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	var relayed []domain.SessionEvent
	s := startSession(t, gw, WithRelay(relayFunc(func(_ context.Context, ev domain.SessionEvent) {
		relayed = append(relayed, ev)
	})))

	v := deliver(t, s,
		report("r1"), running(true), text(0, "partial"),
		domain.SessionEvent{Type: domain.EventScriptCompilationException, Exception: &domain.ScriptException{Message: "SyntaxError"}},
		running(false),
	)
	assert.Equal(t, domain.RunCompilationError, v.RunState)
	require.NotNil(t, v.Dialog)
	assert.Equal(t, domain.DialogCompileError, v.Dialog.Kind)
	assert.Equal(t, "SyntaxError", v.Dialog.Message)

	before := v.Elements
	deliver(t, s, report("r2"))
	v = deliver(t, s, domain.ReportFinished{})
	assert.Equal(t, before[0].Element, v.Elements[0].Element, "no sweep after a compile error")
	assert.Len(t, relayed, 1)
}

func TestSession_DoubleRerunSendsOnce(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	s := startSession(t, gw)
	deliver(t, s, report("r1"))

	ctx := context.Background()
	require.NoError(t, s.Rerun(ctx, false))
	require.NoError(t, s.Rerun(ctx, false))

	assert.Equal(t, []domain.Outbound{domain.RerunScript{CommandLine: "streamlit run demo.py"}}, gw.Sent())

	v, err := s.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRerunRequested, v.RunState)
}

func TestSession_RerunClosesDialogAndSavesRunOnSave(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	s := startSession(t, gw)
	deliver(t, s, domain.SessionEvent{Type: domain.EventReportChangedOnDisk})

	require.NoError(t, s.Rerun(context.Background(), true))

	assert.Equal(t, []string{domain.TagSetRunOnSave, domain.TagRerunScript}, gw.Tags())
	v, _ := s.View(context.Background())
	assert.Nil(t, v.Dialog)
	assert.True(t, v.Settings.RunOnSave)
}

func TestSession_ReportCycleSweepsStaleElements(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	s := startSession(t, gw)

	deliver(t, s, report("r1"), running(true), text(0, "a"), text(1, "b"), text(2, "c"), domain.ReportFinished{}, running(false))

	v := deliver(t, s, report("r2"), running(true), text(0, "a2"))
	require.Len(t, v.Elements, 3)
	assert.False(t, v.Elements[0].Stale)
	assert.True(t, v.Elements[1].Stale, "leftovers are flagged until the run ends")

	v = deliver(t, s, domain.ReportFinished{})
	require.Len(t, v.Elements, 3, "sweep keeps the slots")
	for _, ev := range v.Elements {
		assert.Equal(t, domain.ReportID("r2"), ev.Element.ReportID)
		assert.False(t, ev.Stale)
	}
	assert.Equal(t, domain.Text{Body: "a2"}, v.Elements[0].Element.Payload)
	assert.Equal(t, domain.KindEmpty, v.Elements[1].Element.Kind())
	assert.Equal(t, domain.KindEmpty, v.Elements[2].Element.Kind())
}

func TestSession_DeltaAdmission(t *testing.T) {
	t.Run("ignored while not running", func(t *testing.T) {
		s := startSession(t, newFakeGateway(domain.ConnConnected))
		v := deliver(t, s, report("r1"), text(0, "early"))
		assert.Empty(t, v.Elements)
	})

	t.Run("applied in static mode regardless of run state", func(t *testing.T) {
		s := startSession(t, newFakeGateway(domain.ConnStatic))
		v := deliver(t, s, report("r1"), text(0, "replayed"))
		require.Len(t, v.Elements, 1)
		assert.False(t, v.Elements[0].Stale)
	})

	t.Run("stale flag hidden in static mode", func(t *testing.T) {
		s := startSession(t, newFakeGateway(domain.ConnStatic))
		v := deliver(t, s, report("r1"), text(0, "old"), report("r2"))
		require.Len(t, v.Elements, 1)
		assert.False(t, v.Elements[0].Stale)
	})
}

func TestSession_AddRowsToMissingElementFaults(t *testing.T) {
	var faults []error
	var deltas []*domain.DeltaEvent
	s := startSession(t, newFakeGateway(domain.ConnConnected), WithHooks(domain.LifecycleHooks{
		OnFault: func(_ context.Context, ev *domain.FaultEvent) { faults = append(faults, ev.Err) },
		OnDelta: func(_ context.Context, ev *domain.DeltaEvent) { deltas = append(deltas, ev) },
	}))

	rows := domain.NamedDataSet{Data: domain.DataFrame{Columns: []domain.Column{{Name: "x", Type: domain.ColumnInt, Values: []any{1}}}}}
	v := deliver(t, s, report("r1"), running(true), text(0, "a"), domain.Delta{ID: 7, Body: domain.AddRows{Rows: rows}})

	require.Len(t, v.Elements, 1)
	body := v.Elements[0].Element.Payload.(domain.Text)
	assert.Equal(t, domain.FormatError, body.Format)
	assert.Contains(t, body.Body, "element 7 not found")
	require.Len(t, faults, 1)
	assert.ErrorIs(t, faults[0], domain.ErrNotFound)
	require.Len(t, deltas, 2)
	assert.Equal(t, domain.KindText, deltas[0].Kind)
	assert.Equal(t, 7, deltas[1].ElementID)
	assert.Empty(t, deltas[1].Kind, "a missing target has no kind")

	v = deliver(t, s, text(1, "after"))
	assert.Len(t, v.Elements, 2, "the session keeps processing")
}

func TestSession_UnknownEnvelopeFaults(t *testing.T) {
	s := startSession(t, newFakeGateway(domain.ConnConnected))

	v := deliver(t, s, report("r1"), running(true), text(0, "a"), domain.UnknownInbound{Name: "telepathy"})
	require.Len(t, v.Elements, 1)
	assert.Contains(t, v.Elements[0].Element.Payload.(domain.Text).Body, `"telepathy"`)

	v = deliver(t, s, text(0, "recovered"))
	assert.Equal(t, domain.Text{Body: "recovered"}, v.Elements[0].Element.Payload)
}

func TestSession_ConnectionError(t *testing.T) {
	s := startSession(t, newFakeGateway(domain.ConnConnected))

	s.OnError(errors.New("broken pipe"))
	v, err := s.View(context.Background())
	require.NoError(t, err)

	require.Len(t, v.Elements, 1)
	assert.Equal(t, "connection error: broken pipe", v.Elements[0].Element.Payload.(domain.Text).Body)
}

func TestSession_GateDropsWhileDisconnected(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	var dropped []string
	s := startSession(t, gw, WithHooks(domain.LifecycleHooks{
		OnDropped: func(_ context.Context, ev *domain.OutboundEvent) { dropped = append(dropped, ev.Tag) },
	}))
	ctx := context.Background()

	s.OnConnectionStateChanged(domain.ConnDisconnected)

	err := s.Rerun(ctx, false)
	var nc *domain.NotConnectedError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, domain.ConnDisconnected, nc.State)
	assert.ErrorIs(t, s.ClearCache(ctx), domain.ErrNotConnected)
	assert.ErrorIs(t, s.SetWidgetValue(ctx, "w", 1), domain.ErrNotConnected)

	assert.Empty(t, gw.Sent())
	assert.Equal(t, []string{domain.TagRerunScript, domain.TagClearCache, domain.TagUpdateWidget}, dropped)

	v, _ := s.View(ctx)
	assert.Equal(t, domain.RunNotRunning, v.RunState, "a dropped rerun leaves the state alone")
	assert.Equal(t, 1, v.Widgets["w"], "the local widget value is kept")
}

func TestSession_SaveSettings(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	s := startSession(t, gw)
	ctx := context.Background()

	require.NoError(t, s.SaveSettings(ctx, domain.UserSettings{WideMode: true}))
	assert.Empty(t, gw.Sent(), "run-on-save did not change")

	require.NoError(t, s.SaveSettings(ctx, domain.UserSettings{WideMode: true, RunOnSave: true}))
	assert.Equal(t, []domain.Outbound{domain.SetRunOnSave{Value: true}}, gw.Sent())

	s.OnConnectionStateChanged(domain.ConnDisconnected)
	require.NoError(t, s.SaveSettings(ctx, domain.UserSettings{}))
	assert.Len(t, gw.Sent(), 1, "settings are stored but not sent while disconnected")

	v, _ := s.View(ctx)
	assert.Equal(t, domain.UserSettings{}, v.Settings)
}

func TestSession_InitializeAndServerSettings(t *testing.T) {
	s := startSession(t, newFakeGateway(domain.ConnConnected))

	v := deliver(t, s, domain.Initialize{
		SessionState:   domain.SessionState{ReportIsRunning: true, RunOnSave: true},
		SharingEnabled: true,
		ServerVersion:  "0.42.0",
	})
	assert.Equal(t, domain.RunRunning, v.RunState)
	assert.True(t, v.Settings.RunOnSave)
	assert.True(t, v.SharingEnabled)
	assert.Equal(t, "0.42.0", v.ServerVersion)

	v = deliver(t, s, domain.SessionEvent{Type: domain.EventReportChangedOnDisk})
	assert.Nil(t, v.Dialog, "the server reruns on save by itself")
}

func TestSession_CloudUpload(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	s := startSession(t, gw)
	ctx := context.Background()

	assert.ErrorIs(t, s.CloudUpload(ctx), domain.ErrSharingDisabled)
	v, _ := s.View(ctx)
	require.NotNil(t, v.Dialog)
	assert.Equal(t, domain.DialogWarning, v.Dialog.Kind)
	assert.Empty(t, gw.Sent())

	deliver(t, s, domain.Initialize{SharingEnabled: true})
	require.NoError(t, s.CloudUpload(ctx))
	assert.Equal(t, []string{domain.TagCloudUpload}, gw.Tags())

	v = deliver(t, s, domain.UploadReportProgress{Percent: 40})
	assert.Equal(t, &domain.Dialog{Kind: domain.DialogUploadProgress, Progress: 40}, v.Dialog)
	v = deliver(t, s, domain.ReportUploaded{URL: "https://share.example/r1"})
	assert.Equal(t, "https://share.example/r1", v.Dialog.URL)

	require.NoError(t, s.CloseDialog(ctx))
	v, _ = s.View(ctx)
	assert.Nil(t, v.Dialog)
}

func TestSession_CloudUploadWhileDisconnected(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	var dropped []string
	s := startSession(t, gw, WithHooks(domain.LifecycleHooks{
		OnDropped: func(_ context.Context, ev *domain.OutboundEvent) { dropped = append(dropped, ev.Tag) },
	}))
	ctx := context.Background()

	s.OnConnectionStateChanged(domain.ConnDisconnected)

	err := s.CloudUpload(ctx)
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.NotErrorIs(t, err, domain.ErrSharingDisabled)

	v, _ := s.View(ctx)
	assert.Nil(t, v.Dialog, "a dropped upload opens no dialog")
	assert.Empty(t, gw.Sent())
	assert.Equal(t, []string{domain.TagCloudUpload}, dropped)
}

func TestSession_WidgetUpdatesAreThrottled(t *testing.T) {
	gw := newFakeGateway(domain.ConnConnected)
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var coalesced int
	s := startSession(t, gw, WithClock(clock), WithThrottleWindow(400*time.Millisecond), WithHooks(domain.LifecycleHooks{
		OnCoalesced: func(context.Context, *domain.OutboundEvent) { coalesced++ },
	}))
	ctx := context.Background()

	for v := 1; v <= 5; v++ {
		require.NoError(t, s.SetWidgetValue(ctx, "slider", v))
	}
	assert.Equal(t, []domain.Outbound{domain.UpdateWidget{WidgetID: "slider", Value: 1}}, gw.Sent())

	clock.Advance(400 * time.Millisecond)
	v, err := s.View(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.Outbound{
		domain.UpdateWidget{WidgetID: "slider", Value: 1},
		domain.UpdateWidget{WidgetID: "slider", Value: 5},
	}, gw.Sent())
	assert.Equal(t, 5, v.Widgets["slider"])
	assert.Equal(t, 3, coalesced)
}

func TestSession_Login(t *testing.T) {
	s := startSession(t, newFakeGateway(domain.ConnConnecting))
	ctx := context.Background()

	type result struct {
		creds domain.Credentials
		err   error
	}
	done := make(chan result, 1)
	go func() {
		creds, err := s.Login(ctx)
		done <- result{creds, err}
	}()

	require.Eventually(t, func() bool {
		v, err := s.View(ctx)
		return err == nil && v.Dialog != nil && v.Dialog.Kind == domain.DialogLogin
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.ResolveLogin(domain.Credentials{User: "ada", Token: "secret"}))
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "secret", res.creds.Token)

	require.Eventually(t, func() bool {
		v, err := s.View(ctx)
		return err == nil && v.Dialog == nil
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.RejectLogin(nil), domain.ErrNoPendingLogin)
}

func TestSession_Subscribe(t *testing.T) {
	s := startSession(t, newFakeGateway(domain.ConnConnected))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views, err := s.Subscribe(ctx)
	require.NoError(t, err)

	first := <-views
	assert.Equal(t, domain.NoReport, first.ReportID)

	s.OnMessage(report("r9"))
	require.Eventually(t, func() bool {
		select {
		case v := <-views:
			return v.ReportID == "r9"
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSession_RunStateHooks(t *testing.T) {
	var transitions []string
	s := startSession(t, newFakeGateway(domain.ConnConnected), WithHooks(domain.LifecycleHooks{
		OnRunState: func(_ context.Context, ev *domain.RunStateEvent) {
			transitions = append(transitions, string(ev.From)+">"+string(ev.To))
		},
	}))

	deliver(t, s, running(true), running(true), running(false))
	assert.Equal(t, []string{"NOT_RUNNING>RUNNING", "RUNNING>NOT_RUNNING"}, transitions)
}

func TestSession_ClosedSession(t *testing.T) {
	s := NewSession(newFakeGateway(domain.ConnConnected))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	cancel()
	<-s.Done()

	_, err := s.View(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestSession_LoginOnClosedSession(t *testing.T) {
	s := NewSession(newFakeGateway(domain.ConnConnected))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	cancel()
	<-s.Done()

	loginCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	start := time.Now()
	_, err := s.Login(loginCtx)

	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.Less(t, time.Since(start), time.Second, "login must not wait for an answer nobody can give")
	assert.ErrorIs(t, s.ResolveLogin(domain.Credentials{}), domain.ErrNoPendingLogin, "the attempt is released")
}
