package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/vitrine/pkg/adapters/memory"
	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubController struct {
	id    string
	err   error
	calls []string
	views []domain.View

	always   bool
	settings domain.UserSettings
	widget   string
	value    any
	creds    domain.Credentials
	reason   error
}

func (c *stubController) ID() string { return c.id }

func (c *stubController) View(ctx context.Context) (domain.View, error) {
	c.calls = append(c.calls, "view")
	return domain.View{SessionID: c.id, ReportID: "r1", RunState: domain.RunRunning}, c.err
}

func (c *stubController) Subscribe(ctx context.Context) (<-chan domain.View, error) {
	if c.err != nil {
		return nil, c.err
	}
	ch := make(chan domain.View, len(c.views))
	for _, v := range c.views {
		ch <- v
	}
	close(ch)
	return ch, nil
}

func (c *stubController) Rerun(ctx context.Context, always bool) error {
	c.calls = append(c.calls, "rerun")
	c.always = always
	return c.err
}

func (c *stubController) Stop(ctx context.Context) error {
	c.calls = append(c.calls, "stop")
	return c.err
}

func (c *stubController) ClearCache(ctx context.Context) error {
	c.calls = append(c.calls, "clear")
	return c.err
}

func (c *stubController) CloudUpload(ctx context.Context) error {
	c.calls = append(c.calls, "upload")
	return c.err
}

func (c *stubController) SaveSettings(ctx context.Context, s domain.UserSettings) error {
	c.calls = append(c.calls, "settings")
	c.settings = s
	return c.err
}

func (c *stubController) SetWidgetValue(ctx context.Context, id string, v any) error {
	c.calls = append(c.calls, "widget")
	c.widget, c.value = id, v
	return c.err
}

func (c *stubController) CloseDialog(ctx context.Context) error {
	c.calls = append(c.calls, "close")
	return c.err
}

func (c *stubController) ResolveLogin(creds domain.Credentials) error {
	c.calls = append(c.calls, "resolve")
	c.creds = creds
	return c.err
}

func (c *stubController) RejectLogin(reason error) error {
	c.calls = append(c.calls, "reject")
	c.reason = reason
	return c.err
}

func setup(t *testing.T, c *stubController) http.Handler {
	t.Helper()
	m := session.NewManager(memory.NewArchive())
	m.Register(c)
	return NewHandler(m, WithGatherer(prometheus.NewRegistry()), WithVersion("1.2.3"))
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Basics(t *testing.T) {
	h := setup(t, &stubController{id: "s1"})

	w := do(h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(h, "GET", "/info", "")
	assert.JSONEq(t, `{"app":"vitrine-http","version":"1.2.3"}`, w.Body.String())

	w = do(h, "GET", "/sessions", "")
	assert.JSONEq(t, `{"sessions":["s1"]}`, w.Body.String())

	w = do(h, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Document(t *testing.T) {
	h := setup(t, &stubController{id: "s1"})

	w := do(h, "GET", "/sessions/s1/document", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_state":"RUNNING"`)

	w = do(h, "GET", "/sessions/nope/document", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Controls(t *testing.T) {
	c := &stubController{id: "s1"}
	h := setup(t, c)

	cases := []struct {
		method, path, body string
	}{
		{"POST", "/sessions/s1/rerun?always=true", ""},
		{"POST", "/sessions/s1/stop", ""},
		{"POST", "/sessions/s1/clear-cache", ""},
		{"POST", "/sessions/s1/upload", ""},
		{"POST", "/sessions/s1/settings", `{"wide_mode":true,"run_on_save":true}`},
		{"POST", "/sessions/s1/widgets/slider", `{"value":42}`},
		{"DELETE", "/sessions/s1/dialog", ""},
		{"POST", "/sessions/s1/login", `{"user":"ana","token":"t"}`},
		{"DELETE", "/sessions/s1/login?reason=nope", ""},
	}
	for _, tc := range cases {
		w := do(h, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNoContent, w.Code, "%s %s", tc.method, tc.path)
	}

	assert.Equal(t, []string{"rerun", "stop", "clear", "upload", "settings", "widget", "close", "resolve", "reject"}, c.calls)
	assert.True(t, c.always)
	assert.Equal(t, domain.UserSettings{WideMode: true, RunOnSave: true}, c.settings)
	assert.Equal(t, "slider", c.widget)
	assert.Equal(t, 42.0, c.value)
	assert.Equal(t, domain.Credentials{User: "ana", Token: "t"}, c.creds)
	assert.EqualError(t, c.reason, "nope")
}

func TestServer_BadRequests(t *testing.T) {
	h := setup(t, &stubController{id: "s1"})

	assert.Equal(t, http.StatusBadRequest, do(h, "POST", "/sessions/s1/rerun?always=maybe", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "POST", "/sessions/s1/settings", "{").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "POST", "/sessions/s1/widgets/w", "nope").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "POST", "/sessions/s1/login", `{"user":"x"}`).Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	cases := map[error]int{
		&domain.NotConnectedError{Action: "stop", State: domain.ConnDisconnected}: http.StatusConflict,
		domain.ErrSharingDisabled:  http.StatusConflict,
		domain.ErrNoPendingLogin:   http.StatusConflict,
		domain.ErrSessionClosed:    http.StatusServiceUnavailable,
		errors.New("disk on fire"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		h := setup(t, &stubController{id: "s1", err: err})
		w := do(h, "POST", "/sessions/s1/stop", "")
		assert.Equal(t, want, w.Code, "%v", err)
		assert.Contains(t, w.Body.String(), `"error"`)
	}
}

func TestServer_SubscribeEvents(t *testing.T) {
	c := &stubController{id: "s1", views: []domain.View{
		{SessionID: "s1", ReportID: "r1"},
		{SessionID: "s1", ReportID: "r2"},
	}}
	h := setup(t, c)

	w := do(h, "GET", "/sessions/s1/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: ping\ndata: connected\n\n"))
	assert.Equal(t, 2, strings.Count(body, "event: view\n"))
	assert.Less(t, strings.Index(body, `"report_id":"r1"`), strings.Index(body, `"report_id":"r2"`))
}

func TestServer_CORSPreflight(t *testing.T) {
	h := setup(t, &stubController{id: "s1"})
	w := do(h, "OPTIONS", "/sessions/s1/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
