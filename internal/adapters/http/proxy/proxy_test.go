package proxy_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/pedalrank/internal/adapters/http/proxy"
	"github.com/okian/pedalrank/internal/adapters/repository"
	"github.com/okian/pedalrank/pkg/logger"
)

type upstashCall struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type fakeUpstash struct {
	mu    sync.Mutex
	calls []upstashCall
}

func (f *fakeUpstash) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, upstashCall{Method: r.Method, Path: r.URL.EscapedPath(), Body: string(body), Auth: r.Header.Get("Authorization")})
	f.mu.Unlock()
	if strings.HasSuffix(r.URL.Path, "/missing") {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
		return
	}
	_, _ = w.Write([]byte(`{"result":"OK"}`))
}

func (f *fakeUpstash) Calls() []upstashCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstashCall(nil), f.calls...)
}

func newProxy(t *testing.T) (http.Handler, *fakeUpstash) {
	t.Helper()
	fake := &fakeUpstash{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := repository.NewUpstashStore(srv.URL, "secret")
	require.NoError(t, err)

	r := chi.NewRouter()
	proxy.Register(t.Context(), r, proxy.New(store, proxy.WithLogger(logger.Nop())))
	return r, fake
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, rd))
	return w
}

func TestProxy_Get(t *testing.T) {
	h, fake := newProxy(t)

	w := serve(h, http.MethodGet, "/api/redis?key=pedal-elo:global", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"OK"}`, w.Body.String())

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, "/get/pedal-elo:global", calls[0].Path)
	assert.Equal(t, "Bearer secret", calls[0].Auth)
}

func TestProxy_GetRelaysUpstreamStatus(t *testing.T) {
	h, _ := newProxy(t)

	w := serve(h, http.MethodGet, "/api/redis?key=missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"nope"}`, w.Body.String())
}

func TestProxy_GetWithoutKey(t *testing.T) {
	h, fake := newProxy(t)

	w := serve(h, http.MethodGet, "/api/redis", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.Calls())
}

func TestProxy_PostSet(t *testing.T) {
	h, fake := newProxy(t)

	w := serve(h, http.MethodPost, "/api/redis", `["set","pedal-elo:history","[]"]`)
	require.Equal(t, http.StatusOK, w.Code)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	var args []string
	require.NoError(t, json.Unmarshal([]byte(calls[0].Body), &args))
	assert.Equal(t, []string{"SET", "pedal-elo:history", "[]"}, args)
}

func TestProxy_PostRejectsCommands(t *testing.T) {
	h, fake := newProxy(t)

	for _, body := range []string{
		`["DEL","pedal-elo:global"]`,
		`["FLUSHALL"]`,
		`[]`,
		`{"cmd":"GET"}`,
		`["GET"]`,
		`[42,"key"]`,
		`not json`,
	} {
		w := serve(h, http.MethodPost, "/api/redis", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, fake.Calls())
}

func TestProxy_MethodNotAllowed(t *testing.T) {
	h, _ := newProxy(t)

	w := serve(h, http.MethodDelete, "/api/redis", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
}

func TestProxy_NotConfigured(t *testing.T) {
	h := proxy.New(nil, proxy.WithLogger(logger.Nop()))

	w := serve(h, http.MethodGet, "/api/redis?key=x", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestProxy_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	store, err := repository.NewUpstashStore(srv.URL, "secret")
	require.NoError(t, err)
	h := proxy.New(store, proxy.WithLogger(logger.Nop()))

	w := serve(h, http.MethodGet, "/api/redis?key=x", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
