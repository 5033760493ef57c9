package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/stream"
	"mercator-hq/relay/pkg/telemetry/metrics"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type streamFixture struct {
	handler  *StreamHandler
	registry *prometheus.Registry
	secret   credentials.Secret
}

func newStreamFixture(t *testing.T, kind providers.Kind, upstreamURL string, opts StreamOptions) *streamFixture {
	t.Helper()

	cfg := providers.DefaultConfig(kind)
	cfg.BaseURL = upstreamURL
	cfg.Timeout = 2 * time.Second
	client, err := providers.NewClient([]providers.Config{cfg}, providers.ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	secret, err := credentials.NewSecret(testSecret)
	if err != nil {
		t.Fatalf("NewSecret() error = %v", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, registry)

	return &streamFixture{
		handler:  NewStreamHandler(kind, client, credentials.NewHolder(secret), collector, opts),
		registry: registry,
		secret:   secret,
	}
}

func (f *streamFixture) apiKey(t *testing.T, plaintext string) string {
	t.Helper()
	enc, err := credentials.Encrypt(plaintext, f.secret)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	return enc
}

func messagesBody(apiKey string) string {
	return `{"messages":[{"role":"user","content":"hi"}],"api_key":"` + apiKey + `"}`
}

// serve runs the handler and reports whether it aborted the connection.
func (f *streamFixture) serve(r *http.Request) (*httptest.ResponseRecorder, bool) {
	w := httptest.NewRecorder()
	return w, f.serveTo(w, r)
}

func (f *streamFixture) serveTo(w http.ResponseWriter, r *http.Request) (aborted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec != http.ErrAbortHandler {
				panic(rec)
			}
			aborted = true
		}
	}()
	f.handler.ServeHTTP(w, r)
	return false
}

// slowRecorder delays every write, like a client draining its socket slowly.
type slowRecorder struct {
	*httptest.ResponseRecorder
	delay time.Duration
}

func (s *slowRecorder) Write(b []byte) (int, error) {
	time.Sleep(s.delay)
	return s.ResponseRecorder.Write(b)
}

func (f *streamFixture) termination(provider, reason string) float64 {
	families, err := f.registry.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != "relay_proxy_stream_terminations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["provider"] == provider && labels["reason"] == reason {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// sseServer writes each chunk and flushes it.
func sseServer(t *testing.T, check func(r *http.Request), chunks ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, c := range chunks {
			w.Write([]byte(c))
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStreamHandler_Mistral(t *testing.T) {
	server := sseServer(t, func(r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-plain" {
			t.Errorf("Authorization = %q, want decrypted key", got)
		}
	},
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo <b>\"}}]}\n\ndata: [DONE]\n\n",
	)

	f := newStreamFixture(t, providers.KindMistral, server.URL, StreamOptions{})
	req := httptest.NewRequest(http.MethodPost, "/mistral", strings.NewReader(messagesBody(f.apiKey(t, "sk-plain"))))

	w, aborted := f.serve(req)
	if aborted {
		t.Fatal("handler aborted a clean stream")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := w.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("X-Accel-Buffering = %q", got)
	}

	want := "{\"message\":\"Hel\"}\n{\"message\":\"lo <b>\"}\n"
	if w.Body.String() != want {
		t.Errorf("body = %q, want %q", w.Body.String(), want)
	}
	if got := f.termination("mistral", metrics.ReasonDone); got != 1 {
		t.Errorf("done terminations = %v, want 1", got)
	}
}

func TestStreamHandler_GeminiUpstreamClose(t *testing.T) {
	server := sseServer(t, func(r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "AIza-plain" {
			t.Errorf("key query = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
	},
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"a\"},{\"text\":\"b\"}]}}]}\r\n\r\n",
	)

	f := newStreamFixture(t, providers.KindGemini, server.URL, StreamOptions{})
	body := `{"contents":[{"role":"user","parts":[{"text":"hi"}]}],"api_key":"` + f.apiKey(t, "AIza-plain") + `"}`

	w, aborted := f.serve(httptest.NewRequest(http.MethodPost, "/gemini", strings.NewReader(body)))
	if aborted {
		t.Fatal("handler aborted a clean stream")
	}
	if w.Body.String() != "{\"message\":\"a\"}\n{\"message\":\"b\"}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
	if got := f.termination("gemini", metrics.ReasonEOF); got != 1 {
		t.Errorf("eof terminations = %v, want 1", got)
	}
}

func TestStreamHandler_PreStreamErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	f := newStreamFixture(t, providers.KindGPT, server.URL, StreamOptions{})
	valid := f.apiKey(t, "sk-plain")

	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantCode     string
		wantUpstream bool
	}{
		{name: "invalid json", body: `{"messages":`, wantStatus: 400, wantCode: types.CodeInvalidJSON},
		{name: "missing api key", body: `{"messages":[{"role":"user","content":"hi"}]}`, wantStatus: 400, wantCode: types.CodeMissingField},
		{name: "empty messages", body: `{"messages":[],"api_key":"` + valid + `"}`, wantStatus: 400, wantCode: types.CodeMissingField},
		{name: "malformed credential", body: messagesBody("not-a-credential"), wantStatus: 400, wantCode: types.CodeMalformedCredential},
		{name: "non-hex iv", body: messagesBody("zz" + strings.Repeat("00", 15) + ":aa"), wantStatus: 400, wantCode: types.CodeMalformedCredential},
		{name: "undecryptable credential", body: messagesBody(strings.Repeat("00", 16) + ":aa"), wantStatus: 400, wantCode: types.CodeInvalidCredential},
		{name: "upstream rejects", body: messagesBody(valid), wantStatus: 502, wantCode: types.CodeProviderError, wantUpstream: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls.Load()
			w, aborted := f.serve(httptest.NewRequest(http.MethodPost, "/gpt", strings.NewReader(tt.body)))
			if aborted {
				t.Fatal("pre-stream error must not abort")
			}
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var resp types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
			if called := calls.Load() > before; called != tt.wantUpstream {
				t.Errorf("upstream called = %v, want %v", called, tt.wantUpstream)
			}
		})
	}
}

func TestStreamHandler_CredentialFailureMetric(t *testing.T) {
	f := newStreamFixture(t, providers.KindGPT, "http://127.0.0.1:1", StreamOptions{})

	f.serve(httptest.NewRequest(http.MethodPost, "/gpt", strings.NewReader(messagesBody("abc"))))

	expected := `
# HELP relay_proxy_credential_failures_total Total number of rejected encrypted credentials by reason
# TYPE relay_proxy_credential_failures_total counter
relay_proxy_credential_failures_total{reason="separator"} 1
`
	if err := testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "relay_proxy_credential_failures_total"); err != nil {
		t.Error(err)
	}
}

func TestStreamHandler_ParseFailureAborts(t *testing.T) {
	server := sseServer(t, nil,
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n",
		"data: {not json}\n\n",
	)

	f := newStreamFixture(t, providers.KindMistral, server.URL, StreamOptions{Policy: stream.PolicyFail})
	req := httptest.NewRequest(http.MethodPost, "/mistral", strings.NewReader(messagesBody(f.apiKey(t, "k"))))

	w, aborted := f.serve(req)
	if !aborted {
		t.Fatal("expected http.ErrAbortHandler panic")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, headers were already committed", w.Code)
	}
	if strings.Contains(w.Body.String(), "error") {
		t.Errorf("no error JSON may follow committed headers, got %q", w.Body.String())
	}
	if got := f.termination("mistral", metrics.ReasonParseError); got != 1 {
		t.Errorf("parse_error terminations = %v, want 1", got)
	}
}

func TestStreamHandler_IdleTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	f := newStreamFixture(t, providers.KindGPT, server.URL, StreamOptions{IdleTimeout: 100 * time.Millisecond})
	req := httptest.NewRequest(http.MethodPost, "/gpt", strings.NewReader(messagesBody(f.apiKey(t, "k"))))

	done := make(chan struct{})
	var (
		w       *httptest.ResponseRecorder
		aborted bool
	)
	go func() {
		defer close(done)
		w, aborted = f.serve(req)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("idle watchdog did not end the stream")
	}

	if !aborted {
		t.Error("idle timeout should abort the connection")
	}
	if w.Body.String() != "{\"message\":\"first\"}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
	if got := f.termination("gpt", metrics.ReasonIdleTimeout); got != 1 {
		t.Errorf("idle_timeout terminations = %v, want 1", got)
	}
}

func TestStreamHandler_SlowClientIsNotIdle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		for range 5 {
			w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n"))
			w.(http.Flusher).Flush()
			time.Sleep(20 * time.Millisecond)
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	f := newStreamFixture(t, providers.KindGPT, server.URL, StreamOptions{IdleTimeout: 100 * time.Millisecond})
	req := httptest.NewRequest(http.MethodPost, "/gpt", strings.NewReader(messagesBody(f.apiKey(t, "k"))))

	w := &slowRecorder{ResponseRecorder: httptest.NewRecorder(), delay: 250 * time.Millisecond}
	if f.serveTo(w, req) {
		t.Fatal("slow client must not trip the idle watchdog")
	}

	if got := strings.Count(w.Body.String(), "{\"message\":\"x\"}\n"); got != 5 {
		t.Errorf("events = %d, want 5 (body %q)", got, w.Body.String())
	}
	if got := f.termination("gpt", metrics.ReasonIdleTimeout); got != 0 {
		t.Errorf("idle_timeout terminations = %v, want 0", got)
	}
	if got := f.termination("gpt", metrics.ReasonDone); got != 1 {
		t.Errorf("done terminations = %v, want 1", got)
	}
}

func TestStreamHandler_ClientDisconnect(t *testing.T) {
	upstreamGone := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		close(upstreamGone)
	}))
	defer server.Close()

	f := newStreamFixture(t, providers.KindGPT, server.URL, StreamOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/gpt", strings.NewReader(messagesBody(f.apiKey(t, "k")))).WithContext(ctx)

	done := make(chan bool)
	go func() {
		_, aborted := f.serve(req)
		done <- aborted
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case aborted := <-done:
		if aborted {
			t.Error("client disconnect must return quietly, not abort")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	select {
	case <-upstreamGone:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream connection was not released")
	}

	if got := f.termination("gpt", metrics.ReasonClientGone); got != 1 {
		t.Errorf("client_gone terminations = %v, want 1", got)
	}
}
