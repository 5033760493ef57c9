package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// corsRouter mounts routes shaped like the relay's behind the middleware.
func corsRouter(cfg *CORSConfig) http.Handler {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	r := chi.NewRouter()
	r.Use(CORSMiddleware(cfg))
	r.Post("/gpt", ok)
	r.Get("/conversation/{id}", ok)
	r.Put("/conversation/{id}", ok)
	r.Delete("/conversation/{id}", ok)
	return r
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		config        *CORSConfig
		method        string
		path          string
		origin        string
		requestMethod string
		wantStatus    int
		wantHeader    map[string]string
	}{
		{
			name: "allowed origin",
			config: &CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"https://chat.example.com"},
				ExposedHeaders: []string{"X-Request-ID"},
			},
			method:     http.MethodPost,
			path:       "/gpt",
			origin:     "https://Chat.Example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{
				"Access-Control-Allow-Origin":   "https://Chat.Example.com",
				"Access-Control-Expose-Headers": "X-Request-ID",
				"Vary":                          "Origin",
			},
		},
		{
			name:       "wildcard origin",
			config:     DefaultCORSConfig(),
			method:     http.MethodPost,
			path:       "/gpt",
			origin:     "https://anything.example",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": "https://anything.example"},
		},
		{
			name:       "no origin header",
			config:     DefaultCORSConfig(),
			method:     http.MethodPost,
			path:       "/gpt",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": "", "Vary": ""},
		},
		{
			name:       "disallowed origin still served",
			config:     &CORSConfig{Enabled: true, AllowedOrigins: []string{"https://chat.example.com"}},
			method:     http.MethodPost,
			path:       "/gpt",
			origin:     "https://evil.example",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:       "disabled",
			config:     &CORSConfig{Enabled: false, AllowedOrigins: []string{"*"}},
			method:     http.MethodPost,
			path:       "/gpt",
			origin:     "https://chat.example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name: "credentials",
			config: &CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"https://chat.example.com"},
				AllowCredentials: true,
			},
			method:     http.MethodPost,
			path:       "/gpt",
			origin:     "https://chat.example.com",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Credentials": "true"},
		},
		{
			name:          "stream preflight offers post only",
			config:        DefaultCORSConfig(),
			method:        http.MethodOptions,
			path:          "/gpt",
			origin:        "https://chat.example.com",
			requestMethod: http.MethodPost,
			wantStatus:    http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Methods": "POST",
				"Access-Control-Allow-Headers": "Content-Type, X-Request-ID",
				"Access-Control-Max-Age":       "3600",
			},
		},
		{
			name:          "conversation preflight",
			config:        DefaultCORSConfig(),
			method:        http.MethodOptions,
			path:          "/conversation/0b6f0c5e-8f8e-4c53-9d38-1f6a4b1e2d3c",
			origin:        "https://chat.example.com",
			requestMethod: http.MethodPut,
			wantStatus:    http.StatusNoContent,
			wantHeader:    map[string]string{"Access-Control-Allow-Methods": "GET, PUT, DELETE"},
		},
		{
			name:          "preflight for unrouted method",
			config:        DefaultCORSConfig(),
			method:        http.MethodOptions,
			path:          "/gpt",
			origin:        "https://chat.example.com",
			requestMethod: http.MethodDelete,
			wantStatus:    http.StatusForbidden,
			wantHeader:    map[string]string{"Access-Control-Allow-Methods": ""},
		},
		{
			name: "preflight for method outside config",
			config: &CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{http.MethodGet},
			},
			method:        http.MethodOptions,
			path:          "/gpt",
			origin:        "https://chat.example.com",
			requestMethod: http.MethodPost,
			wantStatus:    http.StatusForbidden,
		},
		{
			name:          "preflight from disallowed origin",
			config:        &CORSConfig{Enabled: true, AllowedOrigins: []string{"https://chat.example.com"}, AllowedMethods: []string{http.MethodPost}},
			method:        http.MethodOptions,
			path:          "/gpt",
			origin:        "https://evil.example",
			requestMethod: http.MethodPost,
			wantStatus:    http.StatusForbidden,
			wantHeader:    map[string]string{"Access-Control-Allow-Origin": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.requestMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.requestMethod)
			}
			w := httptest.NewRecorder()

			corsRouter(tt.config).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			for k, v := range tt.wantHeader {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestCORSMiddleware_OutsideRouter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/anything", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()

	CORSMiddleware(DefaultCORSConfig())(ok).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, DELETE" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}
