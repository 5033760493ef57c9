package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// CORSConfig contains configuration for CORS middleware.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	Enabled bool

	// AllowedOrigins is a list of allowed origins. "*" allows any origin.
	AllowedOrigins []string

	// AllowedMethods caps the methods a preflight may be granted. The
	// answer for a given path is narrowed to the methods routed there.
	AllowedMethods []string

	// AllowedHeaders is a list of request headers browsers may send.
	AllowedHeaders []string

	// ExposedHeaders is a list of response headers readable by scripts.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int

	// AllowCredentials controls whether credentials are allowed.
	AllowCredentials bool
}

// DefaultCORSConfig returns the relay's stock CORS settings: any origin may
// open streams and manage conversations, and the request ID is readable.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         3600,
	}
}

// cors is a CORSConfig with its header values joined once up front.
type cors struct {
	anyOrigin   bool
	origins     []string
	methods     []string
	headers     string
	exposed     string
	maxAge      string
	credentials bool
}

func newCORS(cfg *CORSConfig) *cors {
	c := &cors{
		methods:     slices.DeleteFunc(slices.Clone(cfg.AllowedMethods), func(m string) bool { return m == http.MethodOptions }),
		headers:     strings.Join(cfg.AllowedHeaders, ", "),
		exposed:     strings.Join(cfg.ExposedHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			c.anyOrigin = true
			continue
		}
		c.origins = append(c.origins, strings.ToLower(o))
	}
	return c
}

func (c *cors) allowOrigin(origin string) bool {
	return c.anyOrigin || slices.Contains(c.origins, strings.ToLower(origin))
}

// routedMethods returns the allowed methods that the router actually serves
// for path. Outside a chi router every allowed method is reported.
func (c *cors) routedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return c.methods
	}

	var methods []string
	for _, m := range c.methods {
		if rctx.Routes.Match(chi.NewRouteContext(), m, r.URL.Path) {
			methods = append(methods, m)
		}
	}
	return methods
}

// CORSMiddleware adds Cross-Origin Resource Sharing headers for browser
// clients of the stream and conversation routes.
//
// Preflights are answered here with 204 and never reach a handler. The
// granted methods are those both allowed by config and routed for the
// requested path, so a preflight for /gemini offers POST only and one for
// /conversation/{id} offers GET, PUT and DELETE. A preflight for a method
// the path does not serve, or from an origin not in the list, gets 403.
//
//	r.Use(CORSMiddleware(DefaultCORSConfig()))
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	if !config.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	c := newCORS(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !c.allowOrigin(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if c.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if !preflight {
				if c.exposed != "" {
					h.Set("Access-Control-Expose-Headers", c.exposed)
				}
				next.ServeHTTP(w, r)
				return
			}

			methods := c.routedMethods(r)
			if !slices.Contains(methods, r.Header.Get("Access-Control-Request-Method")) {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
			if c.headers != "" {
				h.Set("Access-Control-Allow-Headers", c.headers)
			}
			if c.maxAge != "" {
				h.Set("Access-Control-Max-Age", c.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
