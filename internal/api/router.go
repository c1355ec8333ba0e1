package api

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/bsltours/tours-bff/internal/netutil"
	"github.com/bsltours/tours-bff/internal/obs"
	"github.com/bsltours/tours-bff/internal/ratelimit"
)

// RouterOptions configures the middleware around the API routes.
type RouterOptions struct {
	// CORSAllowedOrigins defaults to "*" when empty.
	CORSAllowedOrigins []string
	// Limiter throttles POST submissions per client IP. Nil disables it.
	Limiter *ratelimit.RateLimiter
}

// NewRouter returns the full HTTP handler: request correlation, access
// logging, CORS and submission throttling around the API routes.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	var handler http.Handler = mux
	if opts.Limiter != nil {
		handler = ratelimit.Middleware(opts.Limiter, submissionKey)(handler)
	}

	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler = cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", "traceparent"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After", "X-RateLimit-Remaining"},
		MaxAge:         300,
	})(handler)

	handler = obs.AccessLogMiddleware("api", handler)
	return obs.RequestContextMiddleware(handler)
}

// submissionKey limits only POSTs; reads pass through.
func submissionKey(r *http.Request) string {
	if r.Method != http.MethodPost {
		return ""
	}
	return netutil.ClientIP(r)
}
