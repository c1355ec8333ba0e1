package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bsltours/tours-bff/internal/errs"
)

// DefaultRetryAfterSeconds is the Retry-After value sent with a 429.
const DefaultRetryAfterSeconds = 1

// ErrTooManySubmissions is returned to throttled clients.
var ErrTooManySubmissions = errs.New(errs.ResourceExhausted, "Too many submissions. Please wait a moment and try again.")

// Middleware enforces limits keyed by getKey (normally the client IP).
// Requests without a key pass through unthrottled. Rejections are JSON so
// browser forms can show the message the same way as validation errors.
func Middleware(limiter *RateLimiter, getKey func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			l := limiter.GetLimiter(key)
			if !l.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(errs.HTTPStatus(errs.CodeOf(ErrTooManySubmissions)))
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": errs.MessageOf(ErrTooManySubmissions),
				})
				return
			}

			remaining := int(l.Tokens())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}
