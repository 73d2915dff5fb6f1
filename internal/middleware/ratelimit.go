package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/httpx"
)

// RateLimit allows requests per client IP per window. Counters live in this
// process only, so every instance of a multi-instance deployment limits
// independently. Run it after chi's RealIP when behind a trusted proxy.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, apierr.New(apierr.CodeRateLimit, "Too many requests, please try again later"))
		}),
	)
}
