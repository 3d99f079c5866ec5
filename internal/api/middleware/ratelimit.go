package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/saferoute/saferoute/internal/api/models"
)

// RateLimitConfig is a fixed-window request budget per client IP.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Budgets for the public endpoints. A safest-route request fans out into
// one crime feed call per sample, so /route gets the tightest budget;
// /geocode and /places are bounded by the OSM usage policies.
var (
	RouteRateLimit     = RateLimitConfig{RequestLimit: 20, WindowLength: time.Minute}
	ExpensiveRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}
	StandardRateLimit  = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client address using httprate. Clients
// over budget get a 429 envelope with Retry-After set to the window length,
// since httprate does not expose when the current window resets.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(cfg.WindowLength / time.Second))

	return httprate.Limit(cfg.RequestLimit, cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded").
				WithMessage("Please try again later.").
				Write(w)
		}),
	)
}
