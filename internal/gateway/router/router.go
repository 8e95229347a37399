// Package router wires the API routes and the middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/ratelimit"
)

// New builds the HTTP handler.
//
// Route table:
//
//	GET    /api/v1/rewrite              → rewrite only
//	GET    /api/v1/parse                → rewrite + downstream parse (cached)
//	GET    /api/v1/phrases              → published dictionary
//	POST   /api/v1/phrases/reload       → reload + fan-out (rate limited)
//	GET    /api/v1/cache/stats          → plan cache counters
//	GET    /api/v1/analytics            → live rewrite stats
//	GET    /api/v1/analytics/snapshot   → last persisted stats
//	GET    /health/live, /health/ready  → probes
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → Timeout → mux
func New(h *handler.Handler, stats *analytics.Handler, checker *health.Checker, limiter *ratelimit.Limiter, m *metrics.Metrics, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("GET /api/v1/rewrite", h.Rewrite)
	mux.HandleFunc("GET /api/v1/parse", h.Parse)
	mux.HandleFunc("GET /api/v1/phrases", h.Phrases)
	mux.Handle("POST /api/v1/phrases/reload", middleware.RateLimit(limiter)(http.HandlerFunc(h.Reload)))
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)

	mux.HandleFunc("GET /api/v1/analytics", stats.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshot", stats.LastSnapshot)

	var chain http.Handler = mux
	if timeout > 0 {
		chain = middleware.Timeout(timeout)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)
	return chain
}
