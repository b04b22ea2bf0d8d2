package server

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/cartsync/config"
	"github.com/shashiranjanraj/cartsync/internal/metrics"
	"github.com/shashiranjanraj/cartsync/internal/order"
	"github.com/shashiranjanraj/cartsync/internal/persist"
	"github.com/shashiranjanraj/cartsync/pkg/middleware"
	"github.com/shashiranjanraj/cartsync/pkg/reqid"
	"github.com/shashiranjanraj/cartsync/pkg/response"
	"github.com/shashiranjanraj/cartsync/pkg/router"
)

// CartLoader reads a user's stored cart; *persist.Chain implements it.
type CartLoader interface {
	Load(ctx context.Context, userID string) (persist.Record, []persist.Attempt, error)
}

// Deps are the services behind the API.
type Deps struct {
	Ledger order.Ledger
	// Carts may be nil, in which case the cart routes are not mounted.
	Carts CartLoader
	// Watcher enables /api/carts/{userId}/events. May be nil.
	Watcher persist.Watcher
	// Limiter defaults to RATE_LIMIT_PER_MINUTE requests per minute per IP.
	Limiter *middleware.Limiter
}

// NewRouter builds the API. Global middleware, outermost first: metrics,
// recovery, request id, logging, CORS, rate limit.
func NewRouter(d Deps) *router.Router {
	if d.Limiter == nil {
		d.Limiter = middleware.NewLimiter(config.RateLimitPerMinute(), time.Minute)
	}

	r := router.New()
	r.Use(
		metrics.Middleware(router.Pattern),
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		middleware.CORS(middleware.CORSFromList(config.CORSOrigins())),
	)

	r.Get("/healthz", "health", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", "metrics", metrics.Handler())

	api := r.Group("/api", middleware.RateLimit(d.Limiter))

	orders := &orderHandler{ledger: d.Ledger}
	api.Get("/orders", "orders.index", orders.index)
	api.Get("/orders/{id}", "orders.show", orders.show)
	api.Patch("/orders/{id}/status", "orders.status", orders.updateStatus)

	if d.Carts != nil {
		carts := &cartHandler{carts: d.Carts}
		api.Get("/carts/{userId}", "carts.show", carts.show)
	}
	if d.Watcher != nil {
		live := &cartStream{watcher: d.Watcher, heartbeat: heartbeatInterval}
		api.Get("/carts/{userId}/events", "carts.events", live.serve)
	}
	return r
}
