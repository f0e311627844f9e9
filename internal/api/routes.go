// Package api wires the checkout HTTP surface: session creation,
// post-payment reconciliation and the usual ops endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecole-masso/checkout-api/internal/catalog"
	"github.com/ecole-masso/checkout-api/internal/config"
	"github.com/ecole-masso/checkout-api/internal/crm"
	"github.com/ecole-masso/checkout-api/internal/payments"
)

// Routes served by this API.
const (
	RouteCreateSession = "/api/checkout/session"
	RouteConfirm       = "/api/checkout/confirm"
	RouteSummary       = "/api/checkout/summary"
)

// ContactService is the CRM surface consumed by the confirm handler.
type ContactService interface {
	UpsertContact(ctx context.Context, contact crm.Contact) (string, error)
	ApplyTags(ctx context.Context, contactID string, tags []string) []crm.TagOutcome
}

// Deps holds shared dependencies injected into HTTP handlers.
type Deps struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Payments payments.Gateway
	CRM      ContactService
}

// RegisterRoutes wires all HTTP handlers onto the given ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	limiter := NewRateLimiter(deps.Config.RateLimit, deps.Config.RateWindow)
	endpoint := func(route string, h http.Handler) {
		mux.Handle(route, limiter.Middleware(recoverer(requestLogger(route, corsPost(h)))))
	}

	endpoint(RouteCreateSession, handleCreateSession(deps))
	endpoint(RouteConfirm, handleConfirm(deps))
	endpoint(RouteSummary, handleSummary(deps))

	// Liveness/readiness probes and Prometheus metrics.
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
}

// handleHealthz is both the liveness and readiness probe: the service is
// stateless, so being up means being ready.
func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
