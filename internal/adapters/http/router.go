package http

import (
	"context"
	"net/http"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/application"
	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *application.Service
	ready   func(ctx context.Context) error
}

func NewHandler(service *application.Service, ready func(ctx context.Context) error) *Handler {
	return &Handler{service: service, ready: ready}
}

// RouterOptions carries the optional observability hooks of the router.
type RouterOptions struct {
	Metrics        http.Handler
	ObserveRequest func(method, route string, statusCode int, elapsed time.Duration)
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware(opts.ObserveRequest))

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.optionalAuthMiddleware)
			r.Post("/sellers/apply", handler.applySeller)
			r.Post("/promoters/apply", handler.applyPromoter)
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/auth/confirm", handler.confirmIdentity)
			r.Post("/members/draft", handler.saveDraft)
			r.Post("/members/register", handler.register)
			r.Post("/invitations/claim", handler.claimInvitation)
			r.Get("/members/profile", handler.getMemberProfile)
			r.Get("/stewards/marketplace", handler.stewardMarketplace)
			r.Get("/stewards/me", handler.getOwnSteward)
			r.Post("/sellers/me/products", handler.createProduct)

			r.Group(func(r chi.Router) {
				r.Use(handler.requireRegistered)
				r.Get("/auth/me", handler.getMe)
				r.Post("/stewards/apply", handler.applySteward)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Use(handler.requireAdmin)
			r.Put("/sellers/{id}", handler.decideApplication(domain.ProfileKindSeller))
			r.Put("/promoters/{id}", handler.decideApplication(domain.ProfileKindPromoter))
			r.Put("/stewards/{id}", handler.decideApplication(domain.ProfileKindSteward))
			r.Put("/members/{id}/verification", handler.setMemberVerification)
			r.Put("/sellers/{id}/verification", handler.setSellerVerification)
			r.Delete("/accounts/{id}", handler.removeAccount)
		})
	})
	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
