package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reservesurf/booking-funnel/internal/observability"
	"github.com/reservesurf/booking-funnel/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Get("/v1/catalog/categories", h.ListCategories)
	r.Get("/v1/catalog/categories/{id}/classes", h.ListClasses)
	r.Get("/v1/catalog/classes/{id}/slots", h.ListTimeSlots)

	r.Get("/v1/funnel", h.GetFunnel)
	r.Post("/v1/funnel/category", h.SelectCategory)
	r.Post("/v1/funnel/class", h.SelectClass)
	r.Post("/v1/funnel/schedule", h.SelectSchedule)
	r.Post("/v1/funnel/commit", h.CommitToCart)
	r.Post("/v1/funnel/back", h.FunnelBack)
	r.Post("/v1/funnel/advance", h.FunnelAdvance)
	r.Post("/v1/funnel/reset", h.FunnelReset)

	r.Get("/v1/cart", h.GetCart)
	r.Put("/v1/cart/lines/{lineID}", h.SetCartQuantity)
	r.Delete("/v1/cart/lines/{lineID}", h.RemoveCartLine)
	r.Post("/v1/cart/promo", h.ApplyPromo)
	r.Post("/v1/cart/redemption", h.ApplyRedemption)

	r.Put("/v1/profile", h.PutProfile)
	r.Get("/v1/profile/eligibility", h.GetEligibility)

	r.Post("/v1/checkout", h.Checkout)
	r.Get("/v1/bookings/{id}", h.GetBooking)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
