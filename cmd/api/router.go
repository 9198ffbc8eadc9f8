package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventify/eventify-api/internal/config"
	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/points"
	"github.com/eventify/eventify-api/internal/domain/transaction"
	"github.com/eventify/eventify-api/internal/middleware"
	"github.com/eventify/eventify-api/internal/pkg/jwt"
	"github.com/eventify/eventify-api/internal/pkg/response"
)

type routes struct {
	cfg          *config.Config
	jwt          *jwt.Service
	transactions *transaction.Handler
	coupons      *coupon.Handler
	points       *points.Handler
	ws           http.Handler
	// ready reports whether the database answers; nil skips the check
	ready func(ctx context.Context) error
}

func newRouter(rt routes) chi.Router {
	authMiddleware := middleware.Auth(rt.jwt)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(rt.cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if rt.ready != nil {
			if err := rt.ready(r.Context()); err != nil {
				response.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unavailable")
				return
			}
		}
		response.OK(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if rt.ws != nil {
		r.Get("/ws", rt.ws.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			response.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/transactions", rt.transactions.Routes(authMiddleware))
		r.Mount("/events", rt.transactions.EventRoutes(authMiddleware))
		r.Mount("/coupons", rt.coupons.Routes(authMiddleware))
		r.Mount("/points", rt.points.Routes(authMiddleware))
	})

	return r
}
