// Package api exposes the loan service over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/loanflow/loanflow/internal/service"
)

// Headers read and written by the API.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

const maxBodyBytes = 1 << 20

// Handler serves the loan API.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// NewRouter builds the chi router for svc.
func NewRouter(svc *service.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/applications", func(r chi.Router) {
		r.Post("/", h.createApplication)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getApplication)
			r.Get("/audit", h.listAudit)
			r.Post("/kyc", h.updateKYC)
			r.Post("/fraud", h.updateFraud)
			r.Post("/credit-score", h.updateCreditScore)
			r.Post("/decision/dry-run", h.dryRunDecision)
			r.Post("/decision/execute", h.executeDecision)
			r.Post("/decision/plan", h.createPlan)
		})
	})
	r.Get("/plans/{plan_id}", h.getPlan)
	r.Post("/plans/{plan_id}/execute", h.executePlan)
	r.Post("/offers/{id}/accept", h.acceptOffer)
	r.Post("/bookings", h.createBooking)

	return r
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
				"replayed", ww.Header().Get(HeaderReplayed) == "true",
			)
		})
	}
}
