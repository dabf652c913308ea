package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/service"
)

type mutation func(r *http.Request, call service.Call, body []byte) (service.Response, error)

// guarded reads the idempotency key and body, then hands them to fn.
func (h *Handler) guarded(fn mutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if key == "" {
			h.writeError(w, r, errMissingKey)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				h.writeError(w, r, errTooLarge)
				return
			}
			h.writeError(w, r, errBadBody)
			return
		}

		resp, err := fn(r, service.Call{Key: key, Route: r.URL.Path, Method: r.Method}, body)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if resp.Replayed {
			w.Header().Set(HeaderReplayed, "true")
		}
		writeRaw(w, resp.Code, resp.Body)
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.writeError(w, r, model.Internal(err, "store unreachable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, body []byte) (service.Response, error) {
		return h.svc.CreateApplication(r.Context(), call, body)
	})(w, r)
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListAudit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) updateKYC(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, body []byte) (service.Response, error) {
		return h.svc.UpdateKYC(r.Context(), call, chi.URLParam(r, "id"), body)
	})(w, r)
}

func (h *Handler) updateFraud(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, body []byte) (service.Response, error) {
		return h.svc.UpdateFraud(r.Context(), call, chi.URLParam(r, "id"), body)
	})(w, r)
}

func (h *Handler) updateCreditScore(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, body []byte) (service.Response, error) {
		return h.svc.UpdateCreditScore(r.Context(), call, chi.URLParam(r, "id"), body)
	})(w, r)
}

func (h *Handler) dryRunDecision(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, _ []byte) (service.Response, error) {
		return h.svc.DryRunDecision(r.Context(), call, chi.URLParam(r, "id"))
	})(w, r)
}

func (h *Handler) executeDecision(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, _ []byte) (service.Response, error) {
		return h.svc.ExecuteDecision(r.Context(), call, chi.URLParam(r, "id"))
	})(w, r)
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, body []byte) (service.Response, error) {
		return h.svc.CreatePlan(r.Context(), call, chi.URLParam(r, "id"), body)
	})(w, r)
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.GetPlan(r.Context(), chi.URLParam(r, "plan_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) executePlan(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, _ []byte) (service.Response, error) {
		return h.svc.ExecutePlan(r.Context(), call, chi.URLParam(r, "plan_id"))
	})(w, r)
}

func (h *Handler) acceptOffer(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, _ []byte) (service.Response, error) {
		return h.svc.AcceptOffer(r.Context(), call, chi.URLParam(r, "id"))
	})(w, r)
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	h.guarded(func(r *http.Request, call service.Call, body []byte) (service.Response, error) {
		return h.svc.CreateBooking(r.Context(), call, body)
	})(w, r)
}
