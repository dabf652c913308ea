package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/validate"
)

// Error codes that do not come from a model.ErrorKind.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)

type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

var (
	errMissingKey = &apiError{http.StatusBadRequest, string(model.KindValidation), HeaderIdempotencyKey + " header is required"}
	errBadBody    = &apiError{http.StatusBadRequest, CodeBadRequest, "request body could not be read"}
	errTooLarge   = &apiError{http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body is too large"}
)

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorDetail carries the error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func classify(err error) (int, ErrorDetail) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ErrorDetail{Code: ae.code, Message: ae.message}
	}

	kind := model.KindOf(err)
	msg := "internal error"
	var me *model.Error
	if errors.As(err, &me) && kind != model.KindInternal {
		msg = me.Message
	}

	switch kind {
	case model.KindConflict:
		return http.StatusConflict, ErrorDetail{Code: string(kind), Message: msg}
	case model.KindNotFound:
		return http.StatusNotFound, ErrorDetail{Code: string(kind), Message: msg}
	case model.KindValidation:
		if errors.Is(err, validate.ErrMalformed) {
			return http.StatusBadRequest, ErrorDetail{Code: CodeBadRequest, Message: msg}
		}
		return http.StatusUnprocessableEntity, ErrorDetail{Code: string(kind), Message: msg}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: string(kind), Message: msg}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, ErrorBody{Error: detail, RequestID: middleware.GetReqID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, b)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
