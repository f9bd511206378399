package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/tabiplan/planner/internal/domain"
	"github.com/tabiplan/planner/internal/middleware"
	"github.com/tabiplan/planner/internal/planner"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ConflictResponse is returned with 409 when a placement overlaps other boxes.
type ConflictResponse struct {
	Error    ErrorDetail           `json:"error"`
	Conflict domain.ConflictResult `json:"conflict"`
}

// notFoundBody returns an ErrorResponse for a missing resource.
// The caller supplies the message (e.g. "trip not found") because the
// handler is the layer that knows what was being looked up.
func notFoundBody(message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: "not_found", Message: message}}
}

// validationBody returns an ErrorResponse for a domain validation failure.
func validationBody(err error) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: "validation_error", Message: unwrapMessage(err)}}
}

// requestBody returns an ErrorResponse for a request rejected before it
// reached the service layer (missing body, malformed parameter).
func requestBody(message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: "validation_error", Message: message}}
}

func conflictBody(result domain.ConflictResult) ConflictResponse {
	msg := fmt.Sprintf("overlaps %d plan box(es)", len(result.Conflicting))
	if result.SuggestedStart != nil {
		msg += "; next free start " + result.SuggestedStart.String()
	}
	return ConflictResponse{Error: ErrorDetail{Code: "conflict", Message: msg}, Conflict: result}
}

func persistenceBody() ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: "persistence_error", Message: "storage unavailable, retry later"}}
}

// unwrapMessage extracts the human-readable part of a wrapped validation error.
// e.g. "service.TripService.Create: validation error: title: cannot be blank." -> "title: cannot be blank."
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	marker := domain.ErrValidation.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}

// writeError maps a service error onto its status code and body.
// notFound is the message used for domain.ErrNotFound.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var conflict *domain.ConflictError
	var persistence *domain.PersistenceError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, conflictBody(conflict.Result))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, notFoundBody(notFound))
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody(err))
	case errors.As(err, &persistence):
		s.log.WarnContext(r.Context(), "persistence failure", "op", persistence.Op, "error", persistence.Err)
		writeJSON(w, http.StatusServiceUnavailable, persistenceBody())
	case errors.Is(err, planner.ErrGestureInProgress), errors.Is(err, planner.ErrNoGesture):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: ErrorDetail{Code: "gesture_state", Message: err.Error()}})
	default:
		s.log.ErrorContext(r.Context(), "unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{Code: "internal_error", Message: "internal server error"}})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a JSON request body into dst, writing a 422 (or 413
// when the body limit was hit) and returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("request body is required"))
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				ErrorResponse{Error: ErrorDetail{Code: "payload_too_large", Message: "request body too large"}})
			return false
		}
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("invalid request body: "+unwrapMessage(err)))
		return false
	}
	return true
}

// actor returns the authenticated owner, writing 401 when there is none.
func actor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorDetail{Code: "unauthorized", Message: "authentication required"}})
	}
	return owner, ok
}

// pathParam binds the chi URL parameter name into dest the same way
// oapi-codegen generated servers do, writing a 422 on failure.
func pathParam(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(fmt.Sprintf("invalid format for parameter %s", name)))
		return false
	}
	return true
}

// queryParam binds an optional form-style query parameter into dest.
func queryParam(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(fmt.Sprintf("invalid format for parameter %s", name)))
		return false
	}
	return true
}
