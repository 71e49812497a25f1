package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ritzau/thoughtgraph/pkg/logging"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/ritzau/thoughtgraph/pkg/store"
)

// errBadRequest marks malformed request bodies and parameters
var errBadRequest = errors.New("bad request")

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

// statusFor maps engine errors onto HTTP status codes: validation problems
// are the caller's fault, a pair collision is a conflict, anything else is
// ours.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrSelfLoop),
		errors.Is(err, model.ErrInvalidKind),
		errors.Is(err, model.ErrEmptyID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicatePair):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request error", "path", r.URL.Path, "error", err)
	} else {
		logging.DebugContext(r.Context(), "rejected request", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeBody reads a JSON body into v and validates it. An empty body is
// accepted when optional is set.
func (s *Server) decodeBody(r *http.Request, v any, optional bool) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return s.validate.Struct(v)
}
