package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/server/services"
)

// requestError is a malformed request caught before reaching a service.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Internal details never
// leave the server; they are logged instead.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr *requestError
		valErr *services.ValidationError
	)

	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: reqErr.msg})
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{Error: common.ErrValidation.Error(), Fields: valErr.Fields})
	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: common.ErrUnauthorized.Error()})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: common.ErrNotFound.Error()})
	case errors.Is(err, common.ErrConflict):
		writeJSON(w, http.StatusConflict, api.ErrorResponse{Error: common.ErrConflict.Error()})
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: common.ErrInternal.Error()})
	}
}
