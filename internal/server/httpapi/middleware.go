package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
)

type ctxKey string

// principalKey holds a *auth.Principal slot set up by logRequests and filled
// by authenticated, so the access log can name the caller.
const principalKey ctxKey = "principal"

type authHandler func(http.ResponseWriter, *http.Request, auth.Principal)

// authenticated rejects requests without a valid bearer token and hands the
// caller's principal to next.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, common.ErrUnauthorized)
			return
		}

		p, err := s.svc.Auth.Authenticate(token)
		if err != nil {
			s.logger.Debug(r.Context(), "token rejected", "path", r.URL.Path, "error", err)
			s.writeError(w, r, err)
			return
		}

		if slot, ok := r.Context().Value(principalKey).(*auth.Principal); ok {
			*slot = p
		}
		next(w, r, p)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(common.AuthorizationHeaderName)
	if !strings.HasPrefix(h, common.BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, common.BearerPrefix))
	return token, token != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		var p auth.Principal
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), principalKey, &p)))

		args := []any{"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start)}
		if p.UserID != 0 {
			args = append(args, "user_id", p.UserID, "company_id", p.CompanyID)
		}
		s.logger.Info(r.Context(), "request", args...)
	})
}
