// Package httpapi exposes the server services over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
)

const (
	maxBodySize     = 1 << 20
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Authenticator turns a bearer token into a principal and checks logins.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Authenticate(token string) (auth.Principal, error)
}

type Evaluations interface {
	Create(ctx context.Context, p auth.Principal, in api.EvaluationPayload) (int64, bool, error)
	Update(ctx context.Context, p auth.Principal, id int64, in api.EvaluationPayload) error
	List(ctx context.Context, p auth.Principal, from, to time.Time, offset, limit int) (*api.EvaluationPage, error)
}

type Reference interface {
	Companies(ctx context.Context, p auth.Principal) ([]api.Company, error)
	Locations(ctx context.Context, p auth.Principal) ([]api.Location, error)
	Templates(ctx context.Context, p auth.Principal) ([]api.ChecklistTemplate, error)
	Users(ctx context.Context, p auth.Principal) ([]api.User, error)
}

type Exports interface {
	Presign(ctx context.Context, p auth.Principal, contentType string) (*api.ExportResponse, error)
}

// Services bundles what the handlers call into.
type Services struct {
	Auth        Authenticator
	Evaluations Evaluations
	Reference   Reference
	Exports     Exports
}

type Server struct {
	address string
	logger  logging.Logger
	svc     Services
	mux     *http.ServeMux
}

func NewServer(addr string, l logging.Logger, svc Services) *Server {
	s := &Server{
		address: addr,
		logger:  l.With("module", "http_server"),
		svc:     svc,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(sctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
