package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
)

func (s *Server) routes() {
	s.mux.HandleFunc("GET "+api.PathPing, s.handlePing)
	s.mux.HandleFunc("POST "+api.PathLogin, s.handleLogin)

	s.mux.Handle("POST "+api.PathEvaluations, s.authenticated(s.handleCreateEvaluation))
	s.mux.Handle("PUT "+api.PathEvaluations+"/{id}", s.authenticated(s.handleUpdateEvaluation))
	s.mux.Handle("GET "+api.PathEvaluations, s.authenticated(s.handleListEvaluations))

	s.mux.Handle("GET "+api.PathCompanies, s.authenticated(s.handleCompanies))
	s.mux.Handle("GET "+api.PathLocations, s.authenticated(s.handleLocations))
	s.mux.Handle("GET "+api.PathUsers, s.authenticated(s.handleUsers))
	s.mux.Handle("GET "+api.PathChecklistTemplates, s.authenticated(s.handleTemplates))

	s.mux.Handle("POST "+api.PathExports, s.authenticated(s.handleExport))
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.PingResponse{Status: "OK"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeError(w, r, common.ErrUnauthorized)
		return
	}

	resp, err := s.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateEvaluation(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var in api.EvaluationPayload
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.ClientID == "" {
		in.ClientID = r.Header.Get(common.ClientIDHeaderName)
	}

	id, created, err := s.svc.Evaluations.Create(r.Context(), p, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, api.CreateEvaluationResponse{ID: id})
}

func (s *Server) handleUpdateEvaluation(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, badRequest("invalid evaluation id"))
		return
	}

	var in api.EvaluationPayload
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.ClientID == "" {
		in.ClientID = r.Header.Get(common.ClientIDHeaderName)
	}

	if err := s.svc.Evaluations.Update(r.Context(), p, id, in); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	q := r.URL.Query()

	from, err := parseDate(q.Get(api.ParamFrom))
	if err != nil {
		s.writeError(w, r, badRequest("invalid from date"))
		return
	}
	to, err := parseDate(q.Get(api.ParamTo))
	if err != nil {
		s.writeError(w, r, badRequest("invalid to date"))
		return
	}
	offset, err := parseInt(q.Get(api.ParamOffset))
	if err != nil {
		s.writeError(w, r, badRequest("invalid offset"))
		return
	}
	limit, err := parseInt(q.Get(api.ParamLimit))
	if err != nil {
		s.writeError(w, r, badRequest("invalid limit"))
		return
	}

	page, err := s.svc.Evaluations.List(r.Context(), p, from, to, offset, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.svc.Reference.Companies(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.svc.Reference.Locations(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.svc.Reference.Users(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := s.svc.Reference.Templates(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	// the body is optional
	var req api.ExportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}

	resp, err := s.svc.Exports.Presign(r.Context(), p, req.ContentType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, strings.TrimSpace(s))
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return n, nil
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
