package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
)

var ann = auth.Principal{UserID: 20, CompanyID: 1, Role: "evaluator"}

type fakeAuth struct {
	loginErr error
	gotEmail string
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*api.LoginResponse, error) {
	f.gotEmail = email
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.LoginResponse{Token: "jwt", User: api.User{ID: ann.UserID, CompanyID: ann.CompanyID, Name: "Ann"}}, nil
}

func (f *fakeAuth) Authenticate(token string) (auth.Principal, error) {
	switch token {
	case "good":
		return ann, nil
	case "expired":
		return auth.Principal{}, common.ErrTokenExpired
	default:
		return auth.Principal{}, common.ErrInvalidToken
	}
}

type listCall struct {
	from, to      time.Time
	offset, limit int
}

type fakeEvaluations struct {
	created   bool
	err       error
	gotCreate api.EvaluationPayload
	gotUpdate int64
	gotList   listCall
	principal auth.Principal
}

func (f *fakeEvaluations) Create(_ context.Context, p auth.Principal, in api.EvaluationPayload) (int64, bool, error) {
	f.principal, f.gotCreate = p, in
	if f.err != nil {
		return 0, false, f.err
	}
	return 77, f.created, nil
}

func (f *fakeEvaluations) Update(_ context.Context, p auth.Principal, id int64, in api.EvaluationPayload) error {
	f.principal, f.gotUpdate, f.gotCreate = p, id, in
	return f.err
}

func (f *fakeEvaluations) List(_ context.Context, p auth.Principal, from, to time.Time, offset, limit int) (*api.EvaluationPage, error) {
	f.principal = p
	f.gotList = listCall{from: from, to: to, offset: offset, limit: limit}
	if f.err != nil {
		return nil, f.err
	}
	return &api.EvaluationPage{Total: 1, Offset: offset, Limit: limit,
		Items: []api.Evaluation{{ID: 5, EvaluationPayload: api.EvaluationPayload{ClientID: "c-1"}}}}, nil
}

type fakeReference struct {
	err error
}

func (f *fakeReference) Companies(context.Context, auth.Principal) ([]api.Company, error) {
	return []api.Company{{ID: 1, Name: "Demo Facilities"}}, f.err
}

func (f *fakeReference) Locations(context.Context, auth.Principal) ([]api.Location, error) {
	return nil, f.err
}

func (f *fakeReference) Templates(context.Context, auth.Principal) ([]api.ChecklistTemplate, error) {
	return []api.ChecklistTemplate{{ID: 30, Name: "Daily"}}, f.err
}

func (f *fakeReference) Users(context.Context, auth.Principal) ([]api.User, error) {
	return []api.User{{ID: 20, Name: "Ann"}}, f.err
}

type fakeExports struct {
	gotContentType string
}

func (f *fakeExports) Presign(_ context.Context, _ auth.Principal, contentType string) (*api.ExportResponse, error) {
	f.gotContentType = contentType
	return &api.ExportResponse{Key: "exports/1/20/k.json", URL: "http://s3/k"}, nil
}

type fixture struct {
	auth        *fakeAuth
	evaluations *fakeEvaluations
	reference   *fakeReference
	exports     *fakeExports
	server      *Server
}

func newFixture() *fixture {
	f := &fixture{
		auth:        &fakeAuth{},
		evaluations: &fakeEvaluations{},
		reference:   &fakeReference{},
		exports:     &fakeExports{},
	}
	f.server = NewServer("127.0.0.1:0", logging.NewNop(), Services{
		Auth:        f.auth,
		Evaluations: f.evaluations,
		Reference:   f.reference,
		Exports:     f.exports,
	})
	return f
}
