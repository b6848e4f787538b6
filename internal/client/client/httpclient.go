package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
)

type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

// NewHTTPClient builds a client for the server at baseURL. Per-call deadlines
// come from the caller's context.
func NewHTTPClient(baseURL string, token TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		token:   token,
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp api.PingResponse
	if err := c.do(ctx, http.MethodGet, api.PathPing, nil, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return fmt.Errorf("%w: ping status %q", ErrUnavailable, resp.Status)
	}
	return nil
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	req := api.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, api.PathLogin, req, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateEvaluation posts p and returns the server id. The client id is sent
// as a header too so a retried create resolves to the same record.
func (c *HTTPClient) CreateEvaluation(ctx context.Context, p api.EvaluationPayload) (int64, error) {
	var resp api.CreateEvaluationResponse
	hdr := http.Header{common.ClientIDHeaderName: []string{p.ClientID}}
	if err := c.do(ctx, http.MethodPost, api.PathEvaluations, p, hdr, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *HTTPClient) UpdateEvaluation(ctx context.Context, serverID int64, p api.EvaluationPayload) error {
	path := api.PathEvaluations + "/" + strconv.FormatInt(serverID, 10)
	hdr := http.Header{common.ClientIDHeaderName: []string{p.ClientID}}
	return c.do(ctx, http.MethodPut, path, p, hdr, nil)
}

// ListEvaluations returns one page of server evaluations dated within
// [from, to]. Zero bounds are left open.
func (c *HTTPClient) ListEvaluations(ctx context.Context, from, to time.Time, offset, limit int) (*api.EvaluationPage, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set(api.ParamFrom, from.Format(time.DateOnly))
	}
	if !to.IsZero() {
		q.Set(api.ParamTo, to.Format(time.DateOnly))
	}
	q.Set(api.ParamOffset, strconv.Itoa(offset))
	q.Set(api.ParamLimit, strconv.Itoa(limit))

	var page api.EvaluationPage
	if err := c.do(ctx, http.MethodGet, api.PathEvaluations+"?"+q.Encode(), nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) Companies(ctx context.Context) ([]api.Company, error) {
	return list[api.Company](ctx, c, api.PathCompanies)
}

func (c *HTTPClient) Locations(ctx context.Context) ([]api.Location, error) {
	return list[api.Location](ctx, c, api.PathLocations)
}

func (c *HTTPClient) Users(ctx context.Context) ([]api.User, error) {
	return list[api.User](ctx, c, api.PathUsers)
}

func (c *HTTPClient) ChecklistTemplates(ctx context.Context) ([]api.ChecklistTemplate, error) {
	return list[api.ChecklistTemplate](ctx, c, api.PathChecklistTemplates)
}

// CreateExport asks the server for a presigned upload URL.
func (c *HTTPClient) CreateExport(ctx context.Context, contentType string) (*api.ExportResponse, error) {
	var resp api.ExportResponse
	if err := c.do(ctx, http.MethodPost, api.PathExports, api.ExportRequest{ContentType: contentType}, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func list[T any](ctx context.Context, c *HTTPClient, path string) ([]T, error) {
	var items []T
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, hdr http.Header, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		if token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// a truncated body is a transport problem, not a verdict
		return fmt.Errorf("%w: failed to decode response: %w", ErrUnavailable, err)
	}
	return nil
}

// mapError classifies a transport failure. Any failure to get an answer is
// retryable, including the caller's own deadline.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func statusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}

	var body api.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		se.Message = body.Error
		se.Fields = body.Fields
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		se.kind = ErrUnauthorized
	case resp.StatusCode >= 500,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests:
		se.kind = ErrUnavailable
	default:
		se.kind = ErrRejected
	}
	return se
}
