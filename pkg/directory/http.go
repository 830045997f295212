// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tryextra/extra-oidc/pkg/logger"
)

const (
	instrumentationName = "github.com/tryextra/extra-oidc/pkg/directory"

	// DefaultTimeout bounds every directory call when no timeout is configured.
	DefaultTimeout = 5 * time.Second

	// maxResponseSize caps the body read from the directory service.
	maxResponseSize = 1 << 20
)

// HTTPClient talks to the directory service REST API.
type HTTPClient struct {
	baseURL    *url.URL
	token      string
	timeout    time.Duration
	httpClient *http.Client
	tracer     trace.Tracer
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// NewHTTPClient creates a client for the directory service at baseURL,
// authenticating with a bearer token.
func NewHTTPClient(baseURL, token string, opts ...HTTPClientOption) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid directory URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("directory URL must be absolute: %q", baseURL)
	}

	c := &HTTPClient{
		baseURL: u,
		token:   token,
		timeout: DefaultTimeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Users returns the users collection.
func (c *HTTPClient) Users() Users { return &httpUsers{c} }

// Clients returns the clients collection.
func (c *HTTPClient) Clients() Clients { return &httpClients{c} }

// Authorizations returns the authorizations collection.
func (c *HTTPClient) Authorizations() Authorizations { return &httpAuthorizations{c} }

// do performs one request. A non-2xx answer is decoded into an *APIError.
func (c *HTTPClient) do(ctx context.Context, method, service, path string, query url.Values, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "directory."+service+"."+strings.ToLower(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("directory.service", service),
			attribute.String("http.request.method", method),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL.JoinPath(service, path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", service, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", service, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory %s %s failed: %w", method, service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", service, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Code: resp.StatusCode, Name: http.StatusText(resp.StatusCode)}
		if len(data) > 0 {
			if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
				apiErr.Message = string(data)
			}
		}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		logger.Debugw("directory request failed",
			"service", service,
			"method", method,
			"status", resp.StatusCode,
		)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", service, err)
	}
	return nil
}

type httpUsers struct{ c *HTTPClient }

func (u *httpUsers) FindByIntraCode(ctx context.Context, intraCode string, limit int) (*Page[User], error) {
	q := url.Values{}
	q.Set("intra_code", intraCode)
	q.Set("$limit", strconv.Itoa(limit))

	page := &Page[User]{}
	if err := u.c.do(ctx, http.MethodGet, "users", "", q, nil, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (u *httpUsers) Get(ctx context.Context, id string) (*User, error) {
	user := &User{}
	if err := u.c.do(ctx, http.MethodGet, "users", url.PathEscape(id), nil, nil, user); err != nil {
		return nil, err
	}
	return user, nil
}

type httpClients struct{ c *HTTPClient }

func (h *httpClients) Get(ctx context.Context, id string) (*Client, error) {
	client := &Client{}
	if err := h.c.do(ctx, http.MethodGet, "clients", url.PathEscape(id), nil, nil, client); err != nil {
		return nil, err
	}
	return client, nil
}

type httpAuthorizations struct{ c *HTTPClient }

func (a *httpAuthorizations) Find(ctx context.Context, userID, clientID string) ([]Authorization, error) {
	q := url.Values{}
	q.Set("user", userID)
	q.Set("client", clientID)
	q.Set("$sort[created_at]", "1")

	page := &Page[Authorization]{}
	if err := a.c.do(ctx, http.MethodGet, "authorizations", "", q, nil, page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (a *httpAuthorizations) Create(ctx context.Context, auth *Authorization) (*Authorization, error) {
	created := &Authorization{}
	if err := a.c.do(ctx, http.MethodPost, "authorizations", "", nil, auth, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (a *httpAuthorizations) Patch(
	ctx context.Context, id string, scopes []string, updatedAt time.Time,
) (*Authorization, error) {
	body := map[string]any{"scopes": scopes, "updated_at": updatedAt.UTC()}
	patched := &Authorization{}
	if err := a.c.do(ctx, http.MethodPatch, "authorizations", url.PathEscape(id), nil, body, patched); err != nil {
		return nil, err
	}
	return patched, nil
}

// Compile-time interface checks.
var (
	_ Service        = (*HTTPClient)(nil)
	_ Users          = (*httpUsers)(nil)
	_ Clients        = (*httpClients)(nil)
	_ Authorizations = (*httpAuthorizations)(nil)
)
