// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api is the typed client for the marketplace REST API. Remote
// failures are converted into typed errors at this boundary and never
// propagate as panics into the stores.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/localbasket/marketsync/internal/metrics"
	"github.com/localbasket/marketsync/internal/model"
)

// Header flagging passive identity checks so the server skips hard failure
// semantics for anonymous callers.
const (
	HeaderAuthCheck  = "X-Auth-Check"
	AuthCheckPassive = "passive"

	headerInstance = "X-Client-Instance"
)

// Client talks to the marketplace REST API. The server session cookie is held
// in the client's cookie jar.
type Client struct {
	base       string
	httpClient *http.Client
	logger     *slog.Logger
	instanceID string
	metrics    *metrics.Metrics

	// loginLimiter throttles credential submission client-side; repeated
	// failures otherwise trip the server's lockout.
	loginLimiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The replacement should
// carry a cookie jar or every call after login will be anonymous.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithInstanceID sets the instance identifier sent with every request.
func WithInstanceID(id string) Option {
	return func(c *Client) { c.instanceID = id }
}

// WithMetrics records failed API calls on the given collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		base:         strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Jar: jar, Timeout: 30 * time.Second},
		logger:       slog.Default(),
		loginLimiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// identityResponse is the wire shape of GET /identity/me.
type identityResponse struct {
	UserID            int64  `json:"userId"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	Firstname         string `json:"firstname"`
	Lastname          string `json:"lastname"`
	Username          string `json:"username"`
	ApplicationStatus string `json:"applicationStatus"`
}

// Login submits credentials. Credential rejection returns
// ErrInvalidCredentials; everything else is a StatusError.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if !c.loginLimiter.Allow() {
		return ErrLoginThrottled
	}

	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/login", body, nil, false)
	if err == nil {
		return nil
	}

	var se *StatusError
	if errors.Is(err, ErrUnauthenticated) || (errors.As(err, &se) && se.Code == "invalid_credentials") {
		return ErrInvalidCredentials
	}
	return err
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, false)
}

// Me fetches the identity behind the current session cookie. 401 and 403 map
// to ErrUnauthenticated. A passive check tells the server this is a
// reconciliation probe, not a user action.
func (c *Client) Me(ctx context.Context, passive bool) (*model.User, error) {
	var resp identityResponse
	if err := c.do(ctx, http.MethodGet, "/identity/me", nil, &resp, passive); err != nil {
		return nil, err
	}

	role, err := model.ParseRole(resp.Role)
	if err != nil {
		return nil, fmt.Errorf("identity response: %w", err)
	}

	return &model.User{
		ID:                resp.UserID,
		Email:             resp.Email,
		Role:              role,
		DisplayName:       displayName(resp),
		ApplicationStatus: resp.ApplicationStatus,
	}, nil
}

// ChangePassword submits a password change for the current session.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	return c.do(ctx, http.MethodPost, "/users/change-password", body, nil, false)
}

// displayName prefers the real name, falling back to the username.
func displayName(id identityResponse) string {
	name := strings.TrimSpace(id.Firstname + " " + id.Lastname)
	if name != "" {
		return name
	}
	return id.Username
}

// do performs a JSON request against the API and decodes the response into
// out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any, passive bool) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if passive {
		req.Header.Set(HeaderAuthCheck, AuthCheckPassive)
	}
	if c.instanceID != "" {
		req.Header.Set(headerInstance, c.instanceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countError()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.countError()
		return c.statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) countError() {
	if c.metrics != nil {
		c.metrics.APIErrors.Inc()
	}
}

// statusError converts a non-2xx response into a typed error.
func (c *Client) statusError(resp *http.Response) error {
	var env errorEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&env)

	se := &StatusError{
		StatusCode: resp.StatusCode,
		Code:       env.Error.Code,
		Message:    env.Error.Message,
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		// Login distinguishes credential rejection itself; for every other
		// endpoint 401/403 means the session is gone.
		if se.Code == "invalid_credentials" {
			return se
		}
		return ErrUnauthenticated
	}
	return se
}
