// Package client is a typed HTTP client for the admin API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"auditdesk.org/internal/admin"
	"auditdesk.org/internal/audit"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/project"
)

var (
	ErrNotFound     = errors.New("client: not found")
	ErrForbidden    = errors.New("client: forbidden")
	ErrUnauthorized = errors.New("client: unauthorized")
	ErrConflict     = errors.New("client: conflict")
	ErrValidation   = errors.New("client: validation failed")
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status    int
	Message   string
	Fields    map[string]string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api %d: %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Is matches the sentinel for the response status.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusForbidden:
		return target == ErrForbidden
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusConflict:
		return target == ErrConflict
	case http.StatusBadRequest:
		return target == ErrValidation
	}
	return false
}

type envelope struct {
	StatusCode int               `json:"statusCode"`
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Errors     map[string]string `json:"errors"`
	RequestID  string            `json:"requestId"`
}

// Session is the result of a signin.
type Session struct {
	User         auth.PublicUser `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

// Client talks to one API base URL, optionally as an authenticated user.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// New creates a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// As returns a copy of c that sends token as its bearer credential.
func (c *Client) As(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) Signup(ctx context.Context, in admin.RegisterInput) (auth.PublicUser, error) {
	var out auth.PublicUser
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/signup", in, &out)
	return out, err
}

func (c *Client) Signin(ctx context.Context, login, password string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/signin", admin.SigninInput{UsernameOrEmail: login, Password: password}, &out)
	return out, err
}

func (c *Client) Signout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/signout", nil, nil)
}

func (c *Client) Register(ctx context.Context, in admin.RegisterInput) (auth.PublicUser, error) {
	var out auth.PublicUser
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", in, &out)
	return out, err
}

func (c *Client) AssignRole(ctx context.Context, userID string, role auth.Role) (auth.PublicUser, error) {
	var out auth.PublicUser
	err := c.do(ctx, http.MethodPost, "/api/v1/users/"+userID+"/assign-role", admin.RoleInput{Role: string(role)}, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context) ([]auth.PublicUser, error) {
	var out []auth.PublicUser
	err := c.do(ctx, http.MethodGet, "/api/v1/users", nil, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, in admin.CreateProjectInput) (project.Detail, error) {
	var out project.Detail
	err := c.do(ctx, http.MethodPost, "/api/v1/project", in, &out)
	return out, err
}

func (c *Client) GetProject(ctx context.Context, id string) (project.Detail, error) {
	var out project.Detail
	err := c.do(ctx, http.MethodGet, "/api/v1/project/"+id, nil, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/project/"+id, nil, nil)
}

func (c *Client) RestoreProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/project/restore/"+id, nil, nil)
}

func (c *Client) AuditLogs(ctx context.Context, limit int) ([]audit.Record, error) {
	var out []audit.Record
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/audit-logs?limit=%d", limit), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Message: env.Message, Fields: env.Errors, RequestID: env.RequestID}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// WithTimeout returns a context with a default timeout useful for CLI tools.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(parent, d)
}
