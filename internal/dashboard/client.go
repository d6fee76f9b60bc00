package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"busops/internal/models"
)

// Client talks to the busops API on behalf of a Session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

type Option func(*Client)

// WithHTTPClient replaces the default client, for instance to set a transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient returns a client for the API rooted at baseURL, e.g. http://host/api.
func NewClient(baseURL string, s *Session, opts ...Option) *Client {
	if s == nil {
		s = &Session{}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: s,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.session.Authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
		if resp.StatusCode == http.StatusUnauthorized {
			c.session.Clear()
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage pulls "message", then "error", out of an error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
	Home  string      `json:"home"`
}

// Login signs in and stores the principal in the client's session.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var resp authResponse
	err := c.Post(ctx, "/auth/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return models.User{}, err
	}
	if resp.Token == "" {
		return models.User{}, errors.New("login response carried no token")
	}
	c.session.Set(resp.Token, resp.User)
	return resp.User, nil
}

// Logout revokes the token server side and clears the session either way.
func (c *Client) Logout(ctx context.Context) error {
	defer c.session.Clear()
	if !c.session.Authenticated() {
		return nil
	}
	return c.Post(ctx, "/auth/logout", nil, nil)
}
