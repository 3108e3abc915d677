// Package apiclient is the REST client for the ClearChain API.
package apiclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// DefaultTimeout bounds every round trip unless Config overrides it.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient replaces the underlying transport, mainly in tests.
	HTTPClient *http.Client
}

// Client calls the ClearChain API on behalf of one Session. Calls are never
// retried.
type Client struct {
	http *resty.Client

	mu      sync.RWMutex
	session *Session
}

// New constructs a Client. session may be nil until Login succeeds.
func New(cfg Config, session *Session) *Client {
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &Client{http: rc, session: session}
}

// Session returns the current session, or nil.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession replaces the acting session.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session and makes it current.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", false, func(r *resty.Request) {
		r.SetBody(loginRequest{Username: username, Password: password})
	}, &out); err != nil {
		return nil, err
	}
	c.SetSession(&out)
	return &out, nil
}

// Logout revokes the current session on the server and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", true, nil, nil)
	c.SetSession(nil)
	return err
}

// Me describes the authenticated user.
type Me struct {
	User        users.Profile        `json:"user"`
	Permissions workflow.Permissions `json:"permissions"`
}

// Me fetches the acting user's current profile.
func (c *Client) Me(ctx context.Context) (users.Profile, error) {
	var out Me
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", true, nil, &out); err != nil {
		return users.Profile{}, err
	}
	return out.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, build func(*resty.Request), result any) error {
	req := c.http.R().SetContext(ctx)
	if auth {
		sess := c.Session()
		if sess == nil || sess.Token == "" {
			return ErrNoSession
		}
		req.SetAuthToken(sess.Token)
	}
	if build != nil {
		build(req)
	}
	if result != nil {
		req.SetResult(result)
	}
	var problem httpx.ProblemDetail
	req.SetError(&problem)

	resp, err := req.Execute(method, path)
	if err != nil {
		return &RemoteError{Message: err.Error(), cause: err}
	}
	if resp.IsError() {
		return remoteError(resp, problem)
	}
	return nil
}

func remoteError(resp *resty.Response, problem httpx.ProblemDetail) error {
	msg := problem.Detail
	if msg == "" {
		msg = problem.Title
	}
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return &RemoteError{
		StatusCode: resp.StatusCode(),
		Code:       problem.Code,
		Message:    msg,
		RequestID:  resp.Header().Get("X-Request-Id"),
	}
}

func idempotent(r *resty.Request) {
	r.SetHeader(vendorrequests.IdempotencyHeader, uuid.NewString())
}
