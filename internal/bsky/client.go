package bsky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/thand-io/skypost/internal/models"
)

const (
	methodCreateSession  = "com.atproto.server.createSession"
	methodGetSession     = "com.atproto.server.getSession"
	methodRefreshSession = "com.atproto.server.refreshSession"
	methodResolveHandle  = "com.atproto.identity.resolveHandle"
	methodCreateRecord   = "com.atproto.repo.createRecord"
)

// XRPCError is an error response from the service, tagged with the method
// and HTTP status it came back with.
type XRPCError struct {
	xrpc.XRPCError
	StatusCode int
	Method     string
}

func (e *XRPCError) Error() string {
	if len(e.Message) > 0 {
		return fmt.Sprintf("%s failed (%d %s): %s", e.Method, e.StatusCode, e.ErrStr, e.Message)
	}
	return fmt.Sprintf("%s failed (%d %s)", e.Method, e.StatusCode, e.ErrStr)
}

func (e *XRPCError) Unwrap() error {
	return &e.XRPCError
}

// IsExpiredToken reports whether the service rejected a token as expired.
func IsExpiredToken(err error) bool {
	var xe *XRPCError
	return errors.As(err, &xe) && xe.ErrStr == "ExpiredToken"
}

// IsAuthRejected reports whether the service refused the presented
// credentials or token, as opposed to failing to answer.
func IsAuthRejected(err error) bool {
	var xe *XRPCError
	if !errors.As(err, &xe) {
		return false
	}
	switch xe.ErrStr {
	case "ExpiredToken", "InvalidToken", "AuthenticationRequired", "AccountTakedown", "AccountDeactivated":
		return true
	}
	return xe.StatusCode == http.StatusUnauthorized
}

// Client talks XRPC to a personal data server.
type Client struct {
	service string
	client  *resty.Client
}

type ClientOption func(*resty.Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *resty.Client) {
		if timeout > 0 {
			c.SetTimeout(timeout)
		}
	}
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *resty.Client) {
		if len(userAgent) > 0 {
			c.SetHeader("User-Agent", userAgent)
		}
	}
}

func NewClient(service string, opts ...ClientOption) *Client {

	service = strings.TrimSuffix(service, "/")

	logrus.Debugf("Creating new xrpc client: %s", service)

	client := resty.New().
		SetBaseURL(service+"/xrpc").
		SetHeader("Accept", "application/json")

	for _, opt := range opts {
		opt(client)
	}

	return &Client{
		service: service,
		client:  client,
	}
}

func (c *Client) Service() string {
	return c.service
}

// CreateSession logs in with an identifier and password.
func (c *Client) CreateSession(ctx context.Context, credentials models.Credentials) (*models.SessionData, error) {
	var out models.SessionData
	err := c.procedure(ctx, methodCreateSession, "", &atproto.ServerCreateSession_Input{
		Identifier: credentials.Identifier,
		Password:   credentials.Password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession validates an access token and returns the account it belongs to.
func (c *Client) GetSession(ctx context.Context, accessJwt string) (*models.SessionData, error) {
	var out models.SessionData
	if err := c.query(ctx, methodGetSession, accessJwt, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshSession trades a refresh token for a new token pair.
func (c *Client) RefreshSession(ctx context.Context, refreshJwt string) (*models.SessionData, error) {
	var out models.SessionData
	if err := c.procedure(ctx, methodRefreshSession, refreshJwt, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveHandle returns the DID a handle points to.
func (c *Client) ResolveHandle(ctx context.Context, accessJwt string, handle string) (string, error) {
	var out atproto.IdentityResolveHandle_Output
	err := c.query(ctx, methodResolveHandle, accessJwt, map[string]string{
		"handle": handle,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Did, nil
}

// CreateRecord writes a record into a repository.
func (c *Client) CreateRecord(ctx context.Context, accessJwt string, input *atproto.RepoCreateRecord_Input) (*models.PostResult, error) {
	var out atproto.RepoCreateRecord_Output
	if err := c.procedure(ctx, methodCreateRecord, accessJwt, input, &out); err != nil {
		return nil, err
	}
	return &models.PostResult{
		Uri: out.Uri,
		Cid: out.Cid,
	}, nil
}

func (c *Client) query(ctx context.Context, method string, token string, params map[string]string, out any) error {
	req := c.request(ctx, token)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	return c.do(req, http.MethodGet, method, out)
}

func (c *Client) procedure(ctx context.Context, method string, token string, body any, out any) error {
	req := c.request(ctx, token)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	return c.do(req, http.MethodPost, method, out)
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	req := c.client.R().SetContext(ctx)
	if len(token) > 0 {
		req.SetAuthToken(token)
	}
	return req
}

func (c *Client) do(req *resty.Request, httpMethod string, method string, out any) error {

	logrus.WithFields(logrus.Fields{
		"service": c.service,
		"method":  method,
	}).Debugln("Sending xrpc request")

	var resp *resty.Response
	var err error

	switch httpMethod {
	case http.MethodGet:
		resp, err = req.Get("/" + method)
	default:
		resp, err = req.Post("/" + method)
	}

	if err != nil {
		return models.NewNetworkError(method, err)
	}

	if resp.IsError() {
		xrpcErr := &XRPCError{
			StatusCode: resp.StatusCode(),
			Method:     method,
		}
		if jsonErr := json.Unmarshal(resp.Body(), &xrpcErr.XRPCError); jsonErr != nil || len(xrpcErr.ErrStr) == 0 {
			xrpcErr.ErrStr = http.StatusText(resp.StatusCode())
			xrpcErr.Message = strings.TrimSpace(string(resp.Body()))
		}

		logrus.WithFields(logrus.Fields{
			"method": method,
			"status": resp.StatusCode(),
			"error":  xrpcErr.ErrStr,
		}).Debugln("xrpc request failed")

		return xrpcErr
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return models.NewNetworkError(method, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}
