// Package validation talks to the remote token service and tracks whether
// it is reachable.
package validation

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

// DefaultTimeout bounds one call to the token service.
const DefaultTimeout = 1000 * time.Millisecond

const checkPath = "/qrcode/check"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Result is the service's view of a token.
type Result struct {
	IsValid   bool   `json:"isValid"`
	CompanyID int64  `json:"companyId"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
}

type checkRequest struct {
	Data string `json:"data"`
}

// Client checks tokens against the service at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  entry.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// OptTimeout overrides DefaultTimeout.
func OptTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// OptHTTPClient replaces the HTTP client. Its timeout is kept as is.
func OptHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// OptClientLogger sets the logger.
func OptClientLogger(l entry.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = entry.Component("validation")
	}
	return c
}

// Check posts token to the service. Transport failures, timeouts, non-2xx
// replies and undecodable bodies wrap entry.ErrRemoteValidation.
func (c *Client) Check(ctx context.Context, token string) (*Result, error) {
	body, err := json.Marshal(checkRequest{Data: token})
	if err != nil {
		return nil, errors.Wrap(err, "can't encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(entry.ErrRemoteValidation, "can't build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(entry.ErrRemoteValidation, "post %s: %v", checkPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.Wrapf(entry.ErrRemoteValidation, "post %s: status %d", checkPath, resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errors.Wrapf(entry.ErrRemoteValidation, "can't decode response: %v", err)
	}

	c.logger.Debugf("checked token in %v: valid=%v company=%d id=%d", time.Since(start), res.IsValid, res.CompanyID, res.ID)
	return &res, nil
}
