package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bizgrid.org/internal/entitlement"
)

const defaultTimeout = 10 * time.Second

// Client calls the platform's entitlement-validation endpoint. The cache
// treats every error from here identically to a rejection, so the client only
// has to be honest, not forgiving.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ entitlement.Validator = (*Client)(nil)

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a validator against the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type validateRequest struct {
	Token  string `json:"token"`
	Module string `json:"module"`
}

type validateResponse struct {
	Success     bool                     `json:"success"`
	AccessToken *entitlement.Entitlement `json:"access_token"`
}

func (c *Client) Validate(ctx context.Context, token, module string) (entitlement.Entitlement, error) {
	payload, err := json.Marshal(validateRequest{Token: token, Module: module})
	if err != nil {
		return entitlement.Entitlement{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/access-tokens/validate", bytes.NewReader(payload))
	if err != nil {
		return entitlement.Entitlement{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entitlement.Entitlement{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entitlement.Entitlement{}, fmt.Errorf("validation service returned %d: %w",
			resp.StatusCode, entitlement.ErrTokenRejected)
	}

	var body validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return entitlement.Entitlement{}, err
	}
	if !body.Success || body.AccessToken == nil {
		return entitlement.Entitlement{}, entitlement.ErrTokenRejected
	}
	return *body.AccessToken, nil
}
