// Package account logs into a PoolStation cloud account.
//
// It provides:
//   - The Client interface consumed by the setup wizard
//   - An OAuth2 password-grant implementation backed by golang.org/x/oauth2
//   - A typed error taxonomy (timeout, connection, unexpected response, rejected credentials)
//   - A circuit breaker wrapper so an unreachable service fails fast
//
// Every login attempt runs on its own HTTP session with a fresh cookie jar; nothing
// is shared between attempts.
package account

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/oauth2"
)

// Client exchanges account credentials for an opaque token.
type Client interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// DefaultTimeout bounds a login attempt when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// OAuth2Client logs in with the OAuth2 resource owner password grant.
type OAuth2Client struct {
	config    oauth2.Config
	timeout   time.Duration
	transport http.RoundTripper
}

// Option configures an OAuth2Client
type Option func(*OAuth2Client)

// WithClientSecret sets the client secret sent with the token request
func WithClientSecret(secret string) Option {
	return func(c *OAuth2Client) {
		c.config.ClientSecret = secret
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *OAuth2Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithTransport overrides the HTTP transport used for each session
func WithTransport(rt http.RoundTripper) Option {
	return func(c *OAuth2Client) {
		c.transport = rt
	}
}

// WithScopes sets the scopes requested with the token
func WithScopes(scopes ...string) Option {
	return func(c *OAuth2Client) {
		c.config.Scopes = scopes
	}
}

// NewOAuth2Client creates a client for the given token endpoint
func NewOAuth2Client(tokenURL, clientID string, opts ...Option) *OAuth2Client {
	c := &OAuth2Client{
		config: oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login performs a single login attempt and returns the access token.
func (c *OAuth2Client) Login(ctx context.Context, email, password string) (string, error) {
	session, err := c.newSession()
	if err != nil {
		return "", err
	}
	defer session.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, session)

	token, err := c.config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return "", classifyError(ctx, err)
	}
	return token.AccessToken, nil
}

// newSession builds the HTTP client for one attempt. Its jar accepts every cookie the
// service sets, including cookies from bare IP hosts, and is discarded afterwards.
func (c *OAuth2Client) newSession() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &http.Client{
		Jar:       jar,
		Transport: c.transport,
	}, nil
}

// rejectionCodes are the RFC 6749 error codes meaning the credentials were refused.
var rejectionCodes = map[string]bool{
	"invalid_grant":       true,
	"invalid_client":      true,
	"unauthorized_client": true,
	"access_denied":       true,
}

func classifyError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if rejectionCodes[retrieveErr.ErrorCode] || status == http.StatusUnauthorized || status == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return &ResponseError{StatusCode: status, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return err
}
