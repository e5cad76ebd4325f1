package ikas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	DefaultGraphQLURL = "https://api.myikas.com/api/v2/admin/graphql"
	DefaultUploadURL  = "https://api.myikas.com/api/v1/admin/product/upload/image"
)

// permissionErrorHints classify an errors[] message as an authorization
// failure that may trigger the OAuth fallback.
var permissionErrorHints = []string{
	"public",
	"permission",
	"forbidden",
	"unauthorized",
	"not authorized",
	"access denied",
	"login_required",
	"login required",
}

type authScheme int

const (
	authNone authScheme = iota
	authPrimary
	authFallback
)

// Credentials carries both credential paths. Token is the pre-shared admin
// token and wins when set; the OAuth triple is the fallback.
type Credentials struct {
	Token        string
	StoreName    string
	ClientID     string
	ClientSecret string
}

func (c Credentials) hasOAuth() bool {
	return c.StoreName != "" && c.ClientID != "" && c.ClientSecret != ""
}

// ClientOptions configures a Client. Zero-value URLs mean production ikas.
type ClientOptions struct {
	Credentials    Credentials
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	TokenRetries   int
	GraphQLURL     string
	UploadURL      string
	TokenURL       string
	Logger         zerolog.Logger
}

// Client talks to the ikas admin GraphQL endpoint and the image upload
// endpoint. It is stateless per call except for the auth-scheme flag: once
// the primary token is rejected for permission reasons the client switches
// to the OAuth fallback for the rest of the run, at most once.
type Client struct {
	GraphQLURL string
	UploadURL  string
	TokenURL   string

	creds Credentials
	log   zerolog.Logger

	httpClient  *http.Client
	tokenClient *retryablehttp.Client

	authHeader   string
	scheme       authScheme
	fallbackUsed bool
}

// GraphQLError is one entry of the errors[] array in a GraphQL response.
type GraphQLError struct {
	Message string `json:"message"`
}

func NewClient(opts ClientOptions) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 120 * time.Second
	}
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout: opts.ConnectTimeout,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   opts.ReadTimeout,
	}

	// The token endpoint is the only call with automatic transient retries;
	// query/mutation calls are never retried here (the orchestrator owns
	// per-product failure handling).
	tokenClient := retryablehttp.NewClient()
	tokenClient.HTTPClient = &http.Client{Transport: transport, Timeout: opts.ReadTimeout}
	tokenClient.RetryMax = opts.TokenRetries
	tokenClient.Logger = nil

	c := &Client{
		GraphQLURL:  opts.GraphQLURL,
		UploadURL:   opts.UploadURL,
		TokenURL:    opts.TokenURL,
		creds:       opts.Credentials,
		log:         opts.Logger,
		httpClient:  httpClient,
		tokenClient: tokenClient,
	}
	if c.GraphQLURL == "" {
		c.GraphQLURL = DefaultGraphQLURL
	}
	if c.UploadURL == "" {
		c.UploadURL = DefaultUploadURL
	}
	return c
}

// graphQL posts one {query, variables} payload and returns the decoded data
// object plus any errors[] entries. When allowErrors is false, a non-empty
// errors[] array is converted into a ProtocolError.
func (c *Client) graphQL(ctx context.Context, query string, variables map[string]any, allowErrors bool) (map[string]any, []GraphQLError, error) {
	return c.graphQLRetryable(ctx, query, variables, allowErrors, true)
}

func (c *Client) graphQLRetryable(ctx context.Context, query string, variables map[string]any, allowErrors, allowFallback bool) (map[string]any, []GraphQLError, error) {
	payload := map[string]any{"query": query}
	if len(variables) > 0 {
		payload["variables"] = variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal graphql payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &NetworkError{URL: c.GraphQLURL, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &NetworkError{URL: c.GraphQLURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		if allowFallback && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			switched, serr := c.switchToFallback(ctx, fmt.Sprintf("HTTP %d", resp.StatusCode))
			if serr != nil {
				return nil, nil, serr
			}
			if switched {
				return c.graphQLRetryable(ctx, query, variables, allowErrors, false)
			}
		}
		return nil, nil, &ProtocolError{Status: resp.StatusCode, Message: snippet(raw)}
	}

	if allowFallback && hasPermissionError(raw) {
		switched, serr := c.switchToFallback(ctx, "permission")
		if serr != nil {
			return nil, nil, serr
		}
		if switched {
			return c.graphQLRetryable(ctx, query, variables, allowErrors, false)
		}
	}

	var parsed struct {
		Data   map[string]any `json:"data"`
		Errors []GraphQLError `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, &ProtocolError{Message: "unparseable response body: " + snippet(raw)}
	}
	if len(parsed.Errors) > 0 && !allowErrors {
		return nil, parsed.Errors, &ProtocolError{Message: parsed.Errors[0].Message}
	}
	return parsed.Data, parsed.Errors, nil
}

// hasPermissionError scans a raw response body for errors[] messages that
// look like authorization failures.
func hasPermissionError(raw []byte) bool {
	found := false
	gjson.GetBytes(raw, "errors").ForEach(func(_, value gjson.Result) bool {
		msg := strings.ToLower(value.Get("message").String())
		for _, hint := range permissionErrorHints {
			if strings.Contains(msg, hint) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// switchToFallback acquires the OAuth credential after the primary token was
// rejected. Returns true when the caller should retry exactly once. A token
// exchange failure propagates: there is no third credential to try.
func (c *Client) switchToFallback(ctx context.Context, reason string) (bool, error) {
	if c.scheme != authPrimary || c.fallbackUsed || !c.creds.hasOAuth() {
		return false, nil
	}
	header, err := c.fetchOAuthToken(ctx)
	if err != nil {
		return false, err
	}
	c.authHeader = header
	c.scheme = authFallback
	c.fallbackUsed = true
	c.log.Warn().Str("reason", reason).Msg("primary token rejected, switched to OAuth fallback")
	return true, nil
}

// FallbackUsed reports whether any call in this client's lifetime ran on
// the OAuth fallback credential.
func (c *Client) FallbackUsed() bool {
	return c.fallbackUsed
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
