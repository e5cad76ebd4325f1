package ikas

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// Authenticate resolves the initial authorization header. The pre-shared
// token is preferred; without one the OAuth client-credentials exchange is
// performed directly and no further fallback exists for the run.
func (c *Client) Authenticate(ctx context.Context) error {
	if token := strings.TrimSpace(c.creds.Token); token != "" {
		if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = "Bearer " + token
		}
		c.authHeader = token
		c.scheme = authPrimary
		c.log.Info().Msg("using pre-shared admin token")
		return nil
	}

	if !c.creds.hasOAuth() {
		return &AuthError{Reason: "no pre-shared token and OAuth credentials are incomplete"}
	}

	header, err := c.fetchOAuthToken(ctx)
	if err != nil {
		return err
	}
	c.authHeader = header
	c.scheme = authFallback
	c.fallbackUsed = true
	return nil
}

// fetchOAuthToken runs the client-credentials exchange against the store's
// token endpoint.
func (c *Client) fetchOAuthToken(ctx context.Context) (string, error) {
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://%s.myikas.com/api/admin/oauth/token", c.creds.StoreName)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.tokenClient.Do(req)
	if err != nil {
		return "", &NetworkError{URL: tokenURL, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{URL: tokenURL, Err: err}
	}

	if resp.StatusCode != 200 {
		return "", &AuthError{Reason: fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode)}
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", &AuthError{Reason: "token response carries no access_token"}
	}
	c.log.Info().Msg("OAuth access token acquired")
	return "Bearer " + token, nil
}
