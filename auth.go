package mt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// authResponse matches the JSON returned by the authentication endpoint.
// The access token is included inline on current MovableType versions.
type authResponse struct {
	SessionID   string `json:"sessionId"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// tokenResponse matches the JSON returned by the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// Authenticate performs the credential login handshake and stores the
// resulting session ID and access token on the client. It is safe to
// call concurrently; calls are serialized so a shared client never
// performs duplicate logins.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

// AccessToken returns the current access token, authenticating or
// minting a fresh token from the held session as needed.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.ensureToken(ctx)
}

// authenticateLocked sends the form-encoded login request. Callers must
// hold c.mu.
func (c *Client) authenticateLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.config.Username)
	form.Set("password", c.config.Password)
	form.Set("clientId", c.config.ClientID)
	form.Set("remember", "1")

	status, body, err := c.postForm(ctx, c.versionURL("/authentication"), form)
	if err != nil {
		return fmt.Errorf("mt: authentication request failed: %w", err)
	}
	if status < 200 || status >= 300 {
		return &AuthError{Status: status, Body: body}
	}

	var ar authResponse
	if err := json.Unmarshal([]byte(body), &ar); err != nil {
		return fmt.Errorf("mt: decode authentication response: %w", err)
	}

	c.sessionID = ar.SessionID
	c.accessToken = ar.AccessToken
	return nil
}

// mintTokenLocked exchanges the held session for a fresh access token.
// Callers must hold c.mu and ensure a session exists.
func (c *Client) mintTokenLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("clientId", c.config.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.versionURL("/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mt: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-MT-Authorization", c.sessionID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mt: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TokenError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("mt: decode token response: %w", err)
	}

	c.accessToken = tr.AccessToken
	return nil
}

// ensureToken returns a usable access token, running the login handshake
// or token exchange if the client holds none.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" {
		return c.accessToken, nil
	}

	if c.sessionID != "" {
		if err := c.mintTokenLocked(ctx); err != nil {
			return "", err
		}
		return c.accessToken, nil
	}

	if err := c.authenticateLocked(ctx); err != nil {
		return "", err
	}
	if c.accessToken == "" {
		// Older backends return only a session from the login call.
		if err := c.mintTokenLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.accessToken, nil
}

// invalidate discards the session state that produced the given stale
// token. The comparison guards against discarding a token another
// caller already refreshed.
func (c *Client) invalidate(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == stale {
		c.accessToken = ""
		c.sessionID = ""
	}
}

// postForm sends a form-encoded POST and returns the status and body.
func (c *Client) postForm(ctx context.Context, fullURL string, form url.Values) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fullURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}
