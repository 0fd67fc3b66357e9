package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// refreshMargin forces a refresh this long before the reported expiry so a
// token never goes stale mid-request.
const refreshMargin = 60 * time.Second

// CredentialCache exchanges client credentials for a bearer token and
// caches it until shortly before expiry. Safe for concurrent use.
type CredentialCache struct {
	tokenURL string
	id       string
	secret   string
	scope    string

	http *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

func NewCredentialCache(tokenURL, id, secret, scope string, client *http.Client) *CredentialCache {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &CredentialCache{
		tokenURL: tokenURL,
		id:       id,
		secret:   secret,
		scope:    scope,
		http:     client,
		now:      time.Now,
	}
}

// Token returns the cached bearer token, refreshing it when absent or
// within the safety margin of expiry.
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiresAt.Add(-refreshMargin)) {
		return c.token, nil
	}
	return c.refreshLocked(ctx)
}

// Invalidate drops the cached token so the next Token call refreshes.
// Used when the API answers 401 despite an apparently valid token.
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *CredentialCache) refreshLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", c.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", basicAuth(c.id, c.secret))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &UpstreamError{Err: fmt.Errorf("token request: %w", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: string(body)}
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}

	c.token = payload.AccessToken
	c.expiresAt = c.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.token, nil
}

func basicAuth(id, secret string) string {
	raw := id + ":" + secret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}
