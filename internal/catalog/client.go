package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	logx "dealbot/pkg/logx"
)

// Config wires a Client to one marketplace of the Creators catalog API.
type Config struct {
	BaseURL           string
	Marketplace       string
	PartnerTag        string
	CredentialVersion string

	ItemsPerPage int

	Timeout    time.Duration // per HTTP call, default 25s
	RetryMax   int           // total attempts for 429/5xx, default 3
	RetryBase  time.Duration // backoff base, default 1s
	RatePerSec int           // outbound request limit, default 1
}

// Client issues search and batch-lookup calls, degrading through the
// resource ladder when the provider rejects a requested field set.
type Client struct {
	cfg     Config
	creds   *CredentialCache
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(cfg Config, creds *CredentialCache, log logx.Logger) *Client {
	if cfg.ItemsPerPage <= 0 {
		cfg.ItemsPerPage = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		creds:   creds,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log.With(logx.String("comp", "catalog")),
	}
}

// Search returns one page of results for keyword, together with the ladder
// rung that succeeded.
func (c *Client) Search(ctx context.Context, keyword string, page int) ([]Item, Rung, error) {
	payload := map[string]any{
		"keywords":    keyword,
		"partnerTag":  c.cfg.PartnerTag,
		"marketplace": c.cfg.Marketplace,
		"itemCount":   c.cfg.ItemsPerPage,
		"itemPage":    page,
	}
	body, rung, err := c.callLadder(ctx, "/searchItems", payload)
	if err != nil {
		return nil, rung, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rung, fmt.Errorf("searchItems response: %w", err)
	}
	if resp.SearchResult == nil {
		return nil, rung, nil
	}
	return resp.SearchResult.Items, rung, nil
}

// BatchLookup fetches full records for up to a handful of ASINs.
func (c *Client) BatchLookup(ctx context.Context, ids []string) ([]Item, Rung, error) {
	if len(ids) == 0 {
		return nil, RungRich, nil
	}
	payload := map[string]any{
		"itemIds":     ids,
		"partnerTag":  c.cfg.PartnerTag,
		"marketplace": c.cfg.Marketplace,
	}
	body, rung, err := c.callLadder(ctx, "/getItems", payload)
	if err != nil {
		return nil, rung, err
	}

	var resp getResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rung, fmt.Errorf("getItems response: %w", err)
	}
	if resp.GetResult == nil {
		return nil, rung, nil
	}
	return resp.GetResult.Items, rung, nil
}

// resourceRejected marks a validation-class 400 for one ladder rung.
type resourceRejected struct {
	status int
	body   string
}

func (e *resourceRejected) Error() string {
	return fmt.Sprintf("resource set rejected: status=%d", e.status)
}

// callLadder walks the resource ladder until a rung is accepted.
func (c *Client) callLadder(ctx context.Context, path string, payload map[string]any) ([]byte, Rung, error) {
	var last *resourceRejected
	for rung := RungRich; rung <= RungMinimal; rung++ {
		payload["resources"] = resourceLadder[rung]
		body, err := c.call(ctx, path, payload)
		if err != nil {
			var rr *resourceRejected
			if errors.As(err, &rr) {
				c.log.Debug("resource set rejected, degrading",
					logx.String("path", path), logx.String("rung", rung.String()))
				last = rr
				continue
			}
			return nil, rung, err
		}
		if rung != RungRich {
			c.log.Debug("call succeeded on degraded rung",
				logx.String("path", path), logx.String("rung", rung.String()))
		}
		return body, rung, nil
	}
	if last == nil {
		last = &resourceRejected{}
	}
	return nil, RungMinimal, &ValidationError{Status: last.status, Body: last.body}
}

// call performs one API call with auth, rate limiting, a single forced
// token refresh on 401, and bounded backoff on 429/5xx/transport errors.
func (c *Client) call(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	refreshed := false
	attempt := 0
	for {
		attempt++

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		token, err := c.creds.Token(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		// Per provider guide: "Authorization: Bearer <token>, Version <version>".
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s, Version %s", token, c.cfg.CredentialVersion))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-marketplace", c.cfg.Marketplace)

		resp, err := c.http.Do(req)
		if err != nil {
			if retryErr := c.maybeRetry(ctx, attempt, &UpstreamError{Err: err}); retryErr != nil {
				return nil, retryErr
			}
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return respBody, nil

		case resp.StatusCode == http.StatusBadRequest:
			return nil, &resourceRejected{status: resp.StatusCode, body: string(respBody)}

		case resp.StatusCode == http.StatusUnauthorized:
			if !refreshed {
				refreshed = true
				c.creds.Invalidate()
				c.log.Debug("401 from catalog, forcing token refresh", logx.String("path", path))
				continue
			}
			return nil, &AuthError{Status: resp.StatusCode, Body: string(respBody)}

		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt >= c.cfg.RetryMax {
				return nil, &RateLimitedError{Attempts: attempt}
			}
			if err := c.backoff(ctx, path, attempt, resp.StatusCode); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode >= 500:
			if retryErr := c.maybeRetry(ctx, attempt, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}); retryErr != nil {
				return nil, retryErr
			}
			continue

		default:
			return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
		}
	}
}

// maybeRetry returns nil when another attempt should be made, or the final
// error once the budget is spent.
func (c *Client) maybeRetry(ctx context.Context, attempt int, final error) error {
	if attempt >= c.cfg.RetryMax {
		return final
	}
	status := 0
	var ue *UpstreamError
	if errors.As(final, &ue) {
		status = ue.Status
	}
	return c.backoff(ctx, "", attempt, status)
}

func (c *Client) backoff(ctx context.Context, path string, attempt, status int) error {
	delay := backoffDelay(c.cfg.RetryBase, 30*time.Second, attempt)
	c.log.Debug("retrying catalog call",
		logx.String("path", path), logx.Int("attempt", attempt),
		logx.Int("status", status), logx.Duration("delay", delay))
	return sleepCtx(ctx, delay)
}
