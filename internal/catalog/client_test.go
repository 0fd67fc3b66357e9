package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logx "dealbot/pkg/logx"
)

// fixedToken serves a never-expiring token and counts exchanges.
func fixedToken(t *testing.T, hits *atomic.Int32) *CredentialCache {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	t.Cleanup(ts.Close)
	return NewCredentialCache(ts.URL, "id", "secret", "creatorsapi/default", nil)
}

func newClient(t *testing.T, apiURL string, creds *CredentialCache) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:           apiURL,
		Marketplace:       "www.amazon.it",
		PartnerTag:        "tag-21",
		CredentialVersion: "2.0",
		ItemsPerPage:      8,
		RetryMax:          3,
		RetryBase:         time.Millisecond,
		RatePerSec:        1000,
	}, creds, logx.Nop())
}

type capturedReq struct {
	Resources []string `json:"resources"`
	Keywords  string   `json:"keywords"`
	ItemPage  int      `json:"itemPage"`
	ItemIDs   []string `json:"itemIds"`
}

func decodeReq(t *testing.T, r *http.Request) capturedReq {
	t.Helper()
	var cr capturedReq
	if err := json.NewDecoder(r.Body).Decode(&cr); err != nil {
		t.Errorf("decode request: %v", err)
	}
	return cr
}

func hasResource(res []string, name string) bool {
	for _, r := range res {
		if r == name {
			return true
		}
	}
	return false
}

func TestSearchHeadersAndPayload(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/searchItems" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok, Version 2.0" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("x-marketplace"); got != "www.amazon.it" {
			t.Errorf("x-marketplace = %q", got)
		}
		cr := decodeReq(t, r)
		if cr.Keywords != "offerte" || cr.ItemPage != 2 {
			t.Errorf("payload = %+v", cr)
		}
		_, _ = w.Write([]byte(`{"searchResult":{"items":[{"asin":"B000TEST01"}]}}`))
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, nil))
	items, rung, err := c.Search(context.Background(), "offerte", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rung != RungRich {
		t.Fatalf("rung = %v; want rich", rung)
	}
	if len(items) != 1 || items[0].ASIN != "B000TEST01" {
		t.Fatalf("items = %+v", items)
	}
}

func TestSearchDegradesThroughResourceLadder(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cr := decodeReq(t, r)
		// Only the minimal title+image set is whitelisted.
		if hasResource(cr.Resources, "offersV2.listings.price") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":[{"code":"InvalidResource"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"searchResult":{"items":[{"asin":"B000TEST01"}]}}`))
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, nil))
	items, rung, err := c.Search(context.Background(), "offerte", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rung != RungMinimal {
		t.Fatalf("rung = %v; want minimal", rung)
	}
	if rung.HasPrice() {
		t.Fatal("minimal rung must not promise price data")
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("API called %d times; want 3 (one per rung)", n)
	}
}

func TestSearchAllRungsRejected(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"InvalidResource"}]}`))
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, nil))
	_, _, err := c.Search(context.Background(), "offerte", 1)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v; want ValidationError", err)
	}
}

func TestSearchRefreshesTokenOnceOn401(t *testing.T) {
	t.Parallel()
	var tokenHits atomic.Int32
	var apiHits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiHits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"searchResult":{"items":[]}}`))
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, &tokenHits))
	if _, _, err := c.Search(context.Background(), "offerte", 1); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if n := tokenHits.Load(); n != 2 {
		t.Fatalf("token exchanged %d times; want 2 (initial + forced refresh)", n)
	}
}

func TestSearchPersistent401IsAuthError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, nil))
	_, _, err := c.Search(context.Background(), "offerte", 1)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v; want AuthError", err)
	}
}

func TestSearchRateLimitedAfterRetries(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, nil))
	_, _, err := c.Search(context.Background(), "offerte", 1)
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v; want RateLimitedError", err)
	}
	if rl.Attempts != 3 {
		t.Fatalf("attempts = %d; want 3", rl.Attempts)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("API called %d times; want 3", n)
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"searchResult":{"items":[{"asin":"B000TEST01"}]}}`))
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, nil))
	items, _, err := c.Search(context.Background(), "offerte", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
}

func TestSearchPersistent5xxIsUpstreamError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, nil))
	_, _, err := c.Search(context.Background(), "offerte", 1)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v; want UpstreamError", err)
	}
	if ue.Status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d; want 503", ue.Status)
	}
}

func TestBatchLookup(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getItems" {
			t.Errorf("path = %q", r.URL.Path)
		}
		cr := decodeReq(t, r)
		if len(cr.ItemIDs) != 2 {
			t.Errorf("itemIds = %v", cr.ItemIDs)
		}
		_, _ = w.Write([]byte(`{"getResult":{"items":[{"asin":"B000TEST01"},{"asin":"B000TEST02"}]}}`))
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, fixedToken(t, nil))
	items, _, err := c.BatchLookup(context.Background(), []string{"B000TEST01", "B000TEST02"})
	if err != nil {
		t.Fatalf("BatchLookup: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
}

func TestBatchLookupEmptyIsNoop(t *testing.T) {
	t.Parallel()
	c := newClient(t, "http://127.0.0.1:0", fixedToken(t, nil))
	items, _, err := c.BatchLookup(context.Background(), nil)
	if err != nil || items != nil {
		t.Fatalf("BatchLookup(nil) = %v, %v; want nil, nil", items, err)
	}
}
