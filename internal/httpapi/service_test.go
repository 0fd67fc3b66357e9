package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	logx "dealbot/pkg/logx"
)

type fakeTrigger struct {
	calls atomic.Int32
}

func (f *fakeTrigger) TriggerAsync(context.Context, string) { f.calls.Add(1) }

func TestHealth(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, &fakeTrigger{}, logx.Nop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
}

func TestRunTriggersPipeline(t *testing.T) {
	t.Parallel()
	tr := &fakeTrigger{}
	s := New(Config{Enabled: true}, tr, logx.Nop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/run", "", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d; want 202", resp.StatusCode)
	}
	if n := tr.calls.Load(); n != 1 {
		t.Fatalf("trigger called %d times; want 1", n)
	}

	// GET is rejected.
	getResp, err := http.Get(ts.URL + "/run")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /run status = %d; want 405", getResp.StatusCode)
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	tr := &fakeTrigger{}
	s := New(Config{Enabled: true, Token: "s3cret"}, tr, logx.Nop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/run", "", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d; want 401", resp.StatusCode)
	}
	if n := tr.calls.Load(); n != 0 {
		t.Fatalf("trigger called %d times without auth; want 0", n)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/run", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer s3cret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post with token: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusAccepted {
		t.Fatalf("status with token = %d; want 202", resp2.StatusCode)
	}
}

func TestStartRefusesInsecureBind(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "0.0.0.0:8080"}, &fakeTrigger{}, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("want error for tokenless non-loopback bind")
	}
}
