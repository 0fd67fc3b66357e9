// Package httpapi serves the operational endpoints: a liveness check and
// a manual pipeline trigger.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	rtsup "dealbot/internal/runtime/supervisor"
	logx "dealbot/pkg/logx"
)

// Trigger starts a discovery run outside the normal schedule.
type Trigger interface {
	TriggerAsync(ctx context.Context, reason string)
}

// Config controls the optional HTTP endpoint.
//
// Security: prefer binding to localhost (default). A non-loopback bind
// requires a token.
type Config struct {
	Enabled bool
	Addr    string
	Token   string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Service struct {
	cfg     Config
	trigger Trigger
	log     logx.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
	sup *rtsup.Supervisor
}

func New(cfg Config, trigger Trigger, log logx.Logger) *Service {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, trigger: trigger, log: log.With(logx.String("comp", "httpapi"))}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.sup != nil {
		return nil
	}

	if s.cfg.Token == "" && !isLoopbackAddr(s.cfg.Addr) {
		return errors.New("httpapi: non-loopback addr requires a token")
	}

	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	s.sup.GoRestart("http.serve", func(c context.Context) error {
		return s.serveOnce(c)
	}, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	sup := s.sup
	s.srv = nil
	s.ln = nil
	s.sup = nil
	s.mu.Unlock()

	if srv != nil {
		_ = srv.Shutdown(ctx)
		_ = srv.Close()
	}
	if sup != nil {
		sup.Cancel()
		_ = sup.Wait(context.Background())
		s.log.Info("stopped")
	}
}

func (s *Service) serveOnce(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	defer func() { _ = ln.Close() }()

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.mu.Lock()
	s.srv = srv
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("listening",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("token_set", s.cfg.Token != ""))

	err = srv.Serve(ln)
	if ctx.Err() != nil || errors.Is(err, http.ErrServerClosed) {
		return context.Canceled
	}
	return err
}

// Handler builds the route table. Exposed for tests.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.withAuth(s.handleHealth))
	mux.HandleFunc("/run", s.withAuth(s.handleRun))
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.trigger.TriggerAsync(r.Context(), "http")
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func (s *Service) withAuth(h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(s.cfg.Token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) &&
			strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
