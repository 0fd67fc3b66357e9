// Package schedule drives the discovery loop: a fixed-interval tick
// gated by the posting window, plus a weekly ledger reset.
package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dealbot/internal/offer"
	"dealbot/internal/storage"
	logx "dealbot/pkg/logx"
)

// Runner is the slice of the pipeline the scheduler needs.
type Runner interface {
	Run(ctx context.Context) (offer.Offer, bool, error)
}

type Config struct {
	Enabled   bool
	TickEvery time.Duration // default 14m
	ResetCron string        // default "59 6 * * 1", UTC
	StartHour int           // default 9
	EndHour   int           // default 21
}

type Service struct {
	runner Runner
	store  storage.Store
	log    logx.Logger

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron

	// runMu makes ticks single-flight: a slow run swallows the next tick
	// instead of piling up.
	runMu sync.Mutex

	now func() time.Time
}

func New(cfg Config, runner Runner, store storage.Store, log logx.Logger) *Service {
	if cfg.TickEvery <= 0 {
		cfg.TickEvery = 14 * time.Minute
	}
	if cfg.ResetCron == "" {
		cfg.ResetCron = "59 6 * * 1"
	}
	if cfg.StartHour == 0 && cfg.EndHour == 0 {
		cfg.StartHour, cfg.EndHour = 9, 21
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		runner: runner,
		store:  store,
		log:    log.With(logx.String("comp", "schedule")),
		now:    time.Now,
	}
}

// Apply swaps the gating config. The tick interval and reset expression stay as
// registered at Start; Enabled and the window hours take effect on the
// next tick.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	cfg.TickEvery = s.cfg.TickEvery
	cfg.ResetCron = s.cfg.ResetCron
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	cur := s.cfg

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cur.TickEvery), func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	if _, err := c.AddFunc(cur.ResetCron, func() { s.reset(ctx) }); err != nil {
		return fmt.Errorf("register reset %q: %w", cur.ResetCron, err)
	}
	c.Start()
	s.c = c
	s.log.Info("service started",
		logx.Duration("tick_every", cur.TickEvery),
		logx.String("reset_cron", cur.ResetCron),
		logx.Int("start_hour", cur.StartHour),
		logx.Int("end_hour", cur.EndHour))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("service stopped")
}

// TriggerAsync starts a run immediately, bypassing the window gate but
// not the single-flight lock. Used by the manual HTTP endpoint. The run
// outlives the caller's context (e.g. a finished HTTP request).
func (s *Service) TriggerAsync(ctx context.Context, reason string) {
	s.log.Info("manual run requested", logx.String("reason", reason))
	go s.runOnce(context.WithoutCancel(ctx))
}

func (s *Service) tick(ctx context.Context) {
	s.mu.Lock()
	cur := s.cfg
	s.mu.Unlock()

	if !cur.Enabled {
		return
	}
	if now := s.now(); !InWindow(now, cur.StartHour, cur.EndHour) {
		s.log.Debug("outside posting window, skipping tick",
			logx.Int("local_hour", localHour(now)))
		return
	}
	s.runOnce(ctx)
}

// runOnce executes one pipeline pass. Failures are logged, never
// propagated: a bad tick must not take the process down.
func (s *Service) runOnce(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.log.Warn("previous run still in progress, skipping")
		return
	}
	defer s.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("run panicked",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	s.mu.Lock()
	budget := s.cfg.TickEvery
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := s.now()
	o, ok, err := s.runner.Run(rctx)
	took := s.now().Sub(start)
	switch {
	case err != nil:
		s.log.Error("run failed", logx.Err(err), logx.Duration("took", took))
	case ok:
		s.log.Info("run published offer",
			logx.String("asin", o.ASIN), logx.Duration("took", took))
	default:
		s.log.Info("run found nothing to publish", logx.Duration("took", took))
	}
}

func (s *Service) reset(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("reset panicked", logx.Any("panic", r))
		}
	}()
	rctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := s.store.Reset(rctx); err != nil {
		s.log.Error("weekly ledger reset failed", logx.Err(err))
		return
	}
	s.log.Info("weekly ledger reset done")
}
