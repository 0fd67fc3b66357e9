// Package app wires configuration, logging, storage, the catalog client
// and the discovery pipeline into one runnable bot.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"dealbot/internal/catalog"
	"dealbot/internal/config"
	"dealbot/internal/httpapi"
	"dealbot/internal/offer"
	"dealbot/internal/pipeline"
	"dealbot/internal/rotation"
	rtsup "dealbot/internal/runtime/supervisor"
	"dealbot/internal/schedule"
	"dealbot/internal/storage"
	kit "dealbot/internal/transport"
	"dealbot/internal/transport/telegram"
	logx "dealbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter
	pipe    *pipeline.Pipeline
	sched   *schedule.Service
	api     *httpapi.Service
}

// New builds the whole object graph from the config file. Any error here
// is a startup misconfiguration and fatal; after New succeeds the bot
// must survive whatever the upstream throws at it.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	ad, err := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		Timeout: config.DurationOr(cfg.Telegram.Timeout, 30*time.Second),
	})
	if err != nil {
		return nil, err
	}

	// Bring logging up with the telegram sink disabled, point it at the
	// chat, then apply the real config. Avoids a lost-target warning.
	logCfg := logConfigOf(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	logSvc.SetTelegramTarget(cfg.Telegram.ChatID, cfg.Telegram.ThreadID)
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, 0),
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	creds := catalog.NewCredentialCache(
		cfg.Catalog.TokenURL,
		cfg.Catalog.CredentialID,
		cfg.Catalog.CredentialSecret,
		cfg.Catalog.Scope,
		nil,
	)
	client := catalog.NewClient(catalog.Config{
		BaseURL:           cfg.Catalog.BaseURL,
		Marketplace:       cfg.Catalog.Marketplace,
		PartnerTag:        cfg.Catalog.PartnerTag,
		CredentialVersion: cfg.Catalog.CredentialVersion,
		ItemsPerPage:      cfg.Catalog.ItemsPerPage,
		Timeout:           config.DurationOr(cfg.Catalog.Timeout, 25*time.Second),
		RetryMax:          cfg.Catalog.RetryMax,
		RetryBase:         config.DurationOr(cfg.Catalog.RetryBase, time.Second),
		RatePerSec:        cfg.Catalog.RatePerSec,
	}, creds, log)

	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = config.DefaultKeywords
	}
	rot := rotation.New(keywords, store, log.With(logx.String("comp", "rotation")))

	sink := &telegramSink{
		adapter: ad,
		to:      kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID},
	}

	ex := offer.Extractor{
		Marketplace: cfg.Catalog.Marketplace,
		PartnerTag:  cfg.Catalog.PartnerTag,
	}
	pipe := pipeline.New(
		pipeline.Config{Pages: cfg.Catalog.Pages, FallbackMax: cfg.Catalog.FallbackMax},
		client, ex, store, rot, sink, filtersOf(cfg), log,
	)

	sched := schedule.New(scheduleConfigOf(cfg), pipe, store, log)

	api := httpapi.New(httpapi.Config{
		Enabled:      cfg.HTTP.Enabled,
		Addr:         cfg.HTTP.Addr,
		Token:        cfg.HTTP.Token,
		ReadTimeout:  config.DurationOr(cfg.HTTP.ReadTimeout, 5*time.Second),
		WriteTimeout: config.DurationOr(cfg.HTTP.WriteTimeout, 10*time.Second),
	}, sched, log)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		pipe:    pipe,
		sched:   sched,
		api:     api,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.sched.Start(ctx); err != nil {
		return err
	}
	if err := a.api.Start(ctx); err != nil {
		a.sched.Stop(ctx)
		return err
	}

	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	updates := a.cfgm.Subscribe(1)
	a.sup.Go("config.apply", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case cfg := <-updates:
				a.applyConfig(cfg)
			}
		}
	})

	a.log.Info("bot started")
	return nil
}

func (a *App) Stop(ctx context.Context) {
	if a.sup != nil {
		_ = a.sup.Stop(ctx)
		a.sup = nil
	}
	a.api.Stop(ctx)
	a.sched.Stop(ctx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("bot stopped")
	_ = a.logs.Close()
}

// applyConfig pushes a hot-reloaded config into the running services.
// Only logging, filters and schedule gating change live; everything else
// (tokens, addresses, storage) needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.SetTelegramTarget(cfg.Telegram.ChatID, cfg.Telegram.ThreadID)
	a.logs.Apply(logConfigOf(cfg))
	a.pipe.SetFilters(filtersOf(cfg))
	a.sched.Apply(scheduleConfigOf(cfg))
	a.log.Info("runtime config applied")
}

func logConfigOf(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func filtersOf(cfg *config.Config) pipeline.Filters {
	return pipeline.Filters{
		MinPrice:    decimal.NewFromFloat(cfg.Filters.MinPrice),
		MaxPrice:    decimal.NewFromFloat(cfg.Filters.MaxPrice),
		MinDiscount: cfg.Filters.MinDiscount,
		Cooldown:    config.DurationOr(cfg.Filters.Cooldown, 24*time.Hour),
	}
}

func scheduleConfigOf(cfg *config.Config) schedule.Config {
	return schedule.Config{
		Enabled:   cfg.Schedule.Enabled,
		TickEvery: config.DurationOr(cfg.Schedule.TickEvery, 14*time.Minute),
		ResetCron: cfg.Schedule.ResetCron,
		StartHour: cfg.Schedule.StartHour,
		EndHour:   cfg.Schedule.EndHour,
	}
}
