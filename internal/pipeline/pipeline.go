// Package pipeline runs one discovery pass: pick a keyword, page through
// search results, normalize and filter them, and hand the first
// qualifying offer to the notification sink.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dealbot/internal/catalog"
	"dealbot/internal/offer"
	"dealbot/internal/rotation"
	"dealbot/internal/storage"
	logx "dealbot/pkg/logx"
)

// Searcher is the slice of the catalog client the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, keyword string, page int) ([]catalog.Item, catalog.Rung, error)
	BatchLookup(ctx context.Context, ids []string) ([]catalog.Item, catalog.Rung, error)
}

// Sink receives the one offer a run produces.
type Sink interface {
	Publish(ctx context.Context, o offer.Offer) error
}

// Filters holds the business thresholds. They can be swapped at runtime
// via SetFilters when the config file changes.
type Filters struct {
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
	MinDiscount int
	Cooldown    time.Duration
}

type Config struct {
	Pages       int // search pages per run, default 4
	FallbackMax int // batch-lookup candidate cap, default 4
}

type Pipeline struct {
	cfg     Config
	client  Searcher
	extract offer.Extractor
	store   storage.Store
	rotator *rotation.Rotator
	sink    Sink
	log     logx.Logger

	mu      sync.RWMutex
	filters Filters
}

func New(cfg Config, client Searcher, ex offer.Extractor, store storage.Store, rot *rotation.Rotator, sink Sink, filters Filters, log logx.Logger) *Pipeline {
	if cfg.Pages <= 0 {
		cfg.Pages = 4
	}
	if cfg.FallbackMax <= 0 {
		cfg.FallbackMax = 4
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{
		cfg:     cfg,
		client:  client,
		extract: ex,
		store:   store,
		rotator: rot,
		sink:    sink,
		filters: filters,
		log:     log.With(logx.String("comp", "pipeline")),
	}
}

// SetFilters swaps the thresholds used by subsequent runs.
func (p *Pipeline) SetFilters(f Filters) {
	p.mu.Lock()
	p.filters = f
	p.mu.Unlock()
}

func (p *Pipeline) Filters() Filters {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filters
}

// Run executes one discovery pass end to end. It returns the published
// offer, or ok=false when nothing qualified. The dedup ledger is only
// updated after the sink accepted the offer.
func (p *Pipeline) Run(ctx context.Context) (offer.Offer, bool, error) {
	keyword, err := p.rotator.Next(ctx)
	if err != nil {
		return offer.Offer{}, false, err
	}

	o, ok, err := p.FindOffer(ctx, keyword)
	if err != nil || !ok {
		return offer.Offer{}, false, err
	}

	if err := p.sink.Publish(ctx, o); err != nil {
		return offer.Offer{}, false, err
	}
	if err := p.store.MarkPublished(ctx, o.ASIN); err != nil {
		// Published but not recorded. Surface it so the operator knows a
		// duplicate may follow.
		return o, true, err
	}
	p.log.Info("offer published",
		logx.String("asin", o.ASIN),
		logx.String("keyword", keyword),
		logx.Int("discount", o.DiscountPercent),
		logx.String("price", o.PriceNew.StringFixed(2)))
	return o, true, nil
}

// tally counts why candidates were rejected during one pass.
type tally struct {
	noASIN, seen, cooldown, noPrice, price, discount int
}

// FindOffer scans up to cfg.Pages of search results for keyword and
// returns the first offer passing the filters. Records with a valid ASIN
// but no parseable price are retried once through a single batch lookup
// (capped at cfg.FallbackMax IDs). A rate-limited upstream aborts the
// remaining pages.
func (p *Pipeline) FindOffer(ctx context.Context, keyword string) (offer.Offer, bool, error) {
	filters := p.Filters()
	var (
		t          tally
		candidates []string
	)

	for page := 1; page <= p.cfg.Pages; page++ {
		items, _, err := p.client.Search(ctx, keyword, page)
		if err != nil {
			var rl *catalog.RateLimitedError
			if errors.As(err, &rl) {
				p.log.Warn("rate limited, aborting remaining pages",
					logx.String("keyword", keyword), logx.Int("page", page))
				return offer.Offer{}, false, err
			}
			if ctx.Err() != nil {
				return offer.Offer{}, false, err
			}
			// A single bad page should not cost the whole run.
			p.log.Warn("page scan failed, skipping",
				logx.String("keyword", keyword), logx.Int("page", page), logx.Err(err))
			continue
		}

		for _, it := range items {
			o, ok, reason, err := p.consider(ctx, it, filters, &t)
			if err != nil {
				return offer.Offer{}, false, err
			}
			if ok {
				p.logTally(keyword, t)
				return o, true, nil
			}
			// A record without a price is worth one more try through
			// getItems, which ladders its resources independently.
			if reason == reasonNoPrice && len(candidates) < p.cfg.FallbackMax {
				candidates = append(candidates, o.ASIN)
			}
		}
	}

	if len(candidates) > 0 {
		p.log.Debug("batch lookup for price-less records",
			logx.String("keyword", keyword), logx.Int("count", len(candidates)))
		items, _, err := p.client.BatchLookup(ctx, candidates)
		if err != nil {
			return offer.Offer{}, false, err
		}
		for _, it := range items {
			o, ok, _, err := p.consider(ctx, it, filters, &t)
			if err != nil {
				return offer.Offer{}, false, err
			}
			if ok {
				p.logTally(keyword, t)
				return o, true, nil
			}
		}
	}

	p.logTally(keyword, t)
	return offer.Offer{}, false, nil
}

type rejectReason int

const (
	reasonNone rejectReason = iota
	reasonNoASIN
	reasonSeen
	reasonCooldown
	reasonNoPrice
	reasonPrice
	reasonDiscount
)

// consider runs dedup, extraction and filters over one record. On
// rejection the partial offer is still returned so the caller can keep
// the ASIN for a batch retry.
func (p *Pipeline) consider(ctx context.Context, it catalog.Item, f Filters, t *tally) (offer.Offer, bool, rejectReason, error) {
	o, extracted := p.extract.Extract(it)
	if o.ASIN == "" {
		t.noASIN++
		return o, false, reasonNoASIN, nil
	}

	seen, err := p.store.Seen(ctx, o.ASIN)
	if err != nil {
		return o, false, reasonNone, err
	}
	if seen {
		t.seen++
		return o, false, reasonSeen, nil
	}
	ok, err := p.store.CanPost(ctx, o.ASIN, f.Cooldown)
	if err != nil {
		return o, false, reasonNone, err
	}
	if !ok {
		t.cooldown++
		return o, false, reasonCooldown, nil
	}

	if !extracted {
		t.noPrice++
		return o, false, reasonNoPrice, nil
	}
	if o.PriceNew.LessThan(f.MinPrice) || o.PriceNew.GreaterThan(f.MaxPrice) {
		t.price++
		return o, false, reasonPrice, nil
	}
	if o.DiscountPercent < f.MinDiscount {
		t.discount++
		return o, false, reasonDiscount, nil
	}
	return o, true, reasonNone, nil
}

func (p *Pipeline) logTally(keyword string, t tally) {
	p.log.Debug("scan summary",
		logx.String("keyword", keyword),
		logx.Int("no_asin", t.noASIN),
		logx.Int("already_seen", t.seen),
		logx.Int("in_cooldown", t.cooldown),
		logx.Int("no_price", t.noPrice),
		logx.Int("out_of_price_range", t.price),
		logx.Int("below_min_discount", t.discount))
}
