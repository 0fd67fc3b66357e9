// Package rotation cycles through the configured search keywords, one
// per pipeline run, persisting its position so restarts resume where
// the previous process left off.
package rotation

import (
	"context"
	"errors"

	"dealbot/internal/storage"
	logx "dealbot/pkg/logx"
)

var ErrNoKeywords = errors.New("rotation: keyword list is empty")

type Rotator struct {
	keywords []string
	store    storage.Store
	log      logx.Logger
}

func New(keywords []string, store storage.Store, log logx.Logger) *Rotator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Rotator{keywords: keywords, store: store, log: log}
}

// Next returns the keyword for this run and advances the persisted
// cursor. A missing or corrupt cursor restarts the cycle at index 0.
func (r *Rotator) Next(ctx context.Context) (string, error) {
	if len(r.keywords) == 0 {
		return "", ErrNoKeywords
	}

	idx, err := r.store.Cursor(ctx)
	if err != nil {
		return "", err
	}
	idx = idx % len(r.keywords)
	kw := r.keywords[idx]

	if err := r.store.SetCursor(ctx, (idx+1)%len(r.keywords)); err != nil {
		return "", err
	}
	r.log.Debug("keyword selected", logx.String("keyword", kw), logx.Int("index", idx))
	return kw, nil
}

// Len reports the cycle length.
func (r *Rotator) Len() int { return len(r.keywords) }
