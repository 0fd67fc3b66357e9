package app

import (
	"context"

	"dealbot/internal/offer"
	kit "dealbot/internal/transport"
)

// telegramSink publishes offers as photo posts with an inline buy button.
type telegramSink struct {
	adapter kit.Adapter
	to      kit.ChatTarget
}

func (s *telegramSink) Publish(ctx context.Context, o offer.Offer) error {
	return s.adapter.SendPhoto(ctx, s.to, o.ImageURL, offer.Caption(o), &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
		ButtonText:     "🛒 Apri l'offerta",
		ButtonURL:      o.DetailURL,
	})
}
