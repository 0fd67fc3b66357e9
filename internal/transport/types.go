package transport

import "context"

// ChatTarget identifies where a message goes.
type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// ButtonText/ButtonURL render as a single inline URL button when both set.
	ButtonText string
	ButtonURL  string
}

// Adapter is the narrow seam between the discovery core and the messaging
// platform. The core never talks to Telegram directly.
type Adapter interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
	// SendPhoto sends a photo by URL with an optional caption.
	SendPhoto(ctx context.Context, to ChatTarget, photoURL, caption string, opt *SendOptions) error
}
