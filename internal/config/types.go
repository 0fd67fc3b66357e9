package config

// Config is the whole bot configuration.
//
// All durations are Go duration strings (e.g. "500ms", "25s", "24h").
// Credentials may be left empty in the file and supplied via environment
// (see env.go); the file is the source of truth for everything else.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Catalog  CatalogConfig  `json:"catalog"`
	Filters  FilterConfig   `json:"filters"`
	Schedule ScheduleConfig `json:"schedule"`
	Storage  StorageConfig  `json:"storage"`
	HTTP     HTTPConfig     `json:"http,omitempty"`

	// Keywords is the fixed rotation list. Empty means the built-in default
	// list for the configured marketplace.
	Keywords []string `json:"keywords,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	// Timeout bounds each outbound Telegram call.
	Timeout string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards warn+ log lines to the configured chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// CatalogConfig describes the Creators catalog API endpoint and credentials.
type CatalogConfig struct {
	TokenURL string `json:"token_url"`
	BaseURL  string `json:"base_url"`

	CredentialID      string `json:"credential_id,omitempty"`
	CredentialSecret  string `json:"credential_secret,omitempty"`
	CredentialVersion string `json:"credential_version,omitempty"`

	Marketplace string `json:"marketplace"`
	PartnerTag  string `json:"partner_tag"`
	Scope       string `json:"scope,omitempty"`

	ItemsPerPage int `json:"items_per_page,omitempty"` // default 8
	Pages        int `json:"pages,omitempty"`          // default 4
	FallbackMax  int `json:"fallback_max,omitempty"`   // default 4

	RatePerSec int    `json:"rate_per_sec,omitempty"` // default 1
	Timeout    string `json:"timeout,omitempty"`      // default "25s"
	RetryMax   int    `json:"retry_max,omitempty"`    // default 3 attempts total
	RetryBase  string `json:"retry_base,omitempty"`   // default "1s"
}

// FilterConfig holds the business filters applied to extracted offers.
type FilterConfig struct {
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	MinDiscount int     `json:"min_discount"`
	// Cooldown is the minimum gap before the same ASIN may be reposted.
	Cooldown string `json:"cooldown,omitempty"` // default "24h"
}

type ScheduleConfig struct {
	Enabled bool `json:"enabled"`
	// TickEvery is the discovery interval, default "14m".
	TickEvery string `json:"tick_every,omitempty"`
	// ResetCron clears the dedup ledger, default "59 6 * * 1" (UTC).
	ResetCron string `json:"reset_cron,omitempty"`
	// Posting window in approximate marketplace local time.
	StartHour int `json:"start_hour,omitempty"` // default 9
	EndHour   int `json:"end_hour,omitempty"`   // default 21
}

// StorageConfig selects the ledger backend.
//
// Driver values:
//   - "file": dependency-free file backend (ASIN list + timestamped log + cursor)
//   - "sqlite": SQLite database file (optional build tag)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// HTTPConfig controls the manual-trigger/health endpoint.
//
// Prefer binding to localhost; set a token if you expose it further.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`  // default "127.0.0.1:8080"
	Token   string `json:"token,omitempty"` // optional bearer token

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}
