package config

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultKeywords is the rotation list used when the config supplies none.
// It mirrors the amazon.it electronics rotation the bot shipped with.
var DefaultKeywords = []string{
	"Apple",
	"Android",
	"iPhone",
	"MacBook",
	"tablet",
	"smartwatch",
	"auricolari Bluetooth",
	"smart TV",
	"monitor PC",
	"notebook",
	"gaming mouse",
	"gaming tastiera",
	"console",
	"soundbar",
	"smart home",
	"aspirapolvere robot",
	"telecamere WiFi",
	"caricatore wireless",
	"accessori smartphone",
	"accessori iPhone",
}

// ApplyDefaults fills zero-valued optional fields in place.
func (c *Config) ApplyDefaults() {
	if c.Catalog.TokenURL == "" {
		c.Catalog.TokenURL = "https://creatorsapi.auth.eu-south-2.amazoncognito.com/oauth2/token"
	}
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = "https://creatorsapi.amazon/catalog/v1"
	}
	if c.Catalog.Marketplace == "" {
		c.Catalog.Marketplace = "www.amazon.it"
	}
	if c.Catalog.Scope == "" {
		c.Catalog.Scope = "creatorsapi/default"
	}
	if c.Catalog.ItemsPerPage <= 0 {
		c.Catalog.ItemsPerPage = 8
	}
	if c.Catalog.Pages <= 0 {
		c.Catalog.Pages = 4
	}
	if c.Catalog.FallbackMax <= 0 {
		c.Catalog.FallbackMax = 4
	}
	if c.Catalog.RatePerSec <= 0 {
		c.Catalog.RatePerSec = 1
	}
	if c.Catalog.RetryMax <= 0 {
		c.Catalog.RetryMax = 3
	}

	if c.Filters.MinPrice <= 0 {
		c.Filters.MinPrice = 15
	}
	if c.Filters.MaxPrice <= 0 {
		c.Filters.MaxPrice = 1900
	}
	if c.Filters.MinDiscount <= 0 {
		c.Filters.MinDiscount = 15
	}

	if c.Schedule.TickEvery == "" {
		c.Schedule.TickEvery = "14m"
	}
	if c.Schedule.ResetCron == "" {
		c.Schedule.ResetCron = "59 6 * * 1"
	}
	if c.Schedule.StartHour == 0 && c.Schedule.EndHour == 0 {
		c.Schedule.StartHour = 9
		c.Schedule.EndHour = 21
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./dealbot_store"
	}

	if len(c.Keywords) == 0 {
		c.Keywords = append([]string(nil), DefaultKeywords...)
	}
}

// Validate rejects configurations the process cannot start with.
// Anything caught here is fatal at startup (not at reload).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (or TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required (or TELEGRAM_CHAT_ID)")
	}
	if strings.TrimSpace(c.Catalog.CredentialID) == "" ||
		strings.TrimSpace(c.Catalog.CredentialSecret) == "" {
		return errors.New("catalog credentials are required (credential_id/credential_secret or CREATORS_CREDENTIAL_ID/CREATORS_CREDENTIAL_SECRET)")
	}
	if strings.TrimSpace(c.Catalog.CredentialVersion) == "" {
		return errors.New("catalog.credential_version is required (or CREATORS_CREDENTIAL_VERSION)")
	}
	if strings.TrimSpace(c.Catalog.PartnerTag) == "" {
		return errors.New("catalog.partner_tag is required")
	}
	if c.Filters.MaxPrice < c.Filters.MinPrice {
		return fmt.Errorf("filters: max_price %v < min_price %v", c.Filters.MaxPrice, c.Filters.MinPrice)
	}
	if c.Filters.MinDiscount < 0 || c.Filters.MinDiscount > 100 {
		return fmt.Errorf("filters: min_discount %d out of range 0..100", c.Filters.MinDiscount)
	}
	if c.Schedule.StartHour < 0 || c.Schedule.StartHour > 23 ||
		c.Schedule.EndHour < 1 || c.Schedule.EndHour > 24 ||
		c.Schedule.EndHour <= c.Schedule.StartHour {
		return fmt.Errorf("schedule: invalid window %d..%d", c.Schedule.StartHour, c.Schedule.EndHour)
	}
	for _, field := range []struct {
		path, raw string
	}{
		{"telegram.timeout", c.Telegram.Timeout},
		{"catalog.timeout", c.Catalog.Timeout},
		{"catalog.retry_base", c.Catalog.RetryBase},
		{"filters.cooldown", c.Filters.Cooldown},
		{"schedule.tick_every", c.Schedule.TickEvery},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"http.read_timeout", c.HTTP.ReadTimeout},
		{"http.write_timeout", c.HTTP.WriteTimeout},
	} {
		if _, err := ParseDurationField(field.path, field.raw); err != nil {
			return err
		}
	}
	return nil
}
