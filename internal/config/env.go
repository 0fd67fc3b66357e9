package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overlays secrets and deploy-specific values from the environment.
// File values win only when the corresponding variable is unset, so secrets
// can be kept out of the config file entirely.
func (c *Config) ApplyEnv() {
	if v := getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := getenv("CREATORS_CREDENTIAL_ID"); v != "" {
		c.Catalog.CredentialID = v
	}
	if v := getenv("CREATORS_CREDENTIAL_SECRET"); v != "" {
		c.Catalog.CredentialSecret = v
	}
	if v := getenv("CREATORS_CREDENTIAL_VERSION"); v != "" {
		c.Catalog.CredentialVersion = v
	}
	if v := getenv("CREATORS_MARKETPLACE"); v != "" {
		c.Catalog.Marketplace = v
	}
	if v := getenv("AMAZON_ASSOCIATE_TAG"); v != "" {
		c.Catalog.PartnerTag = v
	}
	if v := getenv("CREATORS_TOKEN_URL"); v != "" {
		c.Catalog.TokenURL = v
	}
	if v := getenv("CREATORS_BASE_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
}

func getenv(k string) string { return strings.TrimSpace(os.Getenv(k)) }
