package offer

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

// Caption renders the Telegram HTML caption for a published offer.
func Caption(o Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔥 <b>%s</b>\n\n", html.EscapeString(o.Title))

	if o.DiscountPercent > 0 && o.PriceOld.GreaterThan(o.PriceNew) {
		fmt.Fprintf(&b, "💰 <b>%s€</b> invece di <s>%s€</s>\n", formatEUR(o.PriceNew), formatEUR(o.PriceOld))
		fmt.Fprintf(&b, "📉 Sconto del <b>%d%%</b> (risparmi %s€)\n", o.DiscountPercent, formatEUR(o.Savings()))
	} else {
		fmt.Fprintf(&b, "💰 <b>%s€</b>\n", formatEUR(o.PriceNew))
	}
	if o.HistoricLow() {
		b.WriteString("🔻 Minimo storico!\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatEUR renders an amount the Italian way, comma as decimal mark.
func formatEUR(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}
