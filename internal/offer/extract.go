package offer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"dealbot/internal/catalog"
)

const (
	titleMaxRunes = 80
	ellipsis      = "…"

	// fallbackImageURL is used when a record carries no primary image.
	fallbackImageURL = "https://m.media-amazon.com/images/I/71bhWgQK-cL._AC_SL1500_.jpg"
)

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// Extractor turns catalog items into Offers.
type Extractor struct {
	// Marketplace host (e.g. "www.amazon.it") and partner tag, used to
	// synthesize a detail URL when the record has none.
	Marketplace string
	PartnerTag  string
}

// Extract normalizes one raw catalog record.
//
// ok is false when the record has no usable ASIN, or when no price could be
// parsed from any of the known shapes. Callers that still hold a valid ASIN
// may retry such records through a batch lookup.
func (e Extractor) Extract(it catalog.Item) (Offer, bool) {
	asin := strings.ToUpper(strings.TrimSpace(it.ASIN))
	if asin == "" {
		return Offer{}, false
	}

	o := Offer{
		ASIN:      asin,
		Title:     normalizeTitle(titleOf(it)),
		ImageURL:  imageOf(it),
		DetailURL: it.DetailPageURL,
	}
	if o.DetailURL == "" {
		o.DetailURL = fmt.Sprintf("https://%s/dp/%s?tag=%s", e.Marketplace, asin, e.PartnerTag)
	}

	listing := firstListing(it)
	if listing == nil {
		return o, false
	}

	priceNew, ok := parseMoney(listing.Price)
	if !ok {
		return o, false
	}
	o.PriceNew = priceNew

	pct, pctPresent := listing.DealDetails.PercentValue()
	if pct < 0 {
		pct = 0
	}

	// Prior-price reconciliation, first usable source wins.
	priceOld, haveOld := decimal.Zero, false
	if listing.SavingBasis != nil {
		if v, ok := parseMoney(listing.SavingBasis); ok {
			priceOld, haveOld = v, true
		}
	}
	if !haveOld {
		if saved := savedAmount(listing); saved.IsPositive() {
			priceOld, haveOld = priceNew.Add(saved), true
		}
	}
	if !haveOld && pctPresent && pct > 0 && pct < 100 {
		denom := decOne.Sub(decimal.NewFromInt(int64(pct)).Div(decHundred))
		priceOld, haveOld = priceNew.Div(denom).Round(2), true
	}
	if !haveOld || priceOld.LessThan(priceNew) {
		priceOld = priceNew
	}
	o.PriceOld = priceOld

	o.DiscountPercent = pct
	if o.DiscountPercent == 0 && o.PriceOld.GreaterThan(priceNew) {
		o.DiscountPercent = int(o.PriceOld.Sub(priceNew).
			Div(o.PriceOld).Mul(decHundred).Round(0).IntPart())
	}
	if o.DiscountPercent > 100 {
		o.DiscountPercent = 100
	}
	if o.DiscountPercent < 0 {
		o.DiscountPercent = 0
	}

	return o, true
}

func firstListing(it catalog.Item) *catalog.Listing {
	if it.OffersV2 == nil || len(it.OffersV2.Listings) == 0 {
		return nil
	}
	return &it.OffersV2.Listings[0]
}

func savedAmount(l *catalog.Listing) decimal.Decimal {
	m, ok := l.DealDetails.SavedValue()
	if !ok {
		return decimal.Zero
	}
	d, ok := parseMoney(m)
	if !ok {
		return decimal.Zero
	}
	return d
}

// parseMoney resolves a Money into a decimal amount, preferring the
// structured value over the display string.
func parseMoney(m *catalog.Money) (decimal.Decimal, bool) {
	if m == nil {
		return decimal.Zero, false
	}
	if m.Amount != "" {
		if d, err := decimal.NewFromString(m.Amount.String()); err == nil {
			return d, true
		}
	}
	return parseDisplayAmount(m.DisplayAmount)
}

// parseDisplayAmount parses a localized price string such as "1.299,00 €":
// currency symbol and non-breaking spaces are stripped, "." is a thousands
// separator and "," the decimal mark.
func parseDisplayAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func titleOf(it catalog.Item) string {
	if it.ItemInfo == nil || it.ItemInfo.Title == nil {
		return ""
	}
	return it.ItemInfo.Title.DisplayValue
}

func imageOf(it catalog.Item) string {
	if it.Images != nil && it.Images.Primary != nil && it.Images.Primary.Large != nil && it.Images.Primary.Large.URL != "" {
		return it.Images.Primary.Large.URL
	}
	return fallbackImageURL
}

// normalizeTitle collapses whitespace and truncates to a display-safe length.
func normalizeTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= titleMaxRunes {
		return s
	}
	return strings.TrimSpace(string(r[:titleMaxRunes])) + ellipsis
}
