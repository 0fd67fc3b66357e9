package catalog

import (
	"bytes"
	"encoding/json"
)

// Item is one catalog record as returned by searchItems/getItems.
//
// The upstream response is loosely shaped: the same fact (price, discount)
// can arrive under several field names and as either structured objects or
// bare display strings. All of that is modeled here as optional typed
// fields; deciding which one wins is the extractor's job.
type Item struct {
	ASIN          string    `json:"asin"`
	DetailPageURL string    `json:"detailPageURL"`
	ItemInfo      *ItemInfo `json:"itemInfo"`
	Images        *Images   `json:"images"`
	OffersV2      *OffersV2 `json:"offersV2"`
}

type ItemInfo struct {
	Title *DisplayValue `json:"title"`
}

type DisplayValue struct {
	DisplayValue string `json:"displayValue"`
}

type Images struct {
	Primary *ImageSet `json:"primary"`
}

type ImageSet struct {
	Large *ImageResource `json:"large"`
}

type ImageResource struct {
	URL string `json:"url"`
}

type OffersV2 struct {
	Listings []Listing `json:"listings"`
}

type Listing struct {
	Price       *Money       `json:"price"`
	SavingBasis *Money       `json:"savingBasis"`
	DealDetails *DealDetails `json:"dealDetails"`
}

// DealDetails carries the discount facts. Field naming varies by
// marketplace and response version, so every observed alias is declared.
type DealDetails struct {
	SavingsPercentage *int `json:"savingsPercentage"`
	Percentage        *int `json:"percentage"`
	Percent           *int `json:"percent"`
	SavingsPercent    *int `json:"savings_percent"`

	Savings       *Money `json:"savings"`
	SavingsAmount *Money `json:"savingsAmount"`
	AmountSaved   *Money `json:"amountSaved"`
}

// PercentValue returns the first present percentage alias.
func (d *DealDetails) PercentValue() (int, bool) {
	if d == nil {
		return 0, false
	}
	for _, p := range []*int{d.SavingsPercentage, d.Percentage, d.Percent, d.SavingsPercent} {
		if p != nil {
			return *p, true
		}
	}
	return 0, false
}

// SavedValue returns the first present amount-saved alias.
func (d *DealDetails) SavedValue() (*Money, bool) {
	if d == nil {
		return nil, false
	}
	for _, m := range []*Money{d.Savings, d.SavingsAmount, d.AmountSaved} {
		if m != nil {
			return m, true
		}
	}
	return nil, false
}

// Money is a price that may arrive as an object
// ({"displayAmount": "...", "amount": 12.34}), a bare display string, or a
// bare number.
type Money struct {
	DisplayAmount string      `json:"displayAmount"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
}

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '{':
		type plain Money
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*m = Money(p)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		m.DisplayAmount = s
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		m.Amount = n
		return nil
	}
}

// searchItems / getItems envelopes.

type searchResponse struct {
	SearchResult *itemList `json:"searchResult"`
}

type getResponse struct {
	GetResult *itemList `json:"getResult"`
}

type itemList struct {
	Items []Item `json:"items"`
}
