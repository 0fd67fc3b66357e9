package offer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"dealbot/internal/catalog"
)

var testExtractor = Extractor{Marketplace: "www.amazon.it", PartnerTag: "tag-21"}

func itemFromJSON(t *testing.T, raw string) catalog.Item {
	t.Helper()
	var it catalog.Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("bad test item: %v", err)
	}
	return it
}

func eq(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	w, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("bad want %q: %v", want, err)
	}
	if !got.Equal(w) {
		t.Fatalf("got %s; want %s", got, want)
	}
}

func TestExtractPriorPriceSources(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		raw      string
		wantNew  string
		wantOld  string
		wantPct  int
	}{
		{
			name: "saving basis wins over everything",
			raw: `{"asin":"b0a","offersV2":{"listings":[{
				"price":{"amount":70},
				"savingBasis":{"amount":100},
				"dealDetails":{"savingsPercentage":25,"savings":{"amount":10}}}]}}`,
			wantNew: "70", wantOld: "100", wantPct: 25,
		},
		{
			name: "saved amount added to current price",
			raw: `{"asin":"b0b","offersV2":{"listings":[{
				"price":{"amount":80},
				"dealDetails":{"savingsAmount":{"amount":20}}}]}}`,
			wantNew: "80", wantOld: "100", wantPct: 20,
		},
		{
			name: "prior derived from percentage",
			raw: `{"asin":"b0c","offersV2":{"listings":[{
				"price":{"amount":75},
				"dealDetails":{"percent":25}}]}}`,
			wantNew: "75", wantOld: "100", wantPct: 25,
		},
		{
			name: "no discount info collapses to current price",
			raw: `{"asin":"b0d","offersV2":{"listings":[{
				"price":{"amount":50}}]}}`,
			wantNew: "50", wantOld: "50", wantPct: 0,
		},
		{
			name: "prior below current is clamped",
			raw: `{"asin":"b0e","offersV2":{"listings":[{
				"price":{"amount":50},
				"savingBasis":{"amount":40}}]}}`,
			wantNew: "50", wantOld: "50", wantPct: 0,
		},
		{
			name: "percentage derived from both prices when absent",
			raw: `{"asin":"b0f","offersV2":{"listings":[{
				"price":{"amount":75},
				"savingBasis":{"amount":100}}]}}`,
			wantNew: "75", wantOld: "100", wantPct: 25,
		},
		{
			name: "out-of-range percentage is clamped",
			raw: `{"asin":"b0g","offersV2":{"listings":[{
				"price":{"amount":10},
				"savingBasis":{"amount":100},
				"dealDetails":{"percentage":150}}]}}`,
			wantNew: "10", wantOld: "100", wantPct: 100,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, ok := testExtractor.Extract(itemFromJSON(t, tc.raw))
			if !ok {
				t.Fatal("Extract returned ok=false")
			}
			eq(t, o.PriceNew, tc.wantNew)
			eq(t, o.PriceOld, tc.wantOld)
			if o.DiscountPercent != tc.wantPct {
				t.Fatalf("discount = %d; want %d", o.DiscountPercent, tc.wantPct)
			}
			if o.PriceOld.LessThan(o.PriceNew) {
				t.Fatal("invariant violated: prior price below current")
			}
		})
	}
}

func TestExtractMoneyShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"structured amount", `{"asin":"b1a","offersV2":{"listings":[{"price":{"amount":12.34}}]}}`, "12.34"},
		{"object with display string", `{"asin":"b1b","offersV2":{"listings":[{"price":{"displayAmount":"1.299,00 €"}}]}}`, "1299"},
		{"bare string price", `{"asin":"b1c","offersV2":{"listings":[{"price":"29,90 €"}]}}`, "29.9"},
		{"bare number price", `{"asin":"b1d","offersV2":{"listings":[{"price":49.5}]}}`, "49.5"},
		{"nbsp and symbol stripped", "{\"asin\":\"b1e\",\"offersV2\":{\"listings\":[{\"price\":\"19,99 €\"}]}}", "19.99"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, ok := testExtractor.Extract(itemFromJSON(t, tc.raw))
			if !ok {
				t.Fatal("Extract returned ok=false")
			}
			eq(t, o.PriceNew, tc.want)
		})
	}
}

func TestExtractRejectsUnusableRecords(t *testing.T) {
	t.Parallel()

	t.Run("missing asin", func(t *testing.T) {
		o, ok := testExtractor.Extract(itemFromJSON(t, `{"asin":"  "}`))
		if ok || o.ASIN != "" {
			t.Fatalf("Extract = %+v, %v; want empty, false", o, ok)
		}
	})

	t.Run("no listing keeps asin for batch retry", func(t *testing.T) {
		o, ok := testExtractor.Extract(itemFromJSON(t, `{"asin":"b000test01"}`))
		if ok {
			t.Fatal("want ok=false without price")
		}
		if o.ASIN != "B000TEST01" {
			t.Fatalf("asin = %q; want normalized B000TEST01", o.ASIN)
		}
	})

	t.Run("unparseable price", func(t *testing.T) {
		_, ok := testExtractor.Extract(itemFromJSON(t,
			`{"asin":"b000test02","offersV2":{"listings":[{"price":"n/a"}]}}`))
		if ok {
			t.Fatal("want ok=false for unparseable price")
		}
	})
}

func TestExtractTitleAndLinks(t *testing.T) {
	t.Parallel()

	longTitle := strings.Repeat("parola ", 30) // 210 runes
	raw := `{"asin":"b000test03",
		"itemInfo":{"title":{"displayValue":"` + longTitle + `"}},
		"offersV2":{"listings":[{"price":{"amount":20}}]}}`
	o, ok := testExtractor.Extract(itemFromJSON(t, raw))
	if !ok {
		t.Fatal("Extract returned ok=false")
	}
	if got := len([]rune(o.Title)); got > titleMaxRunes+len([]rune(ellipsis)) {
		t.Fatalf("title length = %d runes", got)
	}
	if !strings.HasSuffix(o.Title, ellipsis) {
		t.Fatalf("long title not truncated: %q", o.Title)
	}
	if o.ImageURL != fallbackImageURL {
		t.Fatalf("image = %q; want fallback", o.ImageURL)
	}
	want := "https://www.amazon.it/dp/B000TEST03?tag=tag-21"
	if o.DetailURL != want {
		t.Fatalf("detail URL = %q; want %q", o.DetailURL, want)
	}
}

func TestHistoricLow(t *testing.T) {
	t.Parallel()
	if (Offer{DiscountPercent: 29}).HistoricLow() {
		t.Fatal("29% is not a historic low")
	}
	if !(Offer{DiscountPercent: 30}).HistoricLow() {
		t.Fatal("30% qualifies")
	}
}
