package catalog

// Rung identifies which resource set a call succeeded with. Lower is
// richer; callers use it to know whether price data can be expected.
type Rung int

const (
	// RungRich requests price, prior price and deal details.
	RungRich Rung = iota
	// RungPrice requests price only.
	RungPrice
	// RungMinimal requests title and image only; no price data.
	RungMinimal
)

func (r Rung) String() string {
	switch r {
	case RungRich:
		return "rich"
	case RungPrice:
		return "price"
	case RungMinimal:
		return "minimal"
	default:
		return "unknown"
	}
}

// HasPrice reports whether responses at this rung can carry price data.
func (r Rung) HasPrice() bool { return r != RungMinimal }

// resourceLadder is the descending list of resource sets tried per call.
// The provider rejects some combinations per account whitelist; each 400
// falls through to the next, poorer set.
var resourceLadder = [][]string{
	RungRich: {
		"itemInfo.title",
		"images.primary.large",
		"offersV2.listings.price",
		"offersV2.listings.savingBasis",
		"offersV2.listings.dealDetails",
		"offersV2.listings.isBuyBoxWinner",
		"offersV2.listings.availability",
	},
	RungPrice: {
		"itemInfo.title",
		"images.primary.large",
		"offersV2.listings.price",
	},
	RungMinimal: {
		"itemInfo.title",
		"images.primary.large",
	},
}
