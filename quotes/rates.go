package quotes

// Hardcoded last-resort rates for the currency pairs the dashboard converts
// between. Only consulted when the FX pair quote is unavailable.
var fallbackRates = map[string]float64{
	"EURUSD": 1.08,
	"USDEUR": 0.93,
	"GBPUSD": 1.27,
	"USDGBP": 0.79,
	"EURGBP": 0.85,
	"GBPEUR": 1.17,
}

// Rate resolves the from→to FX rate by quoting the "FROMTO=X" pair, falling
// back to the static table, then the inverse of the static table, then 1.
// Best effort only: display conversion must not fail the request.
func (r *Resolver) Rate(from, to string) float64 {
	if from == to || from == "" || to == "" {
		return 1
	}

	pair := from + to
	quotes := r.Quotes([]string{pair + "=X"})
	if len(quotes) > 0 && quotes[0].RegularMarketPrice > 0 {
		return quotes[0].RegularMarketPrice
	}

	if rate, ok := fallbackRates[pair]; ok {
		return rate
	}
	if inverse, ok := fallbackRates[to+from]; ok && inverse > 0 {
		return 1 / inverse
	}
	return 1
}

// Convert converts an amount between currencies at the resolved rate.
func (r *Resolver) Convert(amount float64, from, to string) float64 {
	return amount * r.Rate(from, to)
}
