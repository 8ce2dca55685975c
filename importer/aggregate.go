package importer

import (
	"sort"
	"strings"
	"time"
)

// AggregatedHolding is the final per-symbol position produced by one import
// batch: net quantity plus the quantity-weighted average buy price.
type AggregatedHolding struct {
	Symbol   string
	Name     string
	Quantity float64
	Price    float64
	Currency string
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
}

// parseDate returns the zero time for anything it cannot parse, so
// undated rows sort first and never break the ordering.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type runningPosition struct {
	quantity  float64
	costBasis float64
	name      string
	currency  string
}

// Aggregate folds a batch of normalized buy/sell rows into one holding per
// symbol. Rows are processed in date order; buys move the weighted average,
// sells only reduce quantity. This is deliberately not lot tracking: the
// average buy price survives every sell. Positions that net to zero or
// negative are still emitted, with an all-sold position carrying basis 0.
func Aggregate(rows []NormalizedRow) []AggregatedHolding {
	sorted := make([]NormalizedRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return parseDate(sorted[i].Date).Before(parseDate(sorted[j].Date))
	})

	positions := make(map[string]*runningPosition)
	var order []string

	for _, row := range sorted {
		current, ok := positions[row.Symbol]
		if !ok {
			current = &runningPosition{name: row.Name, currency: row.Currency}
			positions[row.Symbol] = current
			order = append(order, row.Symbol)
		}

		action := strings.ToLower(row.Action)
		switch {
		case strings.Contains(action, "buy") || strings.Contains(action, "deposit"):
			// Weighted average: (oldQty*oldBasis + qty*price) / (oldQty + qty)
			totalCost := current.quantity*current.costBasis + row.Quantity*row.Price
			newQuantity := current.quantity + row.Quantity
			current.quantity = newQuantity
			if newQuantity != 0 {
				current.costBasis = totalCost / newQuantity
			} else {
				current.costBasis = 0
			}
		case strings.Contains(action, "sell") || strings.Contains(action, "withdraw"):
			current.quantity -= row.Quantity
		}

		// Any action still refreshes cached metadata.
		if row.Name != "" {
			current.name = row.Name
		}
		if row.Currency != "" {
			current.currency = row.Currency
		}
	}

	holdings := make([]AggregatedHolding, 0, len(order))
	for _, symbol := range order {
		p := positions[symbol]
		holdings = append(holdings, AggregatedHolding{
			Symbol:   symbol,
			Name:     p.name,
			Quantity: p.quantity,
			Price:    p.costBasis,
			Currency: p.currency,
		})
	}
	return holdings
}
