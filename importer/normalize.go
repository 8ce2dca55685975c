package importer

import (
	"math"
	"strconv"
	"strings"
)

// Row is one raw parsed row, keyed by column header. Cells are strings or
// numbers depending on the parser; Normalize is the only code that looks
// inside one.
type Row map[string]interface{}

// NormalizedRow is the closed shape every row takes after normalization. Raw
// row maps never travel past this boundary.
type NormalizedRow struct {
	Symbol   string
	Name     string
	Quantity float64
	Price    float64
	Currency string
	Action   string
	Date     string
}

// Column synonyms across broker exports (Trading212, Degiro, generic
// spreadsheets). Matching is case-sensitive and first match wins.
var (
	symbolKeys   = []string{"Ticker", "Symbol", "Instrument", "Ticker Symbol"}
	nameKeys     = []string{"Name", "Instrument name", "Company"}
	quantityKeys = []string{"Quantity", "No. of shares", "No. of Shares", "Shares", "Units"}
	priceKeys    = []string{
		"Average price",
		"Average Price",
		"Price / share",
		"Price per share",
		"Price",
		"Cost/Share",
	}
	currencyKeys = []string{
		"Currency",
		"Currency (Price / share)",
		"Currency (Average price)",
		"Currency (cost)",
		"Currency (Price)",
		"Currency (Price per share)",
	}
	actionKeys = []string{"Action", "Type"}
	dateKeys   = []string{"Time", "Date"}
)

// Normalize extracts the semantic fields from one raw row. A row without a
// resolvable symbol or quantity is not a holdings row (dividend, fee, cash
// movement) and yields ok=false; that is not an error.
func Normalize(row Row) (NormalizedRow, bool) {
	symbol := getString(row, symbolKeys)
	quantity, hasQuantity := getNumber(row, quantityKeys)
	if symbol == "" || !hasQuantity {
		return NormalizedRow{}, false
	}

	name := getString(row, nameKeys)
	if name == "" {
		name = symbol
	}
	price, _ := getNumber(row, priceKeys)
	currency := getString(row, currencyKeys)
	if currency == "" {
		currency = "USD"
	}
	action := getString(row, actionKeys)
	if action == "" {
		action = "Buy"
	}

	return NormalizedRow{
		Symbol:   symbol,
		Name:     name,
		Quantity: quantity,
		Price:    price,
		Currency: currency,
		Action:   action,
		Date:     getString(row, dateKeys),
	}, true
}

func getString(row Row, keys []string) string {
	for _, key := range keys {
		switch v := row[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if !math.IsNaN(v) {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	return ""
}

func getNumber(row Row, keys []string) (float64, bool) {
	for _, key := range keys {
		switch v := row[key].(type) {
		case float64:
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				return v, true
			}
		case string:
			// Strip thousands separators before parsing.
			cleaned := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
			if cleaned == "" {
				continue
			}
			if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
