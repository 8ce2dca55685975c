package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTrading212Row(t *testing.T) {
	row := Row{
		"Action":                   "Market buy",
		"Time":                     "2024-03-01 14:30:00",
		"Ticker":                   "AAPL",
		"Name":                     "Apple Inc.",
		"No. of shares":            "2.5",
		"Price / share":            "170.10",
		"Currency (Price / share)": "USD",
	}

	normalized, ok := Normalize(row)
	require.True(t, ok)
	assert.Equal(t, "AAPL", normalized.Symbol)
	assert.Equal(t, "Apple Inc.", normalized.Name)
	assert.Equal(t, 2.5, normalized.Quantity)
	assert.Equal(t, 170.10, normalized.Price)
	assert.Equal(t, "USD", normalized.Currency)
	assert.Equal(t, "Market buy", normalized.Action)
	assert.Equal(t, "2024-03-01 14:30:00", normalized.Date)
}

func TestNormalizeCandidateKeyOrder(t *testing.T) {
	// "Ticker" outranks "Symbol" in the candidate list.
	row := Row{
		"Ticker":   "MSFT",
		"Symbol":   "IGNORED",
		"Quantity": "10",
	}

	normalized, ok := Normalize(row)
	require.True(t, ok)
	assert.Equal(t, "MSFT", normalized.Symbol)
}

func TestNormalizeDefaults(t *testing.T) {
	row := Row{
		"Symbol": "VWCE",
		"Units":  "3",
	}

	normalized, ok := Normalize(row)
	require.True(t, ok)
	assert.Equal(t, "VWCE", normalized.Name, "name falls back to symbol")
	assert.Equal(t, "USD", normalized.Currency)
	assert.Equal(t, "Buy", normalized.Action)
	assert.Zero(t, normalized.Price)
}

func TestNormalizeThousandsSeparators(t *testing.T) {
	row := Row{
		"Symbol":   "BRK.A",
		"Quantity": "1",
		"Price":    "621,450.00",
	}

	normalized, ok := Normalize(row)
	require.True(t, ok)
	assert.Equal(t, 621450.0, normalized.Price)
}

func TestNormalizeNumericCell(t *testing.T) {
	row := Row{
		"Symbol":   "TSLA",
		"Quantity": float64(4),
		"Price":    float64(250.5),
	}

	normalized, ok := Normalize(row)
	require.True(t, ok)
	assert.Equal(t, 4.0, normalized.Quantity)
	assert.Equal(t, 250.5, normalized.Price)
}

func TestNormalizeDropsRowWithoutSymbol(t *testing.T) {
	row := Row{
		"Quantity": "10",
		"Price":    "50",
	}

	_, ok := Normalize(row)
	assert.False(t, ok)
}

func TestNormalizeDropsRowWithoutQuantity(t *testing.T) {
	// Dividend and fee lines carry a symbol but no share count.
	row := Row{
		"Ticker": "AAPL",
		"Action": "Dividend (Ordinary)",
		"Price":  "0.24",
	}

	_, ok := Normalize(row)
	assert.False(t, ok)
}

func TestNormalizeBlankCellsSkippedInCandidateOrder(t *testing.T) {
	row := Row{
		"Ticker":   "  ",
		"Symbol":   "NVDA",
		"Quantity": "",
		"Shares":   "7",
	}

	normalized, ok := Normalize(row)
	require.True(t, ok)
	assert.Equal(t, "NVDA", normalized.Symbol)
	assert.Equal(t, 7.0, normalized.Quantity)
}
