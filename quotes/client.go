package quotes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Quote is one live market quote as served to the frontend. Field names match
// the upstream payload so the dashboard can consume the response as-is.
type Quote struct {
	Symbol                     string  `json:"symbol"`
	ShortName                  string  `json:"shortName,omitempty"`
	Currency                   string  `json:"currency,omitempty"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent,omitempty"`
}

// Fetcher fetches live quotes for a set of symbols.
type Fetcher interface {
	Quote(symbols []string) ([]Quote, error)
}

// Profiler looks up the company website for a symbol, used by the logo
// backfill job.
type Profiler interface {
	Website(symbol string) (string, error)
}

// ErrRateLimited is the only error class the client retries.
var ErrRateLimited = errors.New("quote API rate limited")

const retryBackoffStep = 500 * time.Millisecond

// London-listed instruments quoted in pence rather than pounds trade well
// above this once mislabeled as major units.
const penceThreshold = 1000.0

// Client talks to a Yahoo-style quote API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	sleep      func(time.Duration)
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		sleep:      time.Sleep,
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []Quote `json:"result"`
	} `json:"quoteResponse"`
}

// Quote fetches quotes for the given symbols, retrying rate-limit errors a
// bounded number of times with linear backoff. Any other error fails
// immediately.
func (c *Client) Quote(symbols []string) ([]Quote, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(time.Duration(attempt) * retryBackoffStep)
		}

		quotes, err := c.fetch(symbols)
		if err == nil {
			for i := range quotes {
				quotes[i] = CorrectPence(quotes[i])
			}
			return quotes, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) fetch(symbols []string) ([]Quote, error) {
	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	return body.QuoteResponse.Result, nil
}

type profileResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Website string `json:"website"`
			} `json:"assetProfile"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// Website returns the company website from the symbol's asset profile, or an
// empty string when the profile has none.
func (c *Client) Website(symbol string) (string, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=assetProfile",
		c.baseURL, url.PathEscape(symbol))

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile API returned status %d", resp.StatusCode)
	}

	var body profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode profile response: %w", err)
	}
	if len(body.QuoteSummary.Result) == 0 {
		return "", nil
	}
	return body.QuoteSummary.Result[0].AssetProfile.Website, nil
}

// CorrectPence fixes London Stock Exchange quotes reported in minor currency
// units. GBp/GBX currency codes are authoritative; for .L symbols already
// labeled GBP a price-magnitude heuristic catches mislabeled pence quotes.
func CorrectPence(q Quote) Quote {
	inPence := q.Currency == "GBp" || q.Currency == "GBX"
	if !inPence && strings.HasSuffix(q.Symbol, ".L") && q.Currency == "GBP" && q.RegularMarketPrice >= penceThreshold {
		inPence = true
	}
	if inPence {
		q.RegularMarketPrice /= 100
		q.Currency = "GBP"
	}
	return q
}
