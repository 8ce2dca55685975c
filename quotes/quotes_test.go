package quotes

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	quotes []Quote
	err    error
	calls  int
}

func (f *fakeFetcher) Quote(symbols []string) ([]Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

func newTestCache(ttl time.Duration, now func() time.Time) *Cache {
	return NewCache(NewMemoryStore(), ttl, now)
}

func TestResolverReturnsFreshCacheWithoutFetching(t *testing.T) {
	cache := newTestCache(time.Minute, nil)
	cache.Put([]string{"AAPL"}, []Quote{{Symbol: "AAPL", RegularMarketPrice: 170}})

	fetcher := &fakeFetcher{err: errors.New("should not be called")}
	resolver := NewResolver(fetcher, cache, zerolog.Nop())

	quotes := resolver.Quotes([]string{"AAPL"})
	require.Len(t, quotes, 1)
	assert.Equal(t, "AAPL", quotes[0].Symbol)
	assert.Zero(t, fetcher.calls)
}

func TestResolverFallsBackToStaleCacheOnUpstreamFailure(t *testing.T) {
	current := time.Now()
	cache := newTestCache(time.Minute, func() time.Time { return current })
	cache.Put([]string{"AAPL"}, []Quote{{Symbol: "AAPL", RegularMarketPrice: 170}})

	// The entry ages past its TTL, then the upstream goes down.
	current = current.Add(5 * time.Minute)
	resolver := NewResolver(&fakeFetcher{err: errors.New("upstream down")}, cache, zerolog.Nop())

	quotes := resolver.Quotes([]string{"AAPL"})
	require.Len(t, quotes, 1)
	assert.Equal(t, 170.0, quotes[0].RegularMarketPrice)
}

func TestResolverReturnsEmptyWhenNothingCached(t *testing.T) {
	resolver := NewResolver(&fakeFetcher{err: errors.New("upstream down")}, newTestCache(time.Minute, nil), zerolog.Nop())

	quotes := resolver.Quotes([]string{"AAPL"})
	assert.NotNil(t, quotes)
	assert.Empty(t, quotes)
}

func TestResolverRefreshesExpiredEntries(t *testing.T) {
	current := time.Now()
	cache := newTestCache(time.Minute, func() time.Time { return current })
	cache.Put([]string{"AAPL"}, []Quote{{Symbol: "AAPL", RegularMarketPrice: 170}})

	current = current.Add(5 * time.Minute)
	fetcher := &fakeFetcher{quotes: []Quote{{Symbol: "AAPL", RegularMarketPrice: 175}}}
	resolver := NewResolver(fetcher, cache, zerolog.Nop())

	quotes := resolver.Quotes([]string{"AAPL"})
	require.Len(t, quotes, 1)
	assert.Equal(t, 175.0, quotes[0].RegularMarketPrice)
	assert.Equal(t, 1, fetcher.calls)
}

func TestResolverDropsQuotesWithoutSymbols(t *testing.T) {
	fetcher := &fakeFetcher{quotes: []Quote{
		{Symbol: "AAPL", RegularMarketPrice: 170},
		{Symbol: "", RegularMarketPrice: 12},
	}}
	resolver := NewResolver(fetcher, newTestCache(time.Minute, nil), zerolog.Nop())

	quotes := resolver.Quotes([]string{"AAPL", "BOGUS"})
	require.Len(t, quotes, 1)
	assert.Equal(t, "AAPL", quotes[0].Symbol)
}

func TestResolverEmptySymbolList(t *testing.T) {
	fetcher := &fakeFetcher{}
	resolver := NewResolver(fetcher, newTestCache(time.Minute, nil), zerolog.Nop())

	assert.Empty(t, resolver.Quotes(nil))
	assert.Zero(t, fetcher.calls)
}

func TestCacheKeySharedAcrossPermutations(t *testing.T) {
	cache := newTestCache(time.Minute, nil)
	cache.Put([]string{"MSFT", "AAPL"}, []Quote{{Symbol: "AAPL"}, {Symbol: "MSFT"}})

	quotes, fresh, ok := cache.Get([]string{"AAPL", "MSFT"})
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Len(t, quotes, 2)
}

func TestCacheReportsStaleAfterTTL(t *testing.T) {
	current := time.Now()
	cache := newTestCache(time.Minute, func() time.Time { return current })
	cache.Put([]string{"AAPL"}, []Quote{{Symbol: "AAPL"}})

	_, fresh, ok := cache.Get([]string{"AAPL"})
	require.True(t, ok)
	assert.True(t, fresh)

	current = current.Add(61 * time.Second)
	quotes, fresh, ok := cache.Get([]string{"AAPL"})
	require.True(t, ok)
	assert.False(t, fresh)
	assert.Len(t, quotes, 1, "stale entries remain readable")
}

func TestClientRetriesRateLimits(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"quoteResponse":{"result":[{"symbol":"AAPL","regularMarketPrice":170}]}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sleep = func(time.Duration) {}

	quotes, err := client.Quote([]string{"AAPL"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 3, requests)
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sleep = func(time.Duration) {}

	_, err := client.Quote([]string{"AAPL"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 4, requests, "initial attempt plus three retries")
}

func TestClientDoesNotRetryOtherErrors(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sleep = func(time.Duration) {}

	_, err := client.Quote([]string{"AAPL"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, requests)
}

func TestClientAppliesPenceCorrection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[{"symbol":"VOD.L","currency":"GBp","regularMarketPrice":1234}]}}`)
	}))
	defer server.Close()

	quotes, err := NewClient(server.URL).Quote([]string{"VOD.L"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "GBP", quotes[0].Currency)
	assert.InDelta(t, 12.34, quotes[0].RegularMarketPrice, 0.0001)
}

func TestCorrectPence(t *testing.T) {
	cases := []struct {
		name         string
		in           Quote
		wantPrice    float64
		wantCurrency string
	}{
		{"GBp code", Quote{Symbol: "VOD.L", Currency: "GBp", RegularMarketPrice: 1234}, 12.34, "GBP"},
		{"GBX code", Quote{Symbol: "VOD.L", Currency: "GBX", RegularMarketPrice: 250}, 2.5, "GBP"},
		{"mislabeled .L heuristic", Quote{Symbol: "HSBA.L", Currency: "GBP", RegularMarketPrice: 6500}, 65, "GBP"},
		{".L below threshold untouched", Quote{Symbol: "HSBA.L", Currency: "GBP", RegularMarketPrice: 65}, 65, "GBP"},
		{"non-LSE untouched", Quote{Symbol: "AAPL", Currency: "USD", RegularMarketPrice: 1700}, 1700, "USD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CorrectPence(tc.in)
			assert.InDelta(t, tc.wantPrice, got.RegularMarketPrice, 0.0001)
			assert.Equal(t, tc.wantCurrency, got.Currency)
		})
	}
}

func TestClientWebsite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteSummary":{"result":[{"assetProfile":{"website":"https://www.apple.com"}}]}}`)
	}))
	defer server.Close()

	website, err := NewClient(server.URL).Website("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "https://www.apple.com", website)
}

func TestRateFallsBackToStaticTable(t *testing.T) {
	resolver := NewResolver(&fakeFetcher{err: errors.New("upstream down")}, newTestCache(time.Minute, nil), zerolog.Nop())

	assert.Equal(t, 1.0, resolver.Rate("EUR", "EUR"))
	assert.Equal(t, 1.0, resolver.Rate("", "USD"))
	assert.Equal(t, 1.08, resolver.Rate("EUR", "USD"))
	assert.Equal(t, 1.17, resolver.Rate("GBP", "EUR"))
	assert.Equal(t, 1.0, resolver.Rate("CHF", "JPY"), "unknown pair falls back to 1")
}

func TestRatePrefersLiveQuote(t *testing.T) {
	fetcher := &fakeFetcher{quotes: []Quote{{Symbol: "EURUSD=X", RegularMarketPrice: 1.1}}}
	resolver := NewResolver(fetcher, newTestCache(time.Minute, nil), zerolog.Nop())

	assert.Equal(t, 1.1, resolver.Rate("EUR", "USD"))
	assert.InDelta(t, 110, resolver.Convert(100, "EUR", "USD"), 0.0001)
}
