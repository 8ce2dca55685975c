package quotes

import (
	"github.com/rs/zerolog"
)

// Resolver serves best-effort quotes: fresh cache hit first, then the
// upstream, then whatever stale data the cache still holds. Upstream failures
// never reach the caller; the worst case is an empty result.
type Resolver struct {
	fetcher Fetcher
	cache   *Cache
	log     zerolog.Logger
}

func NewResolver(fetcher Fetcher, cache *Cache, log zerolog.Logger) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		cache:   cache,
		log:     log.With().Str("service", "quotes").Logger(),
	}
}

func (r *Resolver) Quotes(symbols []string) []Quote {
	if len(symbols) == 0 {
		return []Quote{}
	}

	if cached, fresh, ok := r.cache.Get(symbols); ok && fresh {
		return cached
	}

	quotes, err := r.fetcher.Quote(symbols)
	if err == nil {
		valid := make([]Quote, 0, len(quotes))
		for _, q := range quotes {
			if q.Symbol != "" {
				valid = append(valid, q)
			}
		}
		r.cache.Put(symbols, valid)
		return valid
	}

	r.log.Error().Err(err).Strs("symbols", symbols).Msg("quote fetch failed, falling back to cache")

	if cached, _, ok := r.cache.Get(symbols); ok {
		return cached
	}
	return []Quote{}
}
