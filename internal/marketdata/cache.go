package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CachedOracle wraps an Oracle with a TTL cache. One instance is built per
// unit of work and shared by that unit's concurrent aggregators; it is never
// shared across units.
type CachedOracle struct {
	oracle Oracle
	ttl    time.Duration
	clock  func() time.Time

	mu     sync.Mutex
	quotes map[string]quoteEntry
	prices map[string]priceEntry
}

type quoteEntry struct {
	quote     Quote
	found     bool
	expiresAt time.Time
}

type priceEntry struct {
	price     decimal.Decimal
	found     bool
	expiresAt time.Time
}

// NewCachedOracle wraps the oracle with the given TTL. TTL <= 0 caches for
// the lifetime of the unit.
func NewCachedOracle(oracle Oracle, ttl time.Duration) *CachedOracle {
	cache := new(CachedOracle)
	cache.oracle = oracle
	cache.ttl = ttl
	cache.clock = time.Now
	cache.quotes = make(map[string]quoteEntry)
	cache.prices = make(map[string]priceEntry)
	return cache
}

// BatchQuote serves cached bars and fetches only the missing dates.
// Negative results are cached too, so a date the oracle cannot price is
// asked for at most once per TTL window.
func (c *CachedOracle) BatchQuote(ctx context.Context, symbol string, dates []time.Time) (map[string]Quote, error) {
	now := c.clock()
	result := make(map[string]Quote, len(dates))
	var misses []time.Time

	c.mu.Lock()
	for _, date := range dates {
		key := symbol + "|" + date.Format(DateLayout)
		entry, ok := c.quotes[key]
		if !ok || c.expired(entry.expiresAt, now) {
			misses = append(misses, date)
			continue
		}
		if entry.found {
			result[date.Format(DateLayout)] = entry.quote
		}
	}
	c.mu.Unlock()

	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := c.oracle.BatchQuote(ctx, symbol, misses)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	expiry := c.expiry(now)
	for _, date := range misses {
		dateKey := date.Format(DateLayout)
		quote, found := fetched[dateKey]
		c.quotes[symbol+"|"+dateKey] = quoteEntry{quote: quote, found: found, expiresAt: expiry}
		if found {
			result[dateKey] = quote
		}
	}
	c.mu.Unlock()
	return result, nil
}

// BatchCurrentPrice serves cached prices and fetches only the missing symbols.
func (c *CachedOracle) BatchCurrentPrice(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	now := c.clock()
	result := make(map[string]decimal.Decimal, len(symbols))
	var misses []string

	c.mu.Lock()
	for _, symbol := range symbols {
		entry, ok := c.prices[symbol]
		if !ok || c.expired(entry.expiresAt, now) {
			misses = append(misses, symbol)
			continue
		}
		if entry.found {
			result[symbol] = entry.price
		}
	}
	c.mu.Unlock()

	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := c.oracle.BatchCurrentPrice(ctx, misses)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	expiry := c.expiry(now)
	for _, symbol := range misses {
		price, found := fetched[symbol]
		c.prices[symbol] = priceEntry{price: price, found: found, expiresAt: expiry}
		if found {
			result[symbol] = price
		}
	}
	c.mu.Unlock()
	return result, nil
}

func (c *CachedOracle) expiry(now time.Time) time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(c.ttl)
}

func (c *CachedOracle) expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}

var _ Oracle = (*CachedOracle)(nil)
