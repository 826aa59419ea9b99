// Package rates resolves EUR exchange rates. Live quotes are cached in Redis and
// every failure degrades to the static rates from the jurisdiction table.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/metrics"
	"github.com/iwvelando/deployment-planner/pkg/constants"
)

// Quote sources.
const (
	SourceFallback = "fallback"
	SourceCache    = "cache"
	SourceUpstream = "upstream"
)

// Quote is a units-per-base rate with the time it was observed.
type Quote struct {
	Currency string    `json:"currency"`
	Rate     float64   `json:"rate"`
	AsOf     time.Time `json:"asOf"`
	Source   string    `json:"source"`
}

// Provider returns quotes for targets against base.
type Provider interface {
	Rates(ctx context.Context, base string, targets []string) (map[string]Quote, error)
}

// StaticProvider serves fixed rates, keyed by currency in units per EUR.
type StaticProvider struct {
	rates map[string]float64
	asOf  time.Time
}

// NewStaticProvider builds a provider from the table's currencies. Entries in
// overrides take precedence.
func NewStaticProvider(table *jurisdiction.Table, overrides map[string]float64, asOf time.Time) *StaticProvider {
	p := &StaticProvider{rates: map[string]float64{constants.BaseCurrency: 1}, asOf: asOf}
	if table != nil {
		for _, code := range table.Codes() {
			cfg := table.Jurisdictions[code]
			currency := jurisdiction.NormalizeCode(cfg.Currency)
			if currency == "" || !validRate(cfg.ExchangeRate) {
				continue
			}
			if _, seen := p.rates[currency]; !seen {
				p.rates[currency] = cfg.ExchangeRate
			}
		}
	}
	for currency, rate := range overrides {
		if validRate(rate) {
			p.rates[jurisdiction.NormalizeCode(currency)] = rate
		}
	}
	return p
}

// Currencies returns the sorted currencies the provider knows.
func (p *StaticProvider) Currencies() []string {
	out := make([]string, 0, len(p.rates))
	for currency := range p.rates {
		out = append(out, currency)
	}
	sort.Strings(out)
	return out
}

// Rates returns cross rates for every known target. Unknown targets are omitted.
func (p *StaticProvider) Rates(_ context.Context, base string, targets []string) (map[string]Quote, error) {
	base = jurisdiction.NormalizeCode(base)
	baseRate, ok := p.rates[base]
	if !ok {
		return nil, fmt.Errorf("unknown base currency %q", base)
	}
	out := make(map[string]Quote, len(targets))
	for _, target := range targets {
		target = jurisdiction.NormalizeCode(target)
		rate, ok := p.rates[target]
		if !ok {
			continue
		}
		out[target] = Quote{Currency: target, Rate: rate / baseRate, AsOf: p.asOf, Source: SourceFallback}
	}
	return out, nil
}

func validRate(rate float64) bool {
	return rate > 0 && !math.IsNaN(rate) && !math.IsInf(rate, 0)
}

// Cache defaults.
const (
	DefaultCacheTTL      = time.Hour
	DefaultLookupTimeout = 2 * time.Second
)

// CacheConfig tunes the cached provider.
type CacheConfig struct {
	TTL           time.Duration
	LookupTimeout time.Duration
}

// CachedProvider reads quotes through a Redis cache in front of an upstream
// provider. Upstream or cache failures never surface to the caller; the static
// fallback answers instead.
type CachedProvider struct {
	client   *redis.Client
	upstream Provider
	fallback *StaticProvider
	cfg      CacheConfig
	logger   *zap.Logger
}

// NewCachedProvider wires the cache. client and upstream may be nil, in which case
// the corresponding layer is skipped.
func NewCachedProvider(client *redis.Client, upstream Provider, fallback *StaticProvider, cfg CacheConfig, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if fallback == nil {
		fallback = NewStaticProvider(nil, nil, time.Time{})
	}
	return &CachedProvider{client: client, upstream: upstream, fallback: fallback, cfg: cfg, logger: logger}
}

// CacheKey is the Redis key holding the quote for currency against base.
func CacheKey(base, currency string) string {
	return "rates:" + jurisdiction.NormalizeCode(base) + ":" + jurisdiction.NormalizeCode(currency)
}

// Rates resolves quotes from the cache, then upstream, then the static fallback.
func (p *CachedProvider) Rates(ctx context.Context, base string, targets []string) (map[string]Quote, error) {
	base = jurisdiction.NormalizeCode(base)
	out := make(map[string]Quote, len(targets))
	var misses []string
	for _, target := range targets {
		target = jurisdiction.NormalizeCode(target)
		if quote, ok := p.fromCache(ctx, base, target); ok {
			out[target] = quote
			metrics.RateLookups.WithLabelValues(SourceCache).Inc()
			continue
		}
		misses = append(misses, target)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fresh := p.fromUpstream(ctx, base, misses)
	var unresolved []string
	for _, target := range misses {
		quote, ok := fresh[target]
		if !ok || !validRate(quote.Rate) {
			unresolved = append(unresolved, target)
			continue
		}
		quote.Currency = target
		quote.Source = SourceUpstream
		out[target] = quote
		metrics.RateLookups.WithLabelValues(SourceUpstream).Inc()
		p.store(ctx, base, quote)
	}
	if len(unresolved) == 0 {
		return out, nil
	}

	static, err := p.fallback.Rates(ctx, base, unresolved)
	if err != nil {
		p.logger.Warn("static fallback has no base rate",
			zap.String("op", "rates.CachedProvider.Rates"),
			zap.String("base", base),
			zap.Error(err))
		return out, nil
	}
	for currency, quote := range static {
		out[currency] = quote
		metrics.RateLookups.WithLabelValues(SourceFallback).Inc()
	}
	return out, nil
}

func (p *CachedProvider) fromCache(ctx context.Context, base, target string) (Quote, bool) {
	if p.client == nil {
		return Quote{}, false
	}
	raw, err := p.client.Get(ctx, CacheKey(base, target)).Result()
	if errors.Is(err, redis.Nil) {
		return Quote{}, false
	}
	if err != nil {
		p.logger.Warn("rate cache read failed",
			zap.String("op", "rates.CachedProvider.fromCache"),
			zap.String("currency", target),
			zap.Error(err))
		return Quote{}, false
	}
	var quote Quote
	if err := json.Unmarshal([]byte(raw), &quote); err != nil || !validRate(quote.Rate) {
		p.logger.Warn("discarding malformed cached rate",
			zap.String("op", "rates.CachedProvider.fromCache"),
			zap.String("currency", target))
		return Quote{}, false
	}
	quote.Source = SourceCache
	return quote, true
}

func (p *CachedProvider) fromUpstream(ctx context.Context, base string, targets []string) map[string]Quote {
	if p.upstream == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.LookupTimeout)
	defer cancel()
	quotes, err := p.upstream.Rates(ctx, base, targets)
	if err != nil {
		p.logger.Warn("upstream rate lookup failed, using fallback rates",
			zap.String("op", "rates.CachedProvider.fromUpstream"),
			zap.Strings("currencies", targets),
			zap.Error(err))
		return nil
	}
	return quotes
}

func (p *CachedProvider) store(ctx context.Context, base string, quote Quote) {
	if p.client == nil {
		return
	}
	data, err := json.Marshal(quote)
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, CacheKey(base, quote.Currency), data, p.cfg.TTL).Err(); err != nil {
		p.logger.Warn("rate cache write failed",
			zap.String("op", "rates.CachedProvider.store"),
			zap.String("currency", quote.Currency),
			zap.Error(err))
	}
}

// Resolve returns the rate for a single currency against EUR. It falls back to
// tableRate when the provider has nothing usable.
func Resolve(ctx context.Context, provider Provider, currency string, tableRate float64) Quote {
	currency = jurisdiction.NormalizeCode(currency)
	if currency == "" || currency == constants.BaseCurrency {
		return Quote{Currency: constants.BaseCurrency, Rate: 1, Source: SourceFallback}
	}
	if provider != nil {
		quotes, err := provider.Rates(ctx, constants.BaseCurrency, []string{currency})
		if err == nil {
			if quote, ok := quotes[currency]; ok && validRate(quote.Rate) {
				return quote
			}
		}
	}
	return Quote{Currency: currency, Rate: tableRate, Source: SourceFallback}
}
