package service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"priceoracle/internal/metrics"
	"priceoracle/pkg/pairs"
	"priceoracle/pkg/types/prices"

	"github.com/pkg/errors"
)

var ErrInvalidResolverConfig = errors.New("invalid resolver config")

// LiquidityTieBand is the liquidity difference, in USD, below which two
// pairs are ranked by 24h volume instead.
const LiquidityTieBand = 10000.0

// Resolver picks the most trustworthy quote for an asset: token address
// lookups on each configured chain first, keyword search as a fallback.
type Resolver struct {
	fetcher prices.MarketDataFetcher
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type ResolverOption func(*Resolver)

func WithResolverFetcher(f prices.MarketDataFetcher) ResolverOption {
	return func(r *Resolver) {
		r.fetcher = f
	}
}

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

func WithResolverMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func (r *Resolver) IsValid() error {
	switch {
	case r.fetcher == nil:
		return errors.Wrap(ErrInvalidResolverConfig, "fetcher cannot be nil")
	case r.logger == nil:
		return errors.Wrap(ErrInvalidResolverConfig, "logger cannot be nil")
	case r.now == nil:
		return errors.Wrap(ErrInvalidResolverConfig, "clock cannot be nil")
	default:
		return nil
	}
}

func NewResolver(opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{now: time.Now}

	for _, opt := range opts {
		opt(r)
	}

	if err := r.IsValid(); err != nil {
		return nil, err
	}
	return r, nil
}

// ResolveAll resolves every asset in order. Assets without a price are left
// out of the result.
func (r *Resolver) ResolveAll(ctx context.Context, assets []prices.AssetConfig) []prices.PriceRecord {
	out := make([]prices.PriceRecord, 0, len(assets))
	for _, asset := range assets {
		if ctx.Err() != nil {
			r.logger.Warn("resolution interrupted", "remaining", len(assets)-len(out), "error", ctx.Err())
			break
		}
		if rec, ok := r.Resolve(ctx, asset); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Resolve returns false when no source produced a usable pair. Fetch errors
// are logged and treated as empty results.
func (r *Resolver) Resolve(ctx context.Context, asset prices.AssetConfig) (prices.PriceRecord, bool) {
	for _, addr := range asset.Addresses {
		candidates, err := r.fetcher.FetchByAddress(ctx, addr.Chain, addr.Address)
		if err != nil {
			r.metrics.FetchError(prices.MethodTokenAddress)
			r.logger.Warn("token address lookup failed", "symbol", asset.Symbol, "chain", addr.Chain, "error", err)
			continue
		}
		if best, ok := SelectBest(candidates, asset.MinLiquidity, ""); ok {
			return r.accept(asset, best, prices.MethodTokenAddress, addr.Chain), true
		}
		r.logger.Debug("no usable pairs by address", "symbol", asset.Symbol, "chain", addr.Chain, "pairs", len(candidates))
	}

	for _, term := range asset.SearchTerms {
		candidates, err := r.fetcher.FetchBySearch(ctx, term)
		if err != nil {
			r.metrics.FetchError(prices.MethodSearch)
			r.logger.Warn("search failed", "symbol", asset.Symbol, "term", term, "error", err)
			continue
		}
		if best, ok := SelectBest(candidates, asset.MinLiquidity, asset.Symbol); ok {
			return r.accept(asset, best, prices.MethodSearch, term), true
		}
		r.logger.Debug("no usable pairs by search", "symbol", asset.Symbol, "term", term, "pairs", len(candidates))
	}

	r.metrics.ResolutionFailed(asset.Symbol)
	r.logger.Warn("no price found", "symbol", asset.Symbol)
	return prices.PriceRecord{}, false
}

func (r *Resolver) accept(asset prices.AssetConfig, c prices.Candidate, method, lookup string) prices.PriceRecord {
	rec := Normalize(asset.Symbol, c, method, lookup, r.now())
	r.metrics.Resolved(asset.Symbol, method)
	r.logger.Info("price resolved", "symbol", rec.Symbol, "price", rec.Price, "method", method, "dex", rec.Dex, "chain", rec.Chain)
	return rec
}

// SelectBest filters and ranks candidates and returns the winner. A
// non-empty expectedSymbol also requires the pair's base token to match it,
// which is how search results are checked.
func SelectBest(candidates []prices.Candidate, minLiquidity float64, expectedSymbol string) (prices.Candidate, bool) {
	ranked := RankCandidates(FilterCandidates(candidates, minLiquidity, expectedSymbol))
	if len(ranked) == 0 {
		return prices.Candidate{}, false
	}
	return ranked[0], true
}

func FilterCandidates(candidates []prices.Candidate, minLiquidity float64, expectedSymbol string) []prices.Candidate {
	out := make([]prices.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !positive(c.PriceUSD) || !positive(c.Liquidity) {
			continue
		}
		if *c.Liquidity < minLiquidity {
			continue
		}
		if expectedSymbol != "" && !pairs.MatchesSymbol(expectedSymbol, c.BaseSymbol) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// RankCandidates orders by liquidity, falling back to 24h volume when two
// pairs are within LiquidityTieBand of each other. The sort is stable and
// the input is not modified.
func RankCandidates(candidates []prices.Candidate) []prices.Candidate {
	out := make([]prices.Candidate, len(candidates))
	copy(out, candidates)

	sort.SliceStable(out, func(i, j int) bool {
		li, lj := value(out[i].Liquidity), value(out[j].Liquidity)
		if math.Abs(li-lj) > LiquidityTieBand {
			return li > lj
		}
		return value(out[i].Volume24h) > value(out[j].Volume24h)
	})
	return out
}

func Normalize(symbol string, c prices.Candidate, method, lookup string, at time.Time) prices.PriceRecord {
	price := value(c.PriceUSD)
	return prices.PriceRecord{
		Symbol:      symbol,
		Price:       price,
		RawPrice:    price,
		Change24h:   value(c.Change24h),
		Volume24h:   value(c.Volume24h),
		Liquidity:   value(c.Liquidity),
		MarketCap:   value(c.MarketCap),
		FDV:         value(c.FDV),
		Timestamp:   at.UTC(),
		Source:      prices.SourceDexScreener,
		Method:      method,
		Dex:         c.DexID,
		Chain:       c.ChainID,
		PairAddress: c.PairAddress,
		BaseToken:   c.BaseSymbol,
		QuoteToken:  c.QuoteSymbol,
		PairURL:     c.URL,
		Lookup:      lookup,
	}
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
