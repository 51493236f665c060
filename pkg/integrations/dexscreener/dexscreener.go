// Package dexscreener is the market-data client. It normalizes the loosely
// shaped DexScreener payloads into prices.Candidate values at the boundary so
// nothing downstream handles raw JSON.
package dexscreener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"priceoracle/pkg/pairs"
	"priceoracle/pkg/types/prices"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var (
	_ prices.MarketDataFetcher = (*Client)(nil)

	// ErrFetch marks transient market-data failures: network, timeout,
	// status or decode errors. Callers treat them as "no candidates".
	ErrFetch = errors.New("dexscreener fetch failed")
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	RequestTimeout = 10 * time.Second
	RateLimitInfo  = "300 req/min"

	maxBodyBytes = 4 << 20
	userAgent    = "PriceOracle/1.0"
)

// Limiter gates every outbound request.
type Limiter interface {
	Acquire(ctx context.Context) error
}

type Client struct {
	BaseURL string
	Client  *http.Client
	limiter Limiter
}

func New(limiter Limiter) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		Client:  &http.Client{Timeout: RequestTimeout},
		limiter: limiter,
	}
}

func (c *Client) FetchByAddress(ctx context.Context, chain, address string) ([]prices.Candidate, error) {
	endpoint := fmt.Sprintf("%s/tokens/v1/%s/%s", c.BaseURL, url.PathEscape(chain), url.PathEscape(address))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, errors.Wrap(ErrFetch, "token response is not an array")
	}
	return decodePairs(doc), nil
}

func (c *Client) FetchBySearch(ctx context.Context, term string) ([]prices.Candidate, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/search?q=%s", c.BaseURL, url.QueryEscape(term))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	list := gjson.GetBytes(body, "pairs")
	if !list.IsArray() {
		return nil, errors.Wrap(ErrFetch, "search response has no pairs array")
	}
	candidates := decodePairs(list)
	schema := gjson.GetBytes(body, "schemaVersion").String()
	for i := range candidates {
		candidates[i].SchemaVersion = schema
	}
	return candidates, nil
}

// MarketStatus probes the search endpoint the way the dashboard's health
// panel expects.
func (c *Client) MarketStatus(ctx context.Context) prices.MarketStatus {
	status := prices.MarketStatus{
		API:       prices.SourceDexScreener,
		RateLimit: RateLimitInfo,
		Timestamp: time.Now().UTC(),
	}

	candidates, err := c.FetchBySearch(ctx, "USDC")
	if err != nil {
		status.Status = "offline"
		status.Error = err.Error()
		return status
	}

	status.Status = "online"
	status.Pairs = len(candidates)
	if len(candidates) > 0 {
		status.SchemaVersion = candidates[0].SchemaVersion
	}
	return status
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, errors.Wrap(ErrFetch, err.Error())
		}
	}

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrFetch, "unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "read body: %v", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.Wrap(ErrFetch, "response is not valid json")
	}
	return body, nil
}

func decodePairs(list gjson.Result) []prices.Candidate {
	items := list.Array()
	candidates := make([]prices.Candidate, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		candidates = append(candidates, prices.Candidate{
			PriceUSD:    optionalFloat(item.Get("priceUsd")),
			Change24h:   optionalFloat(item.Get("priceChange.h24")),
			Volume24h:   optionalFloat(item.Get("volume.h24")),
			Liquidity:   optionalFloat(item.Get("liquidity.usd")),
			MarketCap:   optionalFloat(item.Get("marketCap")),
			FDV:         optionalFloat(item.Get("fdv")),
			DexID:       item.Get("dexId").String(),
			ChainID:     item.Get("chainId").String(),
			PairAddress: item.Get("pairAddress").String(),
			BaseSymbol:  strings.TrimSpace(item.Get("baseToken.symbol").String()),
			QuoteSymbol: strings.TrimSpace(item.Get("quoteToken.symbol").String()),
			URL:         item.Get("url").String(),
		})
	}
	return candidates
}

func optionalFloat(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		v := r.Float()
		return &v
	case gjson.String:
		if v, ok := pairs.ParseAmount(r.Str); ok {
			return &v
		}
	}
	return nil
}
