package pairs

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// wrapped tokens that trade under a different base symbol on DEXes
	wrapped = map[string][]string{
		"BTC": {"WBTC"},
		"ETH": {"WETH"},
		"SOL": {"WSOL"},
	}
)

// MatchesSymbol reports whether a pair's base token symbol plausibly refers to
// the expected asset: a case-insensitive substring match in either direction,
// or a known wrapped alias. A pair without a base symbol cannot be ruled out
// and matches.
func MatchesSymbol(expected, base string) bool {
	expected = strings.ToUpper(strings.TrimSpace(expected))
	base = strings.ToUpper(strings.TrimSpace(base))
	if expected == "" || base == "" {
		return true
	}

	if strings.Contains(base, expected) || strings.Contains(expected, base) {
		return true
	}

	return isAlias(expected, base) || isAlias(base, expected)
}

func isAlias(canonical, other string) bool {
	for _, alias := range wrapped[canonical] {
		if strings.Contains(other, alias) {
			return true
		}
	}
	return false
}

// ParseAmount parses a plain decimal string such as DexScreener's priceUsd.
// Hex, NaN and infinities are rejected.
func ParseAmount(s string) (float64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
