package prices

import (
	"context"
	"time"
)

const (
	SourceDexScreener = "dexscreener"
	SourceManual      = "manual"
)

const (
	MethodTokenAddress     = "token_address"
	MethodSearch           = "search"
	MethodManualSubmission = "manual_submission"
)

// ChainAddress is one on-chain deployment of a tracked token.
type ChainAddress struct {
	Chain   string `json:"chain"   yaml:"chain"`
	Address string `json:"address" yaml:"address"`
}

// AssetConfig describes a tracked asset. Addresses and SearchTerms are tried in order.
type AssetConfig struct {
	Symbol       string         `json:"symbol"       yaml:"symbol"`
	Name         string         `json:"name"         yaml:"name"`
	Addresses    []ChainAddress `json:"addresses"    yaml:"addresses"`
	SearchTerms  []string       `json:"searchTerms"  yaml:"searchTerms"`
	MinLiquidity float64        `json:"minLiquidity" yaml:"minLiquidity"`
}

// Candidate is a trading pair quote as returned by the market-data API.
// Numeric fields are nil when the upstream payload omitted them.
type Candidate struct {
	PriceUSD      *float64
	Change24h     *float64
	Volume24h     *float64
	Liquidity     *float64
	MarketCap     *float64
	FDV           *float64
	DexID         string
	ChainID       string
	PairAddress   string
	BaseSymbol    string
	QuoteSymbol   string
	URL           string
	SchemaVersion string
}

// PriceRecord is the resolved quote for one asset.
type PriceRecord struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	RawPrice    float64   `json:"rawPrice"`
	Change24h   float64   `json:"change24h"`
	Volume24h   float64   `json:"volume24h"`
	Liquidity   float64   `json:"liquidity,omitempty"`
	MarketCap   float64   `json:"marketCap,omitempty"`
	FDV         float64   `json:"fdv,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Method      string    `json:"method"`
	Dex         string    `json:"dex,omitempty"`
	Chain       string    `json:"chain,omitempty"`
	PairAddress string    `json:"pairAddress,omitempty"`
	BaseToken   string    `json:"baseToken,omitempty"`
	QuoteToken  string    `json:"quoteToken,omitempty"`
	PairURL     string    `json:"pairUrl,omitempty"`
	Lookup      string    `json:"lookup,omitempty"`
	TxHash      string    `json:"txHash,omitempty"`
}

type HistoryEntry struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

type HistorySummary struct {
	Points int       `json:"points"`
	Latest time.Time `json:"latest"`
	Oldest time.Time `json:"oldest"`
}

type MarketStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Pairs         int       `json:"pairs"`
	API           string    `json:"api"`
	RateLimit     string    `json:"rateLimit,omitempty"`
	SchemaVersion string    `json:"schemaVersion,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// MarketDataFetcher looks up trading pairs for a token.
type MarketDataFetcher interface {
	FetchByAddress(ctx context.Context, chain, address string) ([]Candidate, error)
	FetchBySearch(ctx context.Context, term string) ([]Candidate, error)
}

// LedgerStatus reports which parts of the ledger binding are present.
type LedgerStatus struct {
	Provider bool   `json:"provider"`
	Contract bool   `json:"contract"`
	Network  string `json:"network"`
}

// LedgerSubmitter publishes an integer price, in minor units, to the ledger.
type LedgerSubmitter interface {
	Configured() bool
	Status() LedgerStatus
	Submit(ctx context.Context, symbol string, price int64) (string, error)
}

const MessagePriceUpdate = "price_update"

// PriceUpdateMessage is broadcast to stream subscribers after every commit.
type PriceUpdateMessage struct {
	Type      string      `json:"type"`
	Payload   PriceRecord `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}
