// Package stellar talks to the ledger submission service that signs and
// sends set_price invocations to the deployed oracle contract.
package stellar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"priceoracle/pkg/types/prices"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

var (
	_ prices.LedgerSubmitter = (*Client)(nil)

	ErrInvalidClientConfig = errors.New("invalid stellar client config")
	ErrNotConfigured       = errors.New("ledger credentials or contract not configured")
	ErrSubmission          = errors.New("ledger submission failed")
	ErrRejected            = errors.New("ledger rejected transaction")
	ErrPriceOutOfRange     = errors.New("price does not fit the contract's i64 minor units")

	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
)

const (
	DefaultNetwork = "testnet"
	RequestTimeout = 15 * time.Second
	PriceDecimals  = 2

	setPriceFunction = "set_price"
	quoteCurrency    = "USD"
)

type Client struct {
	BaseURL string
	Client  *http.Client

	network    string
	credential string
	contractID string
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
	breaker    *gobreaker.CircuitBreaker
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.BaseURL = strings.TrimRight(u, "/")
	}
}

func WithNetwork(n string) Option {
	return func(c *Client) {
		c.network = n
	}
}

func WithCredential(secret string) Option {
	return func(c *Client) {
		c.credential = secret
	}
}

func WithContractID(id string) Option {
	return func(c *Client) {
		c.contractID = id
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.Client = hc
	}
}

// WithBackOff overrides the retry policy for transient failures.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = f
	}
}

func (c *Client) IsValid() error {
	switch {
	case c.logger == nil:
		return errors.Wrap(ErrInvalidClientConfig, "logger cannot be nil")
	case c.Client == nil:
		return errors.Wrap(ErrInvalidClientConfig, "http client cannot be nil")
	case c.newBackOff == nil:
		return errors.Wrap(ErrInvalidClientConfig, "backoff cannot be nil")
	case c.Configured() && c.BaseURL == "":
		return errors.Wrap(ErrInvalidClientConfig, "base url cannot be empty")
	default:
		return nil
	}
}

func New(opts ...Option) (*Client, error) {
	c := &Client{
		Client:     &http.Client{Timeout: RequestTimeout},
		network:    DefaultNetwork,
		newBackOff: defaultBackOff,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.IsValid(); err != nil {
		return nil, err
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stellar-submission",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 4 && failureRatio >= 0.75
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return c, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 4 * time.Second
	b.MaxElapsedTime = 20 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.1
	return backoff.WithMaxRetries(b, 3)
}

func (c *Client) Configured() bool {
	return c.credential != "" && c.contractID != ""
}

func (c *Client) Status() prices.LedgerStatus {
	return prices.LedgerStatus{
		Provider: c.credential != "",
		Contract: c.contractID != "",
		Network:  c.network,
	}
}

// MinorUnits converts a USD price to integer cents, rounding half away from
// zero. Negative, non-finite and overflowing prices return ErrPriceOutOfRange.
func MinorUnits(price float64) (int64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, errors.Wrapf(ErrPriceOutOfRange, "%v", price)
	}
	units := decimal.NewFromFloat(price).Shift(PriceDecimals).Round(0)
	if units.IsNegative() || units.GreaterThan(maxMinorUnits) {
		return 0, errors.Wrapf(ErrPriceOutOfRange, "%v", price)
	}
	return units.IntPart(), nil
}

// Pair is the contract key a symbol's price is stored under.
func Pair(symbol string) string {
	return strings.ToUpper(symbol) + "/" + quoteCurrency
}

type invokeRequest struct {
	Network    string     `json:"network"`
	ContractID string     `json:"contractId"`
	Function   string     `json:"function"`
	Args       invokeArgs `json:"args"`
}

type invokeArgs struct {
	Pair  string `json:"pair"`
	Price int64  `json:"price"`
}

type invokeResponse struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Submit invokes set_price on the oracle contract and returns the
// transaction hash. Network errors, 429 and 5xx responses are retried; any
// other rejection is returned immediately.
func (c *Client) Submit(ctx context.Context, symbol string, price int64) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var hash string
	operation := func() error {
		h, err := c.invoke(ctx, symbol, price)
		if err != nil {
			return err
		}
		hash = h
		return nil
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
	})
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return "", err
		}
		return "", errors.Wrapf(ErrSubmission, "%s: %v", symbol, err)
	}

	c.logger.Info("price submitted", "symbol", symbol, "price", price, "tx", hash)
	return hash, nil
}

func (c *Client) invoke(ctx context.Context, symbol string, price int64) (string, error) {
	body, err := json.Marshal(invokeRequest{
		Network:    c.network,
		ContractID: c.contractID,
		Function:   setPriceFunction,
		Args:       invokeArgs{Pair: Pair(symbol), Price: price},
	})
	if err != nil {
		return "", backoff.Permanent(errors.Wrap(err, "marshal invoke request"))
	}

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/invoke", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(errors.Wrap(err, "build request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(errors.Wrapf(ErrRejected, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var out invokeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", backoff.Permanent(errors.Wrap(err, "decode invoke response"))
	}

	switch strings.ToUpper(out.Status) {
	case "PENDING", "SUCCESS":
		if out.Hash == "" {
			return "", backoff.Permanent(errors.Wrap(ErrRejected, "response has no transaction hash"))
		}
		return out.Hash, nil
	default:
		return "", backoff.Permanent(errors.Wrapf(ErrRejected, "status %s %s", out.Status, out.Error))
	}
}
