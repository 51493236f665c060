package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"priceoracle/internal/models"
	"priceoracle/pkg/types/prices"

	"github.com/pkg/errors"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func num(v float64) *float64 { return &v }

func pair(base string, price, liquidity, volume float64) prices.Candidate {
	return prices.Candidate{
		PriceUSD:    num(price),
		Liquidity:   num(liquidity),
		Volume24h:   num(volume),
		Change24h:   num(0.5),
		DexID:       "uniswap",
		ChainID:     "ethereum",
		PairAddress: "0x" + base,
		BaseSymbol:  base,
		QuoteSymbol: "USDC",
		URL:         "https://dexscreener.com/ethereum/0x" + base,
	}
}

type fetchResult struct {
	candidates []prices.Candidate
	err        error
}

type fakeFetcher struct {
	mu        sync.Mutex
	byAddress map[string]fetchResult
	bySearch  map[string]fetchResult
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		byAddress: make(map[string]fetchResult),
		bySearch:  make(map[string]fetchResult),
	}
}

func (f *fakeFetcher) address(chain, addr string, cands ...prices.Candidate) *fakeFetcher {
	f.byAddress[chain+"/"+addr] = fetchResult{candidates: cands}
	return f
}

func (f *fakeFetcher) addressErr(chain, addr string, err error) *fakeFetcher {
	f.byAddress[chain+"/"+addr] = fetchResult{err: err}
	return f
}

func (f *fakeFetcher) search(term string, cands ...prices.Candidate) *fakeFetcher {
	f.bySearch[term] = fetchResult{candidates: cands}
	return f
}

func (f *fakeFetcher) FetchByAddress(_ context.Context, chain, address string) ([]prices.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "address:"+chain)
	r := f.byAddress[chain+"/"+address]
	return r.candidates, r.err
}

func (f *fakeFetcher) FetchBySearch(_ context.Context, term string) ([]prices.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "search:"+term)
	r := f.bySearch[term]
	return r.candidates, r.err
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var errLedgerDown = errors.New("ledger unavailable")

type fakeLedger struct {
	mu         sync.Mutex
	configured bool
	failFor    map[string]bool
	submitted  map[string]int64
	block      chan struct{}
	started    chan struct{}
}

func newFakeLedger(configured bool) *fakeLedger {
	return &fakeLedger{
		configured: configured,
		failFor:    make(map[string]bool),
		submitted:  make(map[string]int64),
	}
}

func (l *fakeLedger) Configured() bool { return l.configured }

func (l *fakeLedger) Status() prices.LedgerStatus {
	return prices.LedgerStatus{Provider: l.configured, Contract: l.configured, Network: "testnet"}
}

func (l *fakeLedger) Submit(ctx context.Context, symbol string, price int64) (string, error) {
	if l.started != nil {
		select {
		case l.started <- struct{}{}:
		default:
		}
	}
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failFor[symbol] {
		return "", errLedgerDown
	}
	l.submitted[symbol] = price
	return fmt.Sprintf("tx-%s-%d", symbol, price), nil
}

func (l *fakeLedger) Submitted() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64, len(l.submitted))
	for k, v := range l.submitted {
		out[k] = v
	}
	return out
}

type fakeRecorder struct {
	mu   sync.Mutex
	rows []models.Submission
}

func (r *fakeRecorder) CreateSubmission(s *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *s)
	return nil
}

func (r *fakeRecorder) Rows() []models.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Submission(nil), r.rows...)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *fakePublisher) Publish(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, data)
	return nil
}

func (p *fakePublisher) Messages() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.messages...)
}
