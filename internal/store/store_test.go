package store

import (
	"sync"
	"testing"
	"time"

	"priceoracle/pkg/types/prices"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(symbol string, price float64, at time.Time) prices.PriceRecord {
	return prices.PriceRecord{
		Symbol:    symbol,
		Price:     price,
		RawPrice:  price,
		Timestamp: at,
		Source:    prices.SourceDexScreener,
		Method:    prices.MethodTokenAddress,
	}
}

func TestStore_UpsertReplacesCurrent(t *testing.T) {
	s := New()

	_, ok := s.Get("BTC")
	assert.False(t, ok)

	s.Upsert(record("BTC", 67000.50, t0))
	s.Upsert(record("BTC", 67100, t0.Add(30*time.Second)))
	s.Upsert(record("ETH", 3100, t0))

	btc, ok := s.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, 67100.0, btc.Price)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"BTC", "ETH"}, s.Symbols())
	assert.Len(t, s.All(), 2)
	assert.Equal(t, 3100.0, s.All()["ETH"].Price)
}

func TestStore_HistoryIsBoundedFIFO(t *testing.T) {
	s := New()
	for i := 0; i < 250; i++ {
		s.Upsert(record("SOL", float64(i), t0.Add(time.Duration(i)*time.Second)))
	}

	h := s.History("SOL", 0)
	require.Len(t, h, DefaultHistoryLimit)
	assert.Equal(t, 150.0, h[0].Price, "oldest entries are evicted first")
	assert.Equal(t, 249.0, h[len(h)-1].Price)
	for i := 1; i < len(h); i++ {
		assert.True(t, h[i].Timestamp.After(h[i-1].Timestamp))
	}
	assert.Equal(t, DefaultHistoryLimit, s.HistoryPoints())
}

func TestStore_HistoryLimit(t *testing.T) {
	s := New(WithHistoryLimit(5))
	for i := 1; i <= 7; i++ {
		s.Upsert(record("XLM", float64(i), t0.Add(time.Duration(i)*time.Minute)))
	}

	assert.Len(t, s.History("XLM", -1), 5)

	last := s.History("XLM", 2)
	require.Len(t, last, 2)
	assert.Equal(t, 6.0, last[0].Price)
	assert.Equal(t, 7.0, last[1].Price)

	assert.Len(t, s.History("XLM", 50), 5)
	assert.Empty(t, s.History("DOGE", 10))
	assert.NotNil(t, s.History("DOGE", 10))
}

func TestStore_HistoryReturnsCopy(t *testing.T) {
	s := New()
	s.Upsert(record("BTC", 1, t0))

	h := s.History("BTC", 0)
	h[0].Price = 999

	assert.Equal(t, 1.0, s.History("BTC", 0)[0].Price)
}

func TestStore_Summary(t *testing.T) {
	s := New()
	s.Upsert(record("BTC", 1, t0))
	s.Upsert(record("BTC", 2, t0.Add(time.Minute)))
	s.Upsert(record("BTC", 3, t0.Add(2*time.Minute)))
	manual := record("ETH", 3000, t0)
	manual.Source = prices.SourceManual
	s.Upsert(manual)

	summary := s.Summary()
	require.Len(t, summary, 2)
	assert.Equal(t, prices.HistorySummary{Points: 3, Oldest: t0, Latest: t0.Add(2 * time.Minute)}, summary["BTC"])
	assert.Equal(t, 1, summary["ETH"].Points)
	assert.Equal(t, prices.SourceManual, s.History("ETH", 1)[0].Source)
	assert.Equal(t, 4, s.HistoryPoints())
}

func TestStore_ReadersSeeConsistentRecords(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			s.Upsert(record("BTC", float64(i), t0.Add(time.Duration(i)*time.Second)))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				rec, ok := s.Get("BTC")
				if !ok {
					continue
				}
				assert.Equal(t, rec.Price, rec.RawPrice)
				h := s.History("BTC", 1)
				if assert.Len(t, h, 1) {
					assert.GreaterOrEqual(t, h[0].Price, rec.Price)
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, s.History("BTC", 0), DefaultHistoryLimit)
}
