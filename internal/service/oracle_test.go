package service

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"priceoracle/internal/models"
	"priceoracle/internal/store"
	"priceoracle/pkg/types/prices"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ethAsset = prices.AssetConfig{
	Symbol:       "ETH",
	Addresses:    []prices.ChainAddress{{Chain: "ethereum", Address: "0xC02a"}},
	SearchTerms:  []string{"WETH"},
	MinLiquidity: 100000,
}

type oracleFixture struct {
	svc       *OracleService
	fetcher   *fakeFetcher
	ledger    *fakeLedger
	recorder  *fakeRecorder
	publisher *fakePublisher
	store     *store.Store
}

func newOracleFixture(t *testing.T, ledger *fakeLedger, opts ...OracleOption) *oracleFixture {
	t.Helper()
	fx := &oracleFixture{
		fetcher: newFakeFetcher().
			address("ethereum", "0x2260", pair("WBTC", 67000.50, 150000, 80000)).
			address("ethereum", "0xC02a", pair("WETH", 3100.25, 500000, 20000)),
		ledger:    ledger,
		recorder:  &fakeRecorder{},
		publisher: &fakePublisher{},
		store:     store.New(),
	}

	base := []OracleOption{
		WithOracleContext(t.Context()),
		WithOracleLogger(discardLogger),
		WithOracleAssets([]prices.AssetConfig{btcAsset, ethAsset}),
		WithOracleResolver(newTestResolver(t, fx.fetcher)),
		WithOracleStore(fx.store),
		WithOracleLedger(fx.ledger),
		WithOracleRecorder(fx.recorder),
		WithOraclePublisher(fx.publisher),
		WithOracleClock(func() time.Time { return resolvedAt }),
	}
	svc, err := NewOracleService(append(base, opts...)...)
	require.NoError(t, err)
	fx.svc = svc
	return fx
}

func TestOracle_CycleSubmitsAndCommits(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(true))

	report, err := fx.svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, 2, report.Submitted)
	assert.Zero(t, report.Failed)
	assert.False(t, report.Skipped)

	btc, ok := fx.store.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, 67000.50, btc.Price)
	assert.Equal(t, prices.MethodTokenAddress, btc.Method)
	assert.Equal(t, "tx-BTC-6700050", btc.TxHash)
	assert.Len(t, fx.store.History("BTC", 0), 1)

	assert.Equal(t, map[string]int64{"BTC": 6700050, "ETH": 310025}, fx.ledger.Submitted())

	status := fx.svc.Status()
	assert.Equal(t, int64(1), status.Updates)
	require.NotNil(t, status.LastUpdate)
	assert.Equal(t, resolvedAt, *status.LastUpdate)
	assert.Equal(t, "idle", status.Phase)
	assert.NotEqual(t, "n/a", status.AverageUpdateTime)

	rows := fx.recorder.Rows()
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, models.SubmissionSuccess, row.Status)
		assert.Equal(t, report.ID, row.CycleID)
		assert.NotEmpty(t, row.TxHash)
	}
}

func TestOracle_OutOfRangePriceIsNotSubmitted(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(true))
	fx.fetcher.address("ethereum", "0x2260", pair("WBTC", 1e17, 150000, 80000))

	report, err := fx.svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Failed)

	assert.Equal(t, map[string]int64{"ETH": 310025}, fx.ledger.Submitted())

	btc, ok := fx.store.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, 1e17, btc.Price)
	assert.Empty(t, btc.TxHash)

	rows := fx.recorder.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "ETH", rows[0].Symbol)
}

func TestOracle_SubmissionFailureIsIsolated(t *testing.T) {
	ledger := newFakeLedger(true)
	ledger.failFor["BTC"] = true
	fx := newOracleFixture(t, ledger)

	report, err := fx.svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Failed)

	btc, ok := fx.store.Get("BTC")
	require.True(t, ok, "failed submissions still publish the price locally")
	assert.Equal(t, 67000.50, btc.Price)
	assert.Empty(t, btc.TxHash)

	eth, ok := fx.store.Get("ETH")
	require.True(t, ok)
	assert.Equal(t, "tx-ETH-310025", eth.TxHash)

	statuses := map[string]string{}
	for _, row := range fx.recorder.Rows() {
		statuses[row.Symbol] = row.Status
		if row.Symbol == "BTC" {
			assert.Contains(t, row.Error, "ledger unavailable")
		}
	}
	assert.Equal(t, map[string]string{"BTC": models.SubmissionFailed, "ETH": models.SubmissionSuccess}, statuses)
	assert.Equal(t, int64(1), fx.svc.Updates())
}

func TestOracle_NothingResolvedIsNoop(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(true))
	fx.fetcher.byAddress = map[string]fetchResult{}

	report, err := fx.svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Zero(t, report.Resolved)
	assert.Zero(t, fx.store.Len())
	assert.Empty(t, fx.ledger.Submitted())
	assert.Empty(t, fx.publisher.Messages())
	assert.Zero(t, fx.svc.Updates())
	assert.Nil(t, fx.svc.Status().LastUpdate)
}

func TestOracle_UnconfiguredLedgerSkipsSubmission(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(false))

	report, err := fx.svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, report.Submitted)
	assert.Zero(t, report.Failed)

	assert.Equal(t, 2, fx.store.Len())
	assert.Empty(t, fx.ledger.Submitted())
	assert.Empty(t, fx.recorder.Rows())
	assert.Equal(t, int64(1), fx.svc.Updates())
}

func TestOracle_PublishesPriceUpdates(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(true))

	_, err := fx.svc.RunCycle(t.Context())
	require.NoError(t, err)

	msgs := fx.publisher.Messages()
	require.Len(t, msgs, 2)

	var msg prices.PriceUpdateMessage
	require.NoError(t, json.Unmarshal(msgs[0], &msg))
	assert.Equal(t, prices.MessagePriceUpdate, msg.Type)
	assert.Equal(t, "BTC", msg.Payload.Symbol)
	assert.Equal(t, "tx-BTC-6700050", msg.Payload.TxHash)
}

func TestOracle_NoOverlappingCycles(t *testing.T) {
	ledger := newFakeLedger(true)
	ledger.block = make(chan struct{})
	ledger.started = make(chan struct{}, 1)
	fx := newOracleFixture(t, ledger)

	done := make(chan error, 1)
	go func() {
		_, err := fx.svc.RunCycle(t.Context())
		done <- err
	}()

	<-ledger.started
	assert.Equal(t, PhaseSubmitting, fx.svc.Phase())

	_, err := fx.svc.RunCycle(t.Context())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(ledger.block)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseIdle, fx.svc.Phase())
	assert.Equal(t, int64(1), fx.svc.Updates())

	_, err = fx.svc.RunCycle(t.Context())
	assert.NoError(t, err)
}

func TestOracle_ManualSubmission(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(true))

	rec, err := fx.svc.Submit(t.Context(), ManualSubmission{Symbol: " btc ", Price: 67000.50})
	require.NoError(t, err)
	assert.Equal(t, "BTC", rec.Symbol)
	assert.Equal(t, prices.MethodManualSubmission, rec.Method)
	assert.Equal(t, prices.SourceManual, rec.Source)
	assert.Equal(t, "tx-BTC-6700050", rec.TxHash)

	stored, ok := fx.store.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, rec, stored)
	assert.Equal(t, prices.SourceManual, fx.store.History("BTC", 1)[0].Source)

	rows := fx.recorder.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, prices.MethodManualSubmission, rows[0].Method)
	assert.Empty(t, rows[0].CycleID)

	rec, err = fx.svc.Submit(t.Context(), ManualSubmission{Symbol: "DOGE", Price: 0.15, Source: "chainlink"})
	require.NoError(t, err)
	assert.Equal(t, "chainlink", rec.Source)
}

func TestOracle_ManualSubmissionValidation(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(true))

	tests := []struct {
		name string
		in   ManualSubmission
	}{
		{"empty symbol", ManualSubmission{Symbol: "  ", Price: 1}},
		{"zero price", ManualSubmission{Symbol: "BTC", Price: 0}},
		{"negative price", ManualSubmission{Symbol: "BTC", Price: -5}},
		{"nan", ManualSubmission{Symbol: "BTC", Price: math.NaN()}},
		{"infinite", ManualSubmission{Symbol: "BTC", Price: math.Inf(1)}},
		{"overflows minor units", ManualSubmission{Symbol: "BTC", Price: 1e17}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Submit(t.Context(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidSubmission)
		})
	}
	assert.Zero(t, fx.store.Len())
	assert.Empty(t, fx.ledger.Submitted())
}

func TestOracle_ManualSubmissionNeedsLedger(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(false))

	_, err := fx.svc.Submit(t.Context(), ManualSubmission{Symbol: "BTC", Price: 1})
	assert.ErrorIs(t, err, ErrLedgerNotConfigured)
	assert.Zero(t, fx.store.Len())
}

func TestOracle_ManualSubmissionLedgerFailure(t *testing.T) {
	ledger := newFakeLedger(true)
	ledger.failFor["BTC"] = true
	fx := newOracleFixture(t, ledger)

	_, err := fx.svc.Submit(t.Context(), ManualSubmission{Symbol: "BTC", Price: 1})
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Zero(t, fx.store.Len())
	require.Len(t, fx.recorder.Rows(), 1)
	assert.Equal(t, models.SubmissionFailed, fx.recorder.Rows()[0].Status)
}

func TestOracle_StartAndStop(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(true), WithOracleInterval(20*time.Millisecond))

	require.NoError(t, fx.svc.Start())
	assert.ErrorIs(t, fx.svc.Start(), ErrAlreadyRunning)
	assert.True(t, fx.svc.Status().Running)

	assert.Eventually(t, func() bool { return fx.svc.Updates() >= 2 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, fx.svc.Stop(ctx))
	assert.False(t, fx.svc.Status().Running)

	updates := fx.svc.Updates()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, updates, fx.svc.Updates(), "no cycles after stop")

	assert.ErrorIs(t, fx.svc.Start(), ErrServiceStopped)
	assert.False(t, fx.svc.Status().Running)
}

type failingScheduler struct {
	err error
}

func (f failingScheduler) Start() error { return f.err }
func (f failingScheduler) Stop()        {}

func TestOracle_StartSchedulerFailure(t *testing.T) {
	fx := newOracleFixture(t, newFakeLedger(true))
	errBoom := errors.New("ticker unavailable")
	fx.svc.scheduler = failingScheduler{err: errBoom}

	assert.ErrorIs(t, fx.svc.Start(), errBoom)
	assert.False(t, fx.svc.Status().Running)

	assert.ErrorIs(t, fx.svc.Start(), errBoom, "a failed start can be retried")

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fx.svc.Updates(), "no cycle runs when the scheduler did not start")
	assert.Empty(t, fx.ledger.Submitted())
}

func TestOracle_StopAbandonsBlockedCycle(t *testing.T) {
	ledger := newFakeLedger(true)
	ledger.block = make(chan struct{})
	ledger.started = make(chan struct{}, 1)
	fx := newOracleFixture(t, ledger, WithOracleInterval(time.Hour))

	require.NoError(t, fx.svc.Start())
	<-ledger.started

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, fx.svc.Stop(ctx))

	for _, sym := range []string{"BTC", "ETH"} {
		rec, ok := fx.store.Get(sym)
		require.True(t, ok)
		assert.Empty(t, rec.TxHash)
	}
}

func TestNewOracleService_InvalidConfig(t *testing.T) {
	_, err := NewOracleService(WithOracleLogger(discardLogger))
	assert.ErrorIs(t, err, ErrInvalidOracleConfig)

	_, err = NewOracleService(
		WithOracleContext(t.Context()),
		WithOracleLogger(discardLogger),
		WithOracleAssets([]prices.AssetConfig{btcAsset}),
	)
	assert.ErrorIs(t, err, ErrInvalidOracleConfig)
}
