package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"priceoracle/internal/metrics"
	"priceoracle/internal/models"
	"priceoracle/internal/store"
	tickerScheduler "priceoracle/pkg/integrations/scheduler"
	"priceoracle/pkg/integrations/stellar"
	"priceoracle/pkg/types/prices"
	"priceoracle/pkg/types/pubsub"
	"priceoracle/pkg/types/scheduler"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidOracleConfig = errors.New("invalid oracle service config")
	ErrInvalidSubmission   = errors.New("invalid submission")
	ErrLedgerNotConfigured = errors.Wrap(stellar.ErrNotConfigured, "oracle")
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrCycleInProgress     = errors.New("update cycle already in progress")
	ErrAlreadyRunning      = errors.New("oracle service already running")
	ErrServiceStopped      = errors.New("oracle service stopped")
)

type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseResolving:
		return "resolving"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// SubmissionRecorder persists the audit trail of ledger submissions.
type SubmissionRecorder interface {
	CreateSubmission(s *models.Submission) error
}

type ManualSubmission struct {
	Symbol string
	Price  float64
	Source string
}

type CycleReport struct {
	ID        string        `json:"id"`
	Resolved  int           `json:"resolved"`
	Submitted int           `json:"submitted"`
	Failed    int           `json:"failed"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

type RuntimeStatus struct {
	StartTime         time.Time           `json:"startTime"`
	Running           bool                `json:"running"`
	Updates           int64               `json:"updates"`
	LastUpdate        *time.Time          `json:"lastUpdate"`
	AverageUpdateTime string              `json:"averageUpdateTime"`
	Phase             string              `json:"phase"`
	Interval          time.Duration       `json:"interval"`
	Ledger            prices.LedgerStatus `json:"ledger"`
}

// OracleService owns the price store. Cycles and manual submissions are the
// only writers and both go through commit.
type OracleService struct {
	ctx       context.Context
	logger    *slog.Logger
	assets    []prices.AssetConfig
	resolver  *Resolver
	store     *store.Store
	ledger    prices.LedgerSubmitter
	recorder  SubmissionRecorder
	publisher pubsub.Publisher
	metrics   *metrics.Metrics
	interval  time.Duration
	now       func() time.Time

	scheduler scheduler.Scheduler
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup

	running  atomic.Bool
	inFlight atomic.Bool
	phase    atomic.Int32
	commitMu sync.Mutex

	statsMu       sync.RWMutex
	startTime     time.Time
	cycles        int64
	lastUpdate    time.Time
	totalDuration time.Duration
}

type OracleOption func(*OracleService)

func WithOracleContext(ctx context.Context) OracleOption {
	return func(s *OracleService) {
		s.ctx = ctx
	}
}

func WithOracleLogger(l *slog.Logger) OracleOption {
	return func(s *OracleService) {
		s.logger = l
	}
}

func WithOracleAssets(assets []prices.AssetConfig) OracleOption {
	return func(s *OracleService) {
		s.assets = assets
	}
}

func WithOracleResolver(r *Resolver) OracleOption {
	return func(s *OracleService) {
		s.resolver = r
	}
}

func WithOracleStore(st *store.Store) OracleOption {
	return func(s *OracleService) {
		s.store = st
	}
}

func WithOracleLedger(l prices.LedgerSubmitter) OracleOption {
	return func(s *OracleService) {
		s.ledger = l
	}
}

func WithOracleRecorder(r SubmissionRecorder) OracleOption {
	return func(s *OracleService) {
		s.recorder = r
	}
}

func WithOraclePublisher(p pubsub.Publisher) OracleOption {
	return func(s *OracleService) {
		s.publisher = p
	}
}

func WithOracleMetrics(m *metrics.Metrics) OracleOption {
	return func(s *OracleService) {
		s.metrics = m
	}
}

func WithOracleInterval(d time.Duration) OracleOption {
	return func(s *OracleService) {
		s.interval = d
	}
}

func WithOracleClock(now func() time.Time) OracleOption {
	return func(s *OracleService) {
		s.now = now
	}
}

func (s *OracleService) IsValid() error {
	switch {
	case s.ctx == nil:
		return errors.Wrap(ErrInvalidOracleConfig, "ctx cannot be nil")
	case s.logger == nil:
		return errors.Wrap(ErrInvalidOracleConfig, "logger cannot be nil")
	case len(s.assets) == 0:
		return errors.Wrap(ErrInvalidOracleConfig, "assets cannot be empty")
	case s.resolver == nil:
		return errors.Wrap(ErrInvalidOracleConfig, "resolver cannot be nil")
	case s.store == nil:
		return errors.Wrap(ErrInvalidOracleConfig, "store cannot be nil")
	case s.ledger == nil:
		return errors.Wrap(ErrInvalidOracleConfig, "ledger cannot be nil")
	case s.recorder == nil:
		return errors.Wrap(ErrInvalidOracleConfig, "recorder cannot be nil")
	case s.publisher == nil:
		return errors.Wrap(ErrInvalidOracleConfig, "publisher cannot be nil")
	case s.interval <= 0:
		return errors.Wrap(ErrInvalidOracleConfig, "interval must be positive")
	default:
		return nil
	}
}

func NewOracleService(opts ...OracleOption) (*OracleService, error) {
	s := &OracleService{
		interval: scheduler.DefaultUpdateInterval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.IsValid(); err != nil {
		return nil, err
	}

	s.runCtx, s.cancelRun = context.WithCancel(s.ctx)
	s.startTime = s.now()

	sched, err := tickerScheduler.New(
		tickerScheduler.WithContext(s.runCtx),
		tickerScheduler.WithLogger(s.logger),
		tickerScheduler.WithInterval(s.interval),
		tickerScheduler.WithHandler(s.tick),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}
	s.scheduler = sched

	return s, nil
}

// Start runs the first cycle in the background and then one per interval.
// A service can be started once; after Stop it returns ErrServiceStopped.
func (s *OracleService) Start() error {
	if s.runCtx.Err() != nil {
		return ErrServiceStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	status := s.ledger.Status()
	s.logger.Info("starting oracle service",
		"assets", len(s.assets),
		"interval", s.interval,
		"provider", status.Provider,
		"contract", status.Contract,
		"network", status.Network,
	)

	if err := s.scheduler.Start(); err != nil {
		s.running.Store(false)
		return errors.Wrap(err, "failed to start scheduler")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.tick(s.runCtx); err != nil {
			s.logger.Error("initial cycle failed", "error", err)
		}
	}()

	return nil
}

// Stop halts the ticker and cancels the running cycle, waiting for it to
// return until ctx is done.
func (s *OracleService) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.cancelRun()
		s.scheduler.Stop()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.running.Store(false)
		s.logger.Info("oracle service stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for update cycle")
	}
}

func (s *OracleService) tick(ctx context.Context) error {
	_, err := s.RunCycle(ctx)
	if errors.Is(err, ErrCycleInProgress) {
		s.logger.Warn("previous cycle still running, skipping tick")
		return nil
	}
	return err
}

// RunCycle resolves every asset, submits the resolved prices to the ledger
// and commits them to the store. Only one cycle runs at a time.
func (s *OracleService) RunCycle(ctx context.Context) (CycleReport, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.CycleSkipped()
		return CycleReport{}, ErrCycleInProgress
	}
	defer s.inFlight.Store(false)
	defer s.phase.Store(int32(PhaseIdle))

	started := time.Now()
	report := CycleReport{ID: uuid.NewString()}
	logger := s.logger.With("cycle", report.ID)

	s.phase.Store(int32(PhaseResolving))
	logger.Info("starting update cycle", "number", s.Updates()+1)
	records := s.resolver.ResolveAll(ctx, s.assets)
	report.Resolved = len(records)

	if len(records) == 0 {
		logger.Warn("no prices resolved, nothing to update")
		report.Duration = time.Since(started)
		return report, nil
	}

	s.phase.Store(int32(PhaseSubmitting))
	hashes := make([]string, len(records))
	if s.ledger.Configured() {
		hashes = s.submitAll(ctx, logger, report.ID, records)
	} else {
		report.Skipped = true
		logger.Debug("ledger not configured, skipping submission")
	}

	for i, rec := range records {
		rec.TxHash = hashes[i]
		if rec.TxHash != "" {
			report.Submitted++
		} else if !report.Skipped {
			report.Failed++
		}
		s.commit(rec)
	}

	report.Duration = time.Since(started)
	s.recordCycle(report.Duration)

	logger.Info("update cycle complete",
		"resolved", report.Resolved,
		"submitted", report.Submitted,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

// submitAll sends every record concurrently. A failed submission leaves an
// empty hash at its index and does not affect the others.
func (s *OracleService) submitAll(ctx context.Context, logger *slog.Logger, cycleID string, records []prices.PriceRecord) []string {
	hashes := make([]string, len(records))

	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("ledger submission panicked", "symbol", records[i].Symbol, "panic", fmt.Sprint(r))
				}
			}()
			if hash, err := s.submit(ctx, logger, cycleID, records[i]); err == nil {
				hashes[i] = hash
			}
		}(i)
	}
	wg.Wait()

	return hashes
}

// submit sends one record to the ledger and records the attempt. A price
// that cannot be expressed in the contract's minor units is never sent.
func (s *OracleService) submit(ctx context.Context, logger *slog.Logger, cycleID string, rec prices.PriceRecord) (string, error) {
	units, err := stellar.MinorUnits(rec.Price)
	if err != nil {
		logger.Warn("price out of ledger range, skipping submission", "symbol", rec.Symbol, "price", rec.Price)
		return "", err
	}

	hash, err := s.ledger.Submit(ctx, rec.Symbol, units)
	s.metrics.Submission(rec.Symbol, err == nil)

	entry := &models.Submission{
		Symbol:     rec.Symbol,
		Price:      rec.Price,
		MinorUnits: units,
		Method:     rec.Method,
		CycleID:    cycleID,
	}
	if err != nil {
		entry.Status = models.SubmissionFailed
		entry.Error = err.Error()
		logger.Error("ledger submission failed", "symbol", rec.Symbol, "price", units, "error", err)
	} else {
		entry.Status = models.SubmissionSuccess
		entry.TxHash = hash
		logger.Info("ledger submission accepted", "symbol", rec.Symbol, "price", units, "tx", hash)
	}

	if rerr := s.recorder.CreateSubmission(entry); rerr != nil {
		logger.Warn("failed to record submission", "symbol", rec.Symbol, "error", rerr)
	}
	return hash, err
}

// Submit publishes a manually supplied price. The record is committed only
// when the ledger accepts it.
func (s *OracleService) Submit(ctx context.Context, in ManualSubmission) (prices.PriceRecord, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return prices.PriceRecord{}, errors.Wrap(ErrInvalidSubmission, "symbol is required")
	}
	if math.IsNaN(in.Price) || math.IsInf(in.Price, 0) || in.Price <= 0 {
		return prices.PriceRecord{}, errors.Wrap(ErrInvalidSubmission, "price must be a positive number")
	}
	if _, err := stellar.MinorUnits(in.Price); err != nil {
		return prices.PriceRecord{}, errors.Wrap(ErrInvalidSubmission, err.Error())
	}
	if !s.ledger.Configured() {
		return prices.PriceRecord{}, ErrLedgerNotConfigured
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = prices.SourceManual
	}

	rec := prices.PriceRecord{
		Symbol:    symbol,
		Price:     in.Price,
		RawPrice:  in.Price,
		Timestamp: s.now().UTC(),
		Source:    source,
		Method:    prices.MethodManualSubmission,
	}

	hash, err := s.submit(ctx, s.logger, "", rec)
	if err != nil {
		return prices.PriceRecord{}, errors.Wrap(ErrSubmissionFailed, err.Error())
	}
	rec.TxHash = hash

	s.commit(rec)
	return rec, nil
}

func (s *OracleService) commit(rec prices.PriceRecord) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.store.Upsert(rec)
	s.metrics.Price(rec.Symbol, rec.Price)

	data, err := json.Marshal(prices.PriceUpdateMessage{
		Type:      prices.MessagePriceUpdate,
		Payload:   rec,
		Timestamp: rec.Timestamp,
	})
	if err != nil {
		s.logger.Error("failed to marshal price update", "symbol", rec.Symbol, "error", err)
		return
	}
	if err := s.publisher.Publish(data); err != nil {
		s.logger.Warn("failed to publish price update", "symbol", rec.Symbol, "error", err)
	}
}

func (s *OracleService) recordCycle(d time.Duration) {
	s.statsMu.Lock()
	s.cycles++
	s.lastUpdate = s.now().UTC()
	s.totalDuration += d
	s.statsMu.Unlock()

	s.metrics.CycleCompleted(d)
}

func (s *OracleService) Updates() int64 {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.cycles
}

func (s *OracleService) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *OracleService) Assets() []prices.AssetConfig {
	return s.assets
}

func (s *OracleService) Store() *store.Store {
	return s.store
}

func (s *OracleService) Status() RuntimeStatus {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	status := RuntimeStatus{
		StartTime:         s.startTime,
		Running:           s.running.Load(),
		Updates:           s.cycles,
		AverageUpdateTime: "n/a",
		Phase:             s.Phase().String(),
		Interval:          s.interval,
		Ledger:            s.ledger.Status(),
	}
	if !s.lastUpdate.IsZero() {
		last := s.lastUpdate
		status.LastUpdate = &last
	}
	if s.cycles > 0 {
		avg := s.totalDuration / time.Duration(s.cycles)
		status.AverageUpdateTime = avg.Round(time.Millisecond).String()
	}
	return status
}
