package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradewatch/posdeck/internal/fetcher"
)

// Config controls batching behavior.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults. Fetch passes run on a
// ~40s cadence, so batches fill slowly; the interval does most of
// the flushing.
func DefaultConfig() Config {
	return Config{
		BatchSize:     200,
		FlushInterval: 10 * time.Second,
	}
}

// fetchRow is the flat form of a FetchResult for the fetch_log table.
type fetchRow struct {
	PassID     string
	Account    string
	Exchange   string
	Skipped    bool
	Error      string
	DurationMS int64
	AtMS       int64
	Positions  int
	Equity     float64
}

// passRow is the flat form of a PassSummary for the fetch_passes table.
type passRow struct {
	PassID      string
	StartedAtMS int64
	DurationMS  int64
	Accounts    int
	Fetched     int
	Failed      int
	Skipped     int
}

// Recorder consumes fetch outcomes from the orchestrator and writes
// them to PostgreSQL in batches. It satisfies fetcher.Observer; the
// Observe methods only enqueue and never touch the database directly.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	fetches *growableBuffer[fetcherResult]
	passes  *growableBuffer[fetcher.PassSummary]

	db *pgxpool.Pool

	// Batching
	fetchBatch  []fetchRow
	passBatch   []passRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// fetcherResult aliases the observer payload for the buffer type param.
type fetcherResult = fetcher.FetchResult

// Metrics tracks recorder activity.
type Metrics struct {
	Inserts int64
	Flushes int64
	Errors  int64
}

// New creates a Recorder writing through the given pool.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		fetches:    newGrowableBuffer[fetcherResult](64),
		passes:     newGrowableBuffer[fetcher.PassSummary](16),
		fetchBatch: make([]fetchRow, 0, cfg.BatchSize),
		passBatch:  make([]passRow, 0, 32),
	}
}

// ObserveFetch enqueues one account's fetch outcome. Never blocks.
func (r *Recorder) ObserveFetch(res fetcher.FetchResult) {
	r.fetches.Send(res)
}

// ObservePass enqueues a completed pass summary. Never blocks.
func (r *Recorder) ObservePass(sum fetcher.PassSummary) {
	r.passes.Send(sum)
}

// Start begins consuming outcomes and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder, flushing what remains.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	// Drain whatever arrived after the consume loop exited.
	r.drainBuffers()
	r.flush()

	r.logger.Info("recorder stopped")
	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// consumeLoop moves items from the buffers into the pending batches.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
			moved := r.drainBuffers()
			if !moved {
				select {
				case <-r.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
				}
			}
		}
	}
}

// drainBuffers transfers buffered items into the batches. Reports
// whether anything moved.
func (r *Recorder) drainBuffers() bool {
	moved := false

	for {
		res, ok := r.fetches.TryReceive()
		if !ok {
			break
		}
		moved = true
		r.appendFetch(res)
	}
	for {
		sum, ok := r.passes.TryReceive()
		if !ok {
			break
		}
		moved = true
		r.appendPass(sum)
	}
	return moved
}

func (r *Recorder) appendFetch(res fetcher.FetchResult) {
	row := fetchRow{
		PassID:     res.PassID.String(),
		Account:    res.Account,
		Exchange:   res.Exchange,
		Skipped:    res.Skipped,
		DurationMS: res.Duration.Milliseconds(),
		AtMS:       res.At.UnixMilli(),
		Positions:  res.Positions,
		Equity:     res.Equity,
	}
	if res.Err != nil {
		row.Error = res.Err.Error()
	}

	r.batchMu.Lock()
	r.fetchBatch = append(r.fetchBatch, row)
	shouldFlush := len(r.fetchBatch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush()
	}
}

func (r *Recorder) appendPass(sum fetcher.PassSummary) {
	row := passRow{
		PassID:      sum.PassID.String(),
		StartedAtMS: sum.StartedAt.UnixMilli(),
		DurationMS:  sum.Duration.Milliseconds(),
		Accounts:    sum.Accounts,
		Fetched:     sum.Fetched,
		Failed:      sum.Failed,
		Skipped:     sum.Skipped,
	}

	r.batchMu.Lock()
	r.passBatch = append(r.passBatch, row)
	r.batchMu.Unlock()
}

// flushLoop periodically flushes the batches.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush()
		}
	}
}

// flush writes the pending batches to the database.
func (r *Recorder) flush() {
	r.batchMu.Lock()
	fetchBatch := r.fetchBatch
	passBatch := r.passBatch
	if len(fetchBatch) == 0 && len(passBatch) == 0 {
		r.batchMu.Unlock()
		return
	}
	r.fetchBatch = make([]fetchRow, 0, r.cfg.BatchSize)
	r.passBatch = make([]passRow, 0, 32)
	r.batchMu.Unlock()

	start := time.Now()

	if err := r.batchInsert(fetchBatch, passBatch); err != nil {
		r.logger.Error("batch insert failed",
			"error", err,
			"fetches", len(fetchBatch),
			"passes", len(passBatch),
		)
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(fetchBatch) + len(passBatch))
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed fetch history",
		"fetches", len(fetchBatch),
		"passes", len(passBatch),
		"duration", time.Since(start),
	)
}

// batchInsert writes both row kinds in one pgx.Batch round trip.
func (r *Recorder) batchInsert(fetches []fetchRow, passes []passRow) error {
	batch := &pgx.Batch{}
	for _, row := range fetches {
		batch.Queue(`
			INSERT INTO fetch_log (pass_id, account, exchange, skipped, error, duration_ms, at_ms, positions, equity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, row.PassID, row.Account, row.Exchange, row.Skipped, row.Error, row.DurationMS, row.AtMS, row.Positions, row.Equity)
	}
	for _, row := range passes {
		batch.Queue(`
			INSERT INTO fetch_passes (pass_id, started_at_ms, duration_ms, accounts, fetched, failed, skipped)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (pass_id) DO NOTHING
		`, row.PassID, row.StartedAtMS, row.DurationMS, row.Accounts, row.Fetched, row.Failed, row.Skipped)
	}

	// The final flush from Stop runs after the internal context is
	// canceled; give it its own deadline.
	ctx := r.ctx
	if ctx == nil || ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(fetches)+len(passes); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
