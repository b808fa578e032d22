package core

// gateway.go issues one create per record against the record store.
//
// Dispatch runs up to Concurrency creates at a time. Results are written by
// row index, so the aggregated outcome always follows CSV order no matter
// which call finishes first. Nothing is rolled back: rows created before a
// failure stay created.
//
// A transport failure (IsTransportError) cancels the rest of the dispatch.
// Rows that were never attempted are reported as failed, and the outcome
// carries the transport error so the wizard can move to Failed.

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/logging"
	"golang.org/x/sync/errgroup"
)

// ErrNetwork marks a failure of the transport to the record store. Stores
// wrap connection-level failures with it.
var ErrNetwork = errors.New("network error")

// ErrImportCancelled is the reason recorded for rows skipped because the
// import was cancelled.
var ErrImportCancelled = errors.New("import cancelled")

// ErrNameRequired is returned for records without a process name; the store
// is not called for them.
var ErrNameRequired = errors.New("process name is required")

// errNotAttempted is the reason recorded for rows skipped after a transport failure.
var errNotAttempted = fmt.Errorf("not attempted: %w", ErrNetwork)

// Default gateway settings.
const (
	DefaultImportConcurrency = 4
	DefaultCreateTimeout     = 10 * time.Second
)

// IsTransportError reports whether err means the store could not be reached,
// as opposed to the store rejecting a single record.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// CreateResult is the explicit result of one create call.
type CreateResult struct {
	RowIndex int    // 1-based
	ID       string // set on success
	Err      error  // set on failure
}

// ImportOutcome aggregates the results of an import.
type ImportOutcome struct {
	Results      []CreateResult // one per record, in row order
	TransportErr error          // first transport failure, if any
	Cancelled    bool           // the caller's context ended before dispatch finished
}

// Result converts the outcome into succeeded ids and failed rows.
func (o ImportOutcome) Result() ImportResult {
	res := ImportResult{
		Succeeded: []string{},
		Failed:    []FailedRow{},
	}
	for _, r := range o.Results {
		if r.Err != nil {
			res.Failed = append(res.Failed, FailedRow{RowIndex: r.RowIndex, Reason: r.Err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, r.ID)
	}
	return res
}

// GatewayConfig configures dispatch.
type GatewayConfig struct {
	Concurrency   int           // maximum creates in flight (1 = sequential)
	CreateTimeout time.Duration // per-create deadline
}

// Gateway creates records through a RecordStore.
type Gateway struct {
	store RecordStore
	cfg   GatewayConfig
}

// NewGateway returns a Gateway. Zero config values fall back to defaults.
func NewGateway(store RecordStore, cfg GatewayConfig) *Gateway {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultImportConcurrency
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = DefaultCreateTimeout
	}
	return &Gateway{store: store, cfg: cfg}
}

// ImportRows creates every record and aggregates the results. onProgress may
// be nil; it is called from dispatch goroutines, one call at a time.
func (g *Gateway) ImportRows(ctx context.Context, ic ImportContext, records []ProcessRecord, onProgress ProgressCallback) ImportOutcome {
	ctx = WithImportContext(ctx, ic)
	logger := logging.FromContext(ctx)
	start := time.Now()

	results := make([]CreateResult, len(records))
	attempted := make([]bool, len(records))

	var (
		mu       sync.Mutex
		progress = ImportProgress{Total: len(records), Step: StepImporting}
	)
	report := func(res CreateResult) {
		mu.Lock()
		defer mu.Unlock()
		progress.Done++
		if res.Err != nil {
			progress.Failed++
		} else {
			progress.Succeeded++
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)

	for i, rec := range records {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return nil
			}
			res := g.create(egCtx, i+1, rec)
			results[i] = res
			attempted[i] = true
			report(res)
			if IsTransportError(res.Err) {
				return res.Err
			}
			return nil
		})
	}

	transportErr := eg.Wait()

	outcome := ImportOutcome{
		Results:      results,
		TransportErr: transportErr,
		Cancelled:    transportErr == nil && interrupted(ctx, results, attempted),
	}

	for i := range results {
		if attempted[i] {
			continue
		}
		reason := errNotAttempted
		if transportErr == nil {
			reason = ErrImportCancelled
		}
		results[i] = CreateResult{RowIndex: i + 1, Err: reason}
	}

	res := outcome.Result()
	logger.Info("import dispatch finished",
		"rows", len(records),
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
		"transport_error", transportErr != nil,
		"cancelled", outcome.Cancelled,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return outcome
}

// interrupted reports whether cancellation cost the import at least one
// row. A deadline that fires after the last create is not an interruption.
func interrupted(ctx context.Context, results []CreateResult, attempted []bool) bool {
	if ctx.Err() == nil {
		return false
	}
	for i, ok := range attempted {
		if !ok || errors.Is(results[i].Err, ErrImportCancelled) {
			return true
		}
	}
	return false
}

// create runs one store call and turns it into a CreateResult.
func (g *Gateway) create(ctx context.Context, rowIndex int, rec ProcessRecord) CreateResult {
	if rec.Name == "" {
		return CreateResult{RowIndex: rowIndex, Err: ErrNameRequired}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CreateTimeout)
	defer cancel()

	id, err := g.store.Create(callCtx, rec)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// The whole import was cancelled, not just this call.
			err = fmt.Errorf("%w: %v", ErrImportCancelled, err)
		case errors.Is(err, context.DeadlineExceeded):
			err = fmt.Errorf("%w: create timed out after %s", ErrNetwork, g.cfg.CreateTimeout)
		}
		logging.FromContext(ctx).Debug("create failed", "row", rowIndex, "error", err)
		return CreateResult{RowIndex: rowIndex, Err: err}
	}

	return CreateResult{RowIndex: rowIndex, ID: id}
}
