package escalation

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/types"
)

const meterScope = "github.com/clearstack/clearflow/internal/escalation"

// Sweep tuning defaults.
const (
	DefaultWorkers     = 4
	DefaultItemTimeout = 10 * time.Second
)

// Escalator is the slice of the lifecycle handler the sweep needs.
type Escalator interface {
	SystemEscalate(ctx context.Context, req *types.Request) error
	EscalationThreshold() time.Duration
}

// Report aggregates one sweep run. A sweep never fails all-or-nothing: the
// report is returned even when individual items failed.
type Report struct {
	Scanned   int      `json:"scanned"`
	Escalated int      `json:"escalated"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// SweepOptions configures a Sweeper. Zero values get defaults.
type SweepOptions struct {
	Workers     int           // concurrent escalations (distinct rows only)
	ItemTimeout time.Duration // per-item budget; a timed-out item retries next sweep
	Now         func() time.Time
	LogWriter   io.Writer
}

// Sweeper scans for stale pending requests and escalates them.
type Sweeper struct {
	store       storage.Storage
	handler     Escalator
	workers     int
	itemTimeout time.Duration
	now         func() time.Time
	logw        io.Writer

	escalated metric.Int64Counter
	failed    metric.Int64Counter
}

// NewSweeper creates a sweeper over the given store and handler.
func NewSweeper(store storage.Storage, handler Escalator, opts SweepOptions) *Sweeper {
	s := &Sweeper{
		store:       store,
		handler:     handler,
		workers:     opts.Workers,
		itemTimeout: opts.ItemTimeout,
		now:         opts.Now,
		logw:        opts.LogWriter,
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	if s.itemTimeout <= 0 {
		s.itemTimeout = DefaultItemTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logw == nil {
		s.logw = os.Stderr
	}

	meter := otel.Meter(meterScope)
	s.escalated, _ = meter.Int64Counter("clearflow.sweep.escalated",
		metric.WithDescription("Requests escalated by the sweep"))
	s.failed, _ = meter.Int64Counter("clearflow.sweep.failed",
		metric.WithDescription("Per-item sweep failures"))
	return s
}

// Run executes one sweep: query every eligible request (oldest activity
// first), escalate each, and report. A failure on one request is logged and
// counted, never fatal to the rest of the batch. Only the initial query can
// fail the sweep outright.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	now := s.now().UTC()
	threshold := s.handler.EscalationThreshold()
	cutoff := now.Add(-threshold)

	pending := types.StatusPending
	candidates, err := s.store.ListRequests(ctx, types.RequestFilter{
		Status:            &pending,
		StaleBefore:       &cutoff,
		NotEscalatedSince: &cutoff,
	})
	if err != nil {
		return nil, fmt.Errorf("sweep query failed: %w", err)
	}

	report := &Report{Scanned: len(candidates)}
	if len(candidates) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, req := range candidates {
		req := req
		g.Go(func() error {
			// The query already filtered, but re-evaluate against the same
			// snapshot: a request touched between query and escalation should
			// not be escalated on stale grounds.
			if !Eligible(req, now, threshold) {
				return nil
			}

			itemCtx, cancel := context.WithTimeout(gctx, s.itemTimeout)
			err := s.handler.SystemEscalate(itemCtx, req)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("request %s: %v", req.ID, err))
				fmt.Fprintf(s.logw, "warning: sweep failed to escalate request %s: %v\n", req.ID, err)
				if s.failed != nil {
					s.failed.Add(gctx, 1)
				}
				return nil // continue-on-error: per-item failures never abort the sweep
			}
			report.Escalated++
			if s.escalated != nil {
				s.escalated.Add(gctx, 1)
			}
			return nil
		})
	}
	_ = g.Wait() // workers only ever return nil

	return report, nil
}
